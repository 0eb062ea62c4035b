package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/portyard/internal/audit/domain"
	"github.com/smallbiznis/portyard/internal/authorization"
	"github.com/smallbiznis/portyard/internal/clock"
	"github.com/smallbiznis/portyard/internal/errs"
	"github.com/smallbiznis/portyard/internal/masterdata/domain"
	"github.com/smallbiznis/portyard/pkg/db"
	"github.com/smallbiznis/portyard/pkg/db/option"
	"github.com/smallbiznis/portyard/pkg/repository"
	"github.com/smallbiznis/portyard/pkg/validate"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Gate     authorization.Gate
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	gate     authorization.Gate
	auditSvc auditdomain.Service

	parties        repository.Repository[domain.Party]
	ports          repository.Repository[domain.Port]
	berths         repository.Repository[domain.Berth]
	containerTypes repository.Repository[domain.ContainerType]
	containers     repository.Repository[domain.Container]
	vessels        repository.Repository[domain.Vessel]
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("masterdata.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		gate:     p.Gate,
		auditSvc: p.AuditSvc,

		parties:        repository.ProvideStore[domain.Party](p.DB),
		ports:          repository.ProvideStore[domain.Port](p.DB),
		berths:         repository.ProvideStore[domain.Berth](p.DB),
		containerTypes: repository.ProvideStoreWithKey[domain.ContainerType](p.DB, "type_code"),
		containers:     repository.ProvideStore[domain.Container](p.DB),
		vessels:        repository.ProvideStore[domain.Vessel](p.DB),
	}
}

// kindSpec describes how a master-data kind is listed.
type kindSpec struct {
	kind      string
	searchCol string
	sortable  map[string]bool
}

var (
	partySpec         = kindSpec{authorization.KindParty, "name", map[string]bool{"name": true, "created_at": true}}
	portSpec          = kindSpec{authorization.KindPort, "code", map[string]bool{"code": true, "name": true, "created_at": true}}
	berthSpec         = kindSpec{authorization.KindBerth, "name", map[string]bool{"name": true, "created_at": true}}
	containerTypeSpec = kindSpec{authorization.KindContainerType, "type_code", map[string]bool{"type_code": true, "nominal_size": true, "created_at": true}}
	containerSpec     = kindSpec{authorization.KindContainer, "number", map[string]bool{"number": true, "current_status": true, "created_at": true}}
	vesselSpec        = kindSpec{authorization.KindVessel, "name", map[string]bool{"name": true, "imo_number": true, "created_at": true}}
)

func list[T any](ctx context.Context, s *Service, rc authorization.RoleContext, spec kindSpec, store repository.Repository[T], req domain.ListRequest) (domain.ListResponse[T], error) {
	if err := s.gate.Require(ctx, rc, spec.kind, authorization.OpRead); err != nil {
		return domain.ListResponse[T]{}, err
	}
	if err := validate.Struct(req); err != nil {
		return domain.ListResponse[T]{}, err
	}

	var filters []option.QueryOption
	if q := strings.TrimSpace(req.Query); q != "" {
		filters = append(filters, option.ApplyOperator(option.Condition{Field: spec.searchCol, Operator: option.LIKE, Value: q}))
	}

	total, err := store.Count(ctx, nil, filters...)
	if err != nil {
		return domain.ListResponse[T]{}, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	opts := append(filters,
		option.WithSortBy(option.QuerySortBy{By: req.SortBy, Desc: req.Desc, Allow: spec.sortable}),
		option.ApplyPagination(limit, req.Offset),
	)
	rows, err := store.Find(ctx, nil, opts...)
	if err != nil {
		return domain.ListResponse[T]{}, err
	}

	items := make([]T, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			items = append(items, *row)
		}
	}
	return domain.ListResponse[T]{Items: items, Total: total}, nil
}

func get[T any](ctx context.Context, s *Service, rc authorization.RoleContext, kind string, store repository.Repository[T], id any) (*T, error) {
	if err := s.gate.Require(ctx, rc, kind, authorization.OpRead); err != nil {
		return nil, err
	}
	return find(ctx, kind, store, id)
}

func find[T any](ctx context.Context, kind string, store repository.Repository[T], id any) (*T, error) {
	row, err := store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, errs.NotFound(kind, id)
	}
	return row, nil
}

// update gates, validates req, runs checks and applies values.
func update[T any](ctx context.Context, s *Service, rc authorization.RoleContext, kind string, store repository.Repository[T], id any, req any, values map[string]any, checks ...func() error) (*T, error) {
	if err := s.gate.Require(ctx, rc, kind, authorization.OpUpdate); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return nil, err
		}
	}
	if len(values) == 0 {
		return find(ctx, kind, store, id)
	}
	values["updated_at"] = s.clock.Now()

	affected, err := store.Update(ctx, id, values)
	if err != nil {
		return nil, db.AsConstraint(kind, err)
	}
	if affected == 0 {
		return nil, errs.NotFound(kind, id)
	}
	s.audit(ctx, rc, kind+".updated", kind, id, changedColumns(values))
	return find(ctx, kind, store, id)
}

func remove[T any](ctx context.Context, s *Service, rc authorization.RoleContext, kind string, store repository.Repository[T], id any) error {
	if err := s.gate.Require(ctx, rc, kind, authorization.OpDelete); err != nil {
		return err
	}
	return deleteRow(ctx, s, rc, kind, store, id)
}

func deleteRow[T any](ctx context.Context, s *Service, rc authorization.RoleContext, kind string, store repository.Repository[T], id any) error {
	affected, err := store.Delete(ctx, id)
	if err != nil {
		return db.AsConstraint(kind, err)
	}
	if affected == 0 {
		return errs.NotFound(kind, id)
	}
	s.audit(ctx, rc, kind+".deleted", kind, id, nil)
	return nil
}

func create[T any](ctx context.Context, kind string, store repository.Repository[T], row *T) error {
	if err := store.Create(ctx, row); err != nil {
		return db.AsConstraint(kind, err)
	}
	return nil
}

func setIf[V any](values map[string]any, column string, v *V) {
	if v != nil {
		values[column] = *v
	}
}

func changedColumns(values map[string]any) map[string]any {
	cols := make([]string, 0, len(values))
	for k := range values {
		if k != "updated_at" {
			cols = append(cols, k)
		}
	}
	return map[string]any{"columns": cols}
}

func (s *Service) audit(ctx context.Context, rc authorization.RoleContext, action, kind string, id any, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	target := toString(id)
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		ActorID:    rc.ActorID(),
		Role:       string(rc.Role),
		Action:     action,
		TargetType: kind,
		TargetID:   &target,
		Metadata:   metadata,
	})
}

func toString(id any) string {
	switch v := id.(type) {
	case snowflake.ID:
		return v.String()
	case string:
		return v
	default:
		return ""
	}
}

func (s *Service) exists(ctx context.Context, model any, column string, value any) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(model).Where(column+" = ?", value).Limit(1).Count(&count).Error
	return count > 0, err
}

func (s *Service) requireParty(ctx context.Context, field string, id *snowflake.ID) error {
	if id == nil {
		return nil
	}
	ok, err := s.exists(ctx, &domain.Party{}, "id", *id)
	if err != nil {
		return err
	}
	if !ok {
		return errs.Validation(field, "party %s does not exist", id.String())
	}
	return nil
}

func (s *Service) requireContainerType(ctx context.Context, code string) error {
	ok, err := s.exists(ctx, &domain.ContainerType{}, "type_code", code)
	if err != nil {
		return err
	}
	if !ok {
		return errs.Validation("type_code", "container type %s does not exist", code)
	}
	return nil
}

// Parties

func (s *Service) CreateParty(ctx context.Context, rc authorization.RoleContext, req domain.CreatePartyRequest) (*domain.Party, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindParty, authorization.OpCreate); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if req.Type == "" {
		req.Type = domain.PartyCompany
	}
	now := s.clock.Now()
	party := &domain.Party{
		ID:            s.genID.Generate(),
		Name:          req.Name,
		Type:          req.Type,
		AddressLine1:  req.AddressLine1,
		City:          req.City,
		Country:       strings.ToUpper(req.Country),
		ContactPerson: req.ContactPerson,
		Email:         req.Email,
		Phone:         req.Phone,
		ScacCode:      req.ScacCode,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := create(ctx, authorization.KindParty, s.parties, party); err != nil {
		return nil, err
	}
	s.audit(ctx, rc, "party.created", authorization.KindParty, party.ID, map[string]any{"name": party.Name})
	return party, nil
}

func (s *Service) UpdateParty(ctx context.Context, rc authorization.RoleContext, id snowflake.ID, req domain.UpdatePartyRequest) (*domain.Party, error) {
	values := map[string]any{}
	setIf(values, "name", req.Name)
	setIf(values, "type", req.Type)
	setIf(values, "address_line_1", req.AddressLine1)
	setIf(values, "city", req.City)
	setIf(values, "country", req.Country)
	setIf(values, "contact_person", req.ContactPerson)
	setIf(values, "email", req.Email)
	setIf(values, "phone", req.Phone)
	setIf(values, "scac_code", req.ScacCode)
	return update(ctx, s, rc, authorization.KindParty, s.parties, id, req, values)
}

func (s *Service) GetParty(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) (*domain.Party, error) {
	return get(ctx, s, rc, authorization.KindParty, s.parties, id)
}

func (s *Service) ListParties(ctx context.Context, rc authorization.RoleContext, req domain.ListRequest) (domain.ListResponse[domain.Party], error) {
	return list(ctx, s, rc, partySpec, s.parties, req)
}

func (s *Service) DeleteParty(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) error {
	return remove(ctx, s, rc, authorization.KindParty, s.parties, id)
}

// Ports

func (s *Service) CreatePort(ctx context.Context, rc authorization.RoleContext, req domain.CreatePortRequest) (*domain.Port, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindPort, authorization.OpCreate); err != nil {
		return nil, err
	}
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	port := &domain.Port{
		ID:        s.genID.Generate(),
		Code:      req.Code,
		Name:      strings.TrimSpace(req.Name),
		Country:   strings.ToUpper(req.Country),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := create(ctx, authorization.KindPort, s.ports, port); err != nil {
		return nil, err
	}
	s.audit(ctx, rc, "port.created", authorization.KindPort, port.ID, map[string]any{"code": port.Code})
	return port, nil
}

func (s *Service) UpdatePort(ctx context.Context, rc authorization.RoleContext, id snowflake.ID, req domain.UpdatePortRequest) (*domain.Port, error) {
	values := map[string]any{}
	setIf(values, "name", req.Name)
	setIf(values, "country", req.Country)
	return update(ctx, s, rc, authorization.KindPort, s.ports, id, req, values)
}

func (s *Service) GetPort(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) (*domain.Port, error) {
	return get(ctx, s, rc, authorization.KindPort, s.ports, id)
}

func (s *Service) ListPorts(ctx context.Context, rc authorization.RoleContext, req domain.ListRequest) (domain.ListResponse[domain.Port], error) {
	return list(ctx, s, rc, portSpec, s.ports, req)
}

func (s *Service) DeletePort(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) error {
	return remove(ctx, s, rc, authorization.KindPort, s.ports, id)
}

// Berths

func (s *Service) CreateBerth(ctx context.Context, rc authorization.RoleContext, req domain.CreateBerthRequest) (*domain.Berth, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindBerth, authorization.OpCreate); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	ok, err := s.exists(ctx, &domain.Port{}, "id", req.PortID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.Validation("port_id", "port %s does not exist", req.PortID.String())
	}

	now := s.clock.Now()
	berth := &domain.Berth{
		ID:           s.genID.Generate(),
		PortID:       req.PortID,
		Name:         req.Name,
		LengthMeters: req.LengthMeters,
		DepthMeters:  req.DepthMeters,
		MaxVesselLOA: req.MaxVesselLOA,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := create(ctx, authorization.KindBerth, s.berths, berth); err != nil {
		return nil, err
	}
	s.audit(ctx, rc, "berth.created", authorization.KindBerth, berth.ID, map[string]any{"port_id": berth.PortID.String()})
	return berth, nil
}

func (s *Service) UpdateBerth(ctx context.Context, rc authorization.RoleContext, id snowflake.ID, req domain.UpdateBerthRequest) (*domain.Berth, error) {
	values := map[string]any{}
	setIf(values, "name", req.Name)
	setIf(values, "length_meters", req.LengthMeters)
	setIf(values, "depth_meters", req.DepthMeters)
	setIf(values, "max_vessel_loa", req.MaxVesselLOA)
	return update(ctx, s, rc, authorization.KindBerth, s.berths, id, req, values)
}

func (s *Service) GetBerth(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) (*domain.Berth, error) {
	return get(ctx, s, rc, authorization.KindBerth, s.berths, id)
}

func (s *Service) ListBerths(ctx context.Context, rc authorization.RoleContext, req domain.ListRequest) (domain.ListResponse[domain.Berth], error) {
	return list(ctx, s, rc, berthSpec, s.berths, req)
}

func (s *Service) DeleteBerth(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) error {
	return remove(ctx, s, rc, authorization.KindBerth, s.berths, id)
}

// Container types

func (s *Service) CreateContainerType(ctx context.Context, rc authorization.RoleContext, req domain.CreateContainerTypeRequest) (*domain.ContainerType, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindContainerType, authorization.OpCreate); err != nil {
		return nil, err
	}
	req.TypeCode = strings.TrimSpace(req.TypeCode)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	ct := &domain.ContainerType{
		TypeCode:       req.TypeCode,
		NominalSize:    req.NominalSize,
		GroupCode:      req.GroupCode,
		StandardTareKg: req.StandardTareKg,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := create(ctx, authorization.KindContainerType, s.containerTypes, ct); err != nil {
		return nil, err
	}
	s.audit(ctx, rc, "container_type.created", authorization.KindContainerType, ct.TypeCode, nil)
	return ct, nil
}

func (s *Service) UpdateContainerType(ctx context.Context, rc authorization.RoleContext, code string, req domain.UpdateContainerTypeRequest) (*domain.ContainerType, error) {
	values := map[string]any{}
	setIf(values, "nominal_size", req.NominalSize)
	setIf(values, "group_code", req.GroupCode)
	setIf(values, "standard_tare_kg", req.StandardTareKg)
	return update(ctx, s, rc, authorization.KindContainerType, s.containerTypes, strings.TrimSpace(code), req, values)
}

func (s *Service) GetContainerType(ctx context.Context, rc authorization.RoleContext, code string) (*domain.ContainerType, error) {
	return get(ctx, s, rc, authorization.KindContainerType, s.containerTypes, strings.TrimSpace(code))
}

func (s *Service) ListContainerTypes(ctx context.Context, rc authorization.RoleContext, req domain.ListRequest) (domain.ListResponse[domain.ContainerType], error) {
	return list(ctx, s, rc, containerTypeSpec, s.containerTypes, req)
}

func (s *Service) DeleteContainerType(ctx context.Context, rc authorization.RoleContext, code string) error {
	return remove(ctx, s, rc, authorization.KindContainerType, s.containerTypes, strings.TrimSpace(code))
}

// Containers

func (s *Service) CreateContainer(ctx context.Context, rc authorization.RoleContext, req domain.CreateContainerRequest) (*domain.Container, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindContainer, authorization.OpCreate); err != nil {
		return nil, err
	}
	req.Number = strings.TrimSpace(req.Number)
	req.TypeCode = strings.TrimSpace(req.TypeCode)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if err := s.requireContainerType(ctx, req.TypeCode); err != nil {
		return nil, err
	}
	if err := s.requireParty(ctx, "owner_party_id", req.OwnerPartyID); err != nil {
		return nil, err
	}
	status := req.Status
	if status == "" {
		status = domain.ContainerOnVessel
	}

	now := s.clock.Now()
	container := &domain.Container{
		ID:            s.genID.Generate(),
		Number:        req.Number,
		OwnerPartyID:  req.OwnerPartyID,
		TypeCode:      req.TypeCode,
		CurrentStatus: status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := create(ctx, authorization.KindContainer, s.containers, container); err != nil {
		return nil, err
	}
	s.audit(ctx, rc, "container.created", authorization.KindContainer, container.ID, map[string]any{"number": container.Number})
	return container, nil
}

func (s *Service) UpdateContainer(ctx context.Context, rc authorization.RoleContext, id snowflake.ID, req domain.UpdateContainerRequest) (*domain.Container, error) {
	if req.TypeCode != nil {
		code := strings.TrimSpace(*req.TypeCode)
		req.TypeCode = &code
	}
	values := map[string]any{}
	setIf(values, "owner_party_id", req.OwnerPartyID)
	setIf(values, "type_code", req.TypeCode)
	return update(ctx, s, rc, authorization.KindContainer, s.containers, id, req, values,
		func() error {
			if req.TypeCode == nil {
				return nil
			}
			return s.requireContainerType(ctx, *req.TypeCode)
		},
		func() error { return s.requireParty(ctx, "owner_party_id", req.OwnerPartyID) },
	)
}

func (s *Service) GetContainer(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) (*domain.Container, error) {
	return get(ctx, s, rc, authorization.KindContainer, s.containers, id)
}

func (s *Service) ListContainers(ctx context.Context, rc authorization.RoleContext, req domain.ListRequest) (domain.ListResponse[domain.Container], error) {
	return list(ctx, s, rc, containerSpec, s.containers, req)
}

// DeleteContainer refuses while a yard slot holds the container or any task
// names it. The foreign keys say the same, this reports it uniformly.
func (s *Service) DeleteContainer(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) error {
	if err := s.gate.Require(ctx, rc, authorization.KindContainer, authorization.OpDelete); err != nil {
		return err
	}
	conn := s.db.WithContext(ctx)
	refs := []struct {
		table, column string
	}{
		{"yard_slots", "current_container_id"},
		{"tasks", "container_id"},
	}
	for _, ref := range refs {
		var count int64
		if err := conn.Table(ref.table).Where(ref.column+" = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errs.Constraint(authorization.KindContainer,
				fmt.Errorf("container %s is referenced by %d %s row(s)", id.String(), count, ref.table))
		}
	}
	return deleteRow(ctx, s, rc, authorization.KindContainer, s.containers, id)
}

// Vessels

func (s *Service) CreateVessel(ctx context.Context, rc authorization.RoleContext, req domain.CreateVesselRequest) (*domain.Vessel, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindVessel, authorization.OpCreate); err != nil {
		return nil, err
	}
	req.IMONumber = strings.TrimSpace(req.IMONumber)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if err := s.requireParty(ctx, "carrier_party_id", req.CarrierPartyID); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	vessel := &domain.Vessel{
		ID:             s.genID.Generate(),
		IMONumber:      req.IMONumber,
		Name:           strings.TrimSpace(req.Name),
		FlagCountry:    strings.ToUpper(req.FlagCountry),
		CarrierPartyID: req.CarrierPartyID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := create(ctx, authorization.KindVessel, s.vessels, vessel); err != nil {
		return nil, err
	}
	s.audit(ctx, rc, "vessel.created", authorization.KindVessel, vessel.ID, map[string]any{"imo_number": vessel.IMONumber})
	return vessel, nil
}

func (s *Service) UpdateVessel(ctx context.Context, rc authorization.RoleContext, id snowflake.ID, req domain.UpdateVesselRequest) (*domain.Vessel, error) {
	values := map[string]any{}
	setIf(values, "name", req.Name)
	setIf(values, "flag_country", req.FlagCountry)
	setIf(values, "carrier_party_id", req.CarrierPartyID)
	return update(ctx, s, rc, authorization.KindVessel, s.vessels, id, req, values,
		func() error { return s.requireParty(ctx, "carrier_party_id", req.CarrierPartyID) },
	)
}

func (s *Service) GetVessel(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) (*domain.Vessel, error) {
	return get(ctx, s, rc, authorization.KindVessel, s.vessels, id)
}

func (s *Service) ListVessels(ctx context.Context, rc authorization.RoleContext, req domain.ListRequest) (domain.ListResponse[domain.Vessel], error) {
	return list(ctx, s, rc, vesselSpec, s.vessels, req)
}

func (s *Service) DeleteVessel(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) error {
	return remove(ctx, s, rc, authorization.KindVessel, s.vessels, id)
}
