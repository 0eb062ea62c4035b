package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/portyard/internal/audit/domain"
	"github.com/smallbiznis/portyard/internal/authorization"
	"github.com/smallbiznis/portyard/internal/clock"
	"github.com/smallbiznis/portyard/internal/errs"
	mddomain "github.com/smallbiznis/portyard/internal/masterdata/domain"
	"github.com/smallbiznis/portyard/internal/vessel/domain"
	"github.com/smallbiznis/portyard/pkg/db"
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
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("vessel.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		gate:     p.Gate,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) CreateVisit(ctx context.Context, rc authorization.RoleContext, req domain.CreateVisitRequest) (*domain.VesselVisit, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindVesselVisit, authorization.OpCreate); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if err := checkTimes(req.ATA, req.ATD); err != nil {
		return nil, err
	}

	conn := s.db.WithContext(ctx)
	if err := exists(conn, &mddomain.Vessel{}, req.VesselID, "vessel_id"); err != nil {
		return nil, err
	}
	if err := exists(conn, &mddomain.Port{}, req.PortID, "port_id"); err != nil {
		return nil, err
	}
	if err := s.checkBerth(ctx, req.BerthID, req.PortID); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = domain.VisitApproaching
	}
	now := s.clock.Now()
	visit := &domain.VesselVisit{
		ID:              s.genID.Generate(),
		VesselID:        req.VesselID,
		PortID:          req.PortID,
		BerthID:         req.BerthID,
		VoyageNumberIn:  req.VoyageNumberIn,
		VoyageNumberOut: req.VoyageNumberOut,
		ATA:             req.ATA,
		ATD:             req.ATD,
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := conn.Create(visit).Error; err != nil {
		return nil, db.AsConstraint(authorization.KindVesselVisit, err)
	}
	s.audit(ctx, rc, "vessel_visit.created", visit.ID, map[string]any{"status": string(visit.Status)})
	return visit, nil
}

func (s *Service) UpdateVisit(ctx context.Context, rc authorization.RoleContext, id snowflake.ID, req domain.UpdateVisitRequest) (*domain.VesselVisit, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindVesselVisit, authorization.OpUpdate); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	visit, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	values := map[string]any{}
	switch {
	case req.ClearBerth:
		values["berth_id"] = nil
		visit.BerthID = nil
	case req.BerthID != nil:
		if err := s.checkBerth(ctx, req.BerthID, visit.PortID); err != nil {
			return nil, err
		}
		values["berth_id"] = *req.BerthID
		visit.BerthID = req.BerthID
	}
	if req.VoyageNumberIn != nil {
		values["voyage_number_in"] = *req.VoyageNumberIn
		visit.VoyageNumberIn = *req.VoyageNumberIn
	}
	if req.VoyageNumberOut != nil {
		values["voyage_number_out"] = *req.VoyageNumberOut
		visit.VoyageNumberOut = *req.VoyageNumberOut
	}
	if req.ATA != nil {
		values["ata"] = *req.ATA
		visit.ATA = req.ATA
	}
	if req.ATD != nil {
		values["atd"] = *req.ATD
		visit.ATD = req.ATD
	}
	if req.Status != nil {
		values["status"] = *req.Status
		visit.Status = *req.Status
	}
	if err := checkTimes(visit.ATA, visit.ATD); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return visit, nil
	}

	visit.UpdatedAt = s.clock.Now()
	values["updated_at"] = visit.UpdatedAt
	if err := s.db.WithContext(ctx).Model(&domain.VesselVisit{}).Where("id = ?", id).Updates(values).Error; err != nil {
		return nil, db.AsConstraint(authorization.KindVesselVisit, err)
	}
	s.audit(ctx, rc, "vessel_visit.updated", visit.ID, map[string]any{"status": string(visit.Status)})
	return visit, nil
}

func (s *Service) GetVisit(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) (*domain.VesselVisit, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindVesselVisit, authorization.OpRead); err != nil {
		return nil, err
	}
	return s.find(ctx, id)
}

func (s *Service) ListVisits(ctx context.Context, rc authorization.RoleContext, req domain.ListVisitsRequest) ([]domain.VesselVisit, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindVesselVisit, authorization.OpRead); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	stmt := s.db.WithContext(ctx).Model(&domain.VesselVisit{})
	if req.VesselID != nil {
		stmt = stmt.Where("vessel_id = ?", *req.VesselID)
	}
	if req.PortID != nil {
		stmt = stmt.Where("port_id = ?", *req.PortID)
	}
	if req.Status != "" {
		stmt = stmt.Where("status = ?", req.Status)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}

	var visits []domain.VesselVisit
	if err := stmt.Order("created_at desc").Order("id desc").Limit(limit).Offset(req.Offset).Find(&visits).Error; err != nil {
		return nil, err
	}
	return visits, nil
}

// checkBerth rejects a berth that does not exist or belongs to another port.
func (s *Service) checkBerth(ctx context.Context, berthID *snowflake.ID, portID snowflake.ID) error {
	if berthID == nil {
		return nil
	}
	var berth mddomain.Berth
	err := s.db.WithContext(ctx).Where("id = ?", *berthID).Take(&berth).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.Validation("berth_id", "berth %s does not exist", berthID.String())
		}
		return err
	}
	if berth.PortID != portID {
		return errs.Validation("berth_id", "berth %s belongs to port %s, visit port is %s",
			berth.ID.String(), berth.PortID.String(), portID.String())
	}
	return nil
}

func (s *Service) find(ctx context.Context, id snowflake.ID) (*domain.VesselVisit, error) {
	var visit domain.VesselVisit
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&visit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound(authorization.KindVesselVisit, id)
		}
		return nil, err
	}
	return &visit, nil
}

func (s *Service) audit(ctx context.Context, rc authorization.RoleContext, action string, id snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	target := id.String()
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		ActorID:    rc.ActorID(),
		Role:       string(rc.Role),
		Action:     action,
		TargetType: authorization.KindVesselVisit,
		TargetID:   &target,
		Metadata:   metadata,
	})
}

func exists(conn *gorm.DB, model any, id snowflake.ID, field string) error {
	var count int64
	if err := conn.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return errs.Validation(field, "%s does not exist", id.String())
	}
	return nil
}

func checkTimes(ata, atd *time.Time) error {
	if ata != nil && atd != nil && atd.Before(*ata) {
		return errs.Validation("atd", "departure precedes arrival")
	}
	return nil
}
