package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/smallbiznis/portyard/internal/audit/domain"
	"github.com/smallbiznis/portyard/internal/authorization"
	"github.com/smallbiznis/portyard/internal/clock"
	"github.com/smallbiznis/portyard/internal/errs"
	mddomain "github.com/smallbiznis/portyard/internal/masterdata/domain"
	"github.com/smallbiznis/portyard/internal/observability/metrics"
	"github.com/smallbiznis/portyard/internal/yard/domain"
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
	Metrics  *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	gate     authorization.Gate
	auditSvc auditdomain.Service
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("yard.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		gate:     p.Gate,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

func (s *Service) CreateBlock(ctx context.Context, rc authorization.RoleContext, req domain.CreateBlockRequest) (*domain.Block, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindYardBlock, authorization.OpCreate); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if req.Type == "" {
		req.Type = domain.BlockStandard
	}

	now := s.clock.Now()
	block := &domain.Block{
		ID:        s.genID.Generate(),
		Name:      req.Name,
		Type:      req.Type,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(block).Error; err != nil {
		return nil, db.AsConstraint(authorization.KindYardBlock, err)
	}
	s.audit(ctx, rc, "yard_block.created", authorization.KindYardBlock, block.ID, map[string]any{"name": block.Name})
	return block, nil
}

func (s *Service) ListBlocks(ctx context.Context, rc authorization.RoleContext) ([]domain.Block, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindYardBlock, authorization.OpRead); err != nil {
		return nil, err
	}
	var blocks []domain.Block
	if err := s.db.WithContext(ctx).Order("name asc").Find(&blocks).Error; err != nil {
		return nil, err
	}
	return blocks, nil
}

func (s *Service) CreateStack(ctx context.Context, rc authorization.RoleContext, req domain.CreateStackRequest) (*domain.Stack, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindYardStack, authorization.OpCreate); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if _, err := s.findBlock(ctx, req.BlockID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	stack := &domain.Stack{
		ID:        s.genID.Generate(),
		BlockID:   req.BlockID,
		BayNumber: req.BayNumber,
		RowNumber: req.RowNumber,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(stack).Error; err != nil {
		return nil, db.AsConstraint(authorization.KindYardStack, err)
	}
	s.audit(ctx, rc, "yard_stack.created", authorization.KindYardStack, stack.ID, nil)
	return stack, nil
}

func (s *Service) CreateSlot(ctx context.Context, rc authorization.RoleContext, req domain.CreateSlotRequest) (*domain.Slot, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindYardSlot, authorization.OpCreate); err != nil {
		return nil, err
	}
	req.Coordinates = strings.TrimSpace(req.Coordinates)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	var stack domain.Stack
	err := s.db.WithContext(ctx).Preload("Block").Where("id = ?", req.StackID).Take(&stack).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Validation("stack_id", "stack %s does not exist", req.StackID.String())
		}
		return nil, err
	}

	coordinates := req.Coordinates
	if coordinates == "" {
		coordinates = Coordinates(stack.Block.Name, stack.BayNumber, stack.RowNumber, req.TierNumber)
	}

	now := s.clock.Now()
	slot := &domain.Slot{
		ID:          s.genID.Generate(),
		StackID:     stack.ID,
		TierNumber:  req.TierNumber,
		Coordinates: coordinates,
		Status:      domain.SlotAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(slot).Error; err != nil {
		return nil, db.AsConstraint(authorization.KindYardSlot, err)
	}
	s.audit(ctx, rc, "yard_slot.created", authorization.KindYardSlot, slot.ID, map[string]any{"coordinates": coordinates})
	return slot, nil
}

// Coordinates renders the canonical slot label <BLOCK>-<bay>-<row>-<tier>.
func Coordinates(blockName string, bay, row, tier int) string {
	block := strings.ToUpper(slug.Make(blockName))
	if block == "" {
		block = "BLOCK"
	}
	return fmt.Sprintf("%s-%d-%d-%d", block, bay, row, tier)
}

func (s *Service) GetSlot(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) (*domain.Slot, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindYardSlot, authorization.OpRead); err != nil {
		return nil, err
	}
	return s.findSlot(ctx, id)
}

func (s *Service) ListSlots(ctx context.Context, rc authorization.RoleContext, req domain.ListSlotsRequest) ([]domain.Slot, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindYardSlot, authorization.OpRead); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	stmt := s.db.WithContext(ctx).Model(&domain.Slot{})
	if req.BlockID != nil {
		stmt = stmt.Where("stack_id IN (?)", s.db.Model(&domain.Stack{}).Select("id").Where("block_id = ?", *req.BlockID))
	}
	if req.StackID != nil {
		stmt = stmt.Where("stack_id = ?", *req.StackID)
	}
	if req.Status != "" {
		stmt = stmt.Where("status = ?", req.Status)
	}
	if req.FreeOnly {
		stmt = stmt.Where("current_container_id IS NULL AND status = ?", domain.SlotAvailable)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 200
	}

	var slots []domain.Slot
	if err := stmt.Order("coordinates asc").Limit(limit).Offset(req.Offset).Find(&slots).Error; err != nil {
		return nil, err
	}
	return slots, nil
}

// SetSlotMaintenance takes an empty slot out of service.
func (s *Service) SetSlotMaintenance(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) (*domain.Slot, error) {
	return s.setMaintenance(ctx, rc, id, true)
}

func (s *Service) ClearSlotMaintenance(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) (*domain.Slot, error) {
	return s.setMaintenance(ctx, rc, id, false)
}

func (s *Service) setMaintenance(ctx context.Context, rc authorization.RoleContext, id snowflake.ID, on bool) (*domain.Slot, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindYardSlot, authorization.OpUpdate); err != nil {
		return nil, err
	}

	from, to := domain.SlotAvailable, domain.SlotMaintenance
	action := "yard_slot.maintenance_set"
	if !on {
		from, to = domain.SlotMaintenance, domain.SlotAvailable
		action = "yard_slot.maintenance_cleared"
	}

	res := s.db.WithContext(ctx).Exec(
		`UPDATE yard_slots SET status = ?, updated_at = ?
		 WHERE id = ? AND current_container_id IS NULL AND status = ?`,
		to, s.clock.Now(), id, from,
	)
	if res.Error != nil {
		return nil, res.Error
	}

	slot, err := s.findSlot(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		if slot.Status == to {
			return slot, nil
		}
		if !slot.Empty() {
			return nil, errs.SlotOccupied(slot.ID, *slot.CurrentContainerID)
		}
		return nil, errs.Validation("status", "slot %s is %s", slot.Coordinates, slot.Status)
	}
	s.audit(ctx, rc, action, authorization.KindYardSlot, slot.ID, nil)
	return slot, nil
}

// CheckInvariants scans the yard for slot/container occupancy breaches.
func (s *Service) CheckInvariants(ctx context.Context, rc authorization.RoleContext) (domain.InvariantReport, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindYardSlot, authorization.OpRead); err != nil {
		return domain.InvariantReport{}, err
	}
	return Scan(ctx, s.db, s.clock, s.log, s.metrics)
}

type invariantRow struct {
	SlotID      *snowflake.ID
	ContainerID *snowflake.ID
	Detail      string
}

// Scan runs the invariant queries without an access check. It is used by the
// gated CheckInvariants and by tests.
func Scan(ctx context.Context, gdb *gorm.DB, c clock.Clock, log *zap.Logger, m *metrics.Metrics) (domain.InvariantReport, error) {
	report := domain.InvariantReport{CheckedAt: c.Now(), Violations: []domain.Violation{}}
	conn := gdb.WithContext(ctx)

	if err := conn.Model(&domain.Slot{}).Count(&report.SlotsChecked).Error; err != nil {
		return report, err
	}
	if err := conn.Model(&mddomain.Container{}).Count(&report.ContainersChecked).Error; err != nil {
		return report, err
	}

	checks := []struct {
		kind  string
		query string
		args  []any
	}{
		{
			domain.ViolationOccupiedWithoutContainer,
			`SELECT id AS slot_id, NULL AS container_id, coordinates AS detail
			 FROM yard_slots WHERE status = ? AND current_container_id IS NULL`,
			[]any{domain.SlotOccupied},
		},
		{
			domain.ViolationContainerWithoutOccupied,
			`SELECT id AS slot_id, current_container_id AS container_id, status AS detail
			 FROM yard_slots WHERE current_container_id IS NOT NULL AND status <> ?`,
			[]any{domain.SlotOccupied},
		},
		{
			domain.ViolationInYardWithoutSlot,
			`SELECT NULL AS slot_id, c.id AS container_id, c.number AS detail
			 FROM containers c
			 WHERE c.current_status = ?
			   AND (SELECT COUNT(*) FROM yard_slots s WHERE s.current_container_id = c.id) <> 1`,
			[]any{mddomain.ContainerInYard},
		},
		{
			domain.ViolationSlotHoldsNonYard,
			`SELECT s.id AS slot_id, c.id AS container_id, c.current_status AS detail
			 FROM yard_slots s JOIN containers c ON c.id = s.current_container_id
			 WHERE c.current_status <> ?`,
			[]any{mddomain.ContainerInYard},
		},
		{
			domain.ViolationSlotHoldsMissing,
			`SELECT s.id AS slot_id, s.current_container_id AS container_id, s.coordinates AS detail
			 FROM yard_slots s LEFT JOIN containers c ON c.id = s.current_container_id
			 WHERE s.current_container_id IS NOT NULL AND c.id IS NULL`,
			nil,
		},
	}

	for _, check := range checks {
		var rows []invariantRow
		if err := conn.Raw(check.query, check.args...).Scan(&rows).Error; err != nil {
			return report, err
		}
		for _, row := range rows {
			report.Violations = append(report.Violations, domain.Violation{
				Kind:        check.kind,
				SlotID:      row.SlotID,
				ContainerID: row.ContainerID,
				Detail:      row.Detail,
			})
			m.RecordIntegrityAlert(ctx, check.kind)
		}
	}

	if !report.OK() && log != nil {
		log.Error("yard.integrity_alert",
			zap.String("reason", "invariant_scan"),
			zap.Int("violations", len(report.Violations)),
		)
	}
	return report, nil
}

func (s *Service) findBlock(ctx context.Context, id snowflake.ID) (*domain.Block, error) {
	var block domain.Block
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&block).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.Validation("block_id", "block %s does not exist", id.String())
		}
		return nil, err
	}
	return &block, nil
}

func (s *Service) findSlot(ctx context.Context, id snowflake.ID) (*domain.Slot, error) {
	var slot domain.Slot
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&slot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound(authorization.KindYardSlot, id)
		}
		return nil, err
	}
	return &slot, nil
}

func (s *Service) audit(ctx context.Context, rc authorization.RoleContext, action, kind string, id snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	target := id.String()
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		ActorID:    rc.ActorID(),
		Role:       string(rc.Role),
		Action:     action,
		TargetType: kind,
		TargetID:   &target,
		Metadata:   metadata,
	})
}
