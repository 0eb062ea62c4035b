package occupancy

import (
	"context"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/portyard/internal/errs"
	mddomain "github.com/smallbiznis/portyard/internal/masterdata/domain"
	"github.com/smallbiznis/portyard/internal/observability/logger"
	"github.com/smallbiznis/portyard/internal/observability/metrics"
	"github.com/smallbiznis/portyard/internal/yard/domain"
	"github.com/smallbiznis/portyard/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Alert reasons, used as the integrity alert metric label.
const (
	ReasonFromSlotMismatch   = "from_slot_mismatch"
	ReasonContainerElsewhere = "container_in_other_slot"
	ReasonReleaseMissed      = "release_missed"
)

const slotColumns = `id, stack_id, tier_number, coordinates, status, current_container_id, created_at, updated_at`

type Params struct {
	fx.In

	Log         *zap.Logger
	Metrics     *metrics.Metrics     `optional:"true"`
	YardMetrics *metrics.YardMetrics `optional:"true"`
}

// Manager applies slot occupancy changes inside a caller-owned transaction.
// It never opens its own transaction.
type Manager struct {
	log         *zap.Logger
	metrics     *metrics.Metrics
	yardMetrics *metrics.YardMetrics
}

func New(p Params) *Manager {
	return &Manager{
		log:         p.Log.Named("yard.occupancy"),
		metrics:     p.Metrics,
		yardMetrics: p.YardMetrics,
	}
}

// LockSlots locks the given slots in ascending id order and returns them keyed
// by id. Missing slots yield a not found error.
func (m *Manager) LockSlots(ctx context.Context, tx *gorm.DB, ids ...snowflake.ID) (map[snowflake.ID]*domain.Slot, error) {
	unique := make([]snowflake.ID, 0, len(ids))
	seen := map[snowflake.ID]bool{}
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })

	out := make(map[snowflake.ID]*domain.Slot, len(unique))
	for _, id := range unique {
		slot, err := m.lockSlot(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		out[id] = slot
	}
	return out, nil
}

func (m *Manager) lockSlot(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Slot, error) {
	started := time.Now()
	var slot domain.Slot
	err := tx.WithContext(ctx).Raw(
		db.ForUpdate(tx, `SELECT `+slotColumns+` FROM yard_slots WHERE id = ?`),
		id,
	).Scan(&slot).Error
	m.yardMetrics.ObserveLockWait(metrics.LockResourceSlot, time.Since(started))
	if err != nil {
		return nil, err
	}
	if slot.ID == 0 {
		return nil, errs.NotFound("yard_slot", id)
	}
	return &slot, nil
}

// SlotHolding returns the locked slot that currently references the
// container, or nil.
func (m *Manager) SlotHolding(ctx context.Context, tx *gorm.DB, containerID snowflake.ID) (*domain.Slot, error) {
	var slot domain.Slot
	err := tx.WithContext(ctx).Raw(
		db.ForUpdate(tx, `SELECT `+slotColumns+` FROM yard_slots WHERE current_container_id = ?`),
		containerID,
	).Scan(&slot).Error
	if err != nil {
		return nil, err
	}
	if slot.ID == 0 {
		return nil, nil
	}
	return &slot, nil
}

// VerifyContainer checks that the container sits in fromSlot, or in no slot
// when fromSlot is nil. Any other placement is an integrity breach.
func (m *Manager) VerifyContainer(ctx context.Context, tx *gorm.DB, containerID snowflake.ID, fromSlot *domain.Slot) error {
	holding, err := m.SlotHolding(ctx, tx, containerID)
	if err != nil {
		return err
	}

	if fromSlot != nil && !fromSlot.Holds(containerID) {
		return m.alert(ctx, ReasonFromSlotMismatch,
			errs.Inconsistent("yard_slot", fromSlot.ID, "expected container %s, slot holds %s", containerID, describeHolder(fromSlot)),
			zap.String("slot_id", fromSlot.ID.String()),
			zap.String("container_id", containerID.String()),
		)
	}
	if holding == nil {
		return nil
	}
	if fromSlot == nil || holding.ID != fromSlot.ID {
		return m.alert(ctx, ReasonContainerElsewhere,
			errs.Inconsistent("container", containerID, "container found in slot %s", holding.Coordinates),
			zap.String("slot_id", holding.ID.String()),
			zap.String("container_id", containerID.String()),
		)
	}
	return nil
}

// Release clears the slot if and only if it holds the container.
func (m *Manager) Release(ctx context.Context, tx *gorm.DB, slotID, containerID snowflake.ID, now time.Time) error {
	res := tx.WithContext(ctx).Exec(
		`UPDATE yard_slots SET current_container_id = NULL, status = ?, updated_at = ?
		 WHERE id = ? AND current_container_id = ?`,
		domain.SlotAvailable, now, slotID, containerID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return m.alert(ctx, ReasonReleaseMissed,
			errs.Inconsistent("yard_slot", slotID, "slot no longer holds container %s", containerID),
			zap.String("slot_id", slotID.String()),
			zap.String("container_id", containerID.String()),
		)
	}
	return nil
}

// Occupy places the container into an empty, usable slot. The update is
// guarded on current_container_id IS NULL so that of two racing completions
// only one takes the slot.
func (m *Manager) Occupy(ctx context.Context, tx *gorm.DB, slotID, containerID snowflake.ID, now time.Time) error {
	res := tx.WithContext(ctx).Exec(
		`UPDATE yard_slots SET current_container_id = ?, status = ?, updated_at = ?
		 WHERE id = ? AND current_container_id IS NULL AND status <> ?`,
		containerID, domain.SlotOccupied, now, slotID, domain.SlotMaintenance,
	)
	if res.Error != nil {
		if db.IsDuplicateKeyErr(res.Error) {
			return m.alert(ctx, ReasonContainerElsewhere,
				errs.Inconsistent("container", containerID, "container already referenced by another slot"),
				zap.String("slot_id", slotID.String()),
				zap.String("container_id", containerID.String()),
			)
		}
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var current domain.Slot
	if err := tx.WithContext(ctx).Raw(`SELECT `+slotColumns+` FROM yard_slots WHERE id = ?`, slotID).Scan(&current).Error; err != nil {
		return err
	}
	switch {
	case current.ID == 0:
		return errs.NotFound("yard_slot", slotID)
	case current.Holds(containerID):
		return nil
	case current.CurrentContainerID != nil:
		m.log.Info("slot taken by another container",
			zap.String("slot_id", slotID.String()),
			zap.String("container_id", containerID.String()),
			zap.String("holder_id", current.CurrentContainerID.String()),
		)
		m.metrics.RecordSlotConflict(ctx, "complete")
		return errs.SlotOccupied(slotID, *current.CurrentContainerID)
	default:
		return errs.Validation("to_slot_id", "slot %s is under maintenance", current.Coordinates)
	}
}

// SetContainerStatus updates the container status inside the transaction.
func (m *Manager) SetContainerStatus(ctx context.Context, tx *gorm.DB, containerID snowflake.ID, status mddomain.ContainerStatus, now time.Time) error {
	res := tx.WithContext(ctx).Exec(
		`UPDATE containers SET current_status = ?, updated_at = ? WHERE id = ?`,
		status, now, containerID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("container", containerID)
	}
	return nil
}

func (m *Manager) alert(ctx context.Context, reason string, err *errs.Error, fields ...zap.Field) error {
	fields = append(fields, zap.String("reason", reason), zap.Error(err))
	logger.WithContext(ctx, m.log).Error("yard.integrity_alert", fields...)
	m.metrics.RecordIntegrityAlert(ctx, reason)
	return err
}

func describeHolder(slot *domain.Slot) string {
	if slot.CurrentContainerID == nil {
		return "nothing"
	}
	return slot.CurrentContainerID.String()
}
