package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/smallbiznis/portyard/internal/errs"
	mddomain "github.com/smallbiznis/portyard/internal/masterdata/domain"
	"github.com/smallbiznis/portyard/internal/testkit"
	"github.com/smallbiznis/portyard/internal/yard/domain"
	"github.com/smallbiznis/portyard/internal/yard/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newService(t *testing.T) (domain.Service, *gorm.DB, *testkit.Fixtures) {
	t.Helper()
	db := testkit.OpenDB(t)
	svc := service.New(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testkit.Node(t),
		Clock: testkit.Clock(),
		Gate:  testkit.Gate(t),
	})
	return svc, db, testkit.NewFixtures(t, db)
}

func TestCoordinates(t *testing.T) {
	assert.Equal(t, "A-1-2-3", service.Coordinates("a", 1, 2, 3))
	assert.Equal(t, "REEFER-EAST-4-1-1-1", service.Coordinates("Reefer East 4", 1, 1, 1))
	assert.Equal(t, "BLOCK-2-2-1", service.Coordinates("  ", 2, 2, 1))
}

func TestTopology(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	admin := testkit.Admin()

	block, err := svc.CreateBlock(ctx, admin, domain.CreateBlockRequest{Name: "North"})
	require.NoError(t, err)
	assert.Equal(t, domain.BlockStandard, block.Type)

	stack, err := svc.CreateStack(ctx, admin, domain.CreateStackRequest{BlockID: block.ID, BayNumber: 2, RowNumber: 3})
	require.NoError(t, err)

	slot, err := svc.CreateSlot(ctx, admin, domain.CreateSlotRequest{StackID: stack.ID, TierNumber: 1})
	require.NoError(t, err)
	assert.Equal(t, "NORTH-2-3-1", slot.Coordinates)
	assert.Equal(t, domain.SlotAvailable, slot.Status)
	assert.True(t, slot.Empty())

	_, err = svc.CreateSlot(ctx, admin, domain.CreateSlotRequest{StackID: stack.ID, TierNumber: 1})
	assert.True(t, errors.Is(err, errs.ErrConstraintViolation), "tier is unique within a stack")

	_, err = svc.CreateBlock(ctx, admin, domain.CreateBlockRequest{Name: "North"})
	assert.True(t, errors.Is(err, errs.ErrConstraintViolation))

	_, err = svc.CreateStack(ctx, admin, domain.CreateStackRequest{BlockID: 12345, BayNumber: 1, RowNumber: 1})
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = svc.CreateSlot(ctx, admin, domain.CreateSlotRequest{StackID: 12345, TierNumber: 1})
	assert.True(t, errors.Is(err, errs.ErrValidation))

	blocks, err := svc.ListBlocks(ctx, testkit.Viewer())
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "North", blocks[0].Name)
}

func TestTopologyRequiresAdmin(t *testing.T) {
	svc, _, fx := newService(t)
	ctx := context.Background()
	op := testkit.Operator(fx.User("op", "CREATE_TASK").ID)

	_, err := svc.CreateBlock(ctx, op, domain.CreateBlockRequest{Name: "B"})
	assert.True(t, errors.Is(err, errs.ErrPermissionDenied))
	_, err = svc.ListBlocks(ctx, testkit.Guest())
	assert.True(t, errors.Is(err, errs.ErrPermissionDenied))
}

func TestListSlots(t *testing.T) {
	svc, _, fx := newService(t)
	ctx := context.Background()
	slots := fx.Yard("A", 3)
	fx.Yard("B", 2)
	fx.Place(slots[0], fx.Container("ABCD1234567", mddomain.ContainerInYard))

	all, err := svc.ListSlots(ctx, testkit.Viewer(), domain.ListSlotsRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.Equal(t, "A-1-1-1", all[0].Coordinates)

	free, err := svc.ListSlots(ctx, testkit.Viewer(), domain.ListSlotsRequest{StackID: &slots[0].StackID, FreeOnly: true})
	require.NoError(t, err)
	require.Len(t, free, 2)
	for _, s := range free {
		assert.True(t, s.Empty())
	}

	occupied, err := svc.ListSlots(ctx, testkit.Viewer(), domain.ListSlotsRequest{Status: domain.SlotOccupied})
	require.NoError(t, err)
	require.Len(t, occupied, 1)
	assert.Equal(t, slots[0].ID, occupied[0].ID)
}

func TestMaintenance(t *testing.T) {
	svc, _, fx := newService(t)
	ctx := context.Background()
	admin := testkit.Admin()
	slots := fx.Yard("A", 2)
	fx.Place(slots[1], fx.Container("ABCD1234567", mddomain.ContainerInYard))

	slot, err := svc.SetSlotMaintenance(ctx, admin, slots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SlotMaintenance, slot.Status)

	slot, err = svc.SetSlotMaintenance(ctx, admin, slots[0].ID)
	require.NoError(t, err, "repeating the transition is a no-op")
	assert.Equal(t, domain.SlotMaintenance, slot.Status)

	_, err = svc.SetSlotMaintenance(ctx, admin, slots[1].ID)
	assert.True(t, errors.Is(err, errs.ErrSlotOccupied))
	assert.Equal(t, domain.SlotOccupied, fx.Slot(slots[1].ID).Status)

	slot, err = svc.ClearSlotMaintenance(ctx, admin, slots[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SlotAvailable, slot.Status)

	_, err = svc.SetSlotMaintenance(ctx, testkit.Viewer(), slots[0].ID)
	assert.True(t, errors.Is(err, errs.ErrPermissionDenied))

	_, err = svc.SetSlotMaintenance(ctx, admin, 777)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestCheckInvariants(t *testing.T) {
	svc, db, fx := newService(t)
	ctx := context.Background()
	slots := fx.Yard("A", 4)
	placed := fx.Container("ABCD1234567", mddomain.ContainerInYard)
	fx.Place(slots[0], placed)

	report, err := svc.CheckInvariants(ctx, testkit.Viewer())
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.EqualValues(t, 4, report.SlotsChecked)
	assert.EqualValues(t, 1, report.ContainersChecked)

	// Corrupt the yard behind the services' back.
	stray := fx.Container("WXYZ7654321", mddomain.ContainerInYard)
	onVessel := fx.Container("QWER1111111", mddomain.ContainerOnVessel)
	require.NoError(t, db.Model(&domain.Slot{}).Where("id = ?", slots[1].ID).Update("status", domain.SlotOccupied).Error)
	require.NoError(t, db.Model(&domain.Slot{}).Where("id = ?", slots[2].ID).
		Updates(map[string]any{"current_container_id": onVessel.ID, "status": domain.SlotOccupied}).Error)

	report, err = svc.CheckInvariants(ctx, testkit.Viewer())
	require.NoError(t, err)
	require.False(t, report.OK())

	kinds := map[string]int{}
	for _, v := range report.Violations {
		kinds[v.Kind]++
	}
	assert.Equal(t, 1, kinds[domain.ViolationOccupiedWithoutContainer])
	assert.Equal(t, 1, kinds[domain.ViolationInYardWithoutSlot])
	assert.Equal(t, 1, kinds[domain.ViolationSlotHoldsNonYard])
	assert.Zero(t, kinds[domain.ViolationContainerWithoutOccupied])

	for _, v := range report.Violations {
		if v.Kind == domain.ViolationInYardWithoutSlot {
			require.NotNil(t, v.ContainerID)
			assert.Equal(t, stray.ID, *v.ContainerID)
		}
	}

	_, err = svc.CheckInvariants(ctx, testkit.Guest())
	assert.True(t, errors.Is(err, errs.ErrPermissionDenied))
}

func TestCheckInvariantsReportsMissingContainer(t *testing.T) {
	svc, db, fx := newService(t)
	ctx := context.Background()
	slots := fx.Yard("A", 2)
	placed := fx.Container("ABCD1234567", mddomain.ContainerInYard)
	fx.Place(slots[0], placed)

	// Only a store without foreign keys lets the row go; emulate one.
	require.NoError(t, db.Exec("PRAGMA foreign_keys = OFF").Error)
	require.NoError(t, db.Exec("DELETE FROM containers WHERE id = ?", placed.ID).Error)
	require.NoError(t, db.Exec("PRAGMA foreign_keys = ON").Error)

	report, err := svc.CheckInvariants(ctx, testkit.Admin())
	require.NoError(t, err)
	require.Len(t, report.Violations, 1)
	v := report.Violations[0]
	assert.Equal(t, domain.ViolationSlotHoldsMissing, v.Kind)
	require.NotNil(t, v.SlotID)
	assert.Equal(t, slots[0].ID, *v.SlotID)
	require.NotNil(t, v.ContainerID)
	assert.Equal(t, placed.ID, *v.ContainerID)
	assert.Equal(t, slots[0].Coordinates, v.Detail)
}
