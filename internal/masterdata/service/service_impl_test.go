package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/smallbiznis/portyard/internal/errs"
	"github.com/smallbiznis/portyard/internal/masterdata/domain"
	"github.com/smallbiznis/portyard/internal/masterdata/service"
	taskdomain "github.com/smallbiznis/portyard/internal/task/domain"
	"github.com/smallbiznis/portyard/internal/testkit"
	yarddomain "github.com/smallbiznis/portyard/internal/yard/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) domain.Service {
	t.Helper()
	db := testkit.OpenDB(t)
	return service.New(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testkit.Node(t),
		Clock: testkit.Clock(),
		Gate:  testkit.Gate(t),
	})
}

func TestDeleteReferencedContainer(t *testing.T) {
	db := testkit.OpenDB(t)
	fx := testkit.NewFixtures(t, db)
	svc := service.New(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testkit.Node(t),
		Clock: testkit.Clock(),
		Gate:  testkit.Gate(t),
	})
	ctx := context.Background()
	admin := testkit.Admin()

	slots := fx.Yard("A", 2)
	placed := fx.Container("ABCD1234567", domain.ContainerInYard)
	fx.Place(slots[0], placed)

	err := svc.DeleteContainer(ctx, admin, placed.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrConstraintViolation), "a slot holds it")
	held := fx.Slot(slots[0].ID)
	assert.Equal(t, yarddomain.SlotOccupied, held.Status)
	require.NotNil(t, held.CurrentContainerID)
	assert.Equal(t, placed.ID, *held.CurrentContainerID)

	tasked := fx.Container("WXYZ7654321", domain.ContainerOnVessel)
	require.NoError(t, db.Create(&taskdomain.Task{
		ID:          fx.Node().Generate(),
		Type:        taskdomain.TypeDischarge,
		Status:      taskdomain.StatusCancelled,
		ContainerID: tasked.ID,
		ToSlotID:    &slots[1].ID,
		Priority:    100,
		CreatedAt:   testkit.Epoch,
		UpdatedAt:   testkit.Epoch,
	}).Error)
	err = svc.DeleteContainer(ctx, admin, tasked.ID)
	assert.True(t, errors.Is(err, errs.ErrConstraintViolation), "a task names it")

	// the foreign key refuses the same delete when the service is bypassed
	err = db.Delete(&domain.Container{}, "id = ?", placed.ID).Error
	require.Error(t, err)

	free := fx.Container("QWER1111111", domain.ContainerOnVessel)
	require.NoError(t, svc.DeleteContainer(ctx, admin, free.ID))

	err = svc.DeleteContainer(ctx, testkit.Viewer(), tasked.ID)
	assert.True(t, errors.Is(err, errs.ErrPermissionDenied))
}

func strPtr(s string) *string { return &s }

func TestContainerLifecycle(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	admin := testkit.Admin()

	_, err := svc.CreateContainer(ctx, admin, domain.CreateContainerRequest{Number: "ABCD1234567", TypeCode: "22G1"})
	assert.True(t, errors.Is(err, errs.ErrValidation), "type must exist")

	ct, err := svc.CreateContainerType(ctx, admin, domain.CreateContainerTypeRequest{TypeCode: "22G1", NominalSize: 20, GroupCode: "GP"})
	require.NoError(t, err)
	assert.Equal(t, "22G1", ct.TypeCode)

	owner, err := svc.CreateParty(ctx, admin, domain.CreatePartyRequest{Name: "Blue Line", Country: "NL", Email: "ops@blueline.test"})
	require.NoError(t, err)
	assert.Equal(t, domain.PartyCompany, owner.Type)

	c, err := svc.CreateContainer(ctx, admin, domain.CreateContainerRequest{Number: "ABCD1234567", TypeCode: "22G1", OwnerPartyID: &owner.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.ContainerOnVessel, c.CurrentStatus)

	_, err = svc.CreateContainer(ctx, admin, domain.CreateContainerRequest{Number: "ABCD1234567", TypeCode: "22G1"})
	assert.True(t, errors.Is(err, errs.ErrConstraintViolation))

	_, err = svc.CreateContainer(ctx, admin, domain.CreateContainerRequest{Number: "abc123", TypeCode: "22G1"})
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = svc.CreateContainer(ctx, admin, domain.CreateContainerRequest{Number: "WXYZ7654321", TypeCode: "22G1", Status: domain.ContainerInYard})
	assert.True(t, errors.Is(err, errs.ErrValidation), "a container enters the yard only through a task")

	got, err := svc.GetContainer(ctx, testkit.Viewer(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "ABCD1234567", got.Number)

	err = svc.DeleteContainerType(ctx, admin, "22G1")
	assert.True(t, errors.Is(err, errs.ErrConstraintViolation), "type is still referenced")

	require.NoError(t, svc.DeleteContainer(ctx, admin, c.ID))
	_, err = svc.GetContainer(ctx, admin, c.ID)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	assert.True(t, errors.Is(svc.DeleteContainer(ctx, admin, c.ID), errs.ErrNotFound))
}

func TestMasterDataRequiresAdmin(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	_, err := svc.CreatePort(ctx, testkit.Viewer(), domain.CreatePortRequest{Code: "NLRTM", Name: "Rotterdam"})
	assert.True(t, errors.Is(err, errs.ErrPermissionDenied))

	_, err = svc.ListPorts(ctx, testkit.Guest(), domain.ListRequest{})
	assert.True(t, errors.Is(err, errs.ErrPermissionDenied))

	_, err = svc.ListPorts(ctx, testkit.Viewer(), domain.ListRequest{})
	require.NoError(t, err)
}

func TestPortsAndBerths(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	admin := testkit.Admin()

	port, err := svc.CreatePort(ctx, admin, domain.CreatePortRequest{Code: "nlrtm", Name: "Rotterdam", Country: "NL"})
	require.NoError(t, err)
	assert.Equal(t, "NLRTM", port.Code)

	_, err = svc.CreateBerth(ctx, admin, domain.CreateBerthRequest{PortID: 999, Name: "Q1"})
	assert.True(t, errors.Is(err, errs.ErrValidation))

	berth, err := svc.CreateBerth(ctx, admin, domain.CreateBerthRequest{PortID: port.ID, Name: "Q1"})
	require.NoError(t, err)
	_, err = svc.CreateBerth(ctx, admin, domain.CreateBerthRequest{PortID: port.ID, Name: "Q1"})
	assert.True(t, errors.Is(err, errs.ErrConstraintViolation), "berth names are unique per port")

	updated, err := svc.UpdateBerth(ctx, admin, berth.ID, domain.UpdateBerthRequest{Name: strPtr("Q2")})
	require.NoError(t, err)
	assert.Equal(t, "Q2", updated.Name)

	err = svc.DeletePort(ctx, admin, port.ID)
	assert.True(t, errors.Is(err, errs.ErrConstraintViolation), "port still has a berth")
}

func TestListParties(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	admin := testkit.Admin()

	for _, name := range []string{"Maersk", "Hapag", "MSC Mediterranean"} {
		_, err := svc.CreateParty(ctx, admin, domain.CreatePartyRequest{Name: name})
		require.NoError(t, err)
	}

	resp, err := svc.ListParties(ctx, testkit.Viewer(), domain.ListRequest{Query: "m", SortBy: "name"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, resp.Total)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "MSC Mediterranean", resp.Items[0].Name)
	assert.Equal(t, "Maersk", resp.Items[1].Name)

	page, err := svc.ListParties(ctx, testkit.Viewer(), domain.ListRequest{SortBy: "name", Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 3, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "MSC Mediterranean", page.Items[0].Name)
}

func TestVesselUpdate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	admin := testkit.Admin()

	v, err := svc.CreateVessel(ctx, admin, domain.CreateVesselRequest{IMONumber: "9321483", Name: "Ever Given", FlagCountry: "PA"})
	require.NoError(t, err)

	_, err = svc.UpdateVessel(ctx, admin, v.ID, domain.UpdateVesselRequest{CarrierPartyID: &v.ID})
	assert.True(t, errors.Is(err, errs.ErrValidation), "carrier must be an existing party")

	renamed, err := svc.UpdateVessel(ctx, admin, v.ID, domain.UpdateVesselRequest{Name: strPtr("Ever Given II")})
	require.NoError(t, err)
	assert.Equal(t, "Ever Given II", renamed.Name)

	_, err = svc.CreateVessel(ctx, admin, domain.CreateVesselRequest{IMONumber: "12", Name: "Short"})
	assert.True(t, errors.Is(err, errs.ErrValidation))
}
