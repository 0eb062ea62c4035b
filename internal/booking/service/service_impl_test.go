package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/smallbiznis/portyard/internal/booking/domain"
	"github.com/smallbiznis/portyard/internal/booking/service"
	"github.com/smallbiznis/portyard/internal/errs"
	"github.com/smallbiznis/portyard/internal/testkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) (domain.Service, *testkit.Fixtures) {
	t.Helper()
	db := testkit.OpenDB(t)
	svc := service.New(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testkit.Node(t),
		Clock: testkit.Clock(),
		Gate:  testkit.Gate(t),
	})
	return svc, testkit.NewFixtures(t, db)
}

func TestBookingLifecycle(t *testing.T) {
	svc, fx := newService(t)
	ctx := context.Background()
	op := testkit.Operator(fx.User("op", "CREATE_TASK").ID)
	shipper := fx.Party("Acme Exports")
	visit := fx.Visit(fx.Vessel("9321483", "Ever Given"), fx.Port("NLRTM"))

	booking, err := svc.CreateBooking(ctx, op, domain.CreateBookingRequest{ShipperPartyID: &shipper.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, booking.Status)
	assert.True(t, strings.HasPrefix(booking.BookingNumber, "BK-"))

	_, err = svc.ConfirmBooking(ctx, op, booking.ID, domain.ConfirmBookingRequest{})
	assert.True(t, errors.Is(err, errs.ErrValidation), "confirmation needs a vessel visit")

	confirmed, err := svc.ConfirmBooking(ctx, op, booking.ID, domain.ConfirmBookingRequest{VesselVisitID: &visit.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.VesselVisitID)
	assert.Equal(t, visit.ID, *confirmed.VesselVisitID)

	again, err := svc.ConfirmBooking(ctx, op, booking.ID, domain.ConfirmBookingRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, again.Status)

	cancelled, err := svc.CancelBooking(ctx, op, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	_, err = svc.CancelBooking(ctx, op, booking.ID)
	assert.True(t, errors.Is(err, errs.ErrTerminalState))
	_, err = svc.ConfirmBooking(ctx, op, booking.ID, domain.ConfirmBookingRequest{VesselVisitID: &visit.ID})
	assert.True(t, errors.Is(err, errs.ErrTerminalState))

	stored, err := svc.GetBooking(ctx, testkit.Viewer(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, stored.Status)
}

func TestCreateBookingValidation(t *testing.T) {
	svc, fx := newService(t)
	ctx := context.Background()
	op := testkit.Operator(fx.User("op", "CREATE_TASK").ID)

	missing := fx.Node().Generate()
	_, err := svc.CreateBooking(ctx, op, domain.CreateBookingRequest{PayerPartyID: &missing})
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = svc.CreateBooking(ctx, op, domain.CreateBookingRequest{BookingNumber: "bk-1"})
	require.NoError(t, err)
	_, err = svc.CreateBooking(ctx, op, domain.CreateBookingRequest{BookingNumber: "BK-1"})
	assert.True(t, errors.Is(err, errs.ErrConstraintViolation), "numbers are unique after normalisation")

	_, err = svc.CreateBooking(ctx, testkit.Viewer(), domain.CreateBookingRequest{})
	assert.True(t, errors.Is(err, errs.ErrPermissionDenied))
}

func TestListBookings(t *testing.T) {
	svc, fx := newService(t)
	ctx := context.Background()
	op := testkit.Operator(fx.User("op", "CREATE_TASK").ID)
	visit := fx.Visit(fx.Vessel("9321483", "Ever Given"), fx.Port("NLRTM"))

	draft, err := svc.CreateBooking(ctx, op, domain.CreateBookingRequest{BookingNumber: "BK-A"})
	require.NoError(t, err)
	linked, err := svc.CreateBooking(ctx, op, domain.CreateBookingRequest{BookingNumber: "BK-B", VesselVisitID: &visit.ID})
	require.NoError(t, err)
	_, err = svc.ConfirmBooking(ctx, op, linked.ID, domain.ConfirmBookingRequest{})
	require.NoError(t, err)

	drafts, err := svc.ListBookings(ctx, testkit.Viewer(), domain.ListBookingsRequest{Status: domain.StatusDraft})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, draft.ID, drafts[0].ID)

	byVisit, err := svc.ListBookings(ctx, testkit.Viewer(), domain.ListBookingsRequest{VesselVisitID: &visit.ID})
	require.NoError(t, err)
	require.Len(t, byVisit, 1)
	assert.Equal(t, domain.StatusConfirmed, byVisit[0].Status)
}
