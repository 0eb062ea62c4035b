package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/portyard/internal/authorization"
)

// CreateBookingRequest opens a Draft booking. A blank number is generated.
type CreateBookingRequest struct {
	BookingNumber    string        `json:"booking_number" validate:"max=50"`
	ShipperPartyID   *snowflake.ID `json:"shipper_party_id"`
	ConsigneePartyID *snowflake.ID `json:"consignee_party_id"`
	PayerPartyID     *snowflake.ID `json:"payer_party_id"`
	VesselVisitID    *snowflake.ID `json:"vessel_visit_id"`
}

// ConfirmBookingRequest may link the visit in the same step.
type ConfirmBookingRequest struct {
	VesselVisitID *snowflake.ID `json:"vessel_visit_id"`
}

type ListBookingsRequest struct {
	Status        Status        `form:"status" validate:"omitempty,oneof=Draft Confirmed Cancelled"`
	VesselVisitID *snowflake.ID `form:"vessel_visit_id"`
	Limit         int           `form:"limit,default=50" validate:"gte=0,lte=500"`
	Offset        int           `form:"offset" validate:"gte=0"`
}

type Service interface {
	CreateBooking(ctx context.Context, rc authorization.RoleContext, req CreateBookingRequest) (*Booking, error)
	GetBooking(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) (*Booking, error)
	ListBookings(ctx context.Context, rc authorization.RoleContext, req ListBookingsRequest) ([]Booking, error)
	ConfirmBooking(ctx context.Context, rc authorization.RoleContext, id snowflake.ID, req ConfirmBookingRequest) (*Booking, error)
	CancelBooking(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) (*Booking, error)
}
