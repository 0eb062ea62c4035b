package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusDraft     Status = "Draft"
	StatusConfirmed Status = "Confirmed"
	StatusCancelled Status = "Cancelled"
)

// Booking moves from Draft to Confirmed once a vessel visit is linked.
// Cancelled is final.
type Booking struct {
	ID               snowflake.ID  `gorm:"primaryKey" json:"id"`
	BookingNumber    string        `gorm:"type:varchar(50);not null;uniqueIndex" json:"booking_number"`
	Status           Status        `gorm:"type:varchar(16);not null;default:'Draft';index" json:"status"`
	ShipperPartyID   *snowflake.ID `gorm:"index" json:"shipper_party_id,omitempty"`
	ConsigneePartyID *snowflake.ID `gorm:"index" json:"consignee_party_id,omitempty"`
	PayerPartyID     *snowflake.ID `gorm:"index" json:"payer_party_id,omitempty"`
	VesselVisitID    *snowflake.ID `gorm:"index" json:"vessel_visit_id,omitempty"`
	CreatedAt        time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time     `gorm:"not null" json:"updated_at"`
}

func (Booking) TableName() string { return "bookings" }

func (b Booking) Terminal() bool {
	return b.Status == StatusCancelled
}
