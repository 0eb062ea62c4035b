package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type VisitStatus string

const (
	VisitApproaching VisitStatus = "Approaching"
	VisitAtBerth     VisitStatus = "AtBerth"
	VisitDeparting   VisitStatus = "Departing"
	VisitCompleted   VisitStatus = "Completed"
)

// VesselVisit is one call of a vessel at a port. When a berth is set it
// must belong to the visit's port.
type VesselVisit struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	VesselID        snowflake.ID  `gorm:"not null;index" json:"vessel_id"`
	PortID          snowflake.ID  `gorm:"not null;index" json:"port_id"`
	BerthID         *snowflake.ID `gorm:"index" json:"berth_id,omitempty"`
	VoyageNumberIn  string        `gorm:"type:varchar(50)" json:"voyage_number_in,omitempty"`
	VoyageNumberOut string        `gorm:"type:varchar(50)" json:"voyage_number_out,omitempty"`
	ATA             *time.Time    `gorm:"column:ata" json:"ata,omitempty"`
	ATD             *time.Time    `gorm:"column:atd" json:"atd,omitempty"`
	Status          VisitStatus   `gorm:"type:varchar(16);not null;default:'Approaching';index" json:"status"`
	CreatedAt       time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null" json:"updated_at"`
}

func (VesselVisit) TableName() string { return "vessel_visits" }
