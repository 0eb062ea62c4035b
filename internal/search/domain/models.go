package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/portyard/internal/authorization"
)

type ContainerHit struct {
	ID            snowflake.ID `gorm:"column:id" json:"id"`
	Number        string       `gorm:"column:number" json:"number"`
	TypeCode      string       `gorm:"column:type_code" json:"type_code"`
	CurrentStatus string       `gorm:"column:current_status" json:"current_status"`
	OwnerName     *string      `gorm:"column:owner_name" json:"owner_name,omitempty"`
}

type BookingHit struct {
	ID            snowflake.ID `gorm:"column:id" json:"id"`
	BookingNumber string       `gorm:"column:booking_number" json:"booking_number"`
	Status        string       `gorm:"column:status" json:"status"`
	ShipperName   *string      `gorm:"column:shipper_name" json:"shipper_name,omitempty"`
	ConsigneeName *string      `gorm:"column:consignee_name" json:"consignee_name,omitempty"`
}

type TaskHit struct {
	ID              snowflake.ID `gorm:"column:id" json:"id"`
	TaskType        string       `gorm:"column:task_type" json:"task_type"`
	Status          string       `gorm:"column:status" json:"status"`
	ContainerNumber string       `gorm:"column:container_number" json:"container_number"`
	CreatedAt       time.Time    `gorm:"column:created_at" json:"created_at"`
}

type VisitHit struct {
	ID              snowflake.ID `gorm:"column:id" json:"id"`
	VesselName      string       `gorm:"column:vessel_name" json:"vessel_name"`
	VoyageNumberIn  string       `gorm:"column:voyage_number_in" json:"voyage_number_in,omitempty"`
	VoyageNumberOut string       `gorm:"column:voyage_number_out" json:"voyage_number_out,omitempty"`
	PortName        string       `gorm:"column:port_name" json:"port_name"`
	Status          string       `gorm:"column:status" json:"status"`
	ATA             *time.Time   `gorm:"column:ata" json:"ata,omitempty"`
}

type PartyHit struct {
	ID            snowflake.ID `gorm:"column:id" json:"id"`
	Name          string       `gorm:"column:name" json:"name"`
	ContactPerson string       `gorm:"column:contact_person" json:"contact_person,omitempty"`
	ScacCode      *string      `gorm:"column:scac_code" json:"scac_code,omitempty"`
}

// Results groups matches per entity. Every group is present, possibly empty.
type Results struct {
	Query      string         `json:"query"`
	Containers []ContainerHit `json:"containers"`
	Bookings   []BookingHit   `json:"bookings"`
	Tasks      []TaskHit      `json:"tasks"`
	Visits     []VisitHit     `json:"vessel_visits"`
	Parties    []PartyHit     `json:"parties"`
}

func (r Results) Total() int {
	return len(r.Containers) + len(r.Bookings) + len(r.Tasks) + len(r.Visits) + len(r.Parties)
}

type Service interface {
	Search(ctx context.Context, rc authorization.RoleContext, query string) (*Results, error)
}
