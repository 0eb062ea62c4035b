package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type PartyType string

const (
	PartyCompany PartyType = "COMPANY"
	PartyPerson  PartyType = "PERSON"
)

type ContainerStatus string

const (
	ContainerInYard   ContainerStatus = "InYard"
	ContainerOnVessel ContainerStatus = "OnVessel"
	ContainerGateOut  ContainerStatus = "GateOut"
)

type Party struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	Name          string       `gorm:"type:varchar(255);not null;uniqueIndex" json:"name"`
	Type          PartyType    `gorm:"type:varchar(16);not null;default:'COMPANY'" json:"type"`
	AddressLine1  string       `gorm:"column:address_line_1;type:varchar(255)" json:"address_line_1,omitempty"`
	City          string       `gorm:"type:varchar(100)" json:"city,omitempty"`
	Country       string       `gorm:"type:char(2)" json:"country,omitempty"`
	ContactPerson string       `gorm:"type:varchar(255)" json:"contact_person,omitempty"`
	Email         string       `gorm:"type:varchar(255)" json:"email,omitempty"`
	Phone         string       `gorm:"type:varchar(50)" json:"phone,omitempty"`
	ScacCode      *string      `gorm:"type:varchar(10)" json:"scac_code,omitempty"`
	CreatedAt     time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null" json:"updated_at"`
}

func (Party) TableName() string { return "parties" }

type Port struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Code      string       `gorm:"type:varchar(5);not null;uniqueIndex" json:"code"`
	Name      string       `gorm:"type:varchar(255);not null" json:"name"`
	Country   string       `gorm:"type:char(2)" json:"country,omitempty"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (Port) TableName() string { return "ports" }

type Berth struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	PortID       snowflake.ID `gorm:"not null;uniqueIndex:ux_berths_port_name" json:"port_id"`
	Port         *Port        `gorm:"foreignKey:PortID;constraint:OnDelete:RESTRICT" json:"-"`
	Name         string       `gorm:"type:varchar(100);not null;uniqueIndex:ux_berths_port_name" json:"name"`
	LengthMeters *float64     `gorm:"type:decimal(8,2)" json:"length_meters,omitempty"`
	DepthMeters  *float64     `gorm:"type:decimal(6,2)" json:"depth_meters,omitempty"`
	MaxVesselLOA *float64     `gorm:"column:max_vessel_loa;type:decimal(8,2)" json:"max_vessel_loa,omitempty"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

func (Berth) TableName() string { return "berths" }

// ContainerType owns the containers.type_code foreign key. The association
// lives on this side because both ends name the column TypeCode.
type ContainerType struct {
	TypeCode       string      `gorm:"primaryKey;type:char(4)" json:"type_code"`
	NominalSize    int         `gorm:"not null" json:"nominal_size"`
	GroupCode      string      `gorm:"type:varchar(10)" json:"group_code,omitempty"`
	StandardTareKg *int        `json:"standard_tare_kg,omitempty"`
	Containers     []Container `gorm:"foreignKey:TypeCode;references:TypeCode;constraint:OnDelete:RESTRICT" json:"-"`
	CreatedAt      time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time   `gorm:"not null" json:"updated_at"`
}

func (ContainerType) TableName() string { return "container_types" }

type Container struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	Number        string          `gorm:"type:varchar(11);not null;uniqueIndex" json:"number"`
	OwnerPartyID  *snowflake.ID   `gorm:"index" json:"owner_party_id,omitempty"`
	OwnerParty    *Party          `gorm:"foreignKey:OwnerPartyID;constraint:OnDelete:RESTRICT" json:"-"`
	TypeCode      string          `gorm:"type:char(4);not null;index" json:"type_code"`
	CurrentStatus ContainerStatus `gorm:"type:varchar(16);not null;default:'OnVessel';index" json:"current_status"`
	CreatedAt     time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null" json:"updated_at"`
}

func (Container) TableName() string { return "containers" }

type Vessel struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	IMONumber      string        `gorm:"column:imo_number;type:varchar(7);not null;uniqueIndex" json:"imo_number"`
	Name           string        `gorm:"type:varchar(255);not null" json:"name"`
	FlagCountry    string        `gorm:"type:char(2)" json:"flag_country,omitempty"`
	CarrierPartyID *snowflake.ID `gorm:"index" json:"carrier_party_id,omitempty"`
	CarrierParty   *Party        `gorm:"foreignKey:CarrierPartyID;constraint:OnDelete:RESTRICT" json:"-"`
	CreatedAt      time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null" json:"updated_at"`
}

func (Vessel) TableName() string { return "vessels" }
