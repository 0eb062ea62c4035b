package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/portyard/internal/authorization"
)

// ListRequest filters master-data lists. Query is matched case-insensitively
// against the kind's display column.
type ListRequest struct {
	Query  string `form:"q"`
	SortBy string `form:"sort_by"`
	Desc   bool   `form:"desc"`
	Limit  int    `form:"limit,default=50" validate:"gte=0,lte=500"`
	Offset int    `form:"offset" validate:"gte=0"`
}

type ListResponse[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}

type CreatePartyRequest struct {
	Name          string    `json:"name" validate:"required,max=255"`
	Type          PartyType `json:"type" validate:"omitempty,oneof=COMPANY PERSON"`
	AddressLine1  string    `json:"address_line_1" validate:"max=255"`
	City          string    `json:"city" validate:"max=100"`
	Country       string    `json:"country" validate:"omitempty,len=2,alpha"`
	ContactPerson string    `json:"contact_person" validate:"max=255"`
	Email         string    `json:"email" validate:"omitempty,email"`
	Phone         string    `json:"phone" validate:"max=50"`
	ScacCode      *string   `json:"scac_code" validate:"omitempty,max=10"`
}

type UpdatePartyRequest struct {
	Name          *string    `json:"name" validate:"omitempty,min=1,max=255"`
	Type          *PartyType `json:"type" validate:"omitempty,oneof=COMPANY PERSON"`
	AddressLine1  *string    `json:"address_line_1" validate:"omitempty,max=255"`
	City          *string    `json:"city" validate:"omitempty,max=100"`
	Country       *string    `json:"country" validate:"omitempty,len=2,alpha"`
	ContactPerson *string    `json:"contact_person" validate:"omitempty,max=255"`
	Email         *string    `json:"email" validate:"omitempty,email"`
	Phone         *string    `json:"phone" validate:"omitempty,max=50"`
	ScacCode      *string    `json:"scac_code" validate:"omitempty,max=10"`
}

type CreatePortRequest struct {
	Code    string `json:"code" validate:"required,port_code"`
	Name    string `json:"name" validate:"required,max=255"`
	Country string `json:"country" validate:"omitempty,len=2,alpha"`
}

type UpdatePortRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=1,max=255"`
	Country *string `json:"country" validate:"omitempty,len=2,alpha"`
}

type CreateBerthRequest struct {
	PortID       snowflake.ID `json:"port_id" validate:"required"`
	Name         string       `json:"name" validate:"required,max=100"`
	LengthMeters *float64     `json:"length_meters" validate:"omitempty,gt=0"`
	DepthMeters  *float64     `json:"depth_meters" validate:"omitempty,gt=0"`
	MaxVesselLOA *float64     `json:"max_vessel_loa" validate:"omitempty,gt=0"`
}

type UpdateBerthRequest struct {
	Name         *string  `json:"name" validate:"omitempty,min=1,max=100"`
	LengthMeters *float64 `json:"length_meters" validate:"omitempty,gt=0"`
	DepthMeters  *float64 `json:"depth_meters" validate:"omitempty,gt=0"`
	MaxVesselLOA *float64 `json:"max_vessel_loa" validate:"omitempty,gt=0"`
}

type CreateContainerTypeRequest struct {
	TypeCode       string `json:"type_code" validate:"required,type_code"`
	NominalSize    int    `json:"nominal_size" validate:"required,oneof=10 20 40 45"`
	GroupCode      string `json:"group_code" validate:"max=10"`
	StandardTareKg *int   `json:"standard_tare_kg" validate:"omitempty,gt=0"`
}

type UpdateContainerTypeRequest struct {
	NominalSize    *int    `json:"nominal_size" validate:"omitempty,oneof=10 20 40 45"`
	GroupCode      *string `json:"group_code" validate:"omitempty,max=10"`
	StandardTareKg *int    `json:"standard_tare_kg" validate:"omitempty,gt=0"`
}

type CreateContainerRequest struct {
	Number       string          `json:"number" validate:"required,container_number"`
	OwnerPartyID *snowflake.ID   `json:"owner_party_id"`
	TypeCode     string          `json:"type_code" validate:"required,type_code"`
	Status       ContainerStatus `json:"current_status" validate:"omitempty,oneof=OnVessel GateOut"`
}

// UpdateContainerRequest never carries a status: container status changes
// only through task completion.
type UpdateContainerRequest struct {
	OwnerPartyID *snowflake.ID `json:"owner_party_id"`
	TypeCode     *string       `json:"type_code" validate:"omitempty,type_code"`
}

type CreateVesselRequest struct {
	IMONumber      string        `json:"imo_number" validate:"required,imo"`
	Name           string        `json:"name" validate:"required,max=255"`
	FlagCountry    string        `json:"flag_country" validate:"omitempty,len=2,alpha"`
	CarrierPartyID *snowflake.ID `json:"carrier_party_id"`
}

type UpdateVesselRequest struct {
	Name           *string       `json:"name" validate:"omitempty,min=1,max=255"`
	FlagCountry    *string       `json:"flag_country" validate:"omitempty,len=2,alpha"`
	CarrierPartyID *snowflake.ID `json:"carrier_party_id"`
}

type Service interface {
	CreateParty(ctx context.Context, rc authorization.RoleContext, req CreatePartyRequest) (*Party, error)
	UpdateParty(ctx context.Context, rc authorization.RoleContext, id snowflake.ID, req UpdatePartyRequest) (*Party, error)
	GetParty(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) (*Party, error)
	ListParties(ctx context.Context, rc authorization.RoleContext, req ListRequest) (ListResponse[Party], error)
	DeleteParty(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) error

	CreatePort(ctx context.Context, rc authorization.RoleContext, req CreatePortRequest) (*Port, error)
	UpdatePort(ctx context.Context, rc authorization.RoleContext, id snowflake.ID, req UpdatePortRequest) (*Port, error)
	GetPort(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) (*Port, error)
	ListPorts(ctx context.Context, rc authorization.RoleContext, req ListRequest) (ListResponse[Port], error)
	DeletePort(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) error

	CreateBerth(ctx context.Context, rc authorization.RoleContext, req CreateBerthRequest) (*Berth, error)
	UpdateBerth(ctx context.Context, rc authorization.RoleContext, id snowflake.ID, req UpdateBerthRequest) (*Berth, error)
	GetBerth(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) (*Berth, error)
	ListBerths(ctx context.Context, rc authorization.RoleContext, req ListRequest) (ListResponse[Berth], error)
	DeleteBerth(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) error

	CreateContainerType(ctx context.Context, rc authorization.RoleContext, req CreateContainerTypeRequest) (*ContainerType, error)
	UpdateContainerType(ctx context.Context, rc authorization.RoleContext, code string, req UpdateContainerTypeRequest) (*ContainerType, error)
	GetContainerType(ctx context.Context, rc authorization.RoleContext, code string) (*ContainerType, error)
	ListContainerTypes(ctx context.Context, rc authorization.RoleContext, req ListRequest) (ListResponse[ContainerType], error)
	DeleteContainerType(ctx context.Context, rc authorization.RoleContext, code string) error

	CreateContainer(ctx context.Context, rc authorization.RoleContext, req CreateContainerRequest) (*Container, error)
	UpdateContainer(ctx context.Context, rc authorization.RoleContext, id snowflake.ID, req UpdateContainerRequest) (*Container, error)
	GetContainer(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) (*Container, error)
	ListContainers(ctx context.Context, rc authorization.RoleContext, req ListRequest) (ListResponse[Container], error)
	DeleteContainer(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) error

	CreateVessel(ctx context.Context, rc authorization.RoleContext, req CreateVesselRequest) (*Vessel, error)
	UpdateVessel(ctx context.Context, rc authorization.RoleContext, id snowflake.ID, req UpdateVesselRequest) (*Vessel, error)
	GetVessel(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) (*Vessel, error)
	ListVessels(ctx context.Context, rc authorization.RoleContext, req ListRequest) (ListResponse[Vessel], error)
	DeleteVessel(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) error
}
