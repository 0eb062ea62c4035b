package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/portyard/internal/authorization"
)

type CreateVisitRequest struct {
	VesselID        snowflake.ID  `json:"vessel_id" validate:"required"`
	PortID          snowflake.ID  `json:"port_id" validate:"required"`
	BerthID         *snowflake.ID `json:"berth_id"`
	VoyageNumberIn  string        `json:"voyage_number_in" validate:"max=50"`
	VoyageNumberOut string        `json:"voyage_number_out" validate:"max=50"`
	ATA             *time.Time    `json:"ata"`
	ATD             *time.Time    `json:"atd"`
	Status          VisitStatus   `json:"status" validate:"omitempty,oneof=Approaching AtBerth Departing Completed"`
}

// UpdateVisitRequest patches a visit. ClearBerth unsets the berth.
type UpdateVisitRequest struct {
	BerthID         *snowflake.ID `json:"berth_id"`
	ClearBerth      bool          `json:"clear_berth"`
	VoyageNumberIn  *string       `json:"voyage_number_in" validate:"omitempty,max=50"`
	VoyageNumberOut *string       `json:"voyage_number_out" validate:"omitempty,max=50"`
	ATA             *time.Time    `json:"ata"`
	ATD             *time.Time    `json:"atd"`
	Status          *VisitStatus  `json:"status" validate:"omitempty,oneof=Approaching AtBerth Departing Completed"`
}

type ListVisitsRequest struct {
	VesselID *snowflake.ID `form:"vessel_id"`
	PortID   *snowflake.ID `form:"port_id"`
	Status   VisitStatus   `form:"status" validate:"omitempty,oneof=Approaching AtBerth Departing Completed"`
	Limit    int           `form:"limit,default=50" validate:"gte=0,lte=500"`
	Offset   int           `form:"offset" validate:"gte=0"`
}

type Service interface {
	CreateVisit(ctx context.Context, rc authorization.RoleContext, req CreateVisitRequest) (*VesselVisit, error)
	UpdateVisit(ctx context.Context, rc authorization.RoleContext, id snowflake.ID, req UpdateVisitRequest) (*VesselVisit, error)
	GetVisit(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) (*VesselVisit, error)
	ListVisits(ctx context.Context, rc authorization.RoleContext, req ListVisitsRequest) ([]VesselVisit, error)
}
