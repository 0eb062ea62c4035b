package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/portyard/internal/authorization"
)

type CreateBlockRequest struct {
	Name string    `json:"name" validate:"required,max=50"`
	Type BlockType `json:"type" validate:"omitempty,oneof=Standard Reefer Temporary Heavy Bulk"`
}

type CreateStackRequest struct {
	BlockID   snowflake.ID `json:"block_id" validate:"required"`
	BayNumber int          `json:"bay_number" validate:"gte=1"`
	RowNumber int          `json:"row_number" validate:"gte=1"`
}

// CreateSlotRequest derives coordinates from the stack position when blank.
type CreateSlotRequest struct {
	StackID     snowflake.ID `json:"stack_id" validate:"required"`
	TierNumber  int          `json:"tier_number" validate:"gte=1"`
	Coordinates string       `json:"coordinates" validate:"max=50"`
}

type ListSlotsRequest struct {
	BlockID  *snowflake.ID `form:"block_id"`
	StackID  *snowflake.ID `form:"stack_id"`
	Status   SlotStatus    `form:"status" validate:"omitempty,oneof=Available Occupied Reserved Maintenance"`
	FreeOnly bool          `form:"free_only"`
	Limit    int           `form:"limit,default=200" validate:"gte=0,lte=1000"`
	Offset   int           `form:"offset" validate:"gte=0"`
}

type Service interface {
	CreateBlock(ctx context.Context, rc authorization.RoleContext, req CreateBlockRequest) (*Block, error)
	ListBlocks(ctx context.Context, rc authorization.RoleContext) ([]Block, error)
	CreateStack(ctx context.Context, rc authorization.RoleContext, req CreateStackRequest) (*Stack, error)
	CreateSlot(ctx context.Context, rc authorization.RoleContext, req CreateSlotRequest) (*Slot, error)
	GetSlot(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) (*Slot, error)
	ListSlots(ctx context.Context, rc authorization.RoleContext, req ListSlotsRequest) ([]Slot, error)
	SetSlotMaintenance(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) (*Slot, error)
	ClearSlotMaintenance(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) (*Slot, error)
	CheckInvariants(ctx context.Context, rc authorization.RoleContext) (InvariantReport, error)
}
