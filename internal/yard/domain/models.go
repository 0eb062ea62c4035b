package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	mddomain "github.com/smallbiznis/portyard/internal/masterdata/domain"
)

type BlockType string

const (
	BlockStandard  BlockType = "Standard"
	BlockReefer    BlockType = "Reefer"
	BlockTemporary BlockType = "Temporary"
	BlockHeavy     BlockType = "Heavy"
	BlockBulk      BlockType = "Bulk"
)

type SlotStatus string

const (
	SlotAvailable   SlotStatus = "Available"
	SlotOccupied    SlotStatus = "Occupied"
	SlotReserved    SlotStatus = "Reserved"
	SlotMaintenance SlotStatus = "Maintenance"
)

type Block struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:varchar(50);not null;uniqueIndex" json:"name"`
	Type      BlockType    `gorm:"type:varchar(16);not null;default:'Standard'" json:"type"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (Block) TableName() string { return "yard_blocks" }

type Stack struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	BlockID   snowflake.ID `gorm:"not null;uniqueIndex:ux_yard_stacks_position" json:"block_id"`
	Block     *Block       `gorm:"foreignKey:BlockID;constraint:OnDelete:RESTRICT" json:"-"`
	BayNumber int          `gorm:"not null;uniqueIndex:ux_yard_stacks_position" json:"bay_number"`
	RowNumber int          `gorm:"not null;uniqueIndex:ux_yard_stacks_position" json:"row_number"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (Stack) TableName() string { return "yard_stacks" }

// Slot holds at most one container. Status is Occupied exactly when
// CurrentContainerID is set.
type Slot struct {
	ID                 snowflake.ID        `gorm:"primaryKey" json:"id"`
	StackID            snowflake.ID        `gorm:"not null;uniqueIndex:ux_yard_slots_tier" json:"stack_id"`
	Stack              *Stack              `gorm:"foreignKey:StackID;constraint:OnDelete:RESTRICT" json:"-"`
	TierNumber         int                 `gorm:"not null;uniqueIndex:ux_yard_slots_tier" json:"tier_number"`
	Coordinates        string              `gorm:"type:varchar(50);not null;uniqueIndex" json:"coordinates"`
	Status             SlotStatus          `gorm:"type:varchar(16);not null;default:'Available';index" json:"status"`
	CurrentContainerID *snowflake.ID       `gorm:"uniqueIndex" json:"current_container_id,omitempty"`
	CurrentContainer   *mddomain.Container `gorm:"foreignKey:CurrentContainerID;constraint:OnDelete:RESTRICT" json:"-"`
	CreatedAt          time.Time           `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time           `gorm:"not null" json:"updated_at"`
}

func (Slot) TableName() string { return "yard_slots" }

func (s Slot) Empty() bool {
	return s.CurrentContainerID == nil
}

func (s Slot) Holds(containerID snowflake.ID) bool {
	return s.CurrentContainerID != nil && *s.CurrentContainerID == containerID
}

// Violation kinds reported by the invariant scan.
const (
	ViolationOccupiedWithoutContainer = "occupied_without_container"
	ViolationContainerWithoutOccupied = "container_without_occupied_status"
	ViolationInYardWithoutSlot        = "in_yard_without_slot"
	ViolationSlotHoldsNonYard         = "slot_holds_non_yard_container"
	ViolationSlotHoldsMissing         = "slot_holds_missing_container"
)

type Violation struct {
	Kind        string        `json:"kind"`
	SlotID      *snowflake.ID `json:"slot_id,omitempty"`
	ContainerID *snowflake.ID `json:"container_id,omitempty"`
	Detail      string        `json:"detail"`
}

type InvariantReport struct {
	CheckedAt         time.Time   `json:"checked_at"`
	SlotsChecked      int64       `json:"slots_checked"`
	ContainersChecked int64       `json:"containers_checked"`
	Violations        []Violation `json:"violations"`
}

func (r InvariantReport) OK() bool {
	return len(r.Violations) == 0
}
