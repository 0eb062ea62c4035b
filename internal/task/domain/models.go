package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	mddomain "github.com/smallbiznis/portyard/internal/masterdata/domain"
	yarddomain "github.com/smallbiznis/portyard/internal/yard/domain"
)

type Type string

const (
	TypeLoad      Type = "Load"
	TypeDischarge Type = "Discharge"
	TypeMove      Type = "Move"
	TypeGateIn    Type = "GateIn"
	TypeGateOut   Type = "GateOut"
)

type Status string

const (
	StatusPending    Status = "Pending"
	StatusInProgress Status = "InProgress"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Task is a requested container movement. Slots are only touched when the
// task completes.
type Task struct {
	ID                snowflake.ID        `gorm:"primaryKey" json:"id"`
	Type              Type                `gorm:"type:varchar(16);not null;index" json:"task_type"`
	Status            Status              `gorm:"type:varchar(16);not null;default:'Pending';index:ix_tasks_status_priority,priority:1" json:"status"`
	ContainerID       snowflake.ID        `gorm:"not null;index" json:"container_id"`
	Container         *mddomain.Container `gorm:"foreignKey:ContainerID;constraint:OnDelete:RESTRICT" json:"-"`
	FromSlotID        *snowflake.ID       `gorm:"index" json:"from_slot_id,omitempty"`
	FromSlot          *yarddomain.Slot    `gorm:"foreignKey:FromSlotID;constraint:OnDelete:RESTRICT" json:"-"`
	ToSlotID          *snowflake.ID       `gorm:"index" json:"to_slot_id,omitempty"`
	ToSlot            *yarddomain.Slot    `gorm:"foreignKey:ToSlotID;constraint:OnDelete:RESTRICT" json:"-"`
	VesselVisitID     *snowflake.ID       `gorm:"index" json:"vessel_visit_id,omitempty"`
	CreatedByUserID   *snowflake.ID       `gorm:"index" json:"created_by_user_id,omitempty"`
	AssignedUserID    *snowflake.ID       `gorm:"index" json:"assigned_user_id,omitempty"`
	ActualExecutorID  *snowflake.ID       `gorm:"index" json:"actual_executor_id,omitempty"`
	Priority          int                 `gorm:"not null;index:ix_tasks_status_priority,priority:2" json:"priority"`
	MovementTimestamp *time.Time          `json:"movement_timestamp,omitempty"`
	CreatedAt         time.Time           `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time           `gorm:"not null" json:"updated_at"`
}

func (Task) TableName() string { return "tasks" }

// SlotRule states which slots a task type needs.
type SlotRule struct {
	From Requirement
	To   Requirement
}

type Requirement int

const (
	Forbidden Requirement = iota
	Optional
	Required
)

var slotRules = map[Type]SlotRule{
	TypeLoad:      {From: Required, To: Forbidden},
	TypeGateOut:   {From: Required, To: Forbidden},
	TypeMove:      {From: Required, To: Required},
	TypeDischarge: {From: Optional, To: Required},
	TypeGateIn:    {From: Optional, To: Required},
}

func RuleFor(t Type) (SlotRule, bool) {
	rule, ok := slotRules[t]
	return rule, ok
}

// ResultingStatus is the container status after a task of type t completes.
func ResultingStatus(t Type) mddomain.ContainerStatus {
	switch t {
	case TypeLoad:
		return mddomain.ContainerOnVessel
	case TypeGateOut:
		return mddomain.ContainerGateOut
	default:
		return mddomain.ContainerInYard
	}
}

// RequiresInYard reports whether the container must already be in the yard
// when a task of type t is created.
func RequiresInYard(t Type) bool {
	return t == TypeLoad || t == TypeGateOut || t == TypeMove
}

// CanTransition reports whether a task may move from one status to another.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusInProgress || to == StatusCompleted || to == StatusCancelled
	case StatusInProgress:
		return to == StatusCompleted || to == StatusCancelled
	}
	return false
}
