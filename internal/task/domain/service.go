package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/portyard/internal/authorization"
	"github.com/smallbiznis/portyard/pkg/db/pagination"
	"gorm.io/gorm"
)

type CreateTaskRequest struct {
	Type           Type          `json:"task_type" validate:"required,oneof=Load Discharge Move GateIn GateOut"`
	ContainerID    snowflake.ID  `json:"container_id" validate:"required"`
	FromSlotID     *snowflake.ID `json:"from_slot_id"`
	ToSlotID       *snowflake.ID `json:"to_slot_id"`
	VesselVisitID  *snowflake.ID `json:"vessel_visit_id"`
	AssignedUserID *snowflake.ID `json:"assigned_user_id"`
	Priority       *int          `json:"priority" validate:"omitempty,gte=0,lte=1000"`
}

type AdvanceTaskRequest struct {
	Status     Status        `json:"status" validate:"required,oneof=Pending InProgress Completed Cancelled"`
	ExecutorID *snowflake.ID `json:"executor_id"`
}

type AssignTaskRequest struct {
	AssigneeID snowflake.ID `json:"assignee_id" validate:"required"`
}

type ListPendingRequest struct {
	AssigneeID *snowflake.ID `form:"assignee_id"`
	Limit      int           `form:"limit" validate:"gte=0,lte=1000"`
}

type ListTasksRequest struct {
	pagination.Pagination
	Status      Status        `form:"status" validate:"omitempty,oneof=Pending InProgress Completed Cancelled"`
	Type        Type          `form:"task_type" validate:"omitempty,oneof=Load Discharge Move GateIn GateOut"`
	ContainerID *snowflake.ID `form:"container_id"`
	AssigneeID  *snowflake.ID `form:"assignee_id"`
}

type ListTasksResponse struct {
	pagination.PageInfo
	Tasks []Task `json:"tasks"`
}

type Service interface {
	CreateTask(ctx context.Context, rc authorization.RoleContext, req CreateTaskRequest) (*Task, error)
	AdvanceTask(ctx context.Context, rc authorization.RoleContext, id snowflake.ID, req AdvanceTaskRequest) (*Task, error)
	AssignTask(ctx context.Context, rc authorization.RoleContext, id snowflake.ID, req AssignTaskRequest) (*Task, error)
	GetTask(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) (*Task, error)
	ListPending(ctx context.Context, rc authorization.RoleContext, req ListPendingRequest) ([]Task, error)
	ListTasks(ctx context.Context, rc authorization.RoleContext, req ListTasksRequest) (ListTasksResponse, error)
}

// ListFilter is the repository form of ListTasksRequest.
type ListFilter struct {
	Status      Status
	Type        Type
	ContainerID *snowflake.ID
	AssigneeID  *snowflake.ID
	Cursor      *Cursor
	Limit       int
}

type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, task *Task) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Task, error)
	LockByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Task, error)
	FindActiveDuplicate(ctx context.Context, db *gorm.DB, req CreateTaskRequest) (*Task, error)
	Update(ctx context.Context, db *gorm.DB, id snowflake.ID, values map[string]any) error
	ListPending(ctx context.Context, db *gorm.DB, assignee *snowflake.ID, limit int) ([]Task, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Task, error)
}
