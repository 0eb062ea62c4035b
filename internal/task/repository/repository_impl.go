package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/portyard/internal/task/domain"
	"github.com/smallbiznis/portyard/pkg/db"
	"gorm.io/gorm"
)

const taskColumns = `id, type, status, container_id, from_slot_id, to_slot_id, vessel_visit_id,
	created_by_user_id, assigned_user_id, actual_executor_id, priority, movement_timestamp,
	created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, task *domain.Task) error {
	return conn.WithContext(ctx).Exec(
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.Type,
		task.Status,
		task.ContainerID,
		task.FromSlotID,
		task.ToSlotID,
		task.VesselVisitID,
		task.CreatedByUserID,
		task.AssignedUserID,
		task.ActualExecutorID,
		task.Priority,
		task.MovementTimestamp,
		task.CreatedAt,
		task.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Task, error) {
	return r.find(ctx, conn, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
}

func (r *repo) LockByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Task, error) {
	return r.find(ctx, conn, db.ForUpdate(conn, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`), id)
}

func (r *repo) find(ctx context.Context, conn *gorm.DB, query string, args ...any) (*domain.Task, error) {
	var task domain.Task
	if err := conn.WithContext(ctx).Raw(query, args...).Scan(&task).Error; err != nil {
		return nil, err
	}
	if task.ID == 0 {
		return nil, nil
	}
	return &task, nil
}

// FindActiveDuplicate returns the oldest non-terminal task for the same
// container, type, slots and visit.
func (r *repo) FindActiveDuplicate(ctx context.Context, conn *gorm.DB, req domain.CreateTaskRequest) (*domain.Task, error) {
	stmt := conn.WithContext(ctx).
		Model(&domain.Task{}).
		Where("container_id = ? AND type = ?", req.ContainerID, req.Type).
		Where("status IN ?", []domain.Status{domain.StatusPending, domain.StatusInProgress})
	stmt = nullableEq(stmt, "from_slot_id", req.FromSlotID)
	stmt = nullableEq(stmt, "to_slot_id", req.ToSlotID)
	stmt = nullableEq(stmt, "vessel_visit_id", req.VesselVisitID)

	var tasks []domain.Task
	if err := stmt.Order("created_at asc, id asc").Limit(1).Find(&tasks).Error; err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, nil
	}
	return &tasks[0], nil
}

func (r *repo) Update(ctx context.Context, conn *gorm.DB, id snowflake.ID, values map[string]any) error {
	return conn.WithContext(ctx).Model(&domain.Task{}).Where("id = ?", id).Updates(values).Error
}

func (r *repo) ListPending(ctx context.Context, conn *gorm.DB, assignee *snowflake.ID, limit int) ([]domain.Task, error) {
	stmt := conn.WithContext(ctx).
		Model(&domain.Task{}).
		Where("status = ?", domain.StatusPending)
	if assignee != nil {
		stmt = stmt.Where("assigned_user_id = ?", *assignee)
	}
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}

	var tasks []domain.Task
	if err := stmt.Order("priority desc, created_at asc, id asc").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListFilter) ([]*domain.Task, error) {
	stmt := conn.WithContext(ctx).Model(&domain.Task{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		stmt = stmt.Where("type = ?", filter.Type)
	}
	if filter.ContainerID != nil {
		stmt = stmt.Where("container_id = ?", *filter.ContainerID)
	}
	if filter.AssigneeID != nil {
		stmt = stmt.Where("assigned_user_id = ?", *filter.AssigneeID)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ? OR (created_at = ? AND id < ?))",
			filter.Cursor.CreatedAt, filter.Cursor.CreatedAt, filter.Cursor.ID)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	var tasks []*domain.Task
	if err := stmt.Order("created_at desc, id desc").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func nullableEq(stmt *gorm.DB, column string, value *snowflake.ID) *gorm.DB {
	if value == nil {
		return stmt.Where(column + " IS NULL")
	}
	return stmt.Where(column+" = ?", *value)
}
