package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/portyard/internal/audit/domain"
	"github.com/smallbiznis/portyard/internal/authorization"
	"github.com/smallbiznis/portyard/internal/clock"
	"github.com/smallbiznis/portyard/internal/config"
	"github.com/smallbiznis/portyard/internal/errs"
	mddomain "github.com/smallbiznis/portyard/internal/masterdata/domain"
	"github.com/smallbiznis/portyard/internal/observability/logger"
	"github.com/smallbiznis/portyard/internal/observability/metrics"
	"github.com/smallbiznis/portyard/internal/task/domain"
	userdomain "github.com/smallbiznis/portyard/internal/user/domain"
	vesseldomain "github.com/smallbiznis/portyard/internal/vessel/domain"
	yarddomain "github.com/smallbiznis/portyard/internal/yard/domain"
	"github.com/smallbiznis/portyard/internal/yard/occupancy"
	"github.com/smallbiznis/portyard/pkg/db"
	"github.com/smallbiznis/portyard/pkg/db/pagination"
	"github.com/smallbiznis/portyard/pkg/validate"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("portyard/task")

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Gate        authorization.Gate
	Repo        domain.Repository
	Occupancy   *occupancy.Manager
	Policy      *config.PolicyHolder `optional:"true"`
	AuditSvc    auditdomain.Service  `optional:"true"`
	Metrics     *metrics.Metrics     `optional:"true"`
	YardMetrics *metrics.YardMetrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	gate        authorization.Gate
	repo        domain.Repository
	occupancy   *occupancy.Manager
	policy      *config.PolicyHolder
	auditSvc    auditdomain.Service
	metrics     *metrics.Metrics
	yardMetrics *metrics.YardMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("task.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		gate:        p.Gate,
		repo:        p.Repo,
		occupancy:   p.Occupancy,
		policy:      p.Policy,
		auditSvc:    p.AuditSvc,
		metrics:     p.Metrics,
		yardMetrics: p.YardMetrics,
	}
}

// CreateTask records a movement request. Slots and container are validated
// under lock but left unchanged; nothing is reserved until completion.
func (s *Service) CreateTask(ctx context.Context, rc authorization.RoleContext, req domain.CreateTaskRequest) (task *domain.Task, err error) {
	started := time.Now()
	defer func() { s.observe(ctx, "create_task", started, err) }()

	if err := s.gate.Require(ctx, rc, authorization.KindTask, authorization.OpCreate); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if err := checkSlotRule(req); err != nil {
		return nil, err
	}

	created := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		container, err := s.lockContainer(ctx, tx, req.ContainerID)
		if err != nil {
			return err
		}
		if container == nil {
			return errs.Validation("container_id", "container %s does not exist", req.ContainerID.String())
		}

		existing, err := s.repo.FindActiveDuplicate(ctx, tx, req)
		if err != nil {
			return err
		}
		if existing != nil {
			task = existing
			return nil
		}

		if err := checkContainer(container, req.Type, "create_task"); err != nil {
			return err
		}
		if err := s.checkSlots(ctx, tx, req, container); err != nil {
			return err
		}
		if err := s.checkReferences(tx, req); err != nil {
			return err
		}

		priority := s.policy.Get().DefaultTaskPriority
		if req.Priority != nil {
			priority = *req.Priority
		}
		now := s.clock.Now()
		task = &domain.Task{
			ID:              s.genID.Generate(),
			Type:            req.Type,
			Status:          domain.StatusPending,
			ContainerID:     req.ContainerID,
			FromSlotID:      req.FromSlotID,
			ToSlotID:        req.ToSlotID,
			VesselVisitID:   req.VesselVisitID,
			CreatedByUserID: userRef(rc.UserID),
			AssignedUserID:  req.AssignedUserID,
			Priority:        priority,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.repo.Insert(ctx, tx, task); err != nil {
			return db.AsConstraint(authorization.KindTask, err)
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := logger.WithEntity(logger.WithContext(ctx, s.log), authorization.KindTask, task.ID.String())
	if !created {
		log.Info("task already open, returning existing", zap.String("status", string(task.Status)))
		return task, nil
	}
	s.metrics.RecordTaskCreated(ctx, string(task.Type))
	log.Info("task created",
		zap.String("task_type", string(task.Type)),
		zap.String("container_id", task.ContainerID.String()),
		zap.Int("priority", task.Priority),
	)
	s.audit(ctx, rc, "task.created", task, nil)
	return task, nil
}

// AdvanceTask moves a task along its lifecycle. Completing a task applies the
// container movement in the same transaction.
func (s *Service) AdvanceTask(ctx context.Context, rc authorization.RoleContext, id snowflake.ID, req domain.AdvanceTaskRequest) (task *domain.Task, err error) {
	started := time.Now()
	ctx, span := tracer.Start(ctx, "task.advance")
	defer func() {
		s.observe(ctx, "advance_task", started, err)
		if err != nil {
			span.SetStatus(codes.Error, metrics.Outcome(err))
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("task.id", id.String()), attribute.String("task.target", string(req.Status)))

	if err := s.gate.Require(ctx, rc, authorization.KindTask, authorization.OpUpdate); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	var from domain.Status
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lockStarted := time.Now()
		current, err := s.repo.LockByID(ctx, tx, id)
		s.yardMetrics.ObserveLockWait(metrics.LockResourceTask, time.Since(lockStarted))
		if err != nil {
			return err
		}
		if current == nil {
			return errs.NotFound(authorization.KindTask, id)
		}
		if current.Status.Terminal() {
			return errs.Terminal(authorization.KindTask, id, string(current.Status))
		}
		if !domain.CanTransition(current.Status, req.Status) {
			return errs.Validation("status", "cannot move task from %s to %s", current.Status, req.Status)
		}
		from = current.Status

		now := s.clock.Now()
		values := map[string]any{"status": req.Status, "updated_at": now}
		if req.Status == domain.StatusCompleted {
			executor := req.ExecutorID
			if executor != nil {
				if err := exists(tx, &userdomain.User{}, executor, "executor_id"); err != nil {
					return err
				}
			} else {
				executor = userRef(rc.UserID)
			}
			if err := s.complete(ctx, tx, current, now); err != nil {
				return err
			}
			values["movement_timestamp"] = now
			values["actual_executor_id"] = executor
			current.MovementTimestamp = &now
			current.ActualExecutorID = executor
		}
		if err := s.repo.Update(ctx, tx, id, values); err != nil {
			return err
		}
		current.Status = req.Status
		current.UpdatedAt = now
		task = current
		return nil
	})
	if err != nil {
		s.logAdvanceFailure(ctx, id, req.Status, err)
		return nil, err
	}

	s.metrics.RecordTaskTransition(ctx, string(task.Type), string(from), string(task.Status))
	logger.WithEntity(logger.WithContext(ctx, s.log), authorization.KindTask, task.ID.String()).Info("task advanced",
		zap.String("from", string(from)),
		zap.String("to", string(task.Status)),
	)
	s.audit(ctx, rc, "task.advanced", task, map[string]any{"from": string(from), "to": string(task.Status)})
	return task, nil
}

// complete applies the movement of a task. Lock order is container, then the
// slots by ascending id. The from-slot is released before the to-slot is taken
// so that a container is never referenced by two slots.
func (s *Service) complete(ctx context.Context, tx *gorm.DB, task *domain.Task, now time.Time) error {
	container, err := s.lockContainer(ctx, tx, task.ContainerID)
	if err != nil {
		return err
	}
	if container == nil {
		return errs.NotFound(authorization.KindContainer, task.ContainerID)
	}
	if err := checkContainer(container, task.Type, "complete_task"); err != nil {
		return err
	}

	slots, err := s.occupancy.LockSlots(ctx, tx, slotIDs(task.FromSlotID, task.ToSlotID)...)
	if err != nil {
		return err
	}
	var fromSlot *yarddomain.Slot
	if task.FromSlotID != nil {
		fromSlot = slots[*task.FromSlotID]
	}

	if err := s.occupancy.VerifyContainer(ctx, tx, container.ID, fromSlot); err != nil {
		return err
	}
	if fromSlot != nil {
		if err := s.occupancy.Release(ctx, tx, fromSlot.ID, container.ID, now); err != nil {
			return err
		}
	}
	if task.ToSlotID != nil {
		if err := s.occupancy.Occupy(ctx, tx, *task.ToSlotID, container.ID, now); err != nil {
			return err
		}
	}
	return s.occupancy.SetContainerStatus(ctx, tx, container.ID, domain.ResultingStatus(task.Type), now)
}

func (s *Service) observe(ctx context.Context, operation string, started time.Time, err error) {
	if !s.yardMetrics.ObserveOperation(operation, started, err) {
		return
	}
	logger.WithContext(ctx, s.log).Warn("slow yard operation",
		zap.String("operation", operation),
		zap.Duration("elapsed", time.Since(started)),
		zap.String("outcome", metrics.Outcome(err)),
	)
}

func (s *Service) AssignTask(ctx context.Context, rc authorization.RoleContext, id snowflake.ID, req domain.AssignTaskRequest) (*domain.Task, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindTask, authorization.OpUpdate); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	var task *domain.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.LockByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return errs.NotFound(authorization.KindTask, id)
		}
		if current.Status.Terminal() {
			return errs.Terminal(authorization.KindTask, id, string(current.Status))
		}
		if err := exists(tx, &userdomain.User{}, &req.AssigneeID, "assignee_id"); err != nil {
			return err
		}

		now := s.clock.Now()
		if err := s.repo.Update(ctx, tx, id, map[string]any{
			"assigned_user_id": req.AssigneeID,
			"updated_at":       now,
		}); err != nil {
			return err
		}
		assignee := req.AssigneeID
		current.AssignedUserID = &assignee
		current.UpdatedAt = now
		task = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit(ctx, rc, "task.assigned", task, map[string]any{"assignee_id": req.AssigneeID.String()})
	return task, nil
}

func (s *Service) GetTask(ctx context.Context, rc authorization.RoleContext, id snowflake.ID) (*domain.Task, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindTask, authorization.OpRead); err != nil {
		return nil, err
	}
	task, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, errs.NotFound(authorization.KindTask, id)
	}
	return task, nil
}

// ListPending returns Pending tasks, highest priority first, then oldest.
func (s *Service) ListPending(ctx context.Context, rc authorization.RoleContext, req domain.ListPendingRequest) ([]domain.Task, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindTask, authorization.OpRead); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.policy.Get().PendingListLimit
	}
	tasks, err := s.repo.ListPending(ctx, s.db, req.AssigneeID, limit)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, nil
}

func (s *Service) ListTasks(ctx context.Context, rc authorization.RoleContext, req domain.ListTasksRequest) (domain.ListTasksResponse, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindTask, authorization.OpRead); err != nil {
		return domain.ListTasksResponse{}, err
	}
	if req.PageSize <= 0 {
		req.PageSize = 50
	}
	if err := validate.Struct(req); err != nil {
		return domain.ListTasksResponse{}, err
	}

	var cursor *domain.Cursor
	if token := strings.TrimSpace(req.PageToken); token != "" {
		decoded, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.ListTasksResponse{}, errs.Validation("page_token", "malformed page token")
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return domain.ListTasksResponse{}, errs.Validation("page_token", "malformed page token")
		}
		id, err := snowflake.ParseString(decoded.ID)
		if err != nil || id == 0 {
			return domain.ListTasksResponse{}, errs.Validation("page_token", "malformed page token")
		}
		cursor = &domain.Cursor{ID: id, CreatedAt: createdAt}
	}

	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		Status:      req.Status,
		Type:        req.Type,
		ContainerID: req.ContainerID,
		AssigneeID:  req.AssigneeID,
		Cursor:      cursor,
		Limit:       req.PageSize,
	})
	if err != nil {
		return domain.ListTasksResponse{}, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, req.PageSize, func(t *domain.Task) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        t.ID.String(),
			CreatedAt: t.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	tasks := make([]domain.Task, 0, len(items))
	for _, item := range items {
		tasks = append(tasks, *item)
	}
	return domain.ListTasksResponse{PageInfo: pageInfo, Tasks: tasks}, nil
}

func (s *Service) lockContainer(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*mddomain.Container, error) {
	started := time.Now()
	var container mddomain.Container
	err := tx.WithContext(ctx).Raw(
		db.ForUpdate(tx, `SELECT id, number, owner_party_id, type_code, current_status, created_at, updated_at
		 FROM containers WHERE id = ?`),
		id,
	).Scan(&container).Error
	s.yardMetrics.ObserveLockWait(metrics.LockResourceContainer, time.Since(started))
	if err != nil {
		return nil, err
	}
	if container.ID == 0 {
		return nil, nil
	}
	return &container, nil
}

// checkSlots validates the referenced slots at creation time. Both are locked
// so that the checks see committed state.
func (s *Service) checkSlots(ctx context.Context, tx *gorm.DB, req domain.CreateTaskRequest, container *mddomain.Container) error {
	slots, err := s.occupancy.LockSlots(ctx, tx, slotIDs(req.FromSlotID, req.ToSlotID)...)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			if e, ok := errs.As(err); ok {
				return errs.Validation("slot_id", "slot %s does not exist", e.ID)
			}
		}
		return err
	}

	if req.FromSlotID == nil && container.CurrentStatus == mddomain.ContainerInYard {
		// Completion would find the container in a slot it was not told about.
		return errs.Validation("from_slot_id", "container %s is in the yard, from_slot_id is required", container.Number)
	}
	if req.FromSlotID != nil {
		from := slots[*req.FromSlotID]
		if !from.Holds(container.ID) {
			return errs.Validation("from_slot_id", "slot %s does not hold container %s", from.Coordinates, container.Number)
		}
	}
	if req.ToSlotID != nil {
		to := slots[*req.ToSlotID]
		if to.CurrentContainerID != nil && *to.CurrentContainerID != container.ID {
			s.metrics.RecordSlotConflict(ctx, "create")
			return errs.SlotOccupied(to.ID, *to.CurrentContainerID)
		}
		if to.Status == yarddomain.SlotMaintenance {
			return errs.Validation("to_slot_id", "slot %s is under maintenance", to.Coordinates)
		}
	}
	return nil
}

func (s *Service) checkReferences(tx *gorm.DB, req domain.CreateTaskRequest) error {
	if err := exists(tx, &vesseldomain.VesselVisit{}, req.VesselVisitID, "vessel_visit_id"); err != nil {
		return err
	}
	return exists(tx, &userdomain.User{}, req.AssignedUserID, "assigned_user_id")
}

func (s *Service) logAdvanceFailure(ctx context.Context, id snowflake.ID, target domain.Status, err error) {
	log := logger.WithContext(ctx, s.log)
	fields := []zap.Field{
		zap.String("task_id", id.String()),
		zap.String("target", string(target)),
		zap.String("outcome", metrics.Outcome(err)),
		zap.Error(err),
	}
	switch {
	case errors.Is(err, errs.ErrInconsistentState):
		log.Error("task transition rolled back", fields...)
	case errors.Is(err, errs.ErrSlotOccupied), errors.Is(err, errs.ErrInvalidContainerState):
		log.Warn("task transition rejected", fields...)
	default:
		log.Debug("task transition rejected", fields...)
	}
}

func (s *Service) audit(ctx context.Context, rc authorization.RoleContext, action string, task *domain.Task, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["task_type"] = string(task.Type)
	metadata["container_id"] = task.ContainerID.String()
	target := task.ID.String()
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		ActorID:    rc.ActorID(),
		Role:       string(rc.Role),
		Action:     action,
		TargetType: authorization.KindTask,
		TargetID:   &target,
		Metadata:   metadata,
	})
}

func checkSlotRule(req domain.CreateTaskRequest) error {
	rule, ok := domain.RuleFor(req.Type)
	if !ok {
		return errs.Validation("task_type", "unknown task type %q", req.Type)
	}
	if req.FromSlotID != nil && req.ToSlotID != nil && *req.FromSlotID == *req.ToSlotID {
		return errs.Validation("to_slot_id", "from and to slot must differ")
	}
	if err := checkRequirement(rule.From, req.FromSlotID, "from_slot_id", req.Type); err != nil {
		return err
	}
	return checkRequirement(rule.To, req.ToSlotID, "to_slot_id", req.Type)
}

func checkRequirement(r domain.Requirement, id *snowflake.ID, field string, t domain.Type) error {
	switch {
	case r == domain.Required && id == nil:
		return errs.Validation(field, "%s task requires %s", t, field)
	case r == domain.Forbidden && id != nil:
		return errs.Validation(field, "%s task does not take %s", t, field)
	}
	return nil
}

func checkContainer(c *mddomain.Container, t domain.Type, op string) error {
	if c.CurrentStatus == mddomain.ContainerGateOut {
		return errs.InvalidContainerState(c.ID, string(c.CurrentStatus), op)
	}
	if domain.RequiresInYard(t) && c.CurrentStatus != mddomain.ContainerInYard {
		return errs.InvalidContainerState(c.ID, string(c.CurrentStatus), op)
	}
	return nil
}

func slotIDs(ids ...*snowflake.ID) []snowflake.ID {
	out := make([]snowflake.ID, 0, len(ids))
	for _, id := range ids {
		if id != nil {
			out = append(out, *id)
		}
	}
	return out
}

func userRef(id snowflake.ID) *snowflake.ID {
	if id == 0 {
		return nil
	}
	return &id
}

func exists(conn *gorm.DB, model any, id *snowflake.ID, field string) error {
	if id == nil {
		return nil
	}
	var count int64
	if err := conn.Model(model).Where("id = ?", *id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return errs.Validation(field, "%s does not exist", id.String())
	}
	return nil
}
