package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/portyard/internal/authorization"
	"github.com/smallbiznis/portyard/internal/clock"
	"github.com/smallbiznis/portyard/internal/config"
	"github.com/smallbiznis/portyard/internal/errs"
	mddomain "github.com/smallbiznis/portyard/internal/masterdata/domain"
	"github.com/smallbiznis/portyard/internal/task/domain"
	"github.com/smallbiznis/portyard/internal/task/repository"
	"github.com/smallbiznis/portyard/internal/task/service"
	"github.com/smallbiznis/portyard/internal/testkit"
	yarddomain "github.com/smallbiznis/portyard/internal/yard/domain"
	"github.com/smallbiznis/portyard/internal/yard/occupancy"
	yardservice "github.com/smallbiznis/portyard/internal/yard/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type env struct {
	svc   domain.Service
	db    *gorm.DB
	fx    *testkit.Fixtures
	clock *clock.FakeClock
	op    authorization.RoleContext
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testkit.OpenDB(t)
	fx := testkit.NewFixtures(t, db)
	clk := testkit.Clock()
	svc := service.New(service.Params{
		DB:        db,
		Log:       zap.NewNop(),
		GenID:     testkit.Node(t),
		Clock:     clk,
		Gate:      testkit.Gate(t),
		Repo:      repository.Provide(),
		Occupancy: occupancy.New(occupancy.Params{Log: zap.NewNop()}),
		Policy:    config.NewStaticPolicyHolder(config.DefaultYardPolicy()),
	})
	op := fx.User("operator", authorization.PermCreateTask, authorization.PermUpdateTask)
	return &env{svc: svc, db: db, fx: fx, clock: clk, op: testkit.Operator(op.ID)}
}

func ref(id snowflake.ID) *snowflake.ID { return &id }

func (e *env) assertYardConsistent(t *testing.T) {
	t.Helper()
	report, err := yardservice.Scan(context.Background(), e.db, e.clock, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, report.Violations)
}

func TestDischargeBetweenSlots(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	slots := e.fx.Yard("A", 2)
	s1, s2 := slots[0], slots[1]
	c := e.fx.Container("ABCD1234567", mddomain.ContainerInYard)
	e.fx.Place(s1, c)

	req := domain.CreateTaskRequest{
		Type:        domain.TypeDischarge,
		ContainerID: c.ID,
		FromSlotID:  ref(s1.ID),
		ToSlotID:    ref(s2.ID),
	}

	_, err := e.svc.CreateTask(ctx, testkit.Viewer(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrPermissionDenied))
	assert.True(t, e.fx.Slot(s1.ID).Holds(c.ID))
	assert.True(t, e.fx.Slot(s2.ID).Empty())

	task, err := e.svc.CreateTask(ctx, e.op, req)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, task.Status)
	assert.Equal(t, 100, task.Priority)
	require.NotNil(t, task.CreatedByUserID)
	assert.Equal(t, e.op.UserID, *task.CreatedByUserID)
	assert.Nil(t, task.MovementTimestamp)

	// Creation reserves nothing.
	assert.True(t, e.fx.Slot(s1.ID).Holds(c.ID))
	assert.True(t, e.fx.Slot(s2.ID).Empty())

	e.clock.Advance(5 * time.Minute)
	done, err := e.svc.AdvanceTask(ctx, e.op, task.ID, domain.AdvanceTaskRequest{Status: domain.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, done.Status)
	require.NotNil(t, done.MovementTimestamp)
	assert.True(t, done.MovementTimestamp.Equal(testkit.Epoch.Add(5*time.Minute)))
	require.NotNil(t, done.ActualExecutorID)
	assert.Equal(t, e.op.UserID, *done.ActualExecutorID)

	from := e.fx.Slot(s1.ID)
	assert.True(t, from.Empty())
	assert.Equal(t, yarddomain.SlotAvailable, from.Status)
	to := e.fx.Slot(s2.ID)
	assert.True(t, to.Holds(c.ID))
	assert.Equal(t, yarddomain.SlotOccupied, to.Status)
	assert.Equal(t, mddomain.ContainerInYard, e.fx.ContainerByID(c.ID).CurrentStatus)

	stored, err := e.svc.GetTask(ctx, testkit.Viewer(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
	require.NotNil(t, stored.MovementTimestamp)

	e.assertYardConsistent(t)
}

func TestCreateTaskIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	slots := e.fx.Yard("A", 1)
	c := e.fx.Container("ABCD1234567", mddomain.ContainerOnVessel)
	req := domain.CreateTaskRequest{Type: domain.TypeGateIn, ContainerID: c.ID, ToSlotID: ref(slots[0].ID)}

	first, err := e.svc.CreateTask(ctx, e.op, req)
	require.NoError(t, err)
	second, err := e.svc.CreateTask(ctx, e.op, req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, e.db.Model(&domain.Task{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	// Once the first task is closed, the same request opens a new task.
	_, err = e.svc.AdvanceTask(ctx, e.op, first.ID, domain.AdvanceTaskRequest{Status: domain.StatusCancelled})
	require.NoError(t, err)
	third, err := e.svc.CreateTask(ctx, e.op, req)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestSecondCompletionOntoSameSlotFails(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	slot := e.fx.Yard("A", 1)[0]
	c1 := e.fx.Container("ABCD1234567", mddomain.ContainerOnVessel)
	c2 := e.fx.Container("WXYZ7654321", mddomain.ContainerOnVessel)

	t1, err := e.svc.CreateTask(ctx, e.op, domain.CreateTaskRequest{Type: domain.TypeGateIn, ContainerID: c1.ID, ToSlotID: ref(slot.ID)})
	require.NoError(t, err)
	t2, err := e.svc.CreateTask(ctx, e.op, domain.CreateTaskRequest{Type: domain.TypeGateIn, ContainerID: c2.ID, ToSlotID: ref(slot.ID)})
	require.NoError(t, err, "a free slot may be targeted by several Pending tasks")

	_, err = e.svc.AdvanceTask(ctx, e.op, t1.ID, domain.AdvanceTaskRequest{Status: domain.StatusCompleted})
	require.NoError(t, err)

	_, err = e.svc.AdvanceTask(ctx, e.op, t2.ID, domain.AdvanceTaskRequest{Status: domain.StatusCompleted})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrSlotOccupied))

	stored, err := e.svc.GetTask(ctx, e.op, t2.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
	assert.Nil(t, stored.MovementTimestamp)
	assert.True(t, e.fx.Slot(slot.ID).Holds(c1.ID))
	assert.Equal(t, mddomain.ContainerOnVessel, e.fx.ContainerByID(c2.ID).CurrentStatus)

	// New tasks targeting the held slot are rejected up front.
	c3 := e.fx.Container("QWER1111111", mddomain.ContainerOnVessel)
	_, err = e.svc.CreateTask(ctx, e.op, domain.CreateTaskRequest{Type: domain.TypeGateIn, ContainerID: c3.ID, ToSlotID: ref(slot.ID)})
	assert.True(t, errors.Is(err, errs.ErrSlotOccupied))

	e.assertYardConsistent(t)
}

func TestConcurrentCompletionsOneWinner(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	slot := e.fx.Yard("A", 1)[0]

	const n = 6
	ids := make([]snowflake.ID, 0, n)
	numbers := []string{"AAAU0000001", "AAAU0000002", "AAAU0000003", "AAAU0000004", "AAAU0000005", "AAAU0000006"}
	for _, number := range numbers {
		c := e.fx.Container(number, mddomain.ContainerOnVessel)
		task, err := e.svc.CreateTask(ctx, e.op, domain.CreateTaskRequest{Type: domain.TypeGateIn, ContainerID: c.ID, ToSlotID: ref(slot.ID)})
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		occupied int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id snowflake.ID) {
			defer wg.Done()
			_, err := e.svc.AdvanceTask(ctx, e.op, id, domain.AdvanceTaskRequest{Status: domain.StatusCompleted})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, errs.ErrSlotOccupied):
				occupied++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	assert.Equal(t, n-1, occupied)

	var completed int64
	require.NoError(t, e.db.Model(&domain.Task{}).Where("status = ?", domain.StatusCompleted).Count(&completed).Error)
	assert.EqualValues(t, 1, completed)
	assert.Equal(t, yarddomain.SlotOccupied, e.fx.Slot(slot.ID).Status)
	e.assertYardConsistent(t)
}

func TestTerminalTasksAreFinal(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	slots := e.fx.Yard("A", 2)
	c := e.fx.Container("ABCD1234567", mddomain.ContainerInYard)
	e.fx.Place(slots[0], c)

	task, err := e.svc.CreateTask(ctx, e.op, domain.CreateTaskRequest{
		Type: domain.TypeMove, ContainerID: c.ID, FromSlotID: ref(slots[0].ID), ToSlotID: ref(slots[1].ID),
	})
	require.NoError(t, err)

	_, err = e.svc.AdvanceTask(ctx, e.op, task.ID, domain.AdvanceTaskRequest{Status: domain.StatusInProgress})
	require.NoError(t, err)
	_, err = e.svc.AdvanceTask(ctx, e.op, task.ID, domain.AdvanceTaskRequest{Status: domain.StatusPending})
	assert.True(t, errors.Is(err, errs.ErrValidation), "no way back to Pending")

	cancelled, err := e.svc.AdvanceTask(ctx, e.op, task.ID, domain.AdvanceTaskRequest{Status: domain.StatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.MovementTimestamp)
	assert.True(t, e.fx.Slot(slots[0].ID).Holds(c.ID), "cancelling leaves slots untouched")
	assert.True(t, e.fx.Slot(slots[1].ID).Empty())

	for _, target := range []domain.Status{domain.StatusCompleted, domain.StatusInProgress, domain.StatusCancelled} {
		_, err = e.svc.AdvanceTask(ctx, e.op, task.ID, domain.AdvanceTaskRequest{Status: target})
		assert.True(t, errors.Is(err, errs.ErrTerminalState), target)
	}
	_, err = e.svc.AssignTask(ctx, e.op, task.ID, domain.AssignTaskRequest{AssigneeID: e.op.UserID})
	assert.True(t, errors.Is(err, errs.ErrTerminalState))

	_, err = e.svc.AdvanceTask(ctx, e.op, 4242, domain.AdvanceTaskRequest{Status: domain.StatusCompleted})
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestLoadAndGateOut(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	slots := e.fx.Yard("A", 2)
	loaded := e.fx.Container("ABCD1234567", mddomain.ContainerInYard)
	leaving := e.fx.Container("WXYZ7654321", mddomain.ContainerInYard)
	e.fx.Place(slots[0], loaded)
	e.fx.Place(slots[1], leaving)

	load, err := e.svc.CreateTask(ctx, e.op, domain.CreateTaskRequest{Type: domain.TypeLoad, ContainerID: loaded.ID, FromSlotID: ref(slots[0].ID)})
	require.NoError(t, err)
	_, err = e.svc.AdvanceTask(ctx, e.op, load.ID, domain.AdvanceTaskRequest{Status: domain.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, mddomain.ContainerOnVessel, e.fx.ContainerByID(loaded.ID).CurrentStatus)
	assert.True(t, e.fx.Slot(slots[0].ID).Empty())

	out, err := e.svc.CreateTask(ctx, e.op, domain.CreateTaskRequest{Type: domain.TypeGateOut, ContainerID: leaving.ID, FromSlotID: ref(slots[1].ID)})
	require.NoError(t, err)
	_, err = e.svc.AdvanceTask(ctx, e.op, out.ID, domain.AdvanceTaskRequest{Status: domain.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, mddomain.ContainerGateOut, e.fx.ContainerByID(leaving.ID).CurrentStatus)
	assert.True(t, e.fx.Slot(slots[1].ID).Empty())

	// A gated-out container takes no further tasks.
	_, err = e.svc.CreateTask(ctx, e.op, domain.CreateTaskRequest{Type: domain.TypeGateIn, ContainerID: leaving.ID, ToSlotID: ref(slots[1].ID)})
	assert.True(t, errors.Is(err, errs.ErrInvalidContainerState))

	e.assertYardConsistent(t)
}

func TestCompletionRechecksContainer(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	slots := e.fx.Yard("A", 2)
	c := e.fx.Container("ABCD1234567", mddomain.ContainerInYard)
	e.fx.Place(slots[0], c)

	task, err := e.svc.CreateTask(ctx, e.op, domain.CreateTaskRequest{
		Type: domain.TypeMove, ContainerID: c.ID, FromSlotID: ref(slots[0].ID), ToSlotID: ref(slots[1].ID),
	})
	require.NoError(t, err)

	// Another task moves the container away first.
	load, err := e.svc.CreateTask(ctx, e.op, domain.CreateTaskRequest{Type: domain.TypeLoad, ContainerID: c.ID, FromSlotID: ref(slots[0].ID)})
	require.NoError(t, err)
	_, err = e.svc.AdvanceTask(ctx, e.op, load.ID, domain.AdvanceTaskRequest{Status: domain.StatusCompleted})
	require.NoError(t, err)

	_, err = e.svc.AdvanceTask(ctx, e.op, task.ID, domain.AdvanceTaskRequest{Status: domain.StatusCompleted})
	assert.True(t, errors.Is(err, errs.ErrInvalidContainerState))
	assert.True(t, e.fx.Slot(slots[1].ID).Empty())
	e.assertYardConsistent(t)
}

func TestCompletionDetectsSlotDrift(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	slots := e.fx.Yard("A", 3)
	c := e.fx.Container("ABCD1234567", mddomain.ContainerInYard)
	e.fx.Place(slots[0], c)

	task, err := e.svc.CreateTask(ctx, e.op, domain.CreateTaskRequest{
		Type: domain.TypeMove, ContainerID: c.ID, FromSlotID: ref(slots[0].ID), ToSlotID: ref(slots[1].ID),
	})
	require.NoError(t, err)

	// Relocate the container outside the task engine.
	require.NoError(t, e.db.Model(&yarddomain.Slot{}).Where("id = ?", slots[0].ID).
		Updates(map[string]any{"current_container_id": nil, "status": yarddomain.SlotAvailable}).Error)
	require.NoError(t, e.db.Model(&yarddomain.Slot{}).Where("id = ?", slots[2].ID).
		Updates(map[string]any{"current_container_id": c.ID, "status": yarddomain.SlotOccupied}).Error)

	_, err = e.svc.AdvanceTask(ctx, e.op, task.ID, domain.AdvanceTaskRequest{Status: domain.StatusCompleted})
	assert.True(t, errors.Is(err, errs.ErrInconsistentState))
	assert.True(t, e.fx.Slot(slots[1].ID).Empty())
	assert.True(t, e.fx.Slot(slots[2].ID).Holds(c.ID))

	stored, err := e.svc.GetTask(ctx, e.op, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)
}

func TestCompletionChecksExecutor(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	slot := e.fx.Yard("A", 1)[0]
	c := e.fx.Container("ABCD1234567", mddomain.ContainerOnVessel)
	crane := e.fx.User("crane", authorization.PermUpdateTask)

	task, err := e.svc.CreateTask(ctx, e.op, domain.CreateTaskRequest{Type: domain.TypeGateIn, ContainerID: c.ID, ToSlotID: ref(slot.ID)})
	require.NoError(t, err)

	_, err = e.svc.AdvanceTask(ctx, e.op, task.ID, domain.AdvanceTaskRequest{Status: domain.StatusCompleted, ExecutorID: ref(12345)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrValidation))
	if fe, ok := errs.As(err); assert.True(t, ok) {
		assert.Equal(t, "executor_id", fe.Field)
	}
	assert.True(t, e.fx.Slot(slot.ID).Empty(), "rejected completion moves nothing")
	stored, err := e.svc.GetTask(ctx, e.op, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, stored.Status)

	done, err := e.svc.AdvanceTask(ctx, e.op, task.ID, domain.AdvanceTaskRequest{Status: domain.StatusCompleted, ExecutorID: ref(crane.ID)})
	require.NoError(t, err)
	require.NotNil(t, done.ActualExecutorID)
	assert.Equal(t, crane.ID, *done.ActualExecutorID)
	assert.True(t, e.fx.Slot(slot.ID).Holds(c.ID))
	e.assertYardConsistent(t)
}

func TestCreateTaskValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	slots := e.fx.Yard("A", 3)
	inYard := e.fx.Container("ABCD1234567", mddomain.ContainerInYard)
	other := e.fx.Container("WXYZ7654321", mddomain.ContainerInYard)
	onVessel := e.fx.Container("QWER1111111", mddomain.ContainerOnVessel)
	e.fx.Place(slots[0], inYard)
	e.fx.Place(slots[1], other)
	require.NoError(t, e.db.Model(&yarddomain.Slot{}).Where("id = ?", slots[2].ID).Update("status", yarddomain.SlotMaintenance).Error)
	free := e.fx.Yard("B", 1)[0]

	cases := []struct {
		name string
		req  domain.CreateTaskRequest
		want error
	}{
		{"move without to slot", domain.CreateTaskRequest{Type: domain.TypeMove, ContainerID: inYard.ID, FromSlotID: ref(slots[0].ID)}, errs.ErrValidation},
		{"move without from slot", domain.CreateTaskRequest{Type: domain.TypeMove, ContainerID: inYard.ID, ToSlotID: ref(free.ID)}, errs.ErrValidation},
		{"load with to slot", domain.CreateTaskRequest{Type: domain.TypeLoad, ContainerID: inYard.ID, FromSlotID: ref(slots[0].ID), ToSlotID: ref(free.ID)}, errs.ErrValidation},
		{"gate in without to slot", domain.CreateTaskRequest{Type: domain.TypeGateIn, ContainerID: onVessel.ID}, errs.ErrValidation},
		{"same from and to", domain.CreateTaskRequest{Type: domain.TypeMove, ContainerID: inYard.ID, FromSlotID: ref(slots[0].ID), ToSlotID: ref(slots[0].ID)}, errs.ErrValidation},
		{"unknown type", domain.CreateTaskRequest{Type: "Teleport", ContainerID: inYard.ID}, errs.ErrValidation},
		{"unknown container", domain.CreateTaskRequest{Type: domain.TypeGateIn, ContainerID: 99, ToSlotID: ref(free.ID)}, errs.ErrValidation},
		{"unknown slot", domain.CreateTaskRequest{Type: domain.TypeGateIn, ContainerID: onVessel.ID, ToSlotID: ref(98)}, errs.ErrValidation},
		{"from slot does not hold container", domain.CreateTaskRequest{Type: domain.TypeMove, ContainerID: inYard.ID, FromSlotID: ref(slots[1].ID), ToSlotID: ref(free.ID)}, errs.ErrValidation},
		{"to slot held by other", domain.CreateTaskRequest{Type: domain.TypeMove, ContainerID: inYard.ID, FromSlotID: ref(slots[0].ID), ToSlotID: ref(slots[1].ID)}, errs.ErrSlotOccupied},
		{"to slot in maintenance", domain.CreateTaskRequest{Type: domain.TypeMove, ContainerID: inYard.ID, FromSlotID: ref(slots[0].ID), ToSlotID: ref(slots[2].ID)}, errs.ErrValidation},
		{"load needs yard container", domain.CreateTaskRequest{Type: domain.TypeLoad, ContainerID: onVessel.ID, FromSlotID: ref(slots[0].ID)}, errs.ErrInvalidContainerState},
		{"unknown visit", domain.CreateTaskRequest{Type: domain.TypeGateIn, ContainerID: onVessel.ID, ToSlotID: ref(free.ID), VesselVisitID: ref(97)}, errs.ErrValidation},
		{"unknown assignee", domain.CreateTaskRequest{Type: domain.TypeGateIn, ContainerID: onVessel.ID, ToSlotID: ref(free.ID), AssignedUserID: ref(96)}, errs.ErrValidation},
		{"discharge of yard container without from slot", domain.CreateTaskRequest{Type: domain.TypeDischarge, ContainerID: inYard.ID, ToSlotID: ref(free.ID)}, errs.ErrValidation},
		{"gate in of yard container without from slot", domain.CreateTaskRequest{Type: domain.TypeGateIn, ContainerID: other.ID, ToSlotID: ref(free.ID)}, errs.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.svc.CreateTask(ctx, e.op, tc.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}

	var count int64
	require.NoError(t, e.db.Model(&domain.Task{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestListPendingOrdering(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	slots := e.fx.Yard("A", 4)

	next := 0
	create := func(number string, priority int) *domain.Task {
		c := e.fx.Container(number, mddomain.ContainerOnVessel)
		slot := slots[next]
		next++
		task, err := e.svc.CreateTask(ctx, e.op, domain.CreateTaskRequest{
			Type: domain.TypeGateIn, ContainerID: c.ID, ToSlotID: ref(slot.ID), Priority: &priority,
		})
		require.NoError(t, err)
		e.clock.Advance(time.Second)
		return task
	}

	low := create("AAAU0000001", 10)
	highOld := create("AAAU0000002", 500)
	highNew := create("AAAU0000003", 500)
	started := create("AAAU0000004", 900)
	_, err := e.svc.AdvanceTask(ctx, e.op, started.ID, domain.AdvanceTaskRequest{Status: domain.StatusInProgress})
	require.NoError(t, err)

	pending, err := e.svc.ListPending(ctx, testkit.Viewer(), domain.ListPendingRequest{})
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, highOld.ID, pending[0].ID)
	assert.Equal(t, highNew.ID, pending[1].ID)
	assert.Equal(t, low.ID, pending[2].ID)

	assigned, err := e.svc.AssignTask(ctx, e.op, low.ID, domain.AssignTaskRequest{AssigneeID: e.op.UserID})
	require.NoError(t, err)
	require.NotNil(t, assigned.AssignedUserID)

	mine, err := e.svc.ListPending(ctx, e.op, domain.ListPendingRequest{AssigneeID: ref(e.op.UserID)})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, low.ID, mine[0].ID)

	_, err = e.svc.ListPending(ctx, testkit.Guest(), domain.ListPendingRequest{})
	assert.True(t, errors.Is(err, errs.ErrPermissionDenied))
}

func TestListTasksCursor(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	slots := e.fx.Yard("A", 5)

	var created []snowflake.ID
	for i, number := range []string{"AAAU0000001", "AAAU0000002", "AAAU0000003", "AAAU0000004", "AAAU0000005"} {
		c := e.fx.Container(number, mddomain.ContainerOnVessel)
		task, err := e.svc.CreateTask(ctx, e.op, domain.CreateTaskRequest{Type: domain.TypeGateIn, ContainerID: c.ID, ToSlotID: ref(slots[i].ID)})
		require.NoError(t, err)
		created = append(created, task.ID)
		e.clock.Advance(time.Minute)
	}

	req := domain.ListTasksRequest{}
	req.PageSize = 2
	var seen []snowflake.ID
	for page := 0; page < 5; page++ {
		resp, err := e.svc.ListTasks(ctx, testkit.Viewer(), req)
		require.NoError(t, err)
		for _, task := range resp.Tasks {
			seen = append(seen, task.ID)
		}
		if !resp.HasMore {
			break
		}
		req.PageToken = resp.NextPageToken
	}

	require.Len(t, seen, 5)
	for i := range seen {
		assert.Equal(t, created[len(created)-1-i], seen[i], "newest first")
	}

	bad := domain.ListTasksRequest{}
	bad.PageToken = "%%%"
	_, err := e.svc.ListTasks(ctx, testkit.Viewer(), bad)
	assert.True(t, errors.Is(err, errs.ErrValidation))
}
