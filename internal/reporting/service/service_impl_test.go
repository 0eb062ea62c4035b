package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/portyard/internal/authorization"
	"github.com/smallbiznis/portyard/internal/cache"
	"github.com/smallbiznis/portyard/internal/errs"
	mddomain "github.com/smallbiznis/portyard/internal/masterdata/domain"
	"github.com/smallbiznis/portyard/internal/migration"
	"github.com/smallbiznis/portyard/internal/reporting/domain"
	"github.com/smallbiznis/portyard/internal/reporting/service"
	taskdomain "github.com/smallbiznis/portyard/internal/task/domain"
	"github.com/smallbiznis/portyard/internal/testkit"
	vesseldomain "github.com/smallbiznis/portyard/internal/vessel/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newService(t *testing.T, db *gorm.DB, store cache.Store) domain.Service {
	t.Helper()
	return service.New(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		Clock: testkit.Clock(),
		Gate:  testkit.Gate(t),
		Store: store,
	})
}

// seedYard builds two blocks: A with 4 slots and one container, B with 3
// slots and one container. A third container is still on the vessel.
func seedYard(t *testing.T, fx *testkit.Fixtures) {
	t.Helper()
	a := fx.Yard("A", 4)
	b := fx.Yard("B", 3)
	fx.Place(a[0], fx.Container("ABCD1234567", mddomain.ContainerOnVessel))
	fx.Place(b[0], fx.Container("WXYZ7654321", mddomain.ContainerOnVessel))
	fx.Container("QWER1111111", mddomain.ContainerOnVessel)
}

func addTask(t *testing.T, db *gorm.DB, fx *testkit.Fixtures, container snowflake.ID, status taskdomain.Status, assigned, executor *snowflake.ID) {
	t.Helper()
	now := testkit.Epoch
	task := &taskdomain.Task{
		ID:               fx.Node().Generate(),
		Type:             taskdomain.TypeMove,
		Status:           status,
		ContainerID:      container,
		AssignedUserID:   assigned,
		ActualExecutorID: executor,
		Priority:         100,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, db.Create(task).Error)
}

func statusMap(rows []domain.StatusCount) map[string]int64 {
	out := map[string]int64{}
	for _, r := range rows {
		out[r.Status] = r.Total
	}
	return out
}

func TestDashboardByRole(t *testing.T) {
	db := testkit.OpenDB(t)
	fx := testkit.NewFixtures(t, db)
	seedYard(t, fx)
	ctx := context.Background()

	crane := fx.User("crane", authorization.PermCreateTask, authorization.PermUpdateTask)
	other := fx.User("other", authorization.PermCreateTask)
	c := fx.Container("ZZZZ0000001", mddomain.ContainerOnVessel)
	addTask(t, db, fx, c.ID, taskdomain.StatusPending, &crane.ID, nil)
	addTask(t, db, fx, c.ID, taskdomain.StatusPending, &crane.ID, nil)
	addTask(t, db, fx, c.ID, taskdomain.StatusPending, &other.ID, nil)
	addTask(t, db, fx, c.ID, taskdomain.StatusCompleted, &crane.ID, &crane.ID)

	svc := newService(t, db, cache.NewMemoryStore())

	t.Run("admin", func(t *testing.T) {
		dash, err := svc.Dashboard(ctx, testkit.Admin())
		require.NoError(t, err)
		assert.Equal(t, authorization.RoleAdmin, dash.Role)
		assert.Equal(t, map[string]int64{"InYard": 2, "OnVessel": 2}, statusMap(dash.ContainerStatus))
		assert.Equal(t, map[string]int64{"Pending": 3, "Completed": 1}, statusMap(dash.TaskStatus))
		require.Len(t, dash.YardUtilization, 2)
		assert.Equal(t, "A", dash.YardUtilization[0].BlockName)
		assert.EqualValues(t, 4, dash.YardUtilization[0].TotalSlots)
		assert.EqualValues(t, 1, dash.YardUtilization[0].OccupiedSlots)
		assert.EqualValues(t, 3, dash.YardUtilization[0].AvailableSlots)
		assert.Equal(t, 25.0, dash.YardUtilization[0].Utilization)
		assert.Equal(t, 33.3, dash.YardUtilization[1].Utilization)
		assert.Nil(t, dash.MyPendingTasks)
	})

	t.Run("operator", func(t *testing.T) {
		dash, err := svc.Dashboard(ctx, testkit.Operator(crane.ID))
		require.NoError(t, err)
		require.NotNil(t, dash.MyPendingTasks)
		require.NotNil(t, dash.MyCompletedTasks)
		assert.EqualValues(t, 2, *dash.MyPendingTasks)
		assert.EqualValues(t, 1, *dash.MyCompletedTasks)
		assert.Empty(t, dash.ContainerStatus)
		assert.Empty(t, dash.YardUtilization)
	})

	t.Run("guest", func(t *testing.T) {
		dash, err := svc.Dashboard(ctx, testkit.Guest())
		require.NoError(t, err)
		assert.Equal(t, authorization.RoleGuest, dash.Role)
		assert.Len(t, dash.YardUtilization, 2)
		require.NotEmpty(t, dash.ContainerStatus)
		assert.LessOrEqual(t, len(dash.ContainerStatus), 5)
		assert.NotEmpty(t, dash.TaskStatus)
		assert.Empty(t, dash.VisitStatus)
	})
}

func TestKPIs(t *testing.T) {
	db := testkit.OpenDB(t)
	fx := testkit.NewFixtures(t, db)
	seedYard(t, fx)
	ctx := context.Background()

	port := fx.Port("NLRTM")
	berth := fx.Berth(port, "Quay 1")
	vessel := fx.Vessel("9321483", "Ever Given")

	var newest snowflake.ID
	for i := 0; i < 7; i++ {
		v := fx.Visit(vessel, port)
		ata := testkit.Epoch.Add(time.Duration(i) * time.Hour)
		require.NoError(t, db.Model(&vesseldomain.VesselVisit{}).Where("id = ?", v.ID).Updates(map[string]any{
			"ata":      ata,
			"berth_id": berth.ID,
			"status":   vesseldomain.VisitAtBerth,
		}).Error)
		newest = v.ID
	}
	fx.Visit(vessel, port)

	svc := newService(t, db, cache.NewMemoryStore())

	_, err := svc.KPIs(ctx, testkit.Guest())
	assert.True(t, errors.Is(err, errs.ErrPermissionDenied))

	kpis, err := svc.KPIs(ctx, testkit.Viewer())
	require.NoError(t, err)
	assert.EqualValues(t, 3, kpis.TotalContainers)
	assert.EqualValues(t, 2, kpis.ContainersInYard)
	assert.EqualValues(t, 8, kpis.TotalVisits)
	assert.EqualValues(t, 7, kpis.VisitsAtBerth)
	require.Len(t, kpis.RecentVisits, 6)
	assert.Equal(t, newest, kpis.RecentVisits[0].VisitID)
	assert.Equal(t, "NLRTM", kpis.RecentVisits[0].PortCode)
	require.NotNil(t, kpis.RecentVisits[0].BerthName)
	assert.Equal(t, "Quay 1", *kpis.RecentVisits[0].BerthName)
	for _, v := range kpis.RecentVisits {
		assert.NotNil(t, v.ATA, "visits without arrival sort last")
	}
}

func TestKPISheet(t *testing.T) {
	db := testkit.OpenDB(t)
	fx := testkit.NewFixtures(t, db)
	seedYard(t, fx)
	fx.Visit(fx.Vessel("9321483", "Ever Given"), fx.Port("NLRTM"))
	svc := newService(t, db, cache.NewMemoryStore())
	ctx := context.Background()

	_, err := svc.KPISheet(ctx, testkit.Guest())
	assert.True(t, errors.Is(err, errs.ErrPermissionDenied))

	pdf, err := svc.KPISheet(ctx, testkit.Viewer())
	require.NoError(t, err)
	require.Greater(t, len(pdf), 4)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestReportsFallBackToTables(t *testing.T) {
	db := testkit.OpenDB(t)
	fx := testkit.NewFixtures(t, db)
	seedYard(t, fx)
	ctx := context.Background()

	before, err := newService(t, db, cache.NewMemoryStore()).Dashboard(ctx, testkit.Admin())
	require.NoError(t, err)

	require.NoError(t, migration.DropViews(db))

	after, err := newService(t, db, cache.NewMemoryStore()).Dashboard(ctx, testkit.Admin())
	require.NoError(t, err)
	assert.Equal(t, statusMap(before.ContainerStatus), statusMap(after.ContainerStatus))
	assert.Equal(t, before.YardUtilization, after.YardUtilization)
	assert.Equal(t, statusMap(before.TaskStatus), statusMap(after.TaskStatus))
}

func TestReportsAreCached(t *testing.T) {
	db := testkit.OpenDB(t)
	fx := testkit.NewFixtures(t, db)
	seedYard(t, fx)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := newService(t, db, cache.NewRedisStore(client))

	first, err := svc.Dashboard(ctx, testkit.Admin())
	require.NoError(t, err)
	assert.EqualValues(t, 1, statusMap(first.ContainerStatus)["OnVessel"])

	for i := 0; i < 3; i++ {
		fx.Container(fmt.Sprintf("NEWU%07d", i), mddomain.ContainerOnVessel)
	}

	cached, err := svc.Dashboard(ctx, testkit.Admin())
	require.NoError(t, err)
	assert.Equal(t, statusMap(first.ContainerStatus), statusMap(cached.ContainerStatus))

	mr.FastForward(31 * time.Second)

	fresh, err := svc.Dashboard(ctx, testkit.Admin())
	require.NoError(t, err)
	assert.EqualValues(t, 4, statusMap(fresh.ContainerStatus)["OnVessel"])
}

func TestDashboardRequiresDashboardRead(t *testing.T) {
	db := testkit.OpenDB(t)
	svc := newService(t, db, cache.NewMemoryStore())

	rc := authorization.RoleContext{Role: "auditor"}
	_, err := svc.Dashboard(context.Background(), rc)
	assert.True(t, errors.Is(err, errs.ErrPermissionDenied))
}
