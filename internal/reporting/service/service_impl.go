package service

import (
	"context"
	"math"
	"sort"

	"github.com/smallbiznis/portyard/internal/authorization"
	"github.com/smallbiznis/portyard/internal/cache"
	"github.com/smallbiznis/portyard/internal/clock"
	"github.com/smallbiznis/portyard/internal/config"
	mddomain "github.com/smallbiznis/portyard/internal/masterdata/domain"
	"github.com/smallbiznis/portyard/internal/observability/logger"
	"github.com/smallbiznis/portyard/internal/observability/metrics"
	"github.com/smallbiznis/portyard/internal/reporting/domain"
	taskdomain "github.com/smallbiznis/portyard/internal/task/domain"
	vesseldomain "github.com/smallbiznis/portyard/internal/vessel/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	recentVisitLimit    = 6
	guestContainerLimit = 5
)

// Report names, used in cache keys and as the fallback metric label.
const (
	reportContainerStatus = "container_status"
	reportTaskStatus      = "task_status"
	reportYardUtilization = "yard_utilization"
	reportVisitStatus     = "visit_status"
	reportRecentVisits    = "recent_visits"
	reportMyPending       = "my_pending_tasks"
	reportKPICounts       = "kpi_counts"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Gate    authorization.Gate
	Store   cache.Store          `optional:"true"`
	Policy  *config.PolicyHolder `optional:"true"`
	Metrics *metrics.Metrics     `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	gate    authorization.Gate
	store   cache.Store
	policy  *config.PolicyHolder
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	store := p.Store
	if store == nil {
		store = cache.NewMemoryStore()
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("reporting.service"),
		clock:   p.Clock,
		gate:    p.Gate,
		store:   store,
		policy:  p.Policy,
		metrics: p.Metrics,
	}
}

// Dashboard assembles the sections the caller's role may see.
func (s *Service) Dashboard(ctx context.Context, rc authorization.RoleContext) (*domain.Dashboard, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindDashboard, authorization.OpRead); err != nil {
		return nil, err
	}
	role := rc.Role
	if role == "" {
		role = authorization.RoleGuest
	}
	out := &domain.Dashboard{Role: role, GeneratedAt: s.clock.Now()}

	var err error
	switch role {
	case authorization.RoleAdmin, authorization.RoleViewer:
		if out.ContainerStatus, err = s.containerStatus(ctx); err != nil {
			return nil, err
		}
		if out.TaskStatus, err = s.taskStatus(ctx); err != nil {
			return nil, err
		}
		if out.YardUtilization, err = s.yardUtilization(ctx); err != nil {
			return nil, err
		}
		if out.VisitStatus, err = s.visitStatus(ctx); err != nil {
			return nil, err
		}

	case authorization.RoleOperator:
		pending, completed, err := s.operatorCounts(ctx, rc)
		if err != nil {
			return nil, err
		}
		out.MyPendingTasks = &pending
		out.MyCompletedTasks = &completed

	default:
		if out.YardUtilization, err = s.yardUtilization(ctx); err != nil {
			return nil, err
		}
		statuses, err := s.containerStatus(ctx)
		if err != nil {
			return nil, err
		}
		out.ContainerStatus = topStatuses(statuses, guestContainerLimit)
		if out.TaskStatus, err = s.taskStatus(ctx); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Service) KPIs(ctx context.Context, rc authorization.RoleContext) (*domain.KPIs, error) {
	if err := s.gate.Require(ctx, rc, authorization.KindKPI, authorization.OpRead); err != nil {
		return nil, err
	}

	counts, err := cached(ctx, s, cache.Key("report", reportKPICounts), func() (domain.KPIs, error) {
		var k domain.KPIs
		conn := s.db.WithContext(ctx)
		steps := []struct {
			model any
			where string
			args  []any
			dst   *int64
		}{
			{&mddomain.Container{}, "", nil, &k.TotalContainers},
			{&mddomain.Container{}, "current_status = ?", []any{mddomain.ContainerInYard}, &k.ContainersInYard},
			{&taskdomain.Task{}, "", nil, &k.TotalTasks},
			{&taskdomain.Task{}, "status = ?", []any{taskdomain.StatusPending}, &k.PendingTasks},
			{&vesseldomain.VesselVisit{}, "", nil, &k.TotalVisits},
			{&vesseldomain.VesselVisit{}, "status = ?", []any{vesseldomain.VisitAtBerth}, &k.VisitsAtBerth},
		}
		for _, step := range steps {
			stmt := conn.Model(step.model)
			if step.where != "" {
				stmt = stmt.Where(step.where, step.args...)
			}
			if err := stmt.Count(step.dst).Error; err != nil {
				return k, err
			}
		}
		return k, nil
	})
	if err != nil {
		return nil, err
	}

	visits, err := s.recentVisits(ctx)
	if err != nil {
		return nil, err
	}
	counts.RecentVisits = visits
	counts.GeneratedAt = s.clock.Now()
	return &counts, nil
}

func (s *Service) containerStatus(ctx context.Context) ([]domain.StatusCount, error) {
	return cached(ctx, s, cache.Key("report", reportContainerStatus), func() ([]domain.StatusCount, error) {
		rows := []domain.StatusCount{}
		err := s.twoTier(ctx, reportContainerStatus, &rows,
			`SELECT status, total FROM view_container_status_summary ORDER BY status`,
			`SELECT current_status AS status, COUNT(*) AS total FROM containers GROUP BY current_status ORDER BY current_status`,
		)
		return rows, err
	})
}

func (s *Service) taskStatus(ctx context.Context) ([]domain.StatusCount, error) {
	return cached(ctx, s, cache.Key("report", reportTaskStatus), func() ([]domain.StatusCount, error) {
		rows := []domain.StatusCount{}
		err := s.twoTier(ctx, reportTaskStatus, &rows,
			`SELECT status, COUNT(*) AS total FROM view_task_details GROUP BY status ORDER BY status`,
			`SELECT status, COUNT(*) AS total FROM tasks GROUP BY status ORDER BY status`,
		)
		return rows, err
	})
}

func (s *Service) visitStatus(ctx context.Context) ([]domain.StatusCount, error) {
	return cached(ctx, s, cache.Key("report", reportVisitStatus), func() ([]domain.StatusCount, error) {
		rows := []domain.StatusCount{}
		err := s.twoTier(ctx, reportVisitStatus, &rows,
			`SELECT status, COUNT(*) AS total FROM view_vessel_visit_details GROUP BY status ORDER BY status`,
			`SELECT status, COUNT(*) AS total FROM vessel_visits GROUP BY status ORDER BY status`,
		)
		return rows, err
	})
}

func (s *Service) yardUtilization(ctx context.Context) ([]domain.BlockUtilization, error) {
	return cached(ctx, s, cache.Key("report", reportYardUtilization), func() ([]domain.BlockUtilization, error) {
		rows := []domain.BlockUtilization{}
		err := s.twoTier(ctx, reportYardUtilization, &rows,
			`SELECT block_id, block_name, total_slots, occupied_slots, available_slots, reserved_slots, maintenance_slots
			 FROM view_yard_utilization ORDER BY block_name`,
			`SELECT b.id AS block_id, b.name AS block_name,
				COUNT(s.id) AS total_slots,
				SUM(CASE WHEN s.status = 'Occupied' THEN 1 ELSE 0 END) AS occupied_slots,
				SUM(CASE WHEN s.status = 'Available' THEN 1 ELSE 0 END) AS available_slots,
				SUM(CASE WHEN s.status = 'Reserved' THEN 1 ELSE 0 END) AS reserved_slots,
				SUM(CASE WHEN s.status = 'Maintenance' THEN 1 ELSE 0 END) AS maintenance_slots
			 FROM yard_blocks b
			 LEFT JOIN yard_stacks st ON st.block_id = b.id
			 LEFT JOIN yard_slots s ON s.stack_id = st.id
			 GROUP BY b.id, b.name
			 ORDER BY b.name`,
		)
		for i := range rows {
			rows[i].Utilization = percent(rows[i].OccupiedSlots, rows[i].TotalSlots)
		}
		return rows, err
	})
}

// recentVisits lists the latest visits by arrival. Visits without an ATA
// sort last.
func (s *Service) recentVisits(ctx context.Context) ([]domain.RecentVisit, error) {
	return cached(ctx, s, cache.Key("report", reportRecentVisits), func() ([]domain.RecentVisit, error) {
		rows := []domain.RecentVisit{}
		err := s.twoTier(ctx, reportRecentVisits, &rows,
			`SELECT visit_id, vessel_name, imo_number, port_code, berth_name, ata, status
			 FROM view_vessel_visit_details
			 ORDER BY CASE WHEN ata IS NULL THEN 1 ELSE 0 END, ata DESC, visit_id DESC
			 LIMIT ?`,
			`SELECT vv.id AS visit_id, v.name AS vessel_name, v.imo_number, p.code AS port_code,
				b.name AS berth_name, vv.ata, vv.status
			 FROM vessel_visits vv
			 JOIN vessels v ON v.id = vv.vessel_id
			 JOIN ports p ON p.id = vv.port_id
			 LEFT JOIN berths b ON b.id = vv.berth_id
			 ORDER BY CASE WHEN vv.ata IS NULL THEN 1 ELSE 0 END, vv.ata DESC, vv.id DESC
			 LIMIT ?`,
			recentVisitLimit,
		)
		return rows, err
	})
}

// operatorCounts returns tasks assigned to and still pending for the
// caller, and tasks the caller completed.
func (s *Service) operatorCounts(ctx context.Context, rc authorization.RoleContext) (int64, int64, error) {
	if rc.UserID == 0 {
		return 0, 0, nil
	}
	pending, err := cached(ctx, s, cache.Key("report", reportMyPending, rc.UserID.String()), func() (int64, error) {
		var n int64
		err := s.twoTier(ctx, reportMyPending, &n,
			`SELECT COUNT(*) FROM view_pending_tasks WHERE assigned_user_id = ?`,
			`SELECT COUNT(*) FROM tasks WHERE status = 'Pending' AND assigned_user_id = ?`,
			rc.UserID,
		)
		return n, err
	})
	if err != nil {
		return 0, 0, err
	}

	var completed int64
	err = s.db.WithContext(ctx).Model(&taskdomain.Task{}).
		Where("status = ? AND actual_executor_id = ?", taskdomain.StatusCompleted, rc.UserID).
		Count(&completed).Error
	if err != nil {
		return 0, 0, err
	}
	return pending, completed, nil
}

// twoTier runs the view query and falls back to the table query when the view
// cannot be read.
func (s *Service) twoTier(ctx context.Context, report string, dst any, viewSQL, tableSQL string, args ...any) error {
	conn := s.db.WithContext(ctx)
	err := conn.Raw(viewSQL, args...).Scan(dst).Error
	if err == nil {
		return nil
	}
	logger.WithContext(ctx, s.log).Warn("report view unavailable, reading tables",
		zap.String("report", report),
		zap.Error(err),
	)
	s.metrics.RecordReportFallback(ctx, report)
	return conn.Raw(tableSQL, args...).Scan(dst).Error
}

func cached[T any](ctx context.Context, s *Service, key string, load func() (T, error)) (T, error) {
	var out T
	ok, err := s.store.GetJSON(ctx, key, &out)
	if err != nil {
		s.log.Warn("report cache read failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		return out, nil
	}

	out, err = load()
	if err != nil {
		return out, err
	}
	if err := s.store.SetJSON(ctx, key, out, s.policy.Get().ReportCacheTTL); err != nil {
		s.log.Warn("report cache write failed", zap.String("key", key), zap.Error(err))
	}
	return out, nil
}

func topStatuses(rows []domain.StatusCount, n int) []domain.StatusCount {
	out := append([]domain.StatusCount(nil), rows...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func percent(part, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)*1000/float64(total)) / 10
}
