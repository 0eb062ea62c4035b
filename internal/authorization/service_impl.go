package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/portyard/internal/audit/domain"
	"github.com/smallbiznis/portyard/internal/errs"
	"github.com/smallbiznis/portyard/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
	Metrics  *metrics.Metrics    `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
	metrics  *metrics.Metrics
}

// NewEnforcer loads role policies from the casbin_rule table and seeds the
// built-in role grants.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

// NewMemoryEnforcer builds an enforcer without persistence.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Gate {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

func (s *ServiceImpl) Authorize(role Role, kind, op string) bool {
	kind = strings.TrimSpace(kind)
	op = strings.TrimSpace(op)
	if role == "" || kind == "" || op == "" {
		return false
	}
	allowed, err := s.enforcer.Enforce(subject(role), kind, op)
	if err != nil {
		s.log.Error("policy evaluation failed",
			zap.String("role", string(role)),
			zap.String("entity_kind", kind),
			zap.String("operation", op),
			zap.Error(err),
		)
		return false
	}
	return allowed
}

func (s *ServiceImpl) Require(ctx context.Context, rc RoleContext, kind, op string) error {
	role := rc.Role
	if role == "" {
		role = RoleGuest
	}
	if s.Authorize(role, kind, op) {
		return nil
	}

	s.log.Info("permission denied",
		zap.String("role", string(role)),
		zap.String("identifier", rc.Identifier),
		zap.String("entity_kind", kind),
		zap.String("operation", op),
	)
	s.metrics.RecordPermissionDenied(ctx, string(role), kind, op)
	s.auditDenied(ctx, rc, kind, op)
	return errs.PermissionDenied(string(role), kind, op)
}

func (s *ServiceImpl) auditDenied(ctx context.Context, rc RoleContext, kind, op string) {
	if s.auditSvc == nil {
		return
	}
	role := rc.Role
	if role == "" {
		role = RoleGuest
	}
	_ = s.auditSvc.Record(ctx, auditdomain.Entry{
		ActorID:    rc.ActorID(),
		Role:       string(role),
		Action:     "authorization.denied",
		TargetType: kind,
		Metadata: map[string]any{
			"operation":  op,
			"identifier": rc.Identifier,
		},
	})
}

func subject(role Role) string {
	return "role:" + strings.ToLower(string(role))
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{subject(RoleAdmin), "*", "*"},
		{subject(RoleViewer), "*", OpRead},

		{subject(RoleOperator), KindTask, OpCreate},
		{subject(RoleOperator), KindTask, OpUpdate},
		{subject(RoleOperator), KindVesselVisit, OpCreate},
		{subject(RoleOperator), KindVesselVisit, OpUpdate},
		{subject(RoleOperator), KindBooking, OpCreate},
		{subject(RoleOperator), KindBooking, OpUpdate},

		{subject(RoleGuest), KindDashboard, OpRead},
	}
	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}

	if _, err := enforcer.AddGroupingPolicy(subject(RoleOperator), subject(RoleViewer)); err != nil {
		return err
	}
	return nil
}
