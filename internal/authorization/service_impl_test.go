package authorization

import (
	"context"
	"errors"
	"testing"

	"github.com/casbin/casbin/v2"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/portyard/internal/audit/domain"
	"github.com/smallbiznis/portyard/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type mockAudit struct {
	mock.Mock
}

func (m *mockAudit) Record(ctx context.Context, entry auditdomain.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *mockAudit) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(auditdomain.ListAuditLogResponse), args.Error(1)
}

func newGate(t *testing.T, audit auditdomain.Service) Gate {
	t.Helper()
	enforcer, err := NewMemoryEnforcer()
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer, AuditSvc: audit})
}

func TestAuthorizeMatrix(t *testing.T) {
	gate := newGate(t, nil)

	cases := []struct {
		role Role
		kind string
		op   string
		want bool
	}{
		{RoleAdmin, KindContainer, OpDelete, true},
		{RoleAdmin, KindUser, OpUpdate, true},
		{RoleViewer, KindTask, OpRead, true},
		{RoleViewer, KindTask, OpCreate, false},
		{RoleViewer, KindSearch, OpRead, true},
		{RoleOperator, KindTask, OpCreate, true},
		{RoleOperator, KindTask, OpUpdate, true},
		{RoleOperator, KindVesselVisit, OpUpdate, true},
		{RoleOperator, KindBooking, OpCreate, true},
		{RoleOperator, KindContainer, OpRead, true},
		{RoleOperator, KindContainer, OpCreate, false},
		{RoleOperator, KindTask, OpDelete, false},
		{RoleGuest, KindDashboard, OpRead, true},
		{RoleGuest, KindTask, OpRead, false},
		{RoleGuest, KindSearch, OpRead, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, gate.Authorize(c.role, c.kind, c.op), "%s %s:%s", c.role, c.kind, c.op)
	}
	assert.False(t, gate.Authorize("", KindTask, OpRead))
}

func TestRequireAuditsDenial(t *testing.T) {
	audit := &mockAudit{}
	audit.On("Record", mock.Anything, mock.MatchedBy(func(e auditdomain.Entry) bool {
		return e.ActorID == nil &&
			e.Role == string(RoleViewer) &&
			e.Action == "authorization.denied" &&
			e.TargetType == KindTask &&
			e.Metadata["operation"] == OpCreate
	})).Return(nil).Once()
	gate := newGate(t, audit)

	err := gate.Require(context.Background(), RoleContext{Role: RoleViewer, Identifier: "v"}, KindTask, OpCreate)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrPermissionDenied))
	e, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, KindTask, e.Entity)
	assert.Equal(t, OpCreate, e.Op)
	audit.AssertExpectations(t)

	require.NoError(t, gate.Require(context.Background(), RoleContext{Role: RoleOperator}, KindTask, OpCreate))
	audit.AssertNumberOfCalls(t, "Record", 1)
}

func TestRequireTreatsEmptyRoleAsGuest(t *testing.T) {
	gate := newGate(t, nil)
	assert.NoError(t, gate.Require(context.Background(), RoleContext{}, KindDashboard, OpRead))
	assert.ErrorIs(t, gate.Require(context.Background(), RoleContext{}, KindTask, OpRead), errs.ErrPermissionDenied)
}

func TestNewEnforcerPersistsPolicies(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	first, err := NewEnforcer(db)
	require.NoError(t, err)
	ok, err := first.Enforce("role:operator", KindTask, OpCreate)
	require.NoError(t, err)
	assert.True(t, ok)

	// A second boot reads the same rows and must not duplicate them.
	second, err := NewEnforcer(db)
	require.NoError(t, err)
	assert.Equal(t, countPolicies(t, first), countPolicies(t, second))
}

func countPolicies(t *testing.T, e *casbin.SyncedEnforcer) int {
	t.Helper()
	policies, err := e.GetPolicy()
	require.NoError(t, err)
	return len(policies)
}
