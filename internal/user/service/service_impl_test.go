package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/smallbiznis/portyard/internal/authorization"
	"github.com/smallbiznis/portyard/internal/errs"
	"github.com/smallbiznis/portyard/internal/migration"
	"github.com/smallbiznis/portyard/internal/testkit"
	"github.com/smallbiznis/portyard/internal/user/domain"
	"github.com/smallbiznis/portyard/internal/user/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingInvalidator struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, identifier string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, identifier)
}

func newService(t *testing.T) (domain.Service, *gorm.DB, *recordingInvalidator) {
	t.Helper()
	db := testkit.OpenDB(t)
	inv := &recordingInvalidator{}
	svc := service.New(service.Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       testkit.Node(t),
		Clock:       testkit.Clock(),
		Gate:        testkit.Gate(t),
		Invalidator: inv,
	})
	return svc, db, inv
}

func TestCreateUser(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	admin := testkit.Admin()

	view, err := svc.CreateUser(ctx, admin, domain.CreateUserRequest{
		Username:    "jdoe",
		Email:       " JDoe@Yard.Test ",
		Permissions: []string{"create_task", "VIEW_INVENTORY"},
	})
	require.NoError(t, err)
	assert.Equal(t, "jdoe@yard.test", view.Email)
	assert.True(t, view.IsActive)
	assert.Equal(t, []string{"CREATE_TASK", "VIEW_INVENTORY"}, view.Permissions)

	_, err = svc.CreateUser(ctx, admin, domain.CreateUserRequest{Username: "jdoe", Email: "other@yard.test"})
	assert.True(t, errors.Is(err, errs.ErrConstraintViolation))

	_, err = svc.CreateUser(ctx, admin, domain.CreateUserRequest{Username: "ghost", Email: "ghost@yard.test", Permissions: []string{"FLY"}})
	assert.True(t, errors.Is(err, errs.ErrValidation))

	_, err = svc.CreateUser(ctx, testkit.Operator(view.ID), domain.CreateUserRequest{Username: "x", Email: "x@yard.test"})
	assert.True(t, errors.Is(err, errs.ErrPermissionDenied))

	users, err := svc.ListUsers(ctx, admin, domain.ListUsersRequest{Query: "JDO"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, view.ID, users[0].ID)
}

func TestGrantAndRevoke(t *testing.T) {
	svc, _, inv := newService(t)
	ctx := context.Background()
	admin := testkit.Admin()

	user, err := svc.CreateUser(ctx, admin, domain.CreateUserRequest{Username: "jdoe", Email: "jdoe@yard.test"})
	require.NoError(t, err)
	assert.Empty(t, user.Permissions)

	granted, err := svc.Grant(ctx, admin, user.ID, "update_task")
	require.NoError(t, err)
	assert.Equal(t, []string{"UPDATE_TASK"}, granted.Permissions)

	granted, err = svc.Grant(ctx, admin, user.ID, "UPDATE_TASK")
	require.NoError(t, err, "granting twice is a no-op")
	assert.Equal(t, []string{"UPDATE_TASK"}, granted.Permissions)

	revoked, err := svc.Revoke(ctx, admin, user.ID, "UPDATE_TASK")
	require.NoError(t, err)
	assert.Empty(t, revoked.Permissions)

	assert.Equal(t, []string{"jdoe", "jdoe@yard.test", "jdoe", "jdoe@yard.test", "jdoe", "jdoe@yard.test"}, inv.keys)

	_, err = svc.Grant(ctx, admin, user.ID, "NOPE")
	assert.True(t, errors.Is(err, errs.ErrValidation))
	_, err = svc.Grant(ctx, admin, 31337, authorization.PermAdmin)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	_, err = svc.Grant(ctx, testkit.Viewer(), user.ID, authorization.PermAdmin)
	assert.True(t, errors.Is(err, errs.ErrPermissionDenied))
}

func TestListPermissions(t *testing.T) {
	svc, _, _ := newService(t)
	perms, err := svc.ListPermissions(context.Background(), testkit.Viewer())
	require.NoError(t, err)
	assert.Len(t, perms, len(authorization.Catalog))
}

func TestPermissionReader(t *testing.T) {
	db := testkit.OpenDB(t)
	fx := testkit.NewFixtures(t, db)
	ctx := context.Background()
	reader := service.NewPermissionReader(db, zap.NewNop())

	u := fx.User("jdoe", authorization.PermViewInventory, authorization.PermCreateTask)

	set, err := reader.PermissionsFor(ctx, "jdoe")
	require.NoError(t, err)
	assert.True(t, set.Found)
	assert.Equal(t, u.ID, set.UserID)
	assert.Equal(t, authorization.TierView, set.Tier)
	assert.Equal(t, []string{"CREATE_TASK", "VIEW_INVENTORY"}, set.Names)

	byEmail, err := reader.PermissionsFor(ctx, "JDOE@yard.test")
	require.NoError(t, err)
	assert.True(t, byEmail.Found)

	missing, err := reader.PermissionsFor(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, missing.Found)

	require.NoError(t, migration.DropViews(db))
	fallback, err := reader.PermissionsFor(ctx, "jdoe")
	require.NoError(t, err)
	assert.Equal(t, authorization.TierTable, fallback.Tier)
	assert.Equal(t, set.Names, fallback.Names)

	require.NoError(t, db.Model(&domain.User{}).Where("id = ?", u.ID).Update("is_active", false).Error)
	inactive, err := reader.PermissionsFor(ctx, "jdoe")
	require.NoError(t, err)
	assert.False(t, inactive.Found, "inactive users resolve as unknown")
}

func TestResolverWithReader(t *testing.T) {
	db := testkit.OpenDB(t)
	fx := testkit.NewFixtures(t, db)
	ctx := context.Background()

	fx.User("clerk", authorization.PermViewInventory)
	fx.User("crane", authorization.PermUpdateTask)
	resolver := authorization.NewResolver(authorization.ResolverParams{
		Log:    zap.NewNop(),
		Source: service.NewPermissionReader(db, zap.NewNop()),
	})

	assert.Equal(t, authorization.RoleViewer, resolver.Resolve(ctx, authorization.Principal{Identifier: "clerk"}).Role)
	assert.Equal(t, authorization.RoleOperator, resolver.Resolve(ctx, authorization.Principal{Identifier: "crane"}).Role)
	assert.Equal(t, authorization.RoleGuest, resolver.Resolve(ctx, authorization.Principal{Identifier: "stranger"}).Role)
	assert.Equal(t, authorization.RoleGuest, resolver.Resolve(ctx, authorization.Principal{Identifier: "stranger", Elevated: true}).Role)
	assert.Equal(t, authorization.RoleAdmin, resolver.Resolve(ctx, authorization.Principal{Identifier: "clerk", Elevated: true}).Role)
}
