// Package testkit opens migrated in-memory databases and seeds yard fixtures
// for package tests.
package testkit

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/portyard/internal/authorization"
	"github.com/smallbiznis/portyard/internal/clock"
	"github.com/smallbiznis/portyard/internal/migration"
	"github.com/smallbiznis/portyard/internal/seed"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

// Epoch is the fixed start time of fake clocks handed out by the kit.
var Epoch = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

// OpenDB returns a migrated, private in-memory sqlite database with the
// permission catalog seeded. Writers are serialized on one connection.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", name, dbSeq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migration.Migrate(conn))
	require.NoError(t, seed.EnsurePermissions(conn, Node(t)))
	return conn
}

var (
	nodeOnce sync.Once
	node     *snowflake.Node
	nodeErr  error
)

// Node returns the id generator shared by every test so that fixtures and
// services never mint the same id.
func Node(t testing.TB) *snowflake.Node {
	t.Helper()
	nodeOnce.Do(func() { node, nodeErr = snowflake.NewNode(1) })
	require.NoError(t, nodeErr)
	return node
}

func Clock() *clock.FakeClock {
	return clock.NewFakeClock(Epoch)
}

// Gate returns an access gate backed by the in-memory casbin policy.
func Gate(t testing.TB) authorization.Gate {
	t.Helper()
	enforcer, err := authorization.NewMemoryEnforcer()
	require.NoError(t, err)
	return authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer})
}

// Role contexts for the four derived roles.
func Admin() authorization.RoleContext {
	return authorization.ResolveRole(authorization.Principal{Identifier: "admin"}, []string{authorization.PermAdmin})
}

func Operator(userID snowflake.ID) authorization.RoleContext {
	rc := authorization.ResolveRole(authorization.Principal{Identifier: "operator"}, []string{authorization.PermCreateTask, authorization.PermUpdateTask})
	rc.UserID = userID
	return rc
}

func Viewer() authorization.RoleContext {
	return authorization.ResolveRole(authorization.Principal{Identifier: "viewer"}, []string{authorization.PermViewInventory})
}

func Guest() authorization.RoleContext {
	return authorization.Guest()
}
