package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/portyard/internal/audit/domain"
	bookingdomain "github.com/smallbiznis/portyard/internal/booking/domain"
	mddomain "github.com/smallbiznis/portyard/internal/masterdata/domain"
	taskdomain "github.com/smallbiznis/portyard/internal/task/domain"
	userdomain "github.com/smallbiznis/portyard/internal/user/domain"
	vesseldomain "github.com/smallbiznis/portyard/internal/vessel/domain"
	yarddomain "github.com/smallbiznis/portyard/internal/yard/domain"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

const migrationsDir = "migrations"

// Models lists every persisted entity in dependency order.
func Models() []any {
	return []any{
		&mddomain.Party{},
		&mddomain.Port{},
		&mddomain.Berth{},
		&mddomain.ContainerType{},
		&mddomain.Container{},
		&mddomain.Vessel{},
		&yarddomain.Block{},
		&yarddomain.Stack{},
		&yarddomain.Slot{},
		&vesseldomain.VesselVisit{},
		&bookingdomain.Booking{},
		&userdomain.User{},
		&userdomain.Permission{},
		&userdomain.UserPermission{},
		&taskdomain.Task{},
		&auditdomain.AuditLog{},
	}
}

// Migrate brings the schema up to date and is safe to rerun. Postgres uses
// the versioned SQL migrations; other dialects are auto-migrated from the
// models with the reporting views dropped and recreated around it.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}

	if conn.Dialector.Name() == "postgres" {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := RunMigrations(sqlDB); err != nil {
			return err
		}
	} else {
		// sqlite rebuilds altered tables, which fails while a view still
		// names them.
		if err := DropViews(conn); err != nil {
			return fmt.Errorf("drop views: %w", err)
		}
		if err := conn.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
	}
	return CreateViews(conn)
}

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}
