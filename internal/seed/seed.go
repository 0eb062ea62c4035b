package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/portyard/internal/authorization"
	"github.com/smallbiznis/portyard/internal/config"
	userdomain "github.com/smallbiznis/portyard/internal/user/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Bootstrap seeds the permission catalog and, when configured, the initial
// superuser.
func Bootstrap(db *gorm.DB, node *snowflake.Node, cfg config.BootstrapConfig, log *zap.Logger) error {
	if err := EnsurePermissions(db, node); err != nil {
		return err
	}
	if cfg.AdminUsername == "" || cfg.AdminEmail == "" {
		return nil
	}
	user, err := EnsureAdmin(db, node, cfg.AdminUsername, cfg.AdminEmail)
	if err != nil {
		return err
	}
	if log != nil {
		log.Info("bootstrap admin ensured", zap.String("username", user.Username))
	}
	return nil
}

// EnsurePermissions upserts every catalog permission by name.
func EnsurePermissions(db *gorm.DB, node *snowflake.Node) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	node, err := nodeOrDefault(node)
	if err != nil {
		return err
	}

	ctx := context.Background()
	now := time.Now().UTC()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, entry := range authorization.Catalog {
			perm := userdomain.Permission{
				ID:          node.Generate(),
				Name:        entry.Name,
				Description: entry.Description,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"description", "updated_at"}),
			}).Create(&perm).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// EnsureAdmin creates an active superuser if no user has the username yet.
// Identity is external, so no credential is stored.
func EnsureAdmin(db *gorm.DB, node *snowflake.Node, username, email string) (*userdomain.User, error) {
	if db == nil {
		return nil, errors.New("seed database handle is required")
	}
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" {
		return nil, errors.New("bootstrap admin username and email are required")
	}
	node, err := nodeOrDefault(node)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	var user userdomain.User
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("username = ?", username).First(&user).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now().UTC()
		user = userdomain.User{
			ID:          node.Generate(),
			Username:    username,
			Email:       email,
			FullName:    "Yard Administrator",
			IsActive:    true,
			IsSuperuser: true,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		var admin userdomain.Permission
		if err := tx.Where("name = ?", authorization.PermAdmin).First(&admin).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&userdomain.UserPermission{
			UserID:       user.ID,
			PermissionID: admin.ID,
			CreatedAt:    now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func nodeOrDefault(node *snowflake.Node) (*snowflake.Node, error) {
	if node != nil {
		return node, nil
	}
	return snowflake.NewNode(1)
}
