package migration

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/portyard/internal/config"
	"github.com/smallbiznis/portyard/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, node *snowflake.Node, log *zap.Logger) error {
		if !cfg.MigrateOnStart {
			log.Info("schema migration skipped")
			return nil
		}
		if err := Migrate(conn); err != nil {
			return err
		}
		return seed.Bootstrap(conn, node, cfg.Bootstrap, log)
	}),
)
