package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/portyard/internal/clock"
	"github.com/smallbiznis/portyard/internal/config"
	"github.com/smallbiznis/portyard/internal/migration"
	"github.com/smallbiznis/portyard/internal/observability"
	"github.com/smallbiznis/portyard/internal/seed"
	"github.com/smallbiznis/portyard/internal/server"
	"github.com/smallbiznis/portyard/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	root := &cobra.Command{
		Use:          "portyard",
		Short:        "Container yard operations tracker",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), migrateCmd(), seedCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				fx.Decorate(func(cfg config.Config) config.Config {
					if addr != "" {
						cfg.HTTPAddr = addr
					}
					return cfg
				}),
				core(),
				migration.Module,
				server.Module,
			)
			app.Run()
			return app.Err()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides HTTP_ADDR")
	return cmd
}

func migrateCmd() *cobra.Command {
	var withSeed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema and reporting views, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				core(),
				fx.NopLogger,
				fx.Invoke(func(conn *gorm.DB, cfg config.Config, node *snowflake.Node, log *zap.Logger) error {
					if err := migration.Migrate(conn); err != nil {
						return err
					}
					log.Info("schema migrated")
					if !withSeed {
						return nil
					}
					return seed.Bootstrap(conn, node, cfg.Bootstrap, log)
				}),
			)
			return runOnce(cmd.Context(), app)
		},
	}
	cmd.Flags().BoolVar(&withSeed, "seed", true, "create the permission catalogue and bootstrap admin")
	return cmd
}

func seedCmd() *cobra.Command {
	var username, email string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the permission catalogue and an admin user on a migrated schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				core(),
				fx.NopLogger,
				fx.Invoke(func(conn *gorm.DB, cfg config.Config, node *snowflake.Node, log *zap.Logger) error {
					bootstrap := cfg.Bootstrap
					if username != "" {
						bootstrap.AdminUsername = username
					}
					if email != "" {
						bootstrap.AdminEmail = email
					}
					return seed.Bootstrap(conn, node, bootstrap, log)
				}),
			)
			return runOnce(cmd.Context(), app)
		},
	}
	cmd.Flags().StringVar(&username, "admin-username", "", "admin username, overrides BOOTSTRAP_ADMIN_USERNAME")
	cmd.Flags().StringVar(&email, "admin-email", "", "admin email, overrides BOOTSTRAP_ADMIN_EMAIL")
	return cmd
}

// runOnce starts and stops app so that invoke errors surface as the command
// result.
func runOnce(ctx context.Context, app *fx.App) error {
	if err := app.Err(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	if err := app.Start(ctx); err != nil {
		return err
	}
	return app.Stop(ctx)
}

func core() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
	)
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
