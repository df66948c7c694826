package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"scenebreak/internal/config"
	"scenebreak/internal/database"
	"scenebreak/internal/logger"
	"scenebreak/pkg/migration"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var envFile string

// rootCmd управляет схемой БД без запуска HTTP сервера.
var rootCmd = &cobra.Command{
	Use:          "migrate",
	Short:        "Manage the scenes database schema",
	SilenceUsage: true,
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd.Context(), func(m *migration.Migrator) error { return m.Up() })
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back all migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd.Context(), func(m *migration.Migrator) error { return m.Down() })
	},
}

var stepsCmd = &cobra.Command{
	Use:   "steps N",
	Short: "Apply N migrations (negative N rolls back)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid step count %q: %w", args[0], err)
		}
		return withMigrator(cmd.Context(), func(m *migration.Migrator) error { return m.Steps(n) })
	},
}

var forceCmd = &cobra.Command{
	Use:   "force VERSION",
	Short: "Set schema version without running migrations and clear the dirty flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		return withMigrator(cmd.Context(), func(m *migration.Migrator) error { return m.ForceVersion(version) })
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd.Context(), func(m *migration.Migrator) error {
			version, dirty, err := m.Version()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "path to .env file")
	rootCmd.AddCommand(upCmd, downCmd, stepsCmd, forceCmd, versionCmd)
}

func withMigrator(ctx context.Context, fn func(m *migration.Migrator) error) error {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: "console"})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	pool, err := database.Connect(ctx, database.PoolConfig{
		DSN:        cfg.GetDSN(),
		MaxConns:   2,
		MaxRetries: 3,
	}, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	migrator := migration.NewMigrator(migration.Config{
		MigrationsPath: database.MigrationsPath,
		MigrationsFS:   database.MigrationsFS,
	}, pool, log)
	if err := fn(migrator); err != nil {
		log.Error("Migration command failed", zap.Error(err))
		return err
	}
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
