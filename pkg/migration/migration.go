package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

// Config содержит настройки для миграций
type Config struct {
	MigrationsPath string
	MigrationsFS   fs.FS
}

// Migrator выполняет миграции базы данных
type Migrator struct {
	config Config
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewMigrator создает новый экземпляр Migrator
func NewMigrator(config Config, pool *pgxpool.Pool, logger *zap.Logger) *Migrator {
	return &Migrator{
		config: config,
		pool:   pool,
		logger: logger.Named("Migrator"),
	}
}

// Up применяет все доступные миграции
func (m *Migrator) Up() error {
	return m.run("apply", func(mg *migrate.Migrate) error { return mg.Up() })
}

// Down откатывает все миграции
func (m *Migrator) Down() error {
	return m.run("rollback", func(mg *migrate.Migrate) error { return mg.Down() })
}

// Steps применяет (n > 0) или откатывает (n < 0) указанное число миграций
func (m *Migrator) Steps(n int) error {
	return m.run("step", func(mg *migrate.Migrate) error { return mg.Steps(n) })
}

// ForceVersion устанавливает версию миграции принудительно, снимая флаг dirty
func (m *Migrator) ForceVersion(version int) error {
	mg, err := m.createMigrator()
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := mg.Force(version); err != nil {
		return fmt.Errorf("failed to force migration version: %w", err)
	}
	m.logger.Info("Database migration version forced", zap.Int("version", version))
	return nil
}

// Version возвращает текущую версию миграции. Для пустой БД возвращает 0.
func (m *Migrator) Version() (uint, bool, error) {
	mg, err := m.createMigrator()
	if err != nil {
		return 0, false, err
	}
	defer mg.Close()

	version, dirty, err := mg.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

func (m *Migrator) run(action string, fn func(*migrate.Migrate) error) error {
	mg, err := m.createMigrator()
	if err != nil {
		return err
	}
	defer mg.Close()

	if err := fn(mg); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("Database schema is up to date", zap.String("action", action))
			return nil
		}
		return fmt.Errorf("failed to %s migrations: %w", action, err)
	}
	m.logger.Info("Database migrations finished", zap.String("action", action))
	return nil
}

// createMigrator создает экземпляр migrate.Migrate поверх пула pgx
func (m *Migrator) createMigrator() (*migrate.Migrate, error) {
	db := stdlib.OpenDBFromPool(m.pool)

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: "schema_migrations",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	source, err := iofs.New(m.config.MigrationsFS, m.config.MigrationsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	mg, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	mg.LockTimeout = 30 * time.Second
	return mg, nil
}
