// Package migrate applies the embedded PostgreSQL schema and optional seed
// data.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
	"time"

	gomigrate "github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"thittam.org/internal/obs"
)

const (
	defaultMigrationsTable = "schema_migrations"
	defaultSeedsTable      = "schema_seeds"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

//go:embed seeds/*.sql
var seedFiles embed.FS

// Manager runs schema migrations through golang-migrate and applies seed
// files once each. Every call opens its own connection pool because the
// migrate driver closes the pool it is given.
type Manager struct {
	dsn             string
	migrationsTable string
	seedsTable      string
	log             *slog.Logger
}

// Option configures Manager.
type Option func(*Manager)

// WithMigrationsTable overrides the default migrations bookkeeping table.
func WithMigrationsTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.migrationsTable = name
		}
	}
}

// WithSeedsTable overrides the default seeds bookkeeping table.
func WithSeedsTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.seedsTable = name
		}
	}
}

func NewManager(dsn string, opts ...Option) *Manager {
	m := &Manager{
		dsn:             dsn,
		migrationsTable: defaultMigrationsTable,
		seedsTable:      defaultSeedsTable,
		log:             obs.Logger().With(slog.String("component", "migrate")),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Status is the schema version recorded by golang-migrate.
type Status struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
	// Empty is set when no migration has run yet.
	Empty bool `json:"empty"`
}

// Up applies all pending migrations. An up-to-date schema is not an error.
func (m *Manager) Up(ctx context.Context) error {
	return m.run(ctx, "up", func(mg *gomigrate.Migrate) error { return mg.Up() })
}

// Down rolls back the most recent applied migration.
func (m *Manager) Down(ctx context.Context) error {
	return m.run(ctx, "down", func(mg *gomigrate.Migrate) error { return mg.Steps(-1) })
}

// Status reports the current schema version.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	var st Status
	err := m.run(ctx, "status", func(mg *gomigrate.Migrate) error {
		v, dirty, err := mg.Version()
		if errors.Is(err, gomigrate.ErrNilVersion) {
			st.Empty = true
			return nil
		}
		if err != nil {
			return err
		}
		st.Version, st.Dirty = v, dirty
		return nil
	})
	return st, err
}

func (m *Manager) run(ctx context.Context, op string, fn func(*gomigrate.Migrate) error) error {
	mg, err := m.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		srcErr, dbErr := mg.Close()
		if err := errors.Join(srcErr, dbErr); err != nil {
			m.log.Warn("close migrator", obs.Err(err))
		}
	}()

	stop := context.AfterFunc(ctx, func() {
		select {
		case mg.GracefulStop <- true:
		default:
		}
	})
	defer stop()

	started := time.Now()
	err = fn(mg)
	if errors.Is(err, gomigrate.ErrNoChange) {
		m.log.Info("schema already current", slog.String("op", op))
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate %s: %w", op, err)
	}
	m.log.Info("migration finished", slog.String("op", op), slog.Duration("took", time.Since(started)))
	return nil
}

func (m *Manager) openDB(ctx context.Context) (*sql.DB, error) {
	if m.dsn == "" {
		return nil, errors.New("migrate: empty DSN")
	}
	db, err := sql.Open("pgx", m.dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

func (m *Manager) open(ctx context.Context) (*gomigrate.Migrate, error) {
	db, err := m.openDB(ctx)
	if err != nil {
		return nil, err
	}
	src, err := iofs.New(migrationFiles, "sql")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	drv, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{MigrationsTable: m.migrationsTable})
	if err != nil {
		_ = src.Close()
		_ = db.Close()
		return nil, fmt.Errorf("migration driver: %w", err)
	}
	mg, err := gomigrate.NewWithInstance("iofs", src, "pgx5", drv)
	if err != nil {
		return nil, fmt.Errorf("migration instance: %w", err)
	}
	mg.Log = migrateLogger{m.log}
	return mg, nil
}

type migrateLogger struct{ log *slog.Logger }

func (l migrateLogger) Printf(format string, v ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool { return false }

// Seed applies each embedded seed file once, recording it in the seeds table.
func (m *Manager) Seed(ctx context.Context) error {
	db, err := m.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()
	return m.seed(ctx, db)
}

func (m *Manager) seed(ctx context.Context, db *sql.DB) error {
	ddl := fmt.Sprintf(`
		create table if not exists %s (
			name text primary key,
			applied_at timestamptz not null default now()
		)`, m.seedsTable)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure seeds table: %w", err)
	}
	executed, err := m.listExecuted(ctx, db)
	if err != nil {
		return err
	}
	names, err := SeedNames()
	if err != nil {
		return err
	}
	for _, name := range names {
		if executed[name] {
			continue
		}
		body, err := fs.ReadFile(seedFiles, "seeds/"+name)
		if err != nil {
			return err
		}
		if err := m.applySeed(ctx, db, name, string(body)); err != nil {
			return fmt.Errorf("apply seed %s: %w", name, err)
		}
		m.log.Info("seed applied", slog.String("seed", name))
	}
	return nil
}

func (m *Manager) applySeed(ctx context.Context, db *sql.DB, name, body string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, body); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`insert into %s(name, applied_at) values ($1, $2)`, m.seedsTable),
		name, time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

func (m *Manager) listExecuted(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`select name from %s`, m.seedsTable))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		result[name] = true
	}
	return result, rows.Err()
}

// SeedNames lists the embedded seed files in application order.
func SeedNames() ([]string, error) {
	return sortedNames(seedFiles, "seeds", ".sql")
}

// MigrationNames lists the embedded migration files in version order.
func MigrationNames() ([]string, error) {
	return sortedNames(migrationFiles, "sql", ".sql")
}

func sortedNames(fsys fs.FS, dir, suffix string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
