// Package sqlite implements the store.Store interface backed by an embedded
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"iter"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/alfredjeanlab/grapio/internal/model"
	"github.com/alfredjeanlab/grapio/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore implements store.Store backed by SQLite. It uses a single
// connection, so transactions are serialized and LockKey is a no-op.
type SQLiteStore struct {
	db *sql.DB
}

// Compile-time check that SQLiteStore implements store.Store.
var _ store.Store = (*SQLiteStore)(nil)

// DSN converts a sqlite:// database URL into a driver data source name.
// file: URIs and plain paths are returned unchanged.
func DSN(databaseURL string) string {
	return strings.TrimPrefix(databaseURL, "sqlite://")
}

// New opens the SQLite database named by dsn and runs any pending migrations.
func New(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps an in-memory database alive across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return store.Wrap("ping", s.db.PingContext(ctx))
}

func (s *SQLiteStore) UpsertFlag(ctx context.Context, flag *model.FeatureFlag) error {
	return queryUpsertFlag(ctx, s.db, flag)
}

func (s *SQLiteStore) DeleteFlag(ctx context.Context, key, consumer string) (bool, error) {
	return queryDeleteFlag(ctx, s.db, key, consumer)
}

func (s *SQLiteStore) GetFlag(ctx context.Context, key, consumer string) (*model.FeatureFlag, error) {
	return queryGetFlag(ctx, s.db, key, consumer)
}

func (s *SQLiteStore) ListFlagsByKey(ctx context.Context, key string) ([]*model.FeatureFlag, error) {
	return queryListFlagsByKey(ctx, s.db, key)
}

func (s *SQLiteStore) ListFlagsByConsumer(ctx context.Context, consumer string) ([]*model.FeatureFlag, error) {
	return queryListFlagsByConsumer(ctx, s.db, consumer)
}

func (s *SQLiteStore) ListFlags(ctx context.Context) ([]*model.FeatureFlag, error) {
	return queryListFlags(ctx, s.db)
}

// FlagIdentities reads every identity up front and releases the connection
// before the first one is yielded.
func (s *SQLiteStore) FlagIdentities(ctx context.Context) iter.Seq2[model.FlagIdentity, error] {
	return queryFlagIdentities(ctx, s.db)
}

func (s *SQLiteStore) LockKey(ctx context.Context, key string) error {
	return nil
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *SQLiteStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Wrap("begin transaction", err)
	}

	if err := fn(&txStore{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return store.Wrap("commit transaction", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

var _ store.Store = (*txStore)(nil)

func (s *txStore) UpsertFlag(ctx context.Context, flag *model.FeatureFlag) error {
	return queryUpsertFlag(ctx, s.tx, flag)
}

func (s *txStore) DeleteFlag(ctx context.Context, key, consumer string) (bool, error) {
	return queryDeleteFlag(ctx, s.tx, key, consumer)
}

func (s *txStore) GetFlag(ctx context.Context, key, consumer string) (*model.FeatureFlag, error) {
	return queryGetFlag(ctx, s.tx, key, consumer)
}

func (s *txStore) ListFlagsByKey(ctx context.Context, key string) ([]*model.FeatureFlag, error) {
	return queryListFlagsByKey(ctx, s.tx, key)
}

func (s *txStore) ListFlagsByConsumer(ctx context.Context, consumer string) ([]*model.FeatureFlag, error) {
	return queryListFlagsByConsumer(ctx, s.tx, consumer)
}

func (s *txStore) ListFlags(ctx context.Context) ([]*model.FeatureFlag, error) {
	return queryListFlags(ctx, s.tx)
}

func (s *txStore) FlagIdentities(ctx context.Context) iter.Seq2[model.FlagIdentity, error] {
	return queryFlagIdentities(ctx, s.tx)
}

func (s *txStore) LockKey(ctx context.Context, key string) error {
	return nil
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

func (s *txStore) Ping(ctx context.Context) error {
	return nil
}

func (s *txStore) Close() error {
	return nil
}
