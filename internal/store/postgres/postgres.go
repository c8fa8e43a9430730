// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"iter"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/grapio/internal/model"
	"github.com/alfredjeanlab/grapio/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return store.Wrap("ping", s.db.PingContext(ctx))
}

func (s *PostgresStore) UpsertFlag(ctx context.Context, flag *model.FeatureFlag) error {
	return queryUpsertFlag(ctx, s.db, flag)
}

func (s *PostgresStore) DeleteFlag(ctx context.Context, key, consumer string) (bool, error) {
	return queryDeleteFlag(ctx, s.db, key, consumer)
}

func (s *PostgresStore) GetFlag(ctx context.Context, key, consumer string) (*model.FeatureFlag, error) {
	return queryGetFlag(ctx, s.db, key, consumer)
}

func (s *PostgresStore) ListFlagsByKey(ctx context.Context, key string) ([]*model.FeatureFlag, error) {
	return queryListFlagsByKey(ctx, s.db, key)
}

func (s *PostgresStore) ListFlagsByConsumer(ctx context.Context, consumer string) ([]*model.FeatureFlag, error) {
	return queryListFlagsByConsumer(ctx, s.db, consumer)
}

func (s *PostgresStore) ListFlags(ctx context.Context) ([]*model.FeatureFlag, error) {
	return queryListFlags(ctx, s.db)
}

func (s *PostgresStore) FlagIdentities(ctx context.Context) iter.Seq2[model.FlagIdentity, error] {
	return queryFlagIdentities(ctx, s.db)
}

// LockKey outside a transaction acquires and immediately releases the lock.
func (s *PostgresStore) LockKey(ctx context.Context, key string) error {
	return queryLockKey(ctx, s.db, key)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Wrap("begin transaction", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
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

// Compile-time check that txStore implements store.Store.
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

// LockKey takes a transaction-scoped advisory lock released on commit or rollback.
func (s *txStore) LockKey(ctx context.Context, key string) error {
	return queryLockKey(ctx, s.tx, key)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Ping is a no-op inside a transaction.
func (s *txStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
