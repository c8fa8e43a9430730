package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"github.com/alfredjeanlab/grapio/internal/keylock"
	"github.com/alfredjeanlab/grapio/internal/model"
	"github.com/alfredjeanlab/grapio/internal/store"
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const flagColumns = `key, consumer, value`

func queryUpsertFlag(ctx context.Context, db executor, f *model.FeatureFlag) error {
	if err := model.ValidateFlag(f); err != nil {
		return err
	}
	f.Consumer = model.NormalizeConsumer(f.Consumer)

	_, err := db.ExecContext(ctx, `
		INSERT INTO feature_flags (key, consumer, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (key, consumer) DO UPDATE SET value = EXCLUDED.value`,
		f.Key, f.Consumer, f.Value,
	)
	return store.Wrap("upsert flag", err)
}

func queryDeleteFlag(ctx context.Context, db executor, key, consumer string) (bool, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM feature_flags WHERE key = $1 AND consumer = $2`,
		key, model.NormalizeConsumer(consumer))
	if err != nil {
		return false, store.Wrap("delete flag", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, store.Wrap("delete flag", fmt.Errorf("rows affected: %w", err))
	}
	return n > 0, nil
}

func queryGetFlag(ctx context.Context, db executor, key, consumer string) (*model.FeatureFlag, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+flagColumns+`
		FROM feature_flags WHERE key = $1 AND consumer = $2`,
		key, model.NormalizeConsumer(consumer))
	f, err := scanFlag(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Wrap("get flag", err)
	}
	return f, nil
}

func queryListFlagsByKey(ctx context.Context, db executor, key string) ([]*model.FeatureFlag, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+flagColumns+`
		FROM feature_flags WHERE key = $1
		ORDER BY consumer`, key)
	if err != nil {
		return nil, store.Wrap("list flags by key", err)
	}
	defer rows.Close()
	flags, err := scanFlags(rows)
	return flags, store.Wrap("list flags by key", err)
}

func queryListFlagsByConsumer(ctx context.Context, db executor, consumer string) ([]*model.FeatureFlag, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+flagColumns+`
		FROM feature_flags WHERE consumer = $1 OR consumer = $2
		ORDER BY key, consumer`, consumer, model.UniversalConsumer)
	if err != nil {
		return nil, store.Wrap("list flags by consumer", err)
	}
	defer rows.Close()
	flags, err := scanFlags(rows)
	return flags, store.Wrap("list flags by consumer", err)
}

func queryListFlags(ctx context.Context, db executor) ([]*model.FeatureFlag, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+flagColumns+`
		FROM feature_flags ORDER BY key, consumer`)
	if err != nil {
		return nil, store.Wrap("list flags", err)
	}
	defer rows.Close()
	flags, err := scanFlags(rows)
	return flags, store.Wrap("list flags", err)
}

func queryFlagIdentities(ctx context.Context, db executor) iter.Seq2[model.FlagIdentity, error] {
	return func(yield func(model.FlagIdentity, error) bool) {
		rows, err := db.QueryContext(ctx, `SELECT key, consumer FROM feature_flags ORDER BY key, consumer`)
		if err != nil {
			yield(model.FlagIdentity{}, store.Wrap("list flag identities", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var id model.FlagIdentity
			if err := rows.Scan(&id.Key, &id.Consumer); err != nil {
				yield(model.FlagIdentity{}, store.Wrap("list flag identities", err))
				return
			}
			if !yield(id, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(model.FlagIdentity{}, store.Wrap("list flag identities", err))
		}
	}
}

func queryLockKey(ctx context.Context, db executor, key string) error {
	_, err := db.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, keylock.Hash(key))
	return store.Wrap("lock key", err)
}
