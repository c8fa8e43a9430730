package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

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
		VALUES (?, ?, ?)
		ON CONFLICT (key, consumer) DO UPDATE SET value = excluded.value`,
		f.Key, f.Consumer, f.Value,
	)
	return store.Wrap("upsert flag", err)
}

func queryDeleteFlag(ctx context.Context, db executor, key, consumer string) (bool, error) {
	res, err := db.ExecContext(ctx,
		`DELETE FROM feature_flags WHERE key = ? AND consumer = ?`,
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
	var f model.FeatureFlag
	err := db.QueryRowContext(ctx, `
		SELECT `+flagColumns+`
		FROM feature_flags WHERE key = ? AND consumer = ?`,
		key, model.NormalizeConsumer(consumer),
	).Scan(&f.Key, &f.Consumer, &f.Value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, store.Wrap("get flag", err)
	}
	return &f, nil
}

func queryListFlagsByKey(ctx context.Context, db executor, key string) ([]*model.FeatureFlag, error) {
	return listFlags(ctx, db, "list flags by key", `
		SELECT `+flagColumns+`
		FROM feature_flags WHERE key = ?
		ORDER BY consumer`, key)
}

func queryListFlagsByConsumer(ctx context.Context, db executor, consumer string) ([]*model.FeatureFlag, error) {
	return listFlags(ctx, db, "list flags by consumer", `
		SELECT `+flagColumns+`
		FROM feature_flags WHERE consumer = ? OR consumer = ?
		ORDER BY key, consumer`, consumer, model.UniversalConsumer)
}

func queryListFlags(ctx context.Context, db executor) ([]*model.FeatureFlag, error) {
	return listFlags(ctx, db, "list flags", `
		SELECT `+flagColumns+`
		FROM feature_flags ORDER BY key, consumer`)
}

func listFlags(ctx context.Context, db executor, op, query string, args ...any) ([]*model.FeatureFlag, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.Wrap(op, err)
	}
	defer rows.Close()

	var flags []*model.FeatureFlag
	for rows.Next() {
		var f model.FeatureFlag
		if err := rows.Scan(&f.Key, &f.Consumer, &f.Value); err != nil {
			return nil, store.Wrap(op, err)
		}
		flags = append(flags, &f)
	}
	return flags, store.Wrap(op, rows.Err())
}

func queryFlagIdentities(ctx context.Context, db executor) iter.Seq2[model.FlagIdentity, error] {
	return func(yield func(model.FlagIdentity, error) bool) {
		ids, err := readFlagIdentities(ctx, db)
		if err != nil {
			yield(model.FlagIdentity{}, err)
			return
		}
		for _, id := range ids {
			if !yield(id, nil) {
				return
			}
		}
	}
}

// readFlagIdentities drains the query before anything is yielded so the
// single connection is free while the caller consumes the sequence.
func readFlagIdentities(ctx context.Context, db executor) ([]model.FlagIdentity, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, consumer FROM feature_flags ORDER BY key, consumer`)
	if err != nil {
		return nil, store.Wrap("list flag identities", err)
	}
	defer rows.Close()

	var ids []model.FlagIdentity
	for rows.Next() {
		var id model.FlagIdentity
		if err := rows.Scan(&id.Key, &id.Consumer); err != nil {
			return nil, store.Wrap("list flag identities", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap("list flag identities", err)
	}
	return ids, nil
}
