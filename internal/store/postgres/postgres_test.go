package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/alfredjeanlab/grapio/internal/keylock"
	"github.com/alfredjeanlab/grapio/internal/model"
	"github.com/alfredjeanlab/grapio/internal/store"
)

// newMockDB creates a sqlmock database with automatic cleanup and expectation checking.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unfulfilled expectations: %v", err)
		}
		db.Close()
	})
	return db, mock
}

var flagRowColumns = []string{"key", "consumer", "value"}

func TestQueryUpsertFlag(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO feature_flags .+ ON CONFLICT \\(key, consumer\\) DO UPDATE").
		WithArgs("dark-mode", "*", "true").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := queryUpsertFlag(context.Background(), db, model.NewFeatureFlag("dark-mode", "true", "")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestQueryUpsertFlag_NormalizesConsumer(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO feature_flags").
		WithArgs("k", "*", "v").
		WillReturnResult(sqlmock.NewResult(0, 1))

	f := &model.FeatureFlag{Key: "k", Value: "v"}
	if err := queryUpsertFlag(context.Background(), db, f); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Consumer != model.UniversalConsumer {
		t.Fatalf("expected consumer to be normalized, got %q", f.Consumer)
	}
}

func TestQueryUpsertFlag_ValidationBeforeStorage(t *testing.T) {
	db, _ := newMockDB(t)

	for _, f := range []*model.FeatureFlag{nil, {Key: "", Value: "v"}} {
		err := queryUpsertFlag(context.Background(), db, f)
		var ve *model.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected *model.ValidationError, got %v", err)
		}
	}
}

func TestQueryUpsertFlag_StorageError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO feature_flags").WillReturnError(sql.ErrConnDone)

	err := queryUpsertFlag(context.Background(), db, model.NewFeatureFlag("k", "v", ""))
	var se *store.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected *store.StorageError, got %v", err)
	}
	if !errors.Is(err, sql.ErrConnDone) {
		t.Fatalf("expected error to wrap sql.ErrConnDone, got %v", err)
	}
}

func TestQueryDeleteFlag(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("DELETE FROM feature_flags WHERE key = \\$1 AND consumer = \\$2").
		WithArgs("dark-mode", "billing").
		WillReturnResult(sqlmock.NewResult(0, 1))

	removed, err := queryDeleteFlag(context.Background(), db, "dark-mode", "billing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !removed {
		t.Fatal("expected removed=true")
	}
}

func TestQueryDeleteFlag_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec("DELETE FROM feature_flags").
		WithArgs("missing", "*").
		WillReturnResult(sqlmock.NewResult(0, 0))

	removed, err := queryDeleteFlag(context.Background(), db, "missing", "")
	if err != nil {
		t.Fatalf("expected delete of a missing flag to succeed, got %v", err)
	}
	if removed {
		t.Fatal("expected removed=false")
	}
}

func TestQueryGetFlag(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM feature_flags WHERE key = \\$1 AND consumer = \\$2").
		WithArgs("timeout", "checkout").
		WillReturnRows(sqlmock.NewRows(flagRowColumns).AddRow("timeout", "checkout", "30"))

	f, err := queryGetFlag(context.Background(), db, "timeout", "checkout")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Key != "timeout" || f.Consumer != "checkout" || f.Value != "30" {
		t.Fatalf("unexpected flag: %+v", f)
	}
}

func TestQueryGetFlag_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM feature_flags WHERE key = \\$1 AND consumer = \\$2").
		WithArgs("timeout", "checkout").
		WillReturnError(sql.ErrNoRows)

	if _, err := queryGetFlag(context.Background(), db, "timeout", "checkout"); err != store.ErrNotFound {
		t.Fatalf("expected store.ErrNotFound, got %v", err)
	}
}

func TestQueryListFlagsByKey(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM feature_flags WHERE key = \\$1").WithArgs("timeout").
		WillReturnRows(sqlmock.NewRows(flagRowColumns).
			AddRow("timeout", "billing", "10").
			AddRow("timeout", "checkout", "30"))

	flags, err := queryListFlagsByKey(context.Background(), db, "timeout")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flags) != 2 {
		t.Fatalf("expected 2 flags, got %d", len(flags))
	}
}

func TestQueryListFlagsByConsumer_IncludesUniversal(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM feature_flags WHERE consumer = \\$1 OR consumer = \\$2").
		WithArgs("checkout", "*").
		WillReturnRows(sqlmock.NewRows(flagRowColumns).
			AddRow("dark-mode", "*", "true").
			AddRow("timeout", "checkout", "30"))

	flags, err := queryListFlagsByConsumer(context.Background(), db, "checkout")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flags) != 2 {
		t.Fatalf("expected 2 flags, got %d", len(flags))
	}
	if !flags[0].IsUniversal() {
		t.Fatalf("expected first flag to be universal, got %+v", flags[0])
	}
}

func TestQueryListFlags(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT .+ FROM feature_flags ORDER BY key, consumer").
		WillReturnRows(sqlmock.NewRows(flagRowColumns).
			AddRow("a", "*", "1").
			AddRow("b", "svc", "2"))

	flags, err := queryListFlags(context.Background(), db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(flags) != 2 || flags[0].Key != "a" || flags[1].Key != "b" {
		t.Fatalf("unexpected flags: %v", flags)
	}
}

func TestQueryFlagIdentities(t *testing.T) {
	db, mock := newMockDB(t)
	for range 2 {
		mock.ExpectQuery("SELECT key, consumer FROM feature_flags").
			WillReturnRows(sqlmock.NewRows([]string{"key", "consumer"}).
				AddRow("a", "*").
				AddRow("b", "svc"))
	}

	seq := queryFlagIdentities(context.Background(), db)
	for pass := range 2 {
		var got []model.FlagIdentity
		for id, err := range seq {
			if err != nil {
				t.Fatalf("pass %d: unexpected error: %v", pass, err)
			}
			got = append(got, id)
		}
		if len(got) != 2 || got[1] != (model.FlagIdentity{Key: "b", Consumer: "svc"}) {
			t.Fatalf("pass %d: unexpected identities: %v", pass, got)
		}
	}
}

func TestQueryFlagIdentities_EarlyStop(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT key, consumer FROM feature_flags").
		WillReturnRows(sqlmock.NewRows([]string{"key", "consumer"}).
			AddRow("a", "*").
			AddRow("b", "svc"))

	n := 0
	for range queryFlagIdentities(context.Background(), db) {
		n++
		break
	}
	if n != 1 {
		t.Fatalf("expected iteration to stop after 1 item, got %d", n)
	}
}

func TestQueryFlagIdentities_QueryError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery("SELECT key, consumer FROM feature_flags").WillReturnError(sql.ErrConnDone)

	for _, err := range queryFlagIdentities(context.Background(), db) {
		var se *store.StorageError
		if !errors.As(err, &se) {
			t.Fatalf("expected *store.StorageError, got %v", err)
		}
	}
}

func TestRunInTransaction_CommitsWithAdvisoryLock(t *testing.T) {
	db, mock := newMockDB(t)
	s := &PostgresStore{db: db}

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock\\(\\$1\\)").
		WithArgs(keylock.Hash("dark-mode")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT .+ FROM feature_flags WHERE key = \\$1").WithArgs("dark-mode").
		WillReturnRows(sqlmock.NewRows(flagRowColumns))
	mock.ExpectExec("INSERT INTO feature_flags").
		WithArgs("dark-mode", "*", "true").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		if err := tx.LockKey(context.Background(), "dark-mode"); err != nil {
			return err
		}
		if _, err := tx.ListFlagsByKey(context.Background(), "dark-mode"); err != nil {
			return err
		}
		return tx.UpsertFlag(context.Background(), model.NewFeatureFlag("dark-mode", "true", ""))
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunInTransaction_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	s := &PostgresStore{db: db}

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		return boom
	})
	if err != boom {
		t.Fatalf("expected fn error to be returned unchanged, got %v", err)
	}
}

func TestRunInTransaction_BeginError(t *testing.T) {
	db, mock := newMockDB(t)
	s := &PostgresStore{db: db}
	mock.ExpectBegin().WillReturnError(sql.ErrConnDone)

	err := s.RunInTransaction(context.Background(), func(tx store.Store) error {
		t.Fatal("fn must not run when begin fails")
		return nil
	})
	var se *store.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected *store.StorageError, got %v", err)
	}
}
