package migrate

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini_orm/internal/db"
)

const (
	ensureHistory = `CREATE TABLE IF NOT EXISTS "__orm_migrations_history" (
    migration_id VARCHAR(255) PRIMARY KEY,
    description VARCHAR(500),
    applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`
	checkHistory  = `SELECT 1 FROM "__orm_migrations_history" WHERE migration_id = $1`
	selectHistory = `SELECT migration_id, description, applied_at FROM "__orm_migrations_history" ORDER BY applied_at, migration_id`
	insertHistory = `INSERT INTO "__orm_migrations_history" (migration_id, description, applied_at) VALUES ($1, $2, $3)`
	deleteHistory = `DELETE FROM "__orm_migrations_history" WHERE migration_id = $1`
	lockQuery     = `SELECT pg_advisory_xact_lock($1)`
)

var (
	m1 = Migration{
		ID:          "20260209143644_add_email",
		Description: "add email",
		Up:          `ALTER TABLE "custom_patients" ADD COLUMN "email" VARCHAR(100);`,
		Down:        `ALTER TABLE "custom_patients" DROP COLUMN "email";`,
	}
	m2 = Migration{
		ID:          "20260210090000_add_phone",
		Description: "add phone",
		Up:          `ALTER TABLE "custom_patients" ADD COLUMN "phone" VARCHAR(20);`,
		Down:        `ALTER TABLE "custom_patients" DROP COLUMN "phone";`,
	}
	m3 = Migration{
		ID:          "20260211120000_phone_not_null",
		Description: "phone not null",
		Up:          `ALTER TABLE "custom_patients" ALTER COLUMN "phone" SET NOT NULL;`,
		Down:        `ALTER TABLE "custom_patients" ALTER COLUMN "phone" DROP NOT NULL;`,
	}
)

func newRunner(t *testing.T, logger *slog.Logger) (*Runner, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return NewRunner(db.OpenDB(sqlDB), logger), mock
}

func expectEnsure(mock sqlmock.Sqlmock) {
	mock.ExpectExec(ensureHistory).WillReturnResult(sqlmock.NewResult(0, 0))
}

// expectLocked expects the history table, a transaction, the lock and the
// history check for id.
func expectLocked(mock sqlmock.Sqlmock, r *Runner, id string, applied bool) {
	expectEnsure(mock)
	mock.ExpectBegin()
	mock.ExpectExec(lockQuery).WithArgs(r.lockKey).WillReturnResult(sqlmock.NewResult(0, 0))
	rows := sqlmock.NewRows([]string{"?column?"})
	if applied {
		rows.AddRow(int64(1))
	}
	mock.ExpectQuery(checkHistory).WithArgs(id).WillReturnRows(rows)
}

func expectHistory(mock sqlmock.Sqlmock, ms ...Migration) {
	expectEnsure(mock)
	rows := sqlmock.NewRows([]string{"migration_id", "description", "applied_at"})
	at := time.Date(2026, 2, 9, 14, 36, 44, 0, time.UTC)
	for i, m := range ms {
		rows.AddRow(m.ID, m.Description, at.Add(time.Duration(i)*time.Minute))
	}
	mock.ExpectQuery(selectHistory).WillReturnRows(rows)
}

func expectRollback(mock sqlmock.Sqlmock, r *Runner, m Migration) {
	expectLocked(mock, r, m.ID, true)
	mock.ExpectExec(m.Down[:len(m.Down)-1]).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(deleteHistory).WithArgs(m.ID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}

func TestApplyTwiceRunsScriptOnce(t *testing.T) {
	var buf bytes.Buffer
	r, mock := newRunner(t, slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()

	expectLocked(mock, r, m1.ID, false)
	mock.ExpectExec(`ALTER TABLE "custom_patients" ADD COLUMN "email" VARCHAR(100)`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(insertHistory).WithArgs(m1.ID, m1.Description, sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	expectLocked(mock, r, m1.ID, true)
	mock.ExpectRollback()

	require.NoError(t, r.Apply(ctx, m1))
	require.NoError(t, r.Apply(ctx, m1))
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, buf.String(), "migration already applied")
	assert.Contains(t, buf.String(), "migration_id="+m1.ID)
}

func TestApplyFailureRollsBack(t *testing.T) {
	r, mock := newRunner(t, nil)
	m := Migration{
		ID: "20260209143644_two_steps",
		Up: `ALTER TABLE "custom_patients" ADD COLUMN "email" VARCHAR(100);

ALTER TABLE "custom_patients" ADD COLUMN "email" TEXT;`,
	}
	dup := &pgconn.PgError{Code: "42701", Message: `column "email" of relation "custom_patients" already exists`}

	expectLocked(mock, r, m.ID, false)
	mock.ExpectExec(`ALTER TABLE "custom_patients" ADD COLUMN "email" VARCHAR(100)`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`ALTER TABLE "custom_patients" ADD COLUMN "email" TEXT`).WillReturnError(dup)
	mock.ExpectRollback()

	err := r.Apply(context.Background(), m)
	require.Error(t, err)
	var stmtErr *db.StatementExecutionError
	require.ErrorAs(t, err, &stmtErr)
	assert.Contains(t, stmtErr.Query, `"email" TEXT`)
	assert.True(t, db.IsAlreadyExists(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRollbackRemovesHistoryRow(t *testing.T) {
	r, mock := newRunner(t, nil)
	expectRollback(mock, r, m1)

	require.NoError(t, r.Rollback(context.Background(), m1))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRollbackOfUnappliedIsNoop(t *testing.T) {
	r, mock := newRunner(t, nil)
	expectLocked(mock, r, m1.ID, false)
	mock.ExpectRollback()

	require.NoError(t, r.Rollback(context.Background(), m1))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRollbackToRevertsSuffixNewestFirst(t *testing.T) {
	r, mock := newRunner(t, nil)
	expectHistory(mock, m1, m2, m3)
	expectRollback(mock, r, m3)
	expectRollback(mock, r, m2)

	src := MapSource{m1.ID: m1, m2.ID: m2, m3.ID: m3}
	require.NoError(t, r.RollbackTo(context.Background(), m1.ID, src))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRollbackToEmptyTargetRevertsAll(t *testing.T) {
	r, mock := newRunner(t, nil)
	expectHistory(mock, m1, m2)
	expectRollback(mock, r, m2)
	expectRollback(mock, r, m1)

	require.NoError(t, r.RollbackTo(context.Background(), "", MapSource{m1.ID: m1, m2.ID: m2}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRollbackToLatestIsNoop(t *testing.T) {
	r, mock := newRunner(t, nil)
	expectHistory(mock, m1, m2)

	require.NoError(t, r.RollbackTo(context.Background(), m2.ID, MapSource{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRollbackToUnknownTarget(t *testing.T) {
	r, mock := newRunner(t, nil)
	expectHistory(mock, m1)

	err := r.RollbackTo(context.Background(), "20990101000000_future", MapSource{m1.ID: m1})
	assert.ErrorIs(t, err, ErrMigrationNotApplied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRollbackToStopsOnMissingScript(t *testing.T) {
	r, mock := newRunner(t, nil)
	expectHistory(mock, m1, m2)

	err := r.RollbackTo(context.Background(), "", MapSource{m1.ID: m1})
	require.ErrorIs(t, err, ErrScriptNotFound)
	assert.Contains(t, err.Error(), m2.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRollbackToStopsOnFailure(t *testing.T) {
	r, mock := newRunner(t, nil)
	expectHistory(mock, m1, m2)
	expectLocked(mock, r, m2.ID, true)
	mock.ExpectExec(`ALTER TABLE "custom_patients" DROP COLUMN "phone"`).WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := r.RollbackTo(context.Background(), "", MapSource{m1.ID: m1, m2.ID: m2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "roll back "+m2.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatus(t *testing.T) {
	r, mock := newRunner(t, nil)
	expectHistory(mock, m1)

	st, err := r.Status(context.Background(), []string{m1.ID, m2.ID, m3.ID})
	require.NoError(t, err)
	require.Len(t, st.Applied, 1)
	assert.Equal(t, m1.ID, st.Applied[0].ID)
	assert.Equal(t, "add email", st.Applied[0].Description)
	assert.Equal(t, time.Date(2026, 2, 9, 14, 36, 44, 0, time.UTC), st.Applied[0].AppliedAt)
	assert.Equal(t, []string{m2.ID, m3.ID}, st.Pending)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryTableOption(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer sqlDB.Close()

	r := NewRunner(db.OpenDB(sqlDB), nil, WithHistoryTable("app_history"))
	assert.Equal(t, "app_history", r.HistoryTable())
	assert.NotEqual(t, NewRunner(nil, nil).lockKey, r.lockKey)
	assert.Equal(t, NewRunner(nil, nil, WithHistoryTable("app_history")).lockKey, r.lockKey)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "app_history" (
    migration_id VARCHAR(255) PRIMARY KEY,
    description VARCHAR(500),
    applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT 1 FROM "app_history" WHERE migration_id = $1`).WithArgs(m1.ID).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	applied, err := r.IsApplied(context.Background(), m1.ID)
	require.NoError(t, err)
	assert.False(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}
