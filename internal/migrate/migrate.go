// Package migrate generates schema migrations from model descriptors and
// applies or reverts them while keeping a history table.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"mini_orm/internal/db"
	"mini_orm/internal/schema"
)

const DefaultHistoryTable = "__orm_migrations_history"

var (
	ErrMigrationNotApplied = errors.New("migration is not applied")
	ErrScriptNotFound      = errors.New("migration script not found")
)

// Source resolves a migration id to its scripts. A missing id reports
// ErrScriptNotFound.
type Source interface {
	Lookup(id string) (Migration, error)
}

// MapSource is an in-memory Source.
type MapSource map[string]Migration

func (s MapSource) Lookup(id string) (Migration, error) {
	m, ok := s[id]
	if !ok {
		return Migration{}, fmt.Errorf("%w: %s", ErrScriptNotFound, id)
	}
	return m, nil
}

// HistoryEntry is one row of the history table.
type HistoryEntry struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	AppliedAt   time.Time `json:"applied_at"`
}

// Status compares the history with the migrations that are available.
type Status struct {
	Applied []HistoryEntry `json:"applied"`
	Pending []string       `json:"pending"`
}

type Runner struct {
	conn    db.Conn
	logger  *slog.Logger
	table   string
	lockKey int64
	now     func() time.Time
}

type RunnerOption func(*Runner)

// WithHistoryTable overrides DefaultHistoryTable.
func WithHistoryTable(name string) RunnerOption {
	return func(r *Runner) {
		if name != "" {
			r.table = name
		}
	}
}

func NewRunner(conn db.Conn, logger *slog.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	r := &Runner{conn: conn, logger: logger, table: DefaultHistoryTable, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	r.lockKey = advisoryKey(uuid.NewSHA1(uuid.NameSpaceOID, []byte(r.table)))
	return r
}

func (r *Runner) HistoryTable() string { return r.table }

func (r *Runner) EnsureHistoryTable(ctx context.Context) error {
	_, err := r.conn.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    migration_id VARCHAR(255) PRIMARY KEY,
    description VARCHAR(500),
    applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, db.QuoteIdent(r.table)))
	if err != nil {
		return fmt.Errorf("ensure history table: %w", err)
	}
	return nil
}

// Applied lists the history in application order.
func (r *Runner) Applied(ctx context.Context) ([]HistoryEntry, error) {
	if err := r.EnsureHistoryTable(ctx); err != nil {
		return nil, err
	}
	rows, err := r.conn.Query(ctx, fmt.Sprintf(
		`SELECT migration_id, description, applied_at FROM %s ORDER BY applied_at, migration_id`,
		db.QuoteIdent(r.table)))
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	out := make([]HistoryEntry, 0, len(rows))
	for _, row := range rows {
		var e HistoryEntry
		if e.ID, err = row.String("migration_id"); err != nil {
			return nil, fmt.Errorf("read history: %w", err)
		}
		if e.Description, err = row.String("description"); err != nil {
			return nil, fmt.Errorf("read history: %w", err)
		}
		v, err := row.Decode("applied_at", schema.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("read history: %w", err)
		}
		e.AppliedAt, _ = v.(time.Time)
		out = append(out, e)
	}
	return out, nil
}

func (r *Runner) IsApplied(ctx context.Context, id string) (bool, error) {
	if err := r.EnsureHistoryTable(ctx); err != nil {
		return false, err
	}
	return r.isApplied(ctx, r.conn, id)
}

func (r *Runner) isApplied(ctx context.Context, ex db.Executor, id string) (bool, error) {
	v, err := ex.Scalar(ctx, fmt.Sprintf(`SELECT 1 FROM %s WHERE migration_id = $1`, db.QuoteIdent(r.table)), id)
	if err != nil {
		return false, fmt.Errorf("check history: %w", err)
	}
	return v != nil, nil
}

// Apply runs the forward script and records the migration. An already
// applied migration is skipped with a warning.
func (r *Runner) Apply(ctx context.Context, m Migration) error {
	return r.run(ctx, m, true)
}

// Rollback runs the reverse script and removes the history row. A
// migration that is not applied is skipped with a warning.
func (r *Runner) Rollback(ctx context.Context, m Migration) error {
	return r.run(ctx, m, false)
}

// RollbackTo reverts every migration applied after target, newest first.
// An empty target reverts all of them. It stops at the first failure.
func (r *Runner) RollbackTo(ctx context.Context, target string, src Source) error {
	history, err := r.Applied(ctx)
	if err != nil {
		return err
	}
	ids := make([]string, len(history))
	for i, e := range history {
		ids[i] = e.ID
	}

	start := 0
	if target != "" {
		i := slices.Index(ids, target)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrMigrationNotApplied, target)
		}
		start = i + 1
	}
	revert := ids[start:]
	if len(revert) == 0 {
		r.logger.Info("nothing to roll back", "target", target)
		return nil
	}

	r.logger.Info("rolling back migrations", "target", target, "count", len(revert))
	for i := len(revert) - 1; i >= 0; i-- {
		m, err := src.Lookup(revert[i])
		if err != nil {
			return fmt.Errorf("roll back %s: %w", revert[i], err)
		}
		if err := r.Rollback(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// Status reports the applied history and which of the available ids are
// still pending, in the order given.
func (r *Runner) Status(ctx context.Context, available []string) (Status, error) {
	history, err := r.Applied(ctx)
	if err != nil {
		return Status{}, err
	}
	applied := make(map[string]struct{}, len(history))
	for _, e := range history {
		applied[e.ID] = struct{}{}
	}
	st := Status{Applied: history, Pending: []string{}}
	for _, id := range available {
		if _, ok := applied[id]; !ok {
			st.Pending = append(st.Pending, id)
		}
	}
	return st, nil
}

func (r *Runner) run(ctx context.Context, m Migration, forward bool) error {
	verb, script := "apply", m.Up
	if !forward {
		verb, script = "roll back", m.Down
	}
	logger := r.logger.With("migration_id", m.ID)

	if err := r.EnsureHistoryTable(ctx); err != nil {
		return err
	}
	tx, err := r.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, r.lockKey); err != nil {
		return fmt.Errorf("lock: %w", err)
	}
	applied, err := r.isApplied(ctx, tx, m.ID)
	if err != nil {
		return err
	}
	if applied == forward {
		if forward {
			logger.Warn("migration already applied, skipping")
		} else {
			logger.Warn("migration is not applied, skipping rollback")
		}
		return nil
	}

	for _, stmt := range db.SplitStatements(script) {
		logger.Debug("executing statement", "statement", stmt)
		if _, err := tx.Exec(ctx, stmt); err != nil {
			logger.Error("migration failed", "direction", verb, "error", err)
			return fmt.Errorf("%s %s: %w", verb, m.ID, err)
		}
	}

	table := db.QuoteIdent(r.table)
	if forward {
		_, err = tx.Exec(ctx,
			fmt.Sprintf(`INSERT INTO %s (migration_id, description, applied_at) VALUES ($1, $2, $3)`, table),
			m.ID, m.Description, r.now().UTC())
	} else {
		_, err = tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE migration_id = $1`, table), m.ID)
	}
	if err != nil {
		return fmt.Errorf("record %s: %w", m.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if forward {
		logger.Info("migration applied", "description", m.Description)
	} else {
		logger.Info("migration rolled back")
	}
	return nil
}

// advisoryKey folds the first eight bytes of id into a lock key.
func advisoryKey(id uuid.UUID) int64 {
	var out int64
	for i := 0; i < 8; i++ {
		out = (out << 8) | int64(id[i])
	}
	return out
}
