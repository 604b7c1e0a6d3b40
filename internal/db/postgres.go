package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"mini_orm/internal/config"
)

// Postgres is a Conn over database/sql using the pgx stdlib driver.
type Postgres struct {
	db *sql.DB
}

// Open connects to PostgreSQL with the configured pool limits.
func Open(cfg config.DatabaseConfig) (*Postgres, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database dsn is required")
	}
	sqlDB, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	return &Postgres{db: sqlDB}, nil
}

// OpenDB wraps an already opened handle.
func OpenDB(sqlDB *sql.DB) *Postgres {
	return &Postgres{db: sqlDB}
}

func (p *Postgres) DB() *sql.DB { return p.db }

func (p *Postgres) Close() error { return p.db.Close() }

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &pgTx{tx: tx}, nil
}

func (p *Postgres) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return exec(ctx, p.db, query, args)
}

func (p *Postgres) Scalar(ctx context.Context, query string, args ...any) (any, error) {
	return scalar(ctx, p.db, query, args)
}

func (p *Postgres) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	return queryRows(ctx, p.db, query, args)
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return exec(ctx, t.tx, query, args)
}

func (t *pgTx) Scalar(ctx context.Context, query string, args ...any) (any, error) {
	return scalar(ctx, t.tx, query, args)
}

func (t *pgTx) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	return queryRows(ctx, t.tx, query, args)
}

func (t *pgTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (t *pgTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback tx: %w", err)
	}
	return nil
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// statementError wraps a driver failure. When ctx ended first its error is
// kept in the chain, since drivers report cancellation in their own words.
func statementError(ctx context.Context, query string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	return &StatementExecutionError{Query: query, Err: err}
}

func exec(ctx context.Context, eq execQuerier, query string, args []any) (int64, error) {
	res, err := eq.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, statementError(ctx, query, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		// DDL reports no row count.
		return 0, nil
	}
	return n, nil
}

func scalar(ctx context.Context, eq execQuerier, query string, args []any) (any, error) {
	var v any
	if err := eq.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, statementError(ctx, query, err)
	}
	return v, nil
}

func queryRows(ctx context.Context, eq execQuerier, query string, args []any) ([]Row, error) {
	rows, err := eq.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, statementError(ctx, query, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, statementError(ctx, query, err)
	}
	var out []Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, statementError(ctx, query, err)
		}
		out = append(out, NewRow(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, statementError(ctx, query, err)
	}
	return out, nil
}

// QuoteIdent quotes a PostgreSQL identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// SplitStatements splits a script on semicolons outside quoted text and
// drops empty statements.
func SplitStatements(sqlText string) []string {
	var (
		out      []string
		current  strings.Builder
		inSingle bool
		inDouble bool
	)

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		if stmt != "" {
			out = append(out, stmt)
		}
		current.Reset()
	}

	for _, r := range sqlText {
		switch r {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		case ';':
			if !inSingle && !inDouble {
				flush()
				continue
			}
		}
		current.WriteRune(r)
	}
	flush()
	return out
}
