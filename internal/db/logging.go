package db

import (
	"context"
	"log/slog"
	"time"
)

// WithLogging decorates conn so that every statement is logged at debug
// level and statements slower than slow are logged as warnings. A zero slow
// disables the warning.
func WithLogging(conn Conn, logger *slog.Logger, slow time.Duration) Conn {
	if logger == nil {
		return conn
	}
	return &loggedConn{Conn: conn, ex: loggedExecutor{next: conn, logger: logger, slow: slow}}
}

type loggedConn struct {
	Conn
	ex loggedExecutor
}

func (c *loggedConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return c.ex.Exec(ctx, query, args...)
}

func (c *loggedConn) Scalar(ctx context.Context, query string, args ...any) (any, error) {
	return c.ex.Scalar(ctx, query, args...)
}

func (c *loggedConn) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	return c.ex.Query(ctx, query, args...)
}

func (c *loggedConn) Begin(ctx context.Context) (Tx, error) {
	tx, err := c.Conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	c.ex.logger.Debug("tx begin")
	ex := c.ex
	ex.next = tx
	return &loggedTx{Tx: tx, ex: ex}, nil
}

type loggedTx struct {
	Tx
	ex loggedExecutor
}

func (t *loggedTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	return t.ex.Exec(ctx, query, args...)
}

func (t *loggedTx) Scalar(ctx context.Context, query string, args ...any) (any, error) {
	return t.ex.Scalar(ctx, query, args...)
}

func (t *loggedTx) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	return t.ex.Query(ctx, query, args...)
}

func (t *loggedTx) Commit() error {
	err := t.Tx.Commit()
	t.ex.logger.Debug("tx commit", "error", err)
	return err
}

func (t *loggedTx) Rollback() error {
	err := t.Tx.Rollback()
	t.ex.logger.Debug("tx rollback", "error", err)
	return err
}

type loggedExecutor struct {
	next   Executor
	logger *slog.Logger
	slow   time.Duration
}

func (l loggedExecutor) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	start := time.Now()
	n, err := l.next.Exec(ctx, query, args...)
	l.record(ctx, "exec", query, args, start, err)
	return n, err
}

func (l loggedExecutor) Scalar(ctx context.Context, query string, args ...any) (any, error) {
	start := time.Now()
	v, err := l.next.Scalar(ctx, query, args...)
	l.record(ctx, "scalar", query, args, start, err)
	return v, err
}

func (l loggedExecutor) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	start := time.Now()
	rows, err := l.next.Query(ctx, query, args...)
	l.record(ctx, "query", query, args, start, err)
	return rows, err
}

func (l loggedExecutor) record(ctx context.Context, kind, query string, args []any, start time.Time, err error) {
	elapsed := time.Since(start)
	attrs := []any{
		"kind", kind,
		"query", truncate(query, 200),
		"args", len(args),
		"duration_ms", elapsed.Milliseconds(),
	}
	if err != nil {
		l.logger.DebugContext(ctx, "statement failed", append(attrs, "error", err)...)
		return
	}
	if l.slow > 0 && elapsed > l.slow {
		l.logger.WarnContext(ctx, "slow query detected", attrs...)
		return
	}
	l.logger.DebugContext(ctx, "statement executed", attrs...)
}
