// Package orm is the unit of work: it loads records through typed record
// sets, tracks them, and writes every pending change in one transaction.
//
// A Session is meant for one short flow of work on one goroutine. It carries
// no locking.
package orm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mini_orm/internal/db"
	"mini_orm/internal/predicate"
	"mini_orm/internal/schema"
	"mini_orm/internal/statement"
	"mini_orm/internal/tracker"
)

type Session struct {
	id      uuid.UUID
	conn    db.Conn
	catalog *Catalog
	tracker *tracker.Tracker
	logger  *slog.Logger
	timeout time.Duration
}

type Option func(*Session)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTimeout bounds every database round of the session, a whole
// SaveChanges included.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) { s.timeout = d }
}

func NewSession(conn db.Conn, catalog *Catalog, opts ...Option) *Session {
	s := &Session{
		id:      uuid.New(),
		conn:    conn,
		catalog: catalog,
		tracker: tracker.New(catalog),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session_id", s.id.String())
	return s
}

func (s *Session) ID() uuid.UUID { return s.id }

// ChangeTracker exposes the session's tracker.
func (s *Session) ChangeTracker() *tracker.Tracker { return s.tracker }

// DetectChanges flips changed Unchanged records to Modified. SaveChanges
// always runs it first.
func (s *Session) DetectChanges() (int, error) {
	return s.tracker.DetectChanges()
}

func (s *Session) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return ctx, func() {}
}

type write struct {
	entry     *tracker.Entry
	b         *binding
	query     string
	args      []any
	returning bool
}

// SaveChanges writes inserts, then updates, then deletes, each in tracking
// order, inside a single transaction. On success Added and Modified records
// become Unchanged (inserted ones carry their generated values) and Deleted
// records are detached. On failure the transaction is rolled back, tracked
// states are left as they were and the first error is returned. An error
// wrapping ErrCommitted means the transaction did commit.
func (s *Session) SaveChanges(ctx context.Context) (int64, error) {
	if _, err := s.tracker.DetectChanges(); err != nil {
		return 0, fmt.Errorf("detect changes: %w", err)
	}
	writes, err := s.plan()
	if err != nil {
		return 0, err
	}
	if len(writes) == 0 {
		return 0, nil
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var affected int64
	returned := make(map[tracker.Handle][]any)
	for _, w := range writes {
		if w.returning {
			rows, err := tx.Query(ctx, w.query, w.args...)
			if err != nil {
				s.logger.Warn("save changes rolled back", "table", w.b.desc.Table, "error", err)
				return 0, err
			}
			if len(rows) != 1 {
				return 0, fmt.Errorf("insert into %s returned %d rows", w.b.desc.Table, len(rows))
			}
			vals, err := w.b.decode(rows[0])
			if err != nil {
				return 0, fmt.Errorf("write back: %w", err)
			}
			returned[w.entry.Handle] = vals
			affected++
			continue
		}
		n, err := tx.Exec(ctx, w.query, w.args...)
		if err != nil {
			s.logger.Warn("save changes rolled back", "table", w.b.desc.Table, "error", err)
			return 0, err
		}
		if n == 0 {
			s.logger.Debug("no rows affected", "table", w.b.desc.Table, "state", w.entry.State.String())
		}
		affected += n
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	var added, modified, deleted int
	for _, w := range writes {
		switch w.entry.State {
		case tracker.Added:
			added++
			w.b.apply(w.entry.Record, returned[w.entry.Handle])
			if err := s.tracker.AcceptChanges(w.entry.Handle); err != nil {
				return affected, fmt.Errorf("%w: accept %s: %w", ErrCommitted, w.entry.Type, err)
			}
		case tracker.Modified:
			modified++
			if err := s.tracker.AcceptChanges(w.entry.Handle); err != nil {
				return affected, fmt.Errorf("%w: accept %s: %w", ErrCommitted, w.entry.Type, err)
			}
		case tracker.Deleted:
			deleted++
			s.tracker.Detach(w.entry.Handle)
		}
	}
	s.logger.Info("changes saved",
		"added", added,
		"modified", modified,
		"deleted", deleted,
		"affected", affected,
	)
	return affected, nil
}

// plan renders every pending write before anything touches the database.
func (s *Session) plan() ([]write, error) {
	var out []write
	for _, state := range []tracker.State{tracker.Added, tracker.Modified, tracker.Deleted} {
		for _, e := range s.tracker.Entries(state) {
			b, err := s.catalog.binding(e.Type)
			if err != nil {
				return nil, err
			}
			w := write{entry: e, b: b}
			switch state {
			case tracker.Added:
				q, cols := statement.Insert(b.desc)
				args, err := b.args(e.Record, cols)
				if err != nil {
					return nil, err
				}
				w.query, w.args, w.returning = q, args, true
			case tracker.Modified:
				q, cols, err := statement.Update(b.desc)
				if err != nil {
					return nil, err
				}
				args, err := b.args(e.Record, cols)
				if err != nil {
					return nil, err
				}
				key, err := b.key(e.Record)
				if err != nil {
					return nil, err
				}
				w.query, w.args = q, append(args, key)
			case tracker.Deleted:
				q, err := statement.Delete(b.desc)
				if err != nil {
					return nil, err
				}
				key, err := b.key(e.Record)
				if err != nil {
					return nil, err
				}
				w.query, w.args = q, []any{key}
			}
			out = append(out, w)
		}
	}
	return out, nil
}

// EnsureCreated creates the table of every catalog type. Tables that already
// exist are reported as warnings; any other failure stops and is returned.
func (s *Session) EnsureCreated(ctx context.Context) ([]*AlreadyExistsWarning, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var warnings []*AlreadyExistsWarning
	for _, desc := range s.catalog.Descriptors() {
		if _, err := s.conn.Exec(ctx, statement.CreateTable(desc)); err != nil {
			if db.IsAlreadyExists(err) {
				w := &AlreadyExistsWarning{Table: desc.Table, Err: err}
				s.logger.Warn("table already exists", "table", desc.Table, "error", err)
				warnings = append(warnings, w)
				continue
			}
			return warnings, fmt.Errorf("create table %s: %w", desc.Table, err)
		}
		s.logger.Info("table ensured", "table", desc.Table)
	}
	return warnings, nil
}

// DropAll drops every catalog table in reverse registration order.
func (s *Session) DropAll(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	descs := s.catalog.Descriptors()
	for i := len(descs) - 1; i >= 0; i-- {
		if _, err := s.conn.Exec(ctx, statement.DropTable(descs[i].Table)); err != nil {
			return fmt.Errorf("drop table %s: %w", descs[i].Table, err)
		}
		s.logger.Info("table dropped", "table", descs[i].Table)
	}
	return nil
}

// materialize builds a fresh record from every row and tracks it Unchanged.
// Records already tracked with the same key stay tracked on their own.
func (s *Session) materialize(b *binding, rows []db.Row) ([]any, error) {
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		rec := b.create()
		if err := b.hydrate(rec, row); err != nil {
			return nil, err
		}
		if _, err := s.tracker.Track(b.desc.Name, rec, tracker.Unchanged); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// include loads one relation for every parent, one query per parent.
func (s *Session) include(ctx context.Context, b *binding, parents []any, relation string) error {
	j, err := s.catalog.join(b.desc.Name, relation)
	if err != nil {
		return err
	}
	assign, ok := b.links[relation]
	if !ok {
		return fmt.Errorf("relation %s.%s has no link", b.desc.Name, relation)
	}
	parentCol, err := b.desc.Column(j.parentField)
	if err != nil {
		return err
	}
	for _, parent := range parents {
		key, err := b.storage(parent, parentCol)
		if err != nil {
			return err
		}
		if key == nil {
			assign(parent, nil)
			continue
		}
		frag, err := predicate.Compile(j.target.desc, predicate.Eq(j.targetField, key), 1)
		if err != nil {
			return err
		}
		rows, err := s.conn.Query(ctx, statement.Select(j.target.desc, statement.Options{Where: frag.SQL}), frag.Args...)
		if err != nil {
			return err
		}
		related, err := s.materialize(j.target, rows)
		if err != nil {
			return err
		}
		if j.rel.Cardinality == schema.One && len(related) > 1 {
			related = related[:1]
		}
		assign(parent, related)
	}
	return nil
}
