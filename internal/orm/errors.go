package orm

import (
	"errors"
	"fmt"
)

// ErrNotTracked is returned when asking for the entry of a record the session
// does not track.
var ErrNotTracked = errors.New("orm: record is not tracked")

// ErrCommitted wraps failures that happen after SaveChanges committed. The
// database holds the changes even though the call returned an error.
var ErrCommitted = errors.New("orm: changes committed")

// AlreadyExistsWarning reports a table EnsureCreated found already present.
// It is logged and returned alongside a nil error.
type AlreadyExistsWarning struct {
	Table string
	Err   error
}

func (w *AlreadyExistsWarning) Error() string {
	return fmt.Sprintf("table %s already exists: %v", w.Table, w.Err)
}

func (w *AlreadyExistsWarning) Unwrap() error { return w.Err }
