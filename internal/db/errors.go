package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes the mapping layer reacts to.
const (
	codeDuplicateTable  = "42P07"
	codeDuplicateColumn = "42701"
	codeDuplicateObject = "42710"
	codeUniqueViolation = "23505"
)

// StatementExecutionError wraps any driver failure with the statement that
// caused it.
type StatementExecutionError struct {
	Query string
	Err   error
}

func (e *StatementExecutionError) Error() string {
	return fmt.Sprintf("execute %q: %v", truncate(e.Query, 120), e.Err)
}

func (e *StatementExecutionError) Unwrap() error { return e.Err }

// MissingColumnError is returned when a row has no column of the given name.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("column %q not in result", e.Column)
}

// IsAlreadyExists reports whether err signals that a table, column or other
// object being created is already present.
func IsAlreadyExists(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeDuplicateTable, codeDuplicateColumn, codeDuplicateObject:
			return true
		}
		return false
	}
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "already exists")
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

func truncate(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
