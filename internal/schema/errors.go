package schema

import (
	"errors"
	"fmt"
)

// UnsupportedTypeError is returned when a semantic type outside the supported
// set is used for SQL derivation or value conversion.
type UnsupportedTypeError struct {
	Type Type
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported semantic type %s", e.Type)
}

// UnknownFieldError is returned when a field or relation name does not belong
// to a record type.
type UnknownFieldError struct {
	Type  string
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown field %q on %s", e.Field, e.Type)
}

// MissingPrimaryKeyError is returned by operations that need an identity
// column on a type that declares none.
type MissingPrimaryKeyError struct {
	Type string
}

func (e *MissingPrimaryKeyError) Error() string {
	return fmt.Sprintf("%s has no primary key", e.Type)
}

// ValidationError describes a descriptor rejected at registration.
type ValidationError struct {
	Type    string
	Column  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Type, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// IsUnknownField reports whether err is or wraps an UnknownFieldError.
func IsUnknownField(err error) bool {
	var e *UnknownFieldError
	return errors.As(err, &e)
}

// IsMissingPrimaryKey reports whether err is or wraps a MissingPrimaryKeyError.
func IsMissingPrimaryKey(err error) bool {
	var e *MissingPrimaryKeyError
	return errors.As(err, &e)
}
