// Package codec converts between record field values and the values the
// pgx driver accepts and produces, per semantic column type.
package codec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"mini_orm/internal/schema"
)

// UnsupportedTypeError is returned for semantic types outside the supported set.
type UnsupportedTypeError = schema.UnsupportedTypeError

// ConversionError reports a value whose Go type does not fit the column type.
type ConversionError struct {
	Type  schema.Type
	Value any
	Err   error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cannot convert %T to %s: %v", e.Value, e.Type, e.Err)
	}
	return fmt.Sprintf("cannot convert %T to %s", e.Value, e.Type)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// TimestampLayout is the text form used when timestamps arrive as strings.
const TimestampLayout = "2006-01-02 15:04:05"

// ToStorage converts a field value into a driver argument.
func ToStorage(v any, t schema.Type) (any, error) {
	if !t.Valid() {
		return nil, &UnsupportedTypeError{Type: t}
	}
	v = Deref(v)
	if v == nil {
		return nil, nil
	}
	switch t {
	case schema.Integer, schema.BigInt:
		if n, ok := asInt64(v); ok {
			return n, nil
		}
	case schema.Text:
		switch s := v.(type) {
		case string:
			return s, nil
		case []byte:
			return string(s), nil
		}
	case schema.Boolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case schema.Timestamp, schema.OptionalTimestamp, schema.TimestampTZ:
		if ts, ok := v.(time.Time); ok {
			return ts, nil
		}
	case schema.Decimal:
		return decimalText(v)
	case schema.Float, schema.Double:
		if f, ok := asFloat64(v); ok {
			return f, nil
		}
	}
	return nil, &ConversionError{Type: t, Value: v}
}

// FromStorage converts a scanned driver value into the field representation:
// int64, string, bool, time.Time, *time.Time (OptionalTimestamp), decimal
// text or float64. A NULL column yields nil.
func FromStorage(v any, t schema.Type) (any, error) {
	if !t.Valid() {
		return nil, &UnsupportedTypeError{Type: t}
	}
	if v == nil {
		return nil, nil
	}
	switch t {
	case schema.Integer, schema.BigInt:
		if n, ok := asInt64(v); ok {
			return n, nil
		}
		if s, ok := asText(v); ok {
			n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return nil, &ConversionError{Type: t, Value: v, Err: err}
			}
			return n, nil
		}
	case schema.Text:
		if s, ok := asText(v); ok {
			return s, nil
		}
	case schema.Boolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string, []byte:
			s, _ := asText(b)
			parsed, err := strconv.ParseBool(normalizeBool(s))
			if err != nil {
				return nil, &ConversionError{Type: t, Value: v, Err: err}
			}
			return parsed, nil
		}
	case schema.Timestamp, schema.TimestampTZ, schema.OptionalTimestamp:
		ts, err := asTime(v)
		if err != nil {
			return nil, &ConversionError{Type: t, Value: v, Err: err}
		}
		if t == schema.OptionalTimestamp {
			return &ts, nil
		}
		return ts, nil
	case schema.Decimal:
		return decimalText(v)
	case schema.Float, schema.Double:
		if f, ok := asFloat64(v); ok {
			return f, nil
		}
		if s, ok := asText(v); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, &ConversionError{Type: t, Value: v, Err: err}
			}
			return f, nil
		}
	}
	return nil, &ConversionError{Type: t, Value: v}
}

func decimalText(v any) (any, error) {
	var s string
	switch d := v.(type) {
	case string:
		s = strings.TrimSpace(d)
	case []byte:
		s = strings.TrimSpace(string(d))
	case float64:
		// Binary floats carry no exact decimal; this is the shortest text
		// that reads back to the same float.
		return strconv.FormatFloat(d, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(d), 'f', -1, 32), nil
	case pgtype.Numeric:
		return numericText(d, v)
	default:
		if n, ok := asInt64(v); ok {
			return strconv.FormatInt(n, 10), nil
		}
		return nil, &ConversionError{Type: schema.Decimal, Value: v}
	}
	var num pgtype.Numeric
	if err := num.Scan(s); err != nil {
		return nil, &ConversionError{Type: schema.Decimal, Value: v, Err: err}
	}
	if num.NaN || num.InfinityModifier != pgtype.Finite {
		return nil, &ConversionError{Type: schema.Decimal, Value: v, Err: fmt.Errorf("non-finite decimal %q", s)}
	}
	return s, nil
}

// numericText renders d exactly through its own text encoding.
func numericText(d pgtype.Numeric, orig any) (any, error) {
	if !d.Valid {
		return nil, nil
	}
	if d.NaN || d.InfinityModifier != pgtype.Finite {
		return nil, &ConversionError{Type: schema.Decimal, Value: orig, Err: errors.New("non-finite decimal")}
	}
	dv, err := d.Value()
	if err != nil {
		return nil, &ConversionError{Type: schema.Decimal, Value: orig, Err: err}
	}
	s, ok := dv.(string)
	if !ok {
		return nil, &ConversionError{Type: schema.Decimal, Value: orig}
	}
	return s, nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint8:
		return int64(n), true
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	}
	if n, ok := asInt64(v); ok {
		return float64(n), true
	}
	return 0, false
}

func asText(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}

func asTime(v any) (time.Time, error) {
	switch ts := v.(type) {
	case time.Time:
		return ts, nil
	case string, []byte:
		s, _ := asText(ts)
		for _, layout := range []string{time.RFC3339Nano, TimestampLayout, "2006-01-02 15:04:05.999999999", "2006-01-02"} {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
	}
	return time.Time{}, fmt.Errorf("unexpected %T", v)
}

func normalizeBool(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "t", "y", "yes", "on":
		return "true"
	case "f", "n", "no", "off":
		return "false"
	}
	return s
}

// Deref unwraps the pointer types record fields commonly use for nullable
// columns. A nil pointer yields nil; other values pass through.
func Deref(v any) any {
	switch p := v.(type) {
	case *int64:
		return derefPtr(p)
	case *int:
		return derefPtr(p)
	case *int32:
		return derefPtr(p)
	case *string:
		return derefPtr(p)
	case *bool:
		return derefPtr(p)
	case *float64:
		return derefPtr(p)
	case *float32:
		return derefPtr(p)
	case *time.Time:
		return derefPtr(p)
	}
	return v
}

func derefPtr[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
