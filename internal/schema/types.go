package schema

import "fmt"

// Type is the semantic type of a column. It decides both the Go value
// representation and the derived SQL type.
type Type int

const (
	Integer Type = iota + 1
	BigInt
	Text
	Boolean
	Timestamp
	OptionalTimestamp
	TimestampTZ
	Decimal
	Float
	Double
)

var typeNames = map[Type]string{
	Integer:           "integer",
	BigInt:            "bigint",
	Text:              "text",
	Boolean:           "boolean",
	Timestamp:         "timestamp",
	OptionalTimestamp: "optional-timestamp",
	TimestampTZ:       "timestamptz",
	Decimal:           "decimal",
	Float:             "float",
	Double:            "double",
}

var sqlTypes = map[Type]string{
	Integer:           "INTEGER",
	BigInt:            "BIGINT",
	Text:              "VARCHAR(255)",
	Boolean:           "BOOLEAN",
	Timestamp:         "TIMESTAMP",
	OptionalTimestamp: "TIMESTAMP",
	TimestampTZ:       "TIMESTAMPTZ",
	Decimal:           "DECIMAL(18,2)",
	Float:             "REAL",
	Double:            "DOUBLE PRECISION",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// Valid reports whether t is one of the supported semantic types.
func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// SQLTypeFor derives the default SQL column type for a semantic type.
func SQLTypeFor(t Type) (string, error) {
	s, ok := sqlTypes[t]
	if !ok {
		return "", &UnsupportedTypeError{Type: t}
	}
	return s, nil
}
