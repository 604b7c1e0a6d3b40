package predicate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mini_orm/internal/codec"
	"mini_orm/internal/schema"
)

var pair = schema.NewRegistry().MustRegister(schema.Descriptor{
	Name:  "Pair",
	Table: "pairs",
	Columns: []schema.Column{
		{Name: "id", Field: "ID", Type: schema.Integer, PrimaryKey: true, AutoIncrement: true},
		{Name: "a", Field: "A", Type: schema.Integer},
		{Name: "b", Field: "B", Type: schema.Text},
		{Name: "seen_at", Field: "SeenAt", Type: schema.OptionalTimestamp, Nullable: true},
		{Name: "active", Field: "Active", Type: schema.Boolean},
	},
})

func TestCompileAndComparison(t *testing.T) {
	frag, err := Compile(pair, And(Eq("A", 5), Ne("B", "x")), 1)
	require.NoError(t, err)
	assert.Equal(t, `(("a" = $1) AND ("b" != $2))`, frag.SQL)
	assert.Equal(t, []any{int64(5), "x"}, frag.Args)
	assert.Equal(t, `(("a" = 5) AND ("b" != 'x'))`, frag.Inline())
	assert.Equal(t, 3, frag.Next(1))
}

func TestCompileOperators(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tests := []struct {
		name   string
		expr   Expr
		sql    string
		inline string
	}{
		{"gt", Gt("A", 1), `("a" > $1)`, `("a" > 1)`},
		{"ge", Ge("A", 1), `("a" >= $1)`, `("a" >= 1)`},
		{"lt", Lt("A", 1), `("a" < $1)`, `("a" < 1)`},
		{"le", Le("A", 1), `("a" <= $1)`, `("a" <= 1)`},
		{"or", Or(Eq("A", 1), Eq("A", 2), Eq("A", 3)), `((("a" = $1) OR ("a" = $2)) OR ("a" = $3))`, `((("a" = 1) OR ("a" = 2)) OR ("a" = 3))`},
		{"not", Negate(Eq("Active", true)), `NOT (("active" = $1))`, `NOT (("active" = TRUE))`},
		{"pointer literal", Eq("B", strPtr("x")), `("b" = $1)`, `("b" = 'x')`},
		{"nil pointer is null", Eq("SeenAt", (*time.Time)(nil)), `("seen_at" IS NULL)`, `("seen_at" IS NULL)`},
		{"literal left", Compare{Op: OpLt, Left: V(3), Right: F("A")}, `($1 < "a")`, `(3 < "a")`},
		{"field to field", Compare{Op: OpEq, Left: F("A"), Right: F("ID")}, `("a" = "id")`, `("a" = "id")`},
		{"timestamp", Gt("SeenAt", ts), `("seen_at" > $1)`, `("seen_at" > '2024-01-02 03:04:05')`},
		{"is null", Eq("SeenAt", nil), `("seen_at" IS NULL)`, `("seen_at" IS NULL)`},
		{"is not null", Compare{Op: OpNe, Left: V(nil), Right: F("SeenAt")}, `("seen_at" IS NOT NULL)`, `("seen_at" IS NOT NULL)`},
		{"null ordering", Gt("A", nil), `("a" > NULL)`, `("a" > NULL)`},
		{"quote escaping", Eq("B", "O'Brien"), `("b" = $1)`, `("b" = 'O''Brien')`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frag, err := Compile(pair, tt.expr, 1)
			require.NoError(t, err)
			assert.Equal(t, tt.sql, frag.SQL)
			assert.Equal(t, tt.inline, frag.Inline())
		})
	}
}

func TestCompileOffsetsPlaceholders(t *testing.T) {
	frag, err := Compile(pair, And(Eq("A", 1), Eq("B", "z")), 4)
	require.NoError(t, err)
	assert.Equal(t, `(("a" = $4) AND ("b" = $5))`, frag.SQL)
}

func TestCompileConvertsLiteralsByColumnType(t *testing.T) {
	frag, err := Compile(pair, Eq("A", int32(9)), 1)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(9)}, frag.Args)

	_, err = Compile(pair, Eq("A", "nine"), 1)
	var conv *codec.ConversionError
	assert.ErrorAs(t, err, &conv)
}

func TestCompileErrors(t *testing.T) {
	_, err := Compile(pair, Eq("Missing", 1), 1)
	var unknown *schema.UnknownFieldError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "Missing", unknown.Field)

	var unsupported *UnsupportedExpressionError
	_, err = Compile(pair, nil, 1)
	assert.ErrorAs(t, err, &unsupported)

	_, err = Compile(pair, Compare{Op: OpAnd, Left: F("A"), Right: V(1)}, 1)
	assert.ErrorAs(t, err, &unsupported)

	_, err = Compile(pair, Logical{Op: OpEq, Left: F("A"), Right: F("B")}, 1)
	assert.ErrorAs(t, err, &unsupported)

	_, err = Compile(pair, Eq("B", []string{"x"}), 1)
	assert.ErrorAs(t, err, &unsupported)

	_, err = Compile(pair, And(Eq("A", 1), Not{}), 1)
	assert.ErrorAs(t, err, &unsupported)

	malformed := []struct {
		name string
		expr Expr
	}{
		{"comparison as operand", Compare{Op: OpEq, Left: Eq("A", 1), Right: V(5)}},
		{"negation as operand", Compare{Op: OpLt, Left: Negate(F("A")), Right: F("B")}},
		{"nil operand", Compare{Op: OpGt, Left: F("A"), Right: nil}},
		{"field under and", Logical{Op: OpAnd, Left: F("B"), Right: V("x")}},
		{"literal under or", Or(Eq("A", 1), V(true))},
		{"field under not", Negate(F("Active"))},
		{"bare field", F("Active")},
		{"bare literal", V(true)},
	}
	for _, tt := range malformed {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(pair, tt.expr, 1)
			var unsupported *UnsupportedExpressionError
			assert.ErrorAs(t, err, &unsupported)
		})
	}
}

func TestFormatLiteral(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{"it's", "'it''s'"},
		{time.Date(2026, 2, 9, 14, 36, 44, 0, time.UTC), "'2026-02-09 14:36:44'"},
		{true, "TRUE"},
		{false, "FALSE"},
		{42, "42"},
		{int64(-7), "-7"},
		{18.25, "18.25"},
		{strPtr("a'b"), "'a''b'"},
		{(*string)(nil), "NULL"},
		{(*int64)(nil), "NULL"},
	}
	for _, tt := range tests {
		got, err := FormatLiteral(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func strPtr(s string) *string { return &s }
