// Package predicate defines the closed filter grammar and compiles it into
// parameterized SQL boolean fragments.
package predicate

// Expr is a node of the filter AST. The set of node kinds is closed.
type Expr interface {
	node()
}

// Op is a comparison or logical operator.
type Op int

const (
	OpEq Op = iota + 1
	OpNe
	OpGt
	OpGe
	OpLt
	OpLe
	OpAnd
	OpOr
)

var opSQL = map[Op]string{
	OpEq:  "=",
	OpNe:  "!=",
	OpGt:  ">",
	OpGe:  ">=",
	OpLt:  "<",
	OpLe:  "<=",
	OpAnd: "AND",
	OpOr:  "OR",
}

func (o Op) String() string {
	if s, ok := opSQL[o]; ok {
		return s
	}
	return "?"
}

func (o Op) comparison() bool { return o >= OpEq && o <= OpLe }

func (o Op) logical() bool { return o == OpAnd || o == OpOr }

// Compare is a comparison between two operands, each a Field or a Value.
type Compare struct {
	Op          Op
	Left, Right Expr
}

// Logical combines two boolean expressions with AND or OR.
type Logical struct {
	Op          Op
	Left, Right Expr
}

// Not negates X.
type Not struct {
	X Expr
}

// Field references a record field by its logical name.
type Field struct {
	Name string
}

// Value is a literal operand. A nil V is SQL NULL.
type Value struct {
	V any
}

func (Compare) node() {}
func (Logical) node() {}
func (Not) node()     {}
func (Field) node()   {}
func (Value) node()   {}

func F(name string) Field { return Field{Name: name} }
func V(v any) Value       { return Value{V: v} }

func Eq(field string, v any) Expr { return Compare{Op: OpEq, Left: F(field), Right: V(v)} }
func Ne(field string, v any) Expr { return Compare{Op: OpNe, Left: F(field), Right: V(v)} }
func Gt(field string, v any) Expr { return Compare{Op: OpGt, Left: F(field), Right: V(v)} }
func Ge(field string, v any) Expr { return Compare{Op: OpGe, Left: F(field), Right: V(v)} }
func Lt(field string, v any) Expr { return Compare{Op: OpLt, Left: F(field), Right: V(v)} }
func Le(field string, v any) Expr { return Compare{Op: OpLe, Left: F(field), Right: V(v)} }

// And folds its operands left to right: And(a, b, c) is ((a AND b) AND c).
func And(first Expr, rest ...Expr) Expr { return fold(OpAnd, first, rest) }

// Or folds its operands left to right.
func Or(first Expr, rest ...Expr) Expr { return fold(OpOr, first, rest) }

func Negate(x Expr) Expr { return Not{X: x} }

func fold(op Op, first Expr, rest []Expr) Expr {
	out := first
	for _, e := range rest {
		out = Logical{Op: op, Left: out, Right: e}
	}
	return out
}
