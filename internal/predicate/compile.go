package predicate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"mini_orm/internal/codec"
	"mini_orm/internal/db"
	"mini_orm/internal/schema"
)

// UnsupportedExpressionError is returned for nodes outside the closed grammar.
type UnsupportedExpressionError struct {
	Node string
}

func (e *UnsupportedExpressionError) Error() string {
	return fmt.Sprintf("unsupported expression: %s", e.Node)
}

// Fragment is a compiled boolean SQL fragment with its bound arguments.
// Placeholders are numbered from the start passed to Compile.
type Fragment struct {
	SQL  string
	Args []any

	inline string
}

// Inline renders the fragment with literals embedded. It is meant for logs
// and must never be executed.
func (f Fragment) Inline() string {
	if f.inline == "" {
		return f.SQL
	}
	return f.inline
}

// Next is the placeholder number following this fragment's arguments.
func (f Fragment) Next(start int) int {
	return start + len(f.Args)
}

// Compile translates expr into a fragment over desc's columns. Literal values
// are bound as $start, $start+1, ... .
func Compile(desc *schema.Descriptor, expr Expr, start int) (Fragment, error) {
	if start < 1 {
		start = 1
	}
	c := &compiler{desc: desc, next: start}
	if err := c.expr(expr); err != nil {
		return Fragment{}, err
	}
	return Fragment{SQL: c.sql.String(), Args: c.args, inline: c.inline.String()}, nil
}

type compiler struct {
	desc   *schema.Descriptor
	next   int
	args   []any
	sql    strings.Builder
	inline strings.Builder
}

func (c *compiler) emit(s string) {
	c.sql.WriteString(s)
	c.inline.WriteString(s)
}

// expr renders a boolean node: a comparison, AND/OR, or NOT. Fields and
// literals are only valid as comparison operands.
func (c *compiler) expr(e Expr) error {
	switch n := e.(type) {
	case nil:
		return &UnsupportedExpressionError{Node: "nil"}
	case Compare:
		if !n.Op.comparison() {
			return &UnsupportedExpressionError{Node: fmt.Sprintf("comparison operator %s", n.Op)}
		}
		return c.compare(n)
	case Logical:
		if !n.Op.logical() {
			return &UnsupportedExpressionError{Node: fmt.Sprintf("logical operator %s", n.Op)}
		}
		c.emit("(")
		if err := c.expr(n.Left); err != nil {
			return err
		}
		c.emit(" " + n.Op.String() + " ")
		if err := c.expr(n.Right); err != nil {
			return err
		}
		c.emit(")")
		return nil
	case Not:
		c.emit("NOT (")
		if err := c.expr(n.X); err != nil {
			return err
		}
		c.emit(")")
		return nil
	case Field, Value:
		return &UnsupportedExpressionError{Node: fmt.Sprintf("%T outside a comparison", e)}
	default:
		return &UnsupportedExpressionError{Node: fmt.Sprintf("%T", e)}
	}
}

// operand renders one side of a comparison. hint is the column on the other
// side, used to convert literals to that column's storage representation.
func (c *compiler) operand(e Expr, hint *schema.Column) error {
	switch n := e.(type) {
	case Field:
		col, err := c.desc.Column(n.Name)
		if err != nil {
			return err
		}
		c.emit(db.QuoteIdent(col.Name))
		return nil
	case Value:
		return c.value(n.V, hint)
	case nil:
		return &UnsupportedExpressionError{Node: "nil operand"}
	default:
		return &UnsupportedExpressionError{Node: fmt.Sprintf("%T as comparison operand", e)}
	}
}

func (c *compiler) compare(n Compare) error {
	if n.Op == OpEq || n.Op == OpNe {
		if operand, ok := nullComparison(n); ok {
			c.emit("(")
			if err := c.operand(operand, nil); err != nil {
				return err
			}
			if n.Op == OpEq {
				c.emit(" IS NULL)")
			} else {
				c.emit(" IS NOT NULL)")
			}
			return nil
		}
	}
	leftHint, err := c.columnOf(n.Right)
	if err != nil {
		return err
	}
	rightHint, err := c.columnOf(n.Left)
	if err != nil {
		return err
	}
	return c.binary(n.Op, n.Left, n.Right, leftHint, rightHint)
}

func (c *compiler) binary(op Op, left, right Expr, leftHint, rightHint *schema.Column) error {
	c.emit("(")
	if err := c.operand(left, leftHint); err != nil {
		return err
	}
	c.emit(" " + op.String() + " ")
	if err := c.operand(right, rightHint); err != nil {
		return err
	}
	c.emit(")")
	return nil
}

func (c *compiler) value(v any, hint *schema.Column) error {
	v = codec.Deref(v)
	if v == nil {
		c.emit("NULL")
		return nil
	}
	text, err := FormatLiteral(v)
	if err != nil {
		return err
	}
	bound := v
	if hint != nil {
		if bound, err = codec.ToStorage(v, hint.Type); err != nil {
			return fmt.Errorf("literal for %s: %w", hint.Field, err)
		}
	}
	c.args = append(c.args, bound)
	c.sql.WriteString("$" + strconv.Itoa(c.next))
	c.inline.WriteString(text)
	c.next++
	return nil
}

func (c *compiler) columnOf(e Expr) (*schema.Column, error) {
	f, ok := e.(Field)
	if !ok {
		return nil, nil
	}
	return c.desc.Column(f.Name)
}

func nullComparison(n Compare) (Expr, bool) {
	if v, ok := n.Right.(Value); ok && codec.Deref(v.V) == nil {
		return n.Left, true
	}
	if v, ok := n.Left.(Value); ok && codec.Deref(v.V) == nil {
		return n.Right, true
	}
	return nil, false
}

// FormatLiteral renders v as SQL literal text: NULL, quoted text with quotes
// doubled, quoted timestamps, TRUE/FALSE, or plain numbers. Pointers are
// followed; a nil pointer is NULL.
func FormatLiteral(v any) (string, error) {
	switch x := codec.Deref(v).(type) {
	case nil:
		return "NULL", nil
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'", nil
	case time.Time:
		return "'" + x.Format(codec.TimestampLayout) + "'", nil
	case bool:
		if x {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int:
		return strconv.Itoa(x), nil
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", x), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	}
	return "", &UnsupportedExpressionError{Node: fmt.Sprintf("literal of type %T", v)}
}
