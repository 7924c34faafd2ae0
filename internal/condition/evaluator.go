package condition

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownField is returned when a field path does not resolve.
	ErrUnknownField = errors.New("unknown field")
	// ErrDivisionByZero is returned by a '/' with a zero divisor.
	ErrDivisionByZero = errors.New("division by zero")
)

// EvalContext provides data for expression evaluation.
type EvalContext interface {
	Resolve(path []string) (interface{}, bool)
}

// Values is a flat EvalContext keyed by the dotted path.
type Values map[string]interface{}

// Resolve implements EvalContext.
func (v Values) Resolve(path []string) (interface{}, bool) {
	val, ok := v[strings.Join(path, ".")]
	return val, ok
}

// Evaluate walks the AST and returns true/false or an error.
func Evaluate(expr Expr, ctx EvalContext) (bool, error) {
	switch e := expr.(type) {
	case *BinaryExpr:
		return evalBinary(e, ctx)
	case *NotExpr:
		v, err := Evaluate(e.Expr, ctx)
		if err != nil {
			return false, err
		}
		return !v, nil
	case *ComparisonExpr:
		return evalComparison(e, ctx)
	case *TruthExpr:
		v, err := Value(e.Operand, ctx)
		if err != nil {
			return false, err
		}
		b, ok := v.(bool)
		if !ok {
			return false, fmt.Errorf("condition must be boolean, got %T", v)
		}
		return b, nil
	default:
		return false, fmt.Errorf("unknown expr type %T", expr)
	}
}

func evalBinary(e *BinaryExpr, ctx EvalContext) (bool, error) {
	left, err := Evaluate(e.Left, ctx)
	if err != nil {
		return false, err
	}
	switch strings.ToUpper(e.Op) {
	case "AND":
		if !left {
			return false, nil
		}
		return Evaluate(e.Right, ctx)
	case "OR":
		if left {
			return true, nil
		}
		return Evaluate(e.Right, ctx)
	default:
		return false, fmt.Errorf("unknown binary op %q", e.Op)
	}
}

func evalComparison(e *ComparisonExpr, ctx EvalContext) (bool, error) {
	left, err := Value(e.Left, ctx)
	if err != nil {
		return false, err
	}
	right, err := Value(e.Right, ctx)
	if err != nil {
		return false, err
	}
	return compare(e.Op, left, right, e.re)
}

// Value computes an operand. The result is a decimal.Decimal, string or bool.
func Value(op Operand, ctx EvalContext) (interface{}, error) {
	switch o := op.(type) {
	case *LiteralOperand:
		return o.Value, nil
	case *FieldOperand:
		val, ok := ctx.Resolve(o.Path)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, strings.Join(o.Path, "."))
		}
		return normalize(val)
	case *ArithOperand:
		l, err := Value(o.Left, ctx)
		if err != nil {
			return nil, err
		}
		r, err := Value(o.Right, ctx)
		if err != nil {
			return nil, err
		}
		return arith(o.Op, l, r)
	case *NegOperand:
		v, err := Value(o.Operand, ctx)
		if err != nil {
			return nil, err
		}
		d, ok := v.(decimal.Decimal)
		if !ok {
			return nil, fmt.Errorf("unary minus requires a number, got %T", v)
		}
		return d.Neg(), nil
	default:
		return nil, fmt.Errorf("unknown operand type %T", op)
	}
}

// Fields returns the distinct field paths expr refers to, sorted.
func Fields(expr Expr) []string {
	seen := map[string]struct{}{}
	var walkOperand func(Operand)
	walkOperand = func(op Operand) {
		switch o := op.(type) {
		case *FieldOperand:
			seen[strings.Join(o.Path, ".")] = struct{}{}
		case *ArithOperand:
			walkOperand(o.Left)
			walkOperand(o.Right)
		case *NegOperand:
			walkOperand(o.Operand)
		}
	}
	var walk func(Expr)
	walk = func(e Expr) {
		switch x := e.(type) {
		case *BinaryExpr:
			walk(x.Left)
			walk(x.Right)
		case *NotExpr:
			walk(x.Expr)
		case *ComparisonExpr:
			walkOperand(x.Left)
			walkOperand(x.Right)
		case *TruthExpr:
			walkOperand(x.Operand)
		}
	}
	walk(expr)

	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
