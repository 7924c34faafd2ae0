package condition

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Operator represents a comparison operator.
type Operator string

const (
	OpEq       Operator = "=="
	OpNeq      Operator = "!="
	OpGt       Operator = ">"
	OpGte      Operator = ">="
	OpLt       Operator = "<"
	OpLte      Operator = "<="
	OpContains Operator = "contains"
	OpMatches  Operator = "matches"
)

func (op Operator) valid() bool {
	switch op {
	case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte, OpContains, OpMatches:
		return true
	}
	return false
}

// toDecimal coerces a numeric value. Floats go through their shortest
// decimal representation.
func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, true
	case *decimal.Decimal:
		if n == nil {
			return decimal.Zero, false
		}
		return *n, true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int32:
		return decimal.NewFromInt32(n), true
	case int64:
		return decimal.NewFromInt(n), true
	case uint32:
		return decimal.NewFromInt(int64(n)), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case float64:
		return decimal.NewFromFloat(n), true
	}
	return decimal.Zero, false
}

// normalize maps resolved values onto the three value kinds expressions
// operate on: decimal.Decimal, string and bool.
func normalize(v interface{}) (interface{}, error) {
	if d, ok := toDecimal(v); ok {
		return d, nil
	}
	switch x := v.(type) {
	case string, bool:
		return x, nil
	case fmt.Stringer:
		return x.String(), nil
	}
	return nil, fmt.Errorf("unsupported value type %T", v)
}

// compare applies a binary comparison operator to two normalized values.
func compare(op Operator, left, right interface{}, re *regexp.Regexp) (bool, error) {
	switch op {
	case OpEq:
		return equal(left, right), nil
	case OpNeq:
		return !equal(left, right), nil
	case OpGt, OpGte, OpLt, OpLte:
		return numericCompare(op, left, right)
	case OpContains:
		return containsOp(left, right)
	case OpMatches:
		return matchesOp(left, right, re)
	default:
		return false, fmt.Errorf("unknown operator: %s", op)
	}
}

// equal compares decimals by value; mixed kinds are never equal.
func equal(left, right interface{}) bool {
	switch l := left.(type) {
	case decimal.Decimal:
		r, ok := right.(decimal.Decimal)
		return ok && l.Equal(r)
	case bool:
		r, ok := right.(bool)
		return ok && l == r
	case string:
		r, ok := right.(string)
		return ok && l == r
	}
	return false
}

func numericCompare(op Operator, left, right interface{}) (bool, error) {
	l, lok := left.(decimal.Decimal)
	r, rok := right.(decimal.Decimal)
	if !lok || !rok {
		return false, fmt.Errorf("operator %s requires numeric operands, got %T and %T", op, left, right)
	}
	switch op {
	case OpGt:
		return l.GreaterThan(r), nil
	case OpGte:
		return l.GreaterThanOrEqual(r), nil
	case OpLt:
		return l.LessThan(r), nil
	case OpLte:
		return l.LessThanOrEqual(r), nil
	}
	return false, nil
}

func containsOp(left, right interface{}) (bool, error) {
	ls, ok := left.(string)
	if !ok {
		return false, fmt.Errorf("contains: left operand must be a string, got %T", left)
	}
	rs, ok := right.(string)
	if !ok {
		return false, fmt.Errorf("contains: right operand must be a string, got %T", right)
	}
	return strings.Contains(ls, rs), nil
}

func matchesOp(left, right interface{}, re *regexp.Regexp) (bool, error) {
	ls, ok := left.(string)
	if !ok {
		return false, fmt.Errorf("matches: left operand must be a string, got %T", left)
	}
	if re == nil {
		pattern, ok := right.(string)
		if !ok {
			return false, fmt.Errorf("matches: right operand must be a string pattern, got %T", right)
		}
		var err error
		if re, err = regexp.Compile(pattern); err != nil {
			return false, fmt.Errorf("matches: invalid regex %q: %w", pattern, err)
		}
	}
	return re.MatchString(ls), nil
}

// arith applies + - * / to two decimals.
func arith(op byte, left, right interface{}) (decimal.Decimal, error) {
	l, lok := left.(decimal.Decimal)
	r, rok := right.(decimal.Decimal)
	if !lok || !rok {
		return decimal.Zero, fmt.Errorf("operator %c requires numeric operands, got %T and %T", op, left, right)
	}
	switch op {
	case '+':
		return l.Add(r), nil
	case '-':
		return l.Sub(r), nil
	case '*':
		return l.Mul(r), nil
	case '/':
		if r.IsZero() {
			return decimal.Zero, ErrDivisionByZero
		}
		return l.Div(r), nil
	}
	return decimal.Zero, fmt.Errorf("unknown arithmetic operator %c", op)
}
