package condition

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------
// AST nodes
// -----------------------------------------------------------------------

// Expr is a boolean node.
type Expr interface {
	exprNode()
}

// BinaryExpr represents AND / OR.
type BinaryExpr struct {
	Op    string // "AND" | "OR"
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}

// NotExpr represents NOT <expr>.
type NotExpr struct {
	Expr Expr
}

func (*NotExpr) exprNode() {}

// ComparisonExpr represents <operand> <operator> <operand>.
type ComparisonExpr struct {
	Left  Operand
	Op    Operator
	Right Operand

	re *regexp.Regexp // precompiled when Op is matches and Right is a literal
}

func (*ComparisonExpr) exprNode() {}

// TruthExpr is an operand used as a condition on its own; it must
// evaluate to a bool.
type TruthExpr struct {
	Operand Operand
}

func (*TruthExpr) exprNode() {}

// -----------------------------------------------------------------------
// Operands
// -----------------------------------------------------------------------

// Operand is a value-producing node.
type Operand interface {
	operandNode()
}

// LiteralOperand holds a pre-parsed constant: decimal.Decimal, string or bool.
type LiteralOperand struct {
	Value interface{}
}

func (*LiteralOperand) operandNode() {}

// FieldOperand holds a dot-separated path like "platform.doordash.gross".
type FieldOperand struct {
	Path []string
}

func (*FieldOperand) operandNode() {}

// ArithOperand is <operand> (+|-|*|/) <operand>.
type ArithOperand struct {
	Op    byte
	Left  Operand
	Right Operand
}

func (*ArithOperand) operandNode() {}

// NegOperand is unary minus.
type NegOperand struct {
	Operand Operand
}

func (*NegOperand) operandNode() {}

// -----------------------------------------------------------------------
// Tokenizer
// -----------------------------------------------------------------------

type tokenKind int

const (
	tokWord   tokenKind = iota // identifier or keyword
	tokOp                      // ==, !=, >=, <=, >, <
	tokArith                   // + - * /
	tokString                  // "..." or '...'
	tokNumber                  // 42 | 3.14 | -7
	tokBool                    // true | false
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	kind tokenKind
	val  string
}

var keywords = map[string]bool{"and": true, "or": true, "not": true, "contains": true, "matches": true}

// endsOperand reports whether t can end an operand, in which case a
// following '-' is subtraction rather than a sign.
func endsOperand(t token) bool {
	switch t.kind {
	case tokNumber, tokString, tokBool, tokRParen:
		return true
	case tokWord:
		return !keywords[strings.ToLower(t.val)]
	}
	return false
}

func tokenize(expr string) ([]token, error) {
	var tokens []token
	prevOperand := func() bool {
		return len(tokens) > 0 && endsOperand(tokens[len(tokens)-1])
	}
	i := 0
	for i < len(expr) {
		ch := expr[i]
		if unicode.IsSpace(rune(ch)) {
			i++
			continue
		}
		if ch == '(' {
			tokens = append(tokens, token{tokLParen, "("})
			i++
			continue
		}
		if ch == ')' {
			tokens = append(tokens, token{tokRParen, ")"})
			i++
			continue
		}
		if ch == '=' || ch == '!' || ch == '<' || ch == '>' {
			if i+1 < len(expr) && expr[i+1] == '=' {
				tokens = append(tokens, token{tokOp, expr[i : i+2]})
				i += 2
				continue
			}
			if ch == '=' || ch == '!' {
				return nil, fmt.Errorf("unexpected character %q at position %d", ch, i)
			}
			tokens = append(tokens, token{tokOp, string(ch)})
			i++
			continue
		}
		// A '-' directly before a digit is a sign unless it follows an operand.
		negNumber := ch == '-' && i+1 < len(expr) && isDigit(expr[i+1]) && !prevOperand()
		if ch == '*' || ch == '/' || ch == '+' || (ch == '-' && !negNumber) {
			tokens = append(tokens, token{tokArith, string(ch)})
			i++
			continue
		}
		if ch == '"' || ch == '\'' {
			quote := ch
			j := i + 1
			for j < len(expr) && expr[j] != quote {
				if expr[j] == '\\' {
					j++
				}
				j++
			}
			if j >= len(expr) {
				return nil, fmt.Errorf("unterminated string starting at position %d", i)
			}
			inner := expr[i+1 : j]
			inner = strings.ReplaceAll(inner, `\"`, `"`)
			inner = strings.ReplaceAll(inner, `\'`, `'`)
			inner = strings.ReplaceAll(inner, `\\`, `\`)
			tokens = append(tokens, token{tokString, inner})
			i = j + 1
			continue
		}
		if isDigit(ch) || negNumber {
			j := i + 1
			for j < len(expr) && (isDigit(expr[j]) || expr[j] == '.') {
				j++
			}
			tokens = append(tokens, token{tokNumber, expr[i:j]})
			i = j
			continue
		}
		if unicode.IsLetter(rune(ch)) || ch == '_' {
			j := i
			for j < len(expr) && (unicode.IsLetter(rune(expr[j])) || isDigit(expr[j]) || expr[j] == '_' || expr[j] == '.') {
				j++
			}
			word := expr[i:j]
			switch strings.ToLower(word) {
			case "true", "false":
				tokens = append(tokens, token{tokBool, strings.ToLower(word)})
			default:
				tokens = append(tokens, token{tokWord, word})
			}
			i = j
			continue
		}
		return nil, fmt.Errorf("unexpected character %q at position %d", ch, i)
	}
	tokens = append(tokens, token{tokEOF, ""})
	return tokens, nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// -----------------------------------------------------------------------
// Recursive-descent parser
// -----------------------------------------------------------------------

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) consume() token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

func (p *parser) expect(kind tokenKind, val string) error {
	t := p.peek()
	if t.kind != kind || (val != "" && t.val != val) {
		return fmt.Errorf("expected %q but got %q", val, t.val)
	}
	p.consume()
	return nil
}

func (p *parser) isKeyword(kw string) bool {
	t := p.peek()
	return t.kind == tokWord && strings.EqualFold(t.val, kw)
}

// Parse parses an expression string into an AST.
func Parse(expr string) (Expr, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, fmt.Errorf("unexpected token %q after expression", p.peek().val)
	}
	return node, nil
}

// or_expr = and_expr ( "OR" and_expr )*
func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("OR") {
		p.consume()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

// and_expr = not_expr ( "AND" not_expr )*
func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("AND") {
		p.consume()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

// not_expr = "NOT" not_expr | "(" or_expr ")" | comparison
//
// A parenthesis may also open an arithmetic group, as in "(a + b) > c".
// The boolean reading is tried first; if it fails, or a comparison or
// arithmetic operator follows the closing parenthesis, the parser rewinds
// and reads a comparison instead.
func (p *parser) parseNot() (Expr, error) {
	if p.isKeyword("NOT") {
		p.consume()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &NotExpr{Expr: inner}, nil
	}
	if p.peek().kind == tokLParen {
		mark := p.pos
		p.consume()
		inner, err := p.parseOr()
		if err == nil {
			err = p.expect(tokRParen, ")")
		}
		if err == nil && !p.continuesOperand() {
			return inner, nil
		}
		p.pos = mark
	}
	return p.parseComparison()
}

func (p *parser) continuesOperand() bool {
	t := p.peek()
	return t.kind == tokOp || t.kind == tokArith || p.isKeyword("contains") || p.isKeyword("matches")
}

// comparison = sum [ operator sum ]
func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseSum()
	if err != nil {
		return nil, err
	}

	t := p.peek()
	var op Operator
	switch {
	case t.kind == tokOp:
		op = Operator(t.val)
	case p.isKeyword("contains"):
		op = OpContains
	case p.isKeyword("matches"):
		op = OpMatches
	default:
		return &TruthExpr{Operand: left}, nil
	}
	if !op.valid() {
		return nil, fmt.Errorf("unknown operator %q", t.val)
	}
	p.consume()

	right, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	cmp := &ComparisonExpr{Left: left, Op: op, Right: right}
	if lit, ok := right.(*LiteralOperand); ok && op == OpMatches {
		pattern, ok := lit.Value.(string)
		if !ok {
			return nil, fmt.Errorf("matches: pattern must be a string")
		}
		if cmp.re, err = regexp.Compile(pattern); err != nil {
			return nil, fmt.Errorf("matches: invalid regex %q: %w", pattern, err)
		}
	}
	return cmp, nil
}

// sum = product ( ("+" | "-") product )*
func (p *parser) parseSum() (Operand, error) {
	left, err := p.parseProduct()
	if err != nil {
		return nil, err
	}
	for t := p.peek(); t.kind == tokArith && (t.val == "+" || t.val == "-"); t = p.peek() {
		p.consume()
		right, err := p.parseProduct()
		if err != nil {
			return nil, err
		}
		left = &ArithOperand{Op: t.val[0], Left: left, Right: right}
	}
	return left, nil
}

// product = unary ( ("*" | "/") unary )*
func (p *parser) parseProduct() (Operand, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for t := p.peek(); t.kind == tokArith && (t.val == "*" || t.val == "/"); t = p.peek() {
		p.consume()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &ArithOperand{Op: t.val[0], Left: left, Right: right}
	}
	return left, nil
}

// unary = "-" unary | primary
func (p *parser) parseUnary() (Operand, error) {
	if t := p.peek(); t.kind == tokArith && t.val == "-" {
		p.consume()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &NegOperand{Operand: inner}, nil
	}
	return p.parsePrimary()
}

// primary = "(" sum ")" | field_path | literal
func (p *parser) parsePrimary() (Operand, error) {
	t := p.peek()
	switch t.kind {
	case tokLParen:
		p.consume()
		inner, err := p.parseSum()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokRParen, ")"); err != nil {
			return nil, err
		}
		return inner, nil
	case tokString:
		p.consume()
		return &LiteralOperand{Value: t.val}, nil
	case tokNumber:
		p.consume()
		d, err := decimal.NewFromString(t.val)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", t.val)
		}
		return &LiteralOperand{Value: d}, nil
	case tokBool:
		p.consume()
		return &LiteralOperand{Value: t.val == "true"}, nil
	case tokWord:
		if keywords[strings.ToLower(t.val)] {
			return nil, fmt.Errorf("expected operand, got keyword %q", t.val)
		}
		p.consume()
		return &FieldOperand{Path: strings.Split(t.val, ".")}, nil
	default:
		return nil, fmt.Errorf("expected operand, got %q", t.val)
	}
}
