package tool

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CalculatorToolID is the registry id of the calculator.
const CalculatorToolID = "calculator"

var (
	// ErrDivisionByZero is returned for x/0, x%0 and 0 raised to a negative power.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrEmptyExpression is returned for blank input.
	ErrEmptyExpression = errors.New("expression is empty")
	// ErrUnsupportedExpression is returned for anything outside the arithmetic
	// whitelist: identifiers, calls, unknown operators or malformed syntax.
	ErrUnsupportedExpression = errors.New("unsupported expression")
)

const calculatorDescription = `Evaluate an arithmetic expression to verify numbers.

Supported operations: + - * / ** % and unary minus on numeric literals.
Variables, functions and attribute access are not supported.

Examples:
- (28.4 - 26.3) / 26.3 * 100   percentage improvement
- 2 ** 10                       power
- 1024 / 8                      division`

// Calculator is a whitelisted arithmetic evaluator. Input is parsed into an
// expression tree and only number literals, parentheses, unary minus and the
// binary operators + - * / ** % are evaluated.
type Calculator struct{}

// NewCalculator returns the calculator tool.
func NewCalculator() *Calculator { return &Calculator{} }

// Name implements Tool.
func (*Calculator) Name() string { return CalculatorToolID }

// Description implements Tool.
func (*Calculator) Description() string { return calculatorDescription }

// Parameters implements Tool.
func (*Calculator) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"description": "Arithmetic expression, e.g. (28.4 - 26.3) / 26.3 * 100",
			},
		},
		"required": []any{"expression"},
	}
}

// Call evaluates the expression and renders "Result: <value>". Failures are
// returned as *ToolError whose Message is the text shown to the model.
func (c *Calculator) Call(_ context.Context, input string) (string, error) {
	v, err := Calculate(input)
	if err != nil {
		te := &ToolError{Tool: CalculatorToolID, Cause: err}
		switch {
		case errors.Is(err, ErrDivisionByZero):
			te.Code, te.Message = "DIVISION_BY_ZERO", "Error: Division by zero"
		case errors.Is(err, ErrEmptyExpression):
			te.Code, te.Message = "EMPTY_EXPRESSION", "Error: Expression is empty"
		default:
			te.Code, te.Message = "CALCULATION_ERROR", "Calculation error: "+err.Error()
		}
		return "", te
	}

	return "Result: " + FormatNumber(v), nil
}

// FormatNumber prints integral values without a fractional part and rounds
// everything else to four decimals.
func FormatNumber(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// Calculate parses and evaluates an arithmetic expression.
func Calculate(expr string) (float64, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0, ErrEmptyExpression
	}

	p := &exprParser{src: expr}
	p.next()

	tree, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if p.tok.kind != tokEOF {
		return 0, p.unexpected()
	}

	v, err := tree.eval()
	if err != nil {
		return 0, err
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, errors.New("numeric result out of range")
	}
	return v, nil
}

// expression tree

type exprNode interface {
	eval() (float64, error)
}

type numberNode float64

func (n numberNode) eval() (float64, error) { return float64(n), nil }

type negNode struct{ operand exprNode }

func (n negNode) eval() (float64, error) {
	v, err := n.operand.eval()
	return -v, err
}

type binaryNode struct {
	op          string
	left, right exprNode
}

func (n binaryNode) eval() (float64, error) {
	l, err := n.left.eval()
	if err != nil {
		return 0, err
	}
	r, err := n.right.eval()
	if err != nil {
		return 0, err
	}

	switch n.op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return 0, ErrDivisionByZero
		}
		return l / r, nil
	case "%":
		if r == 0 {
			return 0, ErrDivisionByZero
		}
		m := math.Mod(l, r)
		if m != 0 && (m < 0) != (r < 0) { // result takes the sign of the divisor
			m += r
		}
		return m, nil
	case "**":
		if l == 0 && r < 0 {
			return 0, ErrDivisionByZero
		}
		if l < 0 && r != math.Trunc(r) {
			return 0, fmt.Errorf("%w: fractional power of a negative number", ErrUnsupportedExpression)
		}
		return math.Pow(l, r), nil
	}

	return 0, fmt.Errorf("%w: operator %q", ErrUnsupportedExpression, n.op)
}

// tokenizer

type tokKind int

const (
	tokEOF tokKind = iota
	tokNumber
	tokOp
	tokLParen
	tokRParen
	tokIdent
	tokInvalid
)

type token struct {
	kind tokKind
	text string
	pos  int
}

type exprParser struct {
	src string
	pos int
	tok token
}

func (p *exprParser) next() {
	for p.pos < len(p.src) && isSpace(p.src[p.pos]) {
		p.pos++
	}

	start := p.pos
	if p.pos >= len(p.src) {
		p.tok = token{kind: tokEOF, pos: start}
		return
	}

	c := p.src[p.pos]
	switch {
	case isDigit(c) || (c == '.' && p.pos+1 < len(p.src) && isDigit(p.src[p.pos+1])):
		p.scanNumber()
		p.tok = token{kind: tokNumber, text: p.src[start:p.pos], pos: start}
	case c == '*' && strings.HasPrefix(p.src[p.pos:], "**"):
		p.pos += 2
		p.tok = token{kind: tokOp, text: "**", pos: start}
	case c == '/' && strings.HasPrefix(p.src[p.pos:], "//"):
		p.pos += 2
		p.tok = token{kind: tokOp, text: "//", pos: start}
	case strings.IndexByte("+-*/%", c) >= 0:
		p.pos++
		p.tok = token{kind: tokOp, text: string(c), pos: start}
	case c == '(':
		p.pos++
		p.tok = token{kind: tokLParen, text: "(", pos: start}
	case c == ')':
		p.pos++
		p.tok = token{kind: tokRParen, text: ")", pos: start}
	case isLetter(c):
		for p.pos < len(p.src) && (isLetter(p.src[p.pos]) || isDigit(p.src[p.pos])) {
			p.pos++
		}
		p.tok = token{kind: tokIdent, text: p.src[start:p.pos], pos: start}
	default:
		p.pos++
		p.tok = token{kind: tokInvalid, text: string(c), pos: start}
	}
}

func (p *exprParser) scanNumber() {
	digits := func() {
		for p.pos < len(p.src) && (isDigit(p.src[p.pos]) || p.src[p.pos] == '_') {
			p.pos++
		}
	}

	digits()
	if p.pos < len(p.src) && p.src[p.pos] == '.' {
		p.pos++
		digits()
	}
	if p.pos < len(p.src) && (p.src[p.pos] == 'e' || p.src[p.pos] == 'E') {
		save := p.pos
		p.pos++
		if p.pos < len(p.src) && (p.src[p.pos] == '+' || p.src[p.pos] == '-') {
			p.pos++
		}
		if p.pos < len(p.src) && isDigit(p.src[p.pos]) {
			digits()
		} else {
			p.pos = save
		}
	}
}

func (p *exprParser) unexpected() error {
	switch p.tok.kind {
	case tokEOF:
		return fmt.Errorf("%w: unexpected end of expression", ErrUnsupportedExpression)
	case tokIdent:
		return fmt.Errorf("%w: name %q is not allowed", ErrUnsupportedExpression, p.tok.text)
	default:
		return fmt.Errorf("%w: unexpected %q at position %d", ErrUnsupportedExpression, p.tok.text, p.tok.pos)
	}
}

// expr := term (("+" | "-") term)*
func (p *exprParser) parseExpr() (exprNode, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	for p.tok.kind == tokOp && (p.tok.text == "+" || p.tok.text == "-") {
		op := p.tok.text
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}

	return left, nil
}

// term := factor (("*" | "/" | "%") factor)*
func (p *exprParser) parseTerm() (exprNode, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}

	for p.tok.kind == tokOp && (p.tok.text == "*" || p.tok.text == "/" || p.tok.text == "%" || p.tok.text == "//") {
		op := p.tok.text
		if op == "//" {
			return nil, fmt.Errorf("%w: operator %q", ErrUnsupportedExpression, op)
		}
		p.next()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}

	return left, nil
}

// factor := "-" factor | power
func (p *exprParser) parseFactor() (exprNode, error) {
	if p.tok.kind == tokOp && p.tok.text == "-" {
		p.next()
		operand, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return negNode{operand: operand}, nil
	}

	if p.tok.kind == tokOp && p.tok.text == "+" {
		return nil, fmt.Errorf("%w: unary plus", ErrUnsupportedExpression)
	}

	return p.parsePower()
}

// power := atom ["**" factor]; right associative and tighter than unary minus
// on its left operand.
func (p *exprParser) parsePower() (exprNode, error) {
	base, err := p.parseAtom()
	if err != nil {
		return nil, err
	}

	if p.tok.kind == tokOp && p.tok.text == "**" {
		p.next()
		exp, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		return binaryNode{op: "**", left: base, right: exp}, nil
	}

	return base, nil
}

// atom := number | "(" expr ")"
func (p *exprParser) parseAtom() (exprNode, error) {
	switch p.tok.kind {
	case tokNumber:
		text := strings.ReplaceAll(p.tok.text, "_", "")
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid number %q", ErrUnsupportedExpression, p.tok.text)
		}
		p.next()
		return numberNode(v), nil
	case tokLParen:
		p.next()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, p.unexpected()
		}
		p.next()
		return inner, nil
	}

	return nil, p.unexpected()
}

func isSpace(c byte) bool  { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return c == '_' || (c|0x20 >= 'a' && c|0x20 <= 'z') }
