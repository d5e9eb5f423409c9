package condition

import (
	"fmt"
	"strconv"
	"strings"
)

// The substituted win-condition text is evaluated by a small recursive
// descent interpreter over a fixed grammar:
//
//	expr    := and ("||" and)*
//	and     := cmp ("&&" cmp)*
//	cmp     := sum (("=="|"!="|"<"|"<="|">"|">=") sum)?
//	sum     := term (("+"|"-") term)*
//	term    := unary (("*"|"/") unary)*
//	unary   := ("!"|"-") unary | primary
//	primary := number | "true" | "false" | string | "(" expr ")"
//
// There is deliberately no assignment, no loops, no identifiers, and no way
// to reach outside the expression; everything dynamic was substituted before
// parsing.

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokString
	tokBool
	tokOp
	tokLParen
	tokRParen
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	num  float64
	b    bool
}

type lexer struct {
	input string
	pos   int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && (l.input[l.pos] == ' ' || l.input[l.pos] == '\t') {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokEOF}, nil
	}

	c := l.input[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen}, nil
	case c == '"' || c == '\'':
		quote := c
		end := strings.IndexByte(l.input[l.pos+1:], quote)
		if end < 0 {
			return token{}, fmt.Errorf("unterminated string at offset %d", l.pos)
		}
		s := l.input[l.pos+1 : l.pos+1+end]
		l.pos += end + 2
		return token{kind: tokString, text: s}, nil
	case c >= '0' && c <= '9' || c == '.':
		start := l.pos
		for l.pos < len(l.input) && (l.input[l.pos] >= '0' && l.input[l.pos] <= '9' || l.input[l.pos] == '.') {
			l.pos++
		}
		n, err := strconv.ParseFloat(l.input[start:l.pos], 64)
		if err != nil {
			return token{}, fmt.Errorf("bad number %q", l.input[start:l.pos])
		}
		return token{kind: tokNumber, num: n}, nil
	}

	for _, op := range [...]string{"&&", "||", "==", "!=", "<=", ">=", "<", ">", "!", "+", "-", "*", "/"} {
		if strings.HasPrefix(l.input[l.pos:], op) {
			l.pos += len(op)
			return token{kind: tokOp, text: op}, nil
		}
	}

	// Bare words: only the boolean literals are valid.
	start := l.pos
	for l.pos < len(l.input) && isWordByte(l.input[l.pos]) {
		l.pos++
	}
	word := l.input[start:l.pos]
	switch strings.ToLower(word) {
	case "true":
		return token{kind: tokBool, b: true}, nil
	case "false":
		return token{kind: tokBool, b: false}, nil
	case "":
		return token{}, fmt.Errorf("unexpected character %q at offset %d", c, start)
	}
	return token{}, fmt.Errorf("unexpected identifier %q", word)
}

func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}

// value is the tagged result of evaluating a subexpression.
type value struct {
	kind  valueKind
	num   float64
	str   string
	truth bool
}

type valueKind int

const (
	kindNumber valueKind = iota
	kindString
	kindBool
)

func (v value) String() string {
	switch v.kind {
	case kindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case kindString:
		return strconv.Quote(v.str)
	default:
		return strconv.FormatBool(v.truth)
	}
}

type parser struct {
	lex lexer
	cur token
}

// evalExpr parses and evaluates a complete boolean expression. The result
// must be a boolean; a numeric or string top-level result is an error.
func evalExpr(input string) (bool, error) {
	p := &parser{lex: lexer{input: input}}
	if err := p.advance(); err != nil {
		return false, err
	}
	v, err := p.parseOr()
	if err != nil {
		return false, err
	}
	if p.cur.kind != tokEOF {
		return false, fmt.Errorf("unexpected trailing input")
	}
	if v.kind != kindBool {
		return false, fmt.Errorf("expression is not boolean: %s", v)
	}
	return v.truth, nil
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = t
	return nil
}

func (p *parser) acceptOp(ops ...string) (string, bool) {
	if p.cur.kind != tokOp {
		return "", false
	}
	for _, op := range ops {
		if p.cur.text == op {
			return op, true
		}
	}
	return "", false
}

func (p *parser) parseOr() (value, error) {
	left, err := p.parseAnd()
	if err != nil {
		return value{}, err
	}
	for {
		if _, ok := p.acceptOp("||"); !ok {
			return left, nil
		}
		if err := p.advance(); err != nil {
			return value{}, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return value{}, err
		}
		if left.kind != kindBool || right.kind != kindBool {
			return value{}, fmt.Errorf("|| requires boolean operands")
		}
		left.truth = left.truth || right.truth
	}
}

func (p *parser) parseAnd() (value, error) {
	left, err := p.parseCmp()
	if err != nil {
		return value{}, err
	}
	for {
		if _, ok := p.acceptOp("&&"); !ok {
			return left, nil
		}
		if err := p.advance(); err != nil {
			return value{}, err
		}
		right, err := p.parseCmp()
		if err != nil {
			return value{}, err
		}
		if left.kind != kindBool || right.kind != kindBool {
			return value{}, fmt.Errorf("&& requires boolean operands")
		}
		left.truth = left.truth && right.truth
	}
}

func (p *parser) parseCmp() (value, error) {
	left, err := p.parseSum()
	if err != nil {
		return value{}, err
	}
	op, ok := p.acceptOp("==", "!=", "<", "<=", ">", ">=")
	if !ok {
		return left, nil
	}
	if err := p.advance(); err != nil {
		return value{}, err
	}
	right, err := p.parseSum()
	if err != nil {
		return value{}, err
	}
	return compare(op, left, right)
}

func compare(op string, left, right value) (value, error) {
	if left.kind != right.kind {
		return value{}, fmt.Errorf("cannot compare %s with %s", left, right)
	}
	var lt, eq bool
	switch left.kind {
	case kindNumber:
		lt, eq = left.num < right.num, left.num == right.num
	case kindString:
		lt, eq = left.str < right.str, left.str == right.str
	case kindBool:
		if op != "==" && op != "!=" {
			return value{}, fmt.Errorf("booleans only support == and !=")
		}
		eq = left.truth == right.truth
	}
	var out bool
	switch op {
	case "==":
		out = eq
	case "!=":
		out = !eq
	case "<":
		out = lt
	case "<=":
		out = lt || eq
	case ">":
		out = !lt && !eq
	case ">=":
		out = !lt
	}
	return value{kind: kindBool, truth: out}, nil
}

func (p *parser) parseSum() (value, error) {
	left, err := p.parseTerm()
	if err != nil {
		return value{}, err
	}
	for {
		op, ok := p.acceptOp("+", "-")
		if !ok {
			return left, nil
		}
		if err := p.advance(); err != nil {
			return value{}, err
		}
		right, err := p.parseTerm()
		if err != nil {
			return value{}, err
		}
		if left.kind != kindNumber || right.kind != kindNumber {
			return value{}, fmt.Errorf("%s requires numeric operands", op)
		}
		if op == "+" {
			left.num += right.num
		} else {
			left.num -= right.num
		}
	}
}

func (p *parser) parseTerm() (value, error) {
	left, err := p.parseUnary()
	if err != nil {
		return value{}, err
	}
	for {
		op, ok := p.acceptOp("*", "/")
		if !ok {
			return left, nil
		}
		if err := p.advance(); err != nil {
			return value{}, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return value{}, err
		}
		if left.kind != kindNumber || right.kind != kindNumber {
			return value{}, fmt.Errorf("%s requires numeric operands", op)
		}
		if op == "*" {
			left.num *= right.num
		} else {
			if right.num == 0 {
				return value{}, fmt.Errorf("division by zero")
			}
			left.num /= right.num
		}
	}
}

func (p *parser) parseUnary() (value, error) {
	if op, ok := p.acceptOp("!", "-"); ok {
		if err := p.advance(); err != nil {
			return value{}, err
		}
		v, err := p.parseUnary()
		if err != nil {
			return value{}, err
		}
		if op == "!" {
			if v.kind != kindBool {
				return value{}, fmt.Errorf("! requires a boolean operand")
			}
			v.truth = !v.truth
			return v, nil
		}
		if v.kind != kindNumber {
			return value{}, fmt.Errorf("unary - requires a numeric operand")
		}
		v.num = -v.num
		return v, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (value, error) {
	switch p.cur.kind {
	case tokNumber:
		v := value{kind: kindNumber, num: p.cur.num}
		return v, p.advance()
	case tokString:
		v := value{kind: kindString, str: p.cur.text}
		return v, p.advance()
	case tokBool:
		v := value{kind: kindBool, truth: p.cur.b}
		return v, p.advance()
	case tokLParen:
		if err := p.advance(); err != nil {
			return value{}, err
		}
		v, err := p.parseOr()
		if err != nil {
			return value{}, err
		}
		if p.cur.kind != tokRParen {
			return value{}, fmt.Errorf("missing closing parenthesis")
		}
		return v, p.advance()
	case tokEOF:
		return value{}, fmt.Errorf("unexpected end of expression")
	default:
		return value{}, fmt.Errorf("unexpected token %q", p.cur.text)
	}
}
