package tooluse

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"unicode"
)

var ErrDivisionByZero = errors.New("division by zero")

// Evaluate computes an arithmetic expression with + - * / % ^, parentheses
// and unary minus. ^ binds tighter than unary minus and is right
// associative.
func Evaluate(expr string) (float64, error) {
	p := &calcParser{src: expr}
	p.next()
	v, err := p.expression()
	if err != nil {
		return 0, err
	}
	if p.err != nil {
		return 0, p.err
	}
	if p.tok.kind != tokEOF {
		return 0, fmt.Errorf("unexpected %q at offset %d", p.tok.text, p.tok.pos)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, errors.New("result is not a finite number")
	}
	return v, nil
}

type tokKind int

const (
	tokEOF tokKind = iota
	tokNum
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokKind
	text string
	num  float64
	pos  int
}

type calcParser struct {
	src string
	pos int
	tok token
	err error
}

func (p *calcParser) next() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
	start := p.pos
	if p.pos >= len(p.src) {
		p.tok = token{kind: tokEOF, pos: start}
		return
	}

	c := p.src[p.pos]
	switch {
	case c >= '0' && c <= '9' || c == '.':
		for p.pos < len(p.src) && (p.src[p.pos] >= '0' && p.src[p.pos] <= '9' || p.src[p.pos] == '.') {
			p.pos++
		}
		text := p.src[start:p.pos]
		n, err := strconv.ParseFloat(text, 64)
		if err != nil && p.err == nil {
			p.err = fmt.Errorf("invalid number %q", text)
		}
		p.tok = token{kind: tokNum, text: text, num: n, pos: start}
	case c == '(':
		p.pos++
		p.tok = token{kind: tokLParen, text: "(", pos: start}
	case c == ')':
		p.pos++
		p.tok = token{kind: tokRParen, text: ")", pos: start}
	case c == '+' || c == '-' || c == '*' || c == '/' || c == '%' || c == '^':
		p.pos++
		p.tok = token{kind: tokOp, text: string(c), pos: start}
	default:
		p.pos++
		p.tok = token{kind: tokOp, text: string(c), pos: start}
		if p.err == nil {
			p.err = fmt.Errorf("unexpected character %q at offset %d", c, start)
		}
	}
}

// expression = term { ("+" | "-") term }
func (p *calcParser) expression() (float64, error) {
	v, err := p.term()
	if err != nil {
		return 0, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "+" || p.tok.text == "-") {
		op := p.tok.text
		p.next()
		r, err := p.term()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			v += r
		} else {
			v -= r
		}
	}
	return v, nil
}

// term = unary { ("*" | "/" | "%") unary }
func (p *calcParser) term() (float64, error) {
	v, err := p.unary()
	if err != nil {
		return 0, err
	}
	for p.tok.kind == tokOp && (p.tok.text == "*" || p.tok.text == "/" || p.tok.text == "%") {
		op := p.tok.text
		p.next()
		r, err := p.unary()
		if err != nil {
			return 0, err
		}
		switch op {
		case "*":
			v *= r
		case "/":
			if r == 0 {
				return 0, ErrDivisionByZero
			}
			v /= r
		case "%":
			if r == 0 {
				return 0, ErrDivisionByZero
			}
			v = math.Mod(v, r)
		}
	}
	return v, nil
}

// unary = ("-" | "+") unary | power
func (p *calcParser) unary() (float64, error) {
	if p.tok.kind == tokOp && (p.tok.text == "-" || p.tok.text == "+") {
		neg := p.tok.text == "-"
		p.next()
		v, err := p.unary()
		if neg {
			v = -v
		}
		return v, err
	}
	return p.power()
}

// power = primary [ "^" unary ]
func (p *calcParser) power() (float64, error) {
	base, err := p.primary()
	if err != nil {
		return 0, err
	}
	if p.tok.kind == tokOp && p.tok.text == "^" {
		p.next()
		exp, err := p.unary()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

// primary = number | "(" expression ")"
func (p *calcParser) primary() (float64, error) {
	if p.err != nil {
		return 0, p.err
	}
	switch p.tok.kind {
	case tokNum:
		v := p.tok.num
		p.next()
		return v, nil
	case tokLParen:
		p.next()
		v, err := p.expression()
		if err != nil {
			return 0, err
		}
		if p.tok.kind != tokRParen {
			return 0, errors.New("missing closing parenthesis")
		}
		p.next()
		return v, nil
	case tokEOF:
		return 0, errors.New("unexpected end of expression")
	}
	return 0, fmt.Errorf("unexpected %q at offset %d", p.tok.text, p.tok.pos)
}
