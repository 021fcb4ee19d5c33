// Package formula evaluates Agua IOT register conversion expressions.
//
// The platform describes every register's raw/engineering conversion as a
// small arithmetic expression over "#", the raw register value (for example
// "#/2", "(#*10)+5"), paired with a Python-style format string such as
// "{0:.1f}" that fixes the display precision. Registers carry one formula
// for reads and an inverse one for writes.
package formula

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Eval computes expr with "#" bound to value. Supported syntax: float
// literals, "#", parentheses, unary +/-, and the four basic operators.
func Eval(expr string, value float64) (float64, error) {
	p := &parser{input: expr, value: value}
	result, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return 0, fmt.Errorf("formula %q: unexpected %q at offset %d", expr, string(p.input[p.pos]), p.pos)
	}
	return result, nil
}

// Round applies the precision of a Python format string such as "{0:.1f}"
// to v. Formats without an explicit ".<digits>f" precision leave v as is.
func Round(v float64, format string) float64 {
	prec, ok := precision(format)
	if !ok {
		return v
	}
	scale := math.Pow(10, float64(prec))
	return math.Round(v*scale) / scale
}

func precision(format string) (int, bool) {
	i := strings.Index(format, ":.")
	if i < 0 {
		return 0, false
	}
	rest := format[i+2:]
	j := strings.IndexByte(rest, 'f')
	if j <= 0 {
		return 0, false
	}
	prec, err := strconv.Atoi(rest[:j])
	if err != nil || prec < 0 {
		return 0, false
	}
	return prec, true
}

type parser struct {
	input string
	pos   int
	value float64
}

func (p *parser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *parser) parseTerm() (float64, error) {
	left, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch p.peek() {
		case '*':
			p.pos++
			right, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			left *= right
		case '/':
			p.pos++
			right, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("formula %q: division by zero", p.input)
			}
			left /= right
		default:
			return left, nil
		}
	}
}

func (p *parser) parseFactor() (float64, error) {
	p.skipSpace()
	switch p.peek() {
	case '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return 0, fmt.Errorf("formula %q: missing closing parenthesis", p.input)
		}
		p.pos++
		return v, nil
	case '#':
		p.pos++
		return p.value, nil
	case '-':
		p.pos++
		v, err := p.parseFactor()
		return -v, err
	case '+':
		p.pos++
		return p.parseFactor()
	default:
		return p.parseNumber()
	}
}

func (p *parser) parseNumber() (float64, error) {
	start := p.pos
	for p.pos < len(p.input) && (p.input[p.pos] == '.' || (p.input[p.pos] >= '0' && p.input[p.pos] <= '9')) {
		p.pos++
	}
	if p.pos == start {
		if p.pos >= len(p.input) {
			return 0, fmt.Errorf("formula %q: unexpected end of expression", p.input)
		}
		return 0, fmt.Errorf("formula %q: unexpected %q at offset %d", p.input, string(p.input[p.pos]), p.pos)
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("formula %q: bad number %q", p.input, p.input[start:p.pos])
	}
	return v, nil
}

func (p *parser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}
