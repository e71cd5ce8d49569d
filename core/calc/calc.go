// Package calc evaluates plain arithmetic: numbers, + - * /, unary sign and
// parentheses. Nothing else is accepted, so user text can be evaluated
// without handing it to an interpreter.
package calc

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	ErrEmpty        = errors.New("calc: empty expression")
	ErrSyntax       = errors.New("calc: syntax error")
	ErrDivideByZero = errors.New("calc: division by zero")
	ErrTooDeep      = errors.New("calc: expression nested too deeply")
)

const maxDepth = 64

// Evaluate parses and computes expr.
func Evaluate(expr string) (float64, error) {
	p := &parser{src: strings.TrimSpace(expr)}
	if p.src == "" {
		return 0, ErrEmpty
	}
	v, err := p.expr(0)
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return 0, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, p.src[p.pos], p.pos)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("%w: result out of range", ErrSyntax)
	}
	return v, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *parser) peek() byte {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) expr(depth int) (float64, error) {
	left, err := p.term(depth)
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.term(depth)
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.term(depth)
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *parser) term(depth int) (float64, error) {
	left, err := p.factor(depth)
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			right, err := p.factor(depth)
			if err != nil {
				return 0, err
			}
			left *= right
		case '/':
			p.pos++
			right, err := p.factor(depth)
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, ErrDivideByZero
			}
			left /= right
		default:
			return left, nil
		}
	}
}

func (p *parser) factor(depth int) (float64, error) {
	if depth > maxDepth {
		return 0, ErrTooDeep
	}
	switch c := p.peek(); {
	case c == '-':
		p.pos++
		v, err := p.factor(depth + 1)
		return -v, err
	case c == '+':
		p.pos++
		return p.factor(depth + 1)
	case c == '(':
		p.pos++
		v, err := p.expr(depth + 1)
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("%w: missing closing parenthesis", ErrSyntax)
		}
		p.pos++
		return v, nil
	case c >= '0' && c <= '9' || c == '.':
		return p.number()
	case c == 0:
		return 0, fmt.Errorf("%w: unexpected end of expression", ErrSyntax)
	default:
		return 0, fmt.Errorf("%w: unexpected %q at %d", ErrSyntax, c, p.pos)
	}
}

func (p *parser) number() (float64, error) {
	start := p.pos
	dots := 0
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '.' {
			dots++
		} else if c < '0' || c > '9' {
			break
		}
		p.pos++
	}
	lit := p.src[start:p.pos]
	if dots > 1 || lit == "." {
		return 0, fmt.Errorf("%w: bad number %q", ErrSyntax, lit)
	}
	return strconv.ParseFloat(lit, 64)
}

var (
	wordOperators = strings.NewReplacer(
		" plus ", " + ",
		" minus ", " - ",
		" times ", " * ",
		" multiplied by ", " * ",
		" divided by ", " / ",
		" over ", " / ",
		" x ", " * ",
		"×", "*",
		"÷", "/",
	)
	expressionRun   = regexp.MustCompile(`[0-9+\-*/(). ]+`)
	wholeExpression = regexp.MustCompile(`^[0-9+\-*/(). ]+$`)
	hasDigit        = regexp.MustCompile(`[0-9]`)
)

// Extract pulls the arithmetic portion out of a sentence such as
// "calculate 21 * 2" or "what is 3 plus 4". It returns the longest run of
// arithmetic characters that contains a digit.
func Extract(text string) (string, bool) {
	normalized := wordOperators.Replace(" " + strings.ToLower(text) + " ")
	best := ""
	for _, run := range expressionRun.FindAllString(normalized, -1) {
		run = strings.TrimSpace(run)
		if !hasDigit.MatchString(run) {
			continue
		}
		if len(run) > len(best) {
			best = run
		}
	}
	best = strings.TrimRight(best, "+-*/. ")
	return best, best != ""
}

// Whole reports whether text is nothing but an arithmetic expression once
// word operators are replaced, and returns that expression.
func Whole(text string) (string, bool) {
	normalized := strings.TrimSpace(wordOperators.Replace(" " + strings.ToLower(text) + " "))
	if !wholeExpression.MatchString(normalized) || !hasDigit.MatchString(normalized) {
		return "", false
	}
	return normalized, true
}

// Format renders v without a trailing ".0" for whole numbers.
func Format(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
