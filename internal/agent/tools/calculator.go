package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/schema"
)

const ToolCalculator = "calculator"

// resultBound rejects results whose magnitude suggests a runaway
// expression rather than a real calculation.
const resultBound = 1e9

type CalculatorInput struct {
	Expr string `json:"expr"`
}

// Calculator evaluates basic arithmetic safely: + - * / ^ (and ** as an
// alias), unary minus and parentheses. No identifiers, no function calls.
type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

func (c *Calculator) Info() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: ToolCalculator,
		Desc: "Safely calculate mathematical expressions. Supports +, -, *, /, ^ and parentheses.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"expr": {
				Type:     "string",
				Desc:     "The mathematical expression to evaluate, e.g. '2 + 3 * 4' or '5000*0.15'",
				Required: true,
			},
		}),
	}
}

func (c *Calculator) Risk() RiskClass {
	return RiskReadOnly
}

func (c *Calculator) Validate(input json.RawMessage) error {
	var in CalculatorInput
	if err := json.Unmarshal(input, &in); err != nil {
		return fmt.Errorf("calculator input must be a JSON object: %w", err)
	}
	if strings.TrimSpace(in.Expr) == "" {
		return fmt.Errorf("expr is required")
	}
	return nil
}

func (c *Calculator) Invoke(ctx context.Context, input json.RawMessage) (string, error) {
	var in CalculatorInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("unmarshal input: %w", err)
	}
	v, err := Calculate(in.Expr)
	if err != nil {
		return "", err
	}
	return strconv.FormatFloat(v, 'f', -1, 64), nil
}

// Calculate parses and evaluates an arithmetic expression. The result is
// rounded to 6 decimal places and bounded to ±1e9.
func Calculate(expr string) (float64, error) {
	p := &exprParser{src: strings.ReplaceAll(expr, "**", "^")}
	v, err := p.parseExpr()
	if err != nil {
		return 0, fmt.Errorf("invalid expression: %w", err)
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return 0, fmt.Errorf("invalid expression: unexpected %q at position %d", p.src[p.pos], p.pos)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid expression: result is not a finite number")
	}
	if math.Abs(v) > resultBound {
		return 0, fmt.Errorf("invalid expression: result out of allowed range")
	}
	return math.Round(v*1e6) / 1e6, nil
}

// exprParser is a small recursive-descent parser over the grammar
//
//	expr   = term   { ('+'|'-') term }
//	term   = factor { ('*'|'/') factor }
//	factor = unary  [ '^' factor ]        (right associative)
//	unary  = '-' unary | primary
//	primary = number | '(' expr ')'
type exprParser struct {
	src string
	pos int
}

func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch {
		case p.accept('+'):
			right, err := p.parseTerm()
			if err != nil {
				return 0, err
			}
			left += right
		case p.accept('-'):
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

func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		switch {
		case p.accept('*'):
			right, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			left *= right
		case p.accept('/'):
			right, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseFactor() (float64, error) {
	base, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.accept('^') {
		exp, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

func (p *exprParser) parseUnary() (float64, error) {
	p.skipSpace()
	if p.accept('-') {
		v, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return -v, nil
	}
	return p.parsePrimary()
}

func (p *exprParser) parsePrimary() (float64, error) {
	p.skipSpace()
	if p.accept('(') {
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if !p.accept(')') {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		return v, nil
	}

	start := p.pos
	for p.pos < len(p.src) {
		ch := p.src[p.pos]
		if (ch >= '0' && ch <= '9') || ch == '.' {
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		if p.pos >= len(p.src) {
			return 0, fmt.Errorf("unexpected end of expression")
		}
		return 0, fmt.Errorf("unexpected %q at position %d", p.src[p.pos], p.pos)
	}
	v, err := strconv.ParseFloat(p.src[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", p.src[start:p.pos])
	}
	return v, nil
}

func (p *exprParser) accept(ch byte) bool {
	if p.pos < len(p.src) && p.src[p.pos] == ch {
		p.pos++
		return true
	}
	return false
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

var _ Tool = (*Calculator)(nil)
