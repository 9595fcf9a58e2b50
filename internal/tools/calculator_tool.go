package tools

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NewCalculatorTool creates the calculate_math tool
func NewCalculatorTool() *Tool {
	return &Tool{
		Name:        "calculate_math",
		Description: "Evaluate a mathematical expression. Supports +, -, *, /, ^, %, parentheses, the constants pi and e, and the functions sqrt, abs, floor, ceil, round, sin, cos, tan, log, ln.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"expression": map[string]any{
					"type":        "string",
					"description": "Mathematical expression to evaluate (e.g., '2 + 2', 'sqrt(16) * pi')",
				},
			},
			"required": []string{"expression"},
		},
		Execute:  executeCalculateMath,
		Category: "computation",
	}
}

func executeCalculateMath(_ context.Context, args map[string]any) (string, error) {
	expression, ok := args["expression"].(string)
	if !ok || expression == "" {
		return "", fmt.Errorf("expression parameter is required and must be a string")
	}

	p := &exprParser{input: strings.ReplaceAll(expression, " ", "")}
	result, err := p.parseExpression()
	if err != nil {
		return "", fmt.Errorf("evaluation error: %w", err)
	}
	if p.pos != len(p.input) {
		return "", fmt.Errorf("unexpected character %q at position %d", p.input[p.pos], p.pos)
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return "", fmt.Errorf("expression has no finite result")
	}

	return fmt.Sprintf("Result: %s\n\nExpression: %s", strconv.FormatFloat(result, 'g', -1, 64), expression), nil
}

var mathFuncs = map[string]func(float64) float64{
	"sqrt":  math.Sqrt,
	"abs":   math.Abs,
	"floor": math.Floor,
	"ceil":  math.Ceil,
	"round": math.Round,
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"log":   math.Log10,
	"ln":    math.Log,
}

var mathConsts = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

// exprParser is a recursive-descent evaluator:
// expression := term (('+'|'-') term)*
// term       := power (('*'|'/'|'%') power)*
// power      := unary ('^' power)?
// unary      := '-' unary | atom
// atom       := number | const | func '(' expression ')' | '(' expression ')'
type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) parseExpression() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for p.pos < len(p.input) {
		op := p.input[p.pos]
		if op != '+' && op != '-' {
			break
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			left += right
		} else {
			left -= right
		}
	}
	return left, nil
}

func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parsePower()
	if err != nil {
		return 0, err
	}
	for p.pos < len(p.input) {
		op := p.input[p.pos]
		if op != '*' && op != '/' && op != '%' {
			break
		}
		p.pos++
		right, err := p.parsePower()
		if err != nil {
			return 0, err
		}
		switch op {
		case '*':
			left *= right
		case '/':
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		case '%':
			if right == 0 {
				return 0, fmt.Errorf("modulo by zero")
			}
			left = math.Mod(left, right)
		}
	}
	return left, nil
}

func (p *exprParser) parsePower() (float64, error) {
	base, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	if p.pos < len(p.input) && p.input[p.pos] == '^' {
		p.pos++
		// Right-associative
		exp, err := p.parsePower()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

func (p *exprParser) parseUnary() (float64, error) {
	if p.pos < len(p.input) && p.input[p.pos] == '-' {
		p.pos++
		v, err := p.parseUnary()
		return -v, err
	}
	return p.parseAtom()
}

func (p *exprParser) parseAtom() (float64, error) {
	if p.pos >= len(p.input) {
		return 0, fmt.Errorf("unexpected end of expression")
	}

	c := p.input[p.pos]

	if c == '(' {
		p.pos++
		v, err := p.parseExpression()
		if err != nil {
			return 0, err
		}
		if p.pos >= len(p.input) || p.input[p.pos] != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	}

	if c >= '0' && c <= '9' || c == '.' {
		start := p.pos
		for p.pos < len(p.input) && (p.input[p.pos] >= '0' && p.input[p.pos] <= '9' || p.input[p.pos] == '.') {
			p.pos++
		}
		v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
		if err != nil {
			return 0, fmt.Errorf("bad number %q", p.input[start:p.pos])
		}
		return v, nil
	}

	if isAlpha(c) {
		start := p.pos
		for p.pos < len(p.input) && isAlpha(p.input[p.pos]) {
			p.pos++
		}
		name := strings.ToLower(p.input[start:p.pos])

		if v, ok := mathConsts[name]; ok {
			return v, nil
		}
		fn, ok := mathFuncs[name]
		if !ok {
			return 0, fmt.Errorf("unknown function or constant %q", name)
		}
		if p.pos >= len(p.input) || p.input[p.pos] != '(' {
			return 0, fmt.Errorf("function %q requires parentheses", name)
		}
		p.pos++
		arg, err := p.parseExpression()
		if err != nil {
			return 0, err
		}
		if p.pos >= len(p.input) || p.input[p.pos] != ')' {
			return 0, fmt.Errorf("missing closing parenthesis after %q", name)
		}
		p.pos++
		return fn(arg), nil
	}

	return 0, fmt.Errorf("unexpected character %q at position %d", c, p.pos)
}

func isAlpha(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
