package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CalculatorTool evaluates basic arithmetic expressions.
//
// Grounded on original_source/.../tools/calculator.py (CalculatorTool:
// ast.parse + a small recursive evaluator over +,-,*,/,^). Rewritten in Go
// idiom, not transliterated: Go's stdlib has no expression-AST parser, so
// this is a small hand-rolled recursive-descent parser/evaluator over the
// same five-operator (+,-,*,/,^) grammar the Python original supports.
type CalculatorTool struct{}

func NewCalculatorTool() *CalculatorTool { return &CalculatorTool{} }

func (CalculatorTool) Describe() Info {
	return Info{
		Name:        "calculate",
		Description: "Perform basic mathematical calculations",
		Parameters: []Parameter{
			{Name: "expression", Type: "string", Description: `Mathematical expression to evaluate (e.g., "2 + 2", "10 * 5")`, Required: true},
		},
	}
}

type calculatorArgs struct {
	Expression string `json:"expression"`
}

func (c CalculatorTool) Execute(_ context.Context, argsJSON string) (interface{}, error) {
	var args calculatorArgs
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
	}

	result, err := evalExpression(args.Expression)
	if err != nil {
		return map[string]interface{}{
			"expression": args.Expression,
			"error":      err.Error(),
			"message":    fmt.Sprintf("Error calculating %s: %v", args.Expression, err),
		}, nil
	}
	return map[string]interface{}{
		"expression": args.Expression,
		"result":     result,
		"message":    fmt.Sprintf("%s = %g", args.Expression, result),
	}, nil
}

// exprParser is a minimal recursive-descent parser for +,-,*,/,^ with
// standard precedence and unary minus, matching the operator set the
// Python original whitelists (Add, Sub, Mult, Div, Pow, USub).
type exprParser struct {
	tokens []string
	pos    int
}

func evalExpression(expr string) (float64, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	p := &exprParser{tokens: toks}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.tokens) {
		return 0, fmt.Errorf("unexpected token %q", p.tokens[p.pos])
	}
	return v, nil
}

func tokenize(expr string) ([]string, error) {
	var toks []string
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case strings.ContainsRune("+-*/^()", rune(c)):
			toks = append(toks, string(c))
			i++
		case (c >= '0' && c <= '9') || c == '.':
			j := i
			for j < len(expr) && ((expr[j] >= '0' && expr[j] <= '9') || expr[j] == '.') {
				j++
			}
			toks = append(toks, expr[i:j])
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q", c)
		}
	}
	return toks, nil
}

func (p *exprParser) peek() string {
	if p.pos >= len(p.tokens) {
		return ""
	}
	return p.tokens[p.pos]
}

func (p *exprParser) parseExpr() (float64, error) {
	v, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for p.peek() == "+" || p.peek() == "-" {
		op := p.peek()
		p.pos++
		rhs, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == "+" {
			v += rhs
		} else {
			v -= rhs
		}
	}
	return v, nil
}

func (p *exprParser) parseTerm() (float64, error) {
	v, err := p.parsePow()
	if err != nil {
		return 0, err
	}
	for p.peek() == "*" || p.peek() == "/" {
		op := p.peek()
		p.pos++
		rhs, err := p.parsePow()
		if err != nil {
			return 0, err
		}
		if op == "*" {
			v *= rhs
		} else {
			if rhs == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			v /= rhs
		}
	}
	return v, nil
}

func (p *exprParser) parsePow() (float64, error) {
	v, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	if p.peek() == "^" {
		p.pos++
		rhs, err := p.parsePow() // right-associative
		if err != nil {
			return 0, err
		}
		return powFloat(v, rhs), nil
	}
	return v, nil
}

func (p *exprParser) parseUnary() (float64, error) {
	if p.peek() == "-" {
		p.pos++
		v, err := p.parseUnary()
		return -v, err
	}
	return p.parseAtom()
}

func (p *exprParser) parseAtom() (float64, error) {
	tok := p.peek()
	if tok == "(" {
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		if p.peek() != ")" {
			return 0, fmt.Errorf("expected closing parenthesis")
		}
		p.pos++
		return v, nil
	}
	if tok == "" {
		return 0, fmt.Errorf("unexpected end of expression")
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", tok)
	}
	p.pos++
	return v, nil
}

func powFloat(base, exp float64) float64 {
	result := 1.0
	neg := exp < 0
	if neg {
		exp = -exp
	}
	for i := 0; i < int(exp); i++ {
		result *= base
	}
	if neg {
		return 1 / result
	}
	return result
}
