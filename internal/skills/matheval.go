package skills

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/lumen-ai/conductor/internal/registry"
	"github.com/lumen-ai/conductor/pkg/models"
)

// mathEvalSkill evaluates the expression key. The coordinator routes it
// through the security manager, whose policy screens the expression for
// blocked tokens before this callable ever runs.
func mathEvalSkill() registry.SkillFunc {
	return func(ctx context.Context, uif *models.ExecutionContext) error {
		expr, ok := stringKey(uif, KeyExpression)
		if !ok || strings.TrimSpace(expr) == "" {
			return fmt.Errorf("no expression to evaluate")
		}

		result, err := evalExpression(expr)
		if err != nil {
			return fmt.Errorf("evaluate %q: %w", expr, err)
		}

		uif.Set(KeyMathResult, strconv.FormatFloat(result, 'g', -1, 64))
		uif.Log("math-eval", "%s = %g", expr, result)
		return nil
	}
}

// evalExpression evaluates a basic arithmetic expression: numbers, + - * /,
// unary minus, and parentheses. Anything else is rejected.
func evalExpression(input string) (float64, error) {
	p := &exprParser{input: input}
	result, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return 0, fmt.Errorf("unexpected character %q at position %d", p.input[p.pos], p.pos)
	}
	return result, nil
}

type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.input) {
			return left, nil
		}
		op := p.input[p.pos]
		if op != '+' && op != '-' {
			return left, nil
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
}

func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpace()
		if p.pos >= len(p.input) {
			return left, nil
		}
		op := p.input[p.pos]
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			left *= right
		} else {
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		}
	}
}

func (p *exprParser) parseFactor() (float64, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0, fmt.Errorf("unexpected end of expression")
	}

	switch c := p.input[p.pos]; {
	case c == '-':
		p.pos++
		v, err := p.parseFactor()
		return -v, err
	case c == '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpace()
		if p.pos >= len(p.input) || p.input[p.pos] != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	case unicode.IsDigit(rune(c)) || c == '.':
		start := p.pos
		for p.pos < len(p.input) && (unicode.IsDigit(rune(p.input[p.pos])) || p.input[p.pos] == '.') {
			p.pos++
		}
		v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number %q", p.input[start:p.pos])
		}
		return v, nil
	default:
		return 0, fmt.Errorf("unexpected character %q at position %d", c, p.pos)
	}
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}
