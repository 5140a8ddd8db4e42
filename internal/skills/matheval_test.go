package skills

import (
	"context"
	"strings"
	"testing"

	"github.com/lumen-ai/conductor/pkg/models"
)

func TestEvalExpression(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"2+3", 5},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 / 4", 2.5},
		{"-5 + 3", -2},
		{"-(2 + 3)", -5},
		{"2 * -3", -6},
		{"1.5 + 2.25", 3.75},
		{"  7  ", 7},
		{"((1))", 1},
		{"100 - 10 - 5", 85},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := evalExpression(tt.expr)
			if err != nil {
				t.Fatalf("evalExpression(%q): %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("evalExpression(%q) = %g, want %g", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvalExpressionRejects(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"division by zero", "1 / 0"},
		{"trailing garbage", "2 + 3 x"},
		{"letters", "two plus two"},
		{"unbalanced paren", "(1 + 2"},
		{"empty", ""},
		{"dangling operator", "4 +"},
		{"double dot", "1..5 + 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := evalExpression(tt.expr); err == nil {
				t.Errorf("evalExpression(%q) succeeded", tt.expr)
			}
		})
	}
}

func TestMathEvalSkill(t *testing.T) {
	uif := models.NewExecutionContext("t1", "query", map[string]any{KeyExpression: "6 * 7"})
	if err := mathEvalSkill()(context.Background(), uif); err != nil {
		t.Fatalf("math-eval: %v", err)
	}

	result, ok := stringKey(uif, KeyMathResult)
	if !ok || result != "42" {
		t.Errorf("math_result = %q (ok %v)", result, ok)
	}
}

func TestMathEvalSkillMissingExpression(t *testing.T) {
	uif := models.NewExecutionContext("t1", "query", nil)
	if err := mathEvalSkill()(context.Background(), uif); err == nil {
		t.Error("missing expression accepted")
	}

	uif = models.NewExecutionContext("t2", "query", map[string]any{KeyExpression: "   "})
	if err := mathEvalSkill()(context.Background(), uif); err == nil {
		t.Error("blank expression accepted")
	}
}

func TestMathEvalSkillBadExpression(t *testing.T) {
	uif := models.NewExecutionContext("t1", "query", map[string]any{KeyExpression: "1 / 0"})
	err := mathEvalSkill()(context.Background(), uif)
	if err == nil || !strings.Contains(err.Error(), "division by zero") {
		t.Errorf("err = %v", err)
	}
	if uif.Has(KeyMathResult) {
		t.Error("failed evaluation wrote a result")
	}
}
