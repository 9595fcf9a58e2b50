package tools

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"testing"
)

func TestRegistryBuiltins(t *testing.T) {
	r := NewRegistry()
	if r.Count() != 3 {
		t.Fatalf("count = %d, want 3", r.Count())
	}
	for _, name := range []string{"get_current_time", "calculate_math", "http_request"} {
		if _, ok := r.Get(name); !ok {
			t.Errorf("built-in tool %s missing", name)
		}
	}
}

func TestRegistryRegisterValidation(t *testing.T) {
	r := NewRegistry()
	noop := func(context.Context, map[string]any) (string, error) { return "", nil }

	if err := r.Register(&Tool{Name: "", Execute: noop}); err == nil {
		t.Error("empty name accepted")
	}
	if err := r.Register(&Tool{Name: "broken"}); err == nil {
		t.Error("nil execute accepted")
	}
	if err := r.Register(&Tool{Name: "calculate_math", Execute: noop}); err == nil {
		t.Error("duplicate name accepted")
	}
	if err := r.Register(&Tool{Name: "custom", Execute: noop}); err != nil {
		t.Errorf("valid tool rejected: %v", err)
	}
	if r.Count() != 4 {
		t.Errorf("count = %d, want 4", r.Count())
	}
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	_, err := NewRegistry().Execute(context.Background(), "no_such_tool", nil)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestRegistryDefinitionsSorted(t *testing.T) {
	defs := NewRegistry().Definitions()
	if len(defs) != 3 {
		t.Fatalf("definitions = %d, want 3", len(defs))
	}
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
		if d.Description == "" || d.Parameters == nil {
			t.Errorf("tool %s missing description or parameters", d.Name)
		}
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("definitions not sorted: %v", names)
	}
}

func parseResult(t *testing.T, out string) float64 {
	t.Helper()
	first := strings.SplitN(out, "\n", 2)[0]
	raw := strings.TrimPrefix(first, "Result: ")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		t.Fatalf("unparseable result %q: %v", out, err)
	}
	return v
}

func TestCalculatorExpressions(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	tests := []struct {
		expr string
		want float64
	}{
		{"2 + 2", 4},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 / 4", 2.5},
		{"10 % 3", 1},
		{"2 ^ 10", 1024},
		{"2 ^ 3 ^ 2", 512}, // right-associative
		{"-5 + 3", -2},
		{"--4", 4},
		{"sqrt(16)", 4},
		{"abs(-2.5)", 2.5},
		{"floor(1.9)", 1},
		{"ceil(1.1)", 2},
		{"round(2.5)", 3},
		{"log(1000)", 3},
		{"ln(e)", 1},
		{"2 * pi", 2 * math.Pi},
		{"sqrt(sqrt(81))", 3},
		{"SQRT(4)", 2}, // names are case-insensitive
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			out, err := r.Execute(ctx, "calculate_math", map[string]any{"expression": tt.expr})
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
			if got := parseResult(t, out); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("%s = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestCalculatorErrors(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing expression", map[string]any{}},
		{"non-string expression", map[string]any{"expression": 42}},
		{"division by zero", map[string]any{"expression": "1 / 0"}},
		{"modulo by zero", map[string]any{"expression": "1 % 0"}},
		{"unbalanced parens", map[string]any{"expression": "(1 + 2"}},
		{"trailing garbage", map[string]any{"expression": "1 + 2)"}},
		{"unknown function", map[string]any{"expression": "cbrt(8)"}},
		{"function without parens", map[string]any{"expression": "sqrt 4"}},
		{"empty input", map[string]any{"expression": ""}},
		{"nan result", map[string]any{"expression": "sqrt(-1)"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.Execute(ctx, "calculate_math", tt.args); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestTimeToolTimezones(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	out, err := r.Execute(ctx, "get_current_time", map[string]any{})
	if err != nil {
		t.Fatalf("default timezone: %v", err)
	}
	if !strings.HasSuffix(out, "UTC") {
		t.Errorf("output = %q, want UTC suffix", out)
	}

	if _, err := r.Execute(ctx, "get_current_time", map[string]any{"timezone": "Not/AZone"}); err == nil {
		t.Error("invalid timezone accepted")
	}
}
