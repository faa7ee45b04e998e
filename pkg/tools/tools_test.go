package tools

import (
	"context"
	"strings"
	"testing"
)

type echoTool struct{}

func (echoTool) Describe() Info {
	return Info{
		Name:        "echo",
		Description: "echoes its input",
		Parameters:  []Parameter{{Name: "text", Type: "string", Required: true}},
	}
}

func (echoTool) Execute(_ context.Context, argsJSON string) (interface{}, error) {
	return map[string]interface{}{"echoed": argsJSON}, nil
}

func TestRegistryExecuteUnknownToolReportsAvailable(t *testing.T) {
	r := NewRegistry()
	r.Register(&echoTool{})

	result := r.Execute(context.Background(), "nope", "{}")
	if result.Error == "" {
		t.Fatal("expected a populated Error for an unregistered tool name")
	}
	if len(result.Available) != 1 || result.Available[0] != "echo" {
		t.Fatalf("Available = %v, want [echo]", result.Available)
	}
}

func TestRegistryExecuteInvalidJSONArgs(t *testing.T) {
	r := NewRegistry()
	r.Register(&echoTool{})

	result := r.Execute(context.Background(), "echo", `{"text": unquoted}`)
	if result.Error == "" {
		t.Fatal("expected an Error for malformed argument JSON")
	}
}

func TestRegistryExecuteStampsReceivedAt(t *testing.T) {
	r := NewRegistry()
	r.Register(&echoTool{})

	result := r.Execute(context.Background(), "echo", `{"text":"hi"}`)
	if result.Error != "" {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	if !strings.Contains(result.Parameters, "_received_at") {
		t.Fatalf("Parameters = %q, want it stamped with _received_at", result.Parameters)
	}
}

func TestRegistryManifestsReflectRequiredParameters(t *testing.T) {
	r := NewRegistry()
	r.Register(&CalculatorTool{})
	r.Register(&ClockTool{})

	manifests := r.Manifests()
	if len(manifests) != 2 {
		t.Fatalf("Manifests() returned %d entries, want 2", len(manifests))
	}

	byName := map[string]Manifest{}
	for _, m := range manifests {
		byName[m.Function.Name] = m
	}

	calc, ok := byName["calculate"]
	if !ok {
		t.Fatal("expected a 'calculate' manifest entry")
	}
	if len(calc.Function.Parameters.Required) != 1 || calc.Function.Parameters.Required[0] != "expression" {
		t.Fatalf("calculate Required = %v, want [expression]", calc.Function.Parameters.Required)
	}

	clock, ok := byName["clock"]
	if !ok {
		t.Fatal("expected a 'clock' manifest entry")
	}
	if len(clock.Function.Parameters.Required) != 0 {
		t.Fatalf("clock Required = %v, want empty (timezone is optional)", clock.Function.Parameters.Required)
	}
}

func TestCalculatorToolEvaluatesExpressions(t *testing.T) {
	tool := &CalculatorTool{}
	cases := []struct {
		expr string
		want float64
	}{
		{"2 + 2", 4},
		{"2 * (3 + 4)", 14},
		{"10 / 2 - 3", 2},
		{"2 ^ 10", 1024},
		{"-5 + 2", -3},
	}
	for _, c := range cases {
		out, err := tool.Execute(context.Background(), `{"expression":"`+c.expr+`"}`)
		if err != nil {
			t.Fatalf("Execute(%q) error: %v", c.expr, err)
		}
		m := out.(map[string]interface{})
		if m["result"] != c.want {
			t.Fatalf("Execute(%q) result = %v, want %v", c.expr, m["result"], c.want)
		}
	}
}

func TestCalculatorToolDivisionByZeroIsAResultNotAGoError(t *testing.T) {
	tool := &CalculatorTool{}
	out, err := tool.Execute(context.Background(), `{"expression":"1/0"}`)
	if err != nil {
		t.Fatalf("Execute() returned a Go error %v, want a structured error result", err)
	}
	m := out.(map[string]interface{})
	if m["error"] == nil {
		t.Fatalf("expected a structured error field for division by zero, got %+v", m)
	}
}

func TestClockToolDefaultsToUTC(t *testing.T) {
	tool := NewClockTool()
	out, err := tool.Execute(context.Background(), `{}`)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	m := out.(map[string]interface{})
	if m["timezone"] != "UTC" {
		t.Fatalf("timezone = %v, want UTC", m["timezone"])
	}
}

func TestClockToolUnknownTimezone(t *testing.T) {
	tool := NewClockTool()
	_, err := tool.Execute(context.Background(), `{"timezone":"Not/AZone"}`)
	if err == nil {
		t.Fatal("expected an error for an unknown IANA zone")
	}
}
