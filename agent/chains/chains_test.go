package chains

import (
	"context"
	"errors"
	"reflect"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type fakeChatModel struct {
	responses []*schema.Message
	calls     int
	lastInput []*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.lastInput = input
	if f.calls >= len(f.responses) {
		return nil, errors.New("no fake response left")
	}
	msg := f.responses[f.calls]
	f.calls++
	return msg, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not implemented in fake model")
}

func TestCompileTextRendersPlaceholders(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{responses: []*schema.Message{{Content: "  Paris \n"}}}

	runner, err := CompileText(context.Background(), fake, "Context: {context}", "{question}", "test.graph")
	if err != nil {
		t.Fatalf("CompileText() error = %v", err)
	}

	out, err := runner.Invoke(context.Background(), map[string]any{
		"context":  "France facts",
		"question": "capital of France?",
	})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if out != "Paris" {
		t.Fatalf("Invoke() = %q, want %q", out, "Paris")
	}

	if len(fake.lastInput) != 2 {
		t.Fatalf("expected 2 rendered messages, got %d", len(fake.lastInput))
	}
	if fake.lastInput[0].Content != "Context: France facts" {
		t.Fatalf("unexpected system message: %q", fake.lastInput[0].Content)
	}
	if fake.lastInput[1].Content != "capital of France?" {
		t.Fatalf("unexpected human message: %q", fake.lastInput[1].Content)
	}
}

func TestStripFence(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"sql fence", "```sql\nSELECT 1\n```", "SELECT 1"},
		{"python fence", "```python\nresult = 1\n```", "result = 1"},
		{"python3 fence", "```python3\nresult = 1\n```", "result = 1"},
		{"bare fence", "```\nx\n```", "x"},
		{"no fence", "SELECT 1", "SELECT 1"},
	}
	for _, tc := range cases {
		if got := StripFence(tc.in); got != tc.want {
			t.Fatalf("%s: StripFence() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestCleanSQLCollapsesNewlines(t *testing.T) {
	t.Parallel()

	in := "```sql\nSELECT name\nFROM users\nLIMIT 5\n```"
	want := "SELECT name FROM users LIMIT 5"
	if got := CleanSQL(in); got != want {
		t.Fatalf("CleanSQL() = %q, want %q", got, want)
	}
}

func TestParseList(t *testing.T) {
	t.Parallel()

	if got := ParseList(""); len(got) != 0 {
		t.Fatalf("ParseList(\"\") = %#v, want empty", got)
	}
	got := ParseList("agent_rag, agent_sql")
	want := []string{"agent_rag", "agent_sql"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseList() = %#v, want %#v", got, want)
	}
}
