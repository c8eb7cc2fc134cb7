package apiagent

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/fabimass/ai-chatbot-multiagent/agent/contract"
)

type fakeChatModel struct {
	responses []*schema.Message
	calls     int
	inputs    [][]*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.inputs = append(f.inputs, input)
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

type fakeFetcher struct {
	raw []byte
	err error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.raw, nil
}

type fakeRunner struct {
	result     string
	err        error
	lastScript string
}

func (f *fakeRunner) Run(ctx context.Context, script string) (string, error) {
	f.lastScript = script
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

const jsonSpec = `{
  "servers": [{"url": "https://api.example.com/v1/"}],
  "paths": {
    "/users": {
      "get": {"summary": "List users"},
      "post": {"summary": "Create user"}
    },
    "/users/{id}": {
      "get": {"summary": "Get one user"}
    },
    "/internal/debug": {
      "get": {"summary": "Debug dump"}
    }
  }
}`

const yamlSpec = `
swagger: "2.0"
host: api.example.com
basePath: /v1
schemes:
  - https
paths:
  /users:
    get:
      summary: List users
      responses:
        200:
          description: OK
    post:
      summary: Create user
`

func newTestAgent(t *testing.T, fake *fakeChatModel, raw string, runner *fakeRunner, filter []string) *Agent {
	t.Helper()
	ag, err := New(context.Background(), fake, &fakeFetcher{raw: []byte(raw)}, runner, Config{
		AgentID:        "api",
		Directive:      "answers from the users API",
		SpecURL:        "https://api.example.com/openapi.json",
		Token:          "secret-token",
		EntryCheck:     true,
		EndpointFilter: filter,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return ag
}

func TestNewExtractsGetEndpoints(t *testing.T) {
	t.Parallel()

	ag := newTestAgent(t, &fakeChatModel{}, jsonSpec, &fakeRunner{}, nil)

	want := []string{"/internal/debug", "/users", "/users/{id}"}
	if got := ag.Endpoints(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Endpoints() = %#v, want %#v", got, want)
	}
	if ag.baseURL != "https://api.example.com/v1" {
		t.Fatalf("baseURL = %q", ag.baseURL)
	}
}

func TestNewAppliesEndpointFilter(t *testing.T) {
	t.Parallel()

	ag := newTestAgent(t, &fakeChatModel{}, jsonSpec, &fakeRunner{}, []string{"/users"})

	want := []string{"/users", "/users/{id}"}
	if got := ag.Endpoints(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Endpoints() = %#v, want %#v", got, want)
	}
}

func TestNewParsesYAMLSpec(t *testing.T) {
	t.Parallel()

	ag := newTestAgent(t, &fakeChatModel{}, yamlSpec, &fakeRunner{}, nil)

	want := []string{"/users"}
	if got := ag.Endpoints(); !reflect.DeepEqual(got, want) {
		t.Fatalf("Endpoints() = %#v, want %#v", got, want)
	}
	if ag.baseURL != "https://api.example.com/v1" {
		t.Fatalf("baseURL = %q", ag.baseURL)
	}
}

func TestNewRejectsMalformedSpec(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), &fakeChatModel{}, &fakeFetcher{raw: []byte("{]")}, &fakeRunner{}, Config{
		AgentID:   "api",
		Directive: "answers from the users API",
		SpecURL:   "https://api.example.com/openapi.json",
	})
	if err == nil {
		t.Fatal("New() accepted a malformed document")
	}
}

func TestGenerateAnswerFullPipeline(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: "[{'name': 'Alice'}]"}
	fake := &fakeChatModel{responses: []*schema.Message{
		{Content: contractx.SentinelContinue},
		{Content: "/users, /missing"},
		{Content: "```python\nresult = requests.get(url).json()\n```"},
		{Content: "```python\nresult = requests.get(url).json()\n```"},
		{Content: "There is one user, Alice."},
	}}
	ag := newTestAgent(t, fake, jsonSpec, runner, nil)

	st, err := ag.GenerateAnswer(context.Background(), &contractx.ConversationState{Question: "who are the users?"})
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}

	if st.Agents["agent_api"] != "There is one user, Alice." {
		t.Fatalf("Agents[agent_api] = %q", st.Agents["agent_api"])
	}
	if runner.lastScript != "result = requests.get(url).json()" {
		t.Fatalf("executed script = %q, want fence-stripped snippet", runner.lastScript)
	}

	generateSystem := fake.inputs[2][0].Content
	if !strings.Contains(generateSystem, "List users") {
		t.Fatalf("selected endpoint details missing from generate prompt: %q", generateSystem)
	}
	if strings.Contains(generateSystem, "/missing") {
		t.Fatalf("unknown endpoint leaked into prompt: %q", generateSystem)
	}
	if !strings.Contains(generateSystem, "https://api.example.com/v1") || !strings.Contains(generateSystem, "secret-token") {
		t.Fatalf("base url or token missing from generate prompt: %q", generateSystem)
	}
}

func TestGenerateAnswerScriptFaultFallsBack(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{err: errors.New("ConnectionError")}
	fake := &fakeChatModel{responses: []*schema.Message{
		{Content: contractx.SentinelContinue},
		{Content: "/users"},
		{Content: "result = requests.get(url).json()"},
		{Content: "result = requests.get(url).json()"},
	}}
	ag := newTestAgent(t, fake, jsonSpec, runner, nil)

	st, err := ag.GenerateAnswer(context.Background(), &contractx.ConversationState{Question: "who are the users?"})
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}
	if st.Agents["agent_api"] != contractx.AnswerUnknown {
		t.Fatalf("Agents[agent_api] = %q, want %q", st.Agents["agent_api"], contractx.AnswerUnknown)
	}
}
