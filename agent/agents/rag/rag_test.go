package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/fabimass/ai-chatbot-multiagent/agent/contract"
)

type fakeChatModel struct {
	responses []*schema.Message
	err       error
	calls     int
	inputs    [][]*schema.Message
}

func (f *fakeChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error) {
	f.inputs = append(f.inputs, input)
	if f.err != nil {
		return nil, f.err
	}
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

type fakeIndex struct {
	docs      []contractx.Document
	err       error
	lastQuery string
	lastK     int
}

func (f *fakeIndex) SimilaritySearch(ctx context.Context, query string, k int) ([]contractx.Document, error) {
	f.lastQuery = query
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

func newTestAgent(t *testing.T, fake *fakeChatModel, index *fakeIndex) *Agent {
	t.Helper()
	ag, err := New(context.Background(), fake, index, Config{
		AgentID:    "rag",
		Directive:  "answers from documentation",
		EntryCheck: true,
		TopK:       3,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return ag
}

func TestGenerateAnswerFullPipeline(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{responses: []*schema.Message{
		{Content: contractx.SentinelContinue},
		{Content: "Paris"},
	}}
	index := &fakeIndex{docs: []contractx.Document{
		{Content: "France is a country in Europe."},
		{Content: "The capital of France is Paris."},
	}}
	ag := newTestAgent(t, fake, index)

	st, err := ag.GenerateAnswer(context.Background(), &contractx.ConversationState{Question: "capital of France?"})
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}

	if st.Agents["agent_rag"] != "Paris" {
		t.Fatalf("Agents[agent_rag] = %q, want Paris", st.Agents["agent_rag"])
	}
	if index.lastQuery != "capital of France?" || index.lastK != 3 {
		t.Fatalf("search called with (%q, %d)", index.lastQuery, index.lastK)
	}

	answerSystem := fake.inputs[1][0].Content
	if !strings.Contains(answerSystem, "France is a country in Europe.\n\nThe capital of France is Paris.") {
		t.Fatalf("retrieved context not joined with blank line: %q", answerSystem)
	}
}

func TestGenerateAnswerEntryShortCircuit(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{responses: []*schema.Message{{Content: "Paris, as I said before"}}}
	index := &fakeIndex{}
	ag := newTestAgent(t, fake, index)

	st, err := ag.GenerateAnswer(context.Background(), &contractx.ConversationState{
		Question: "capital of France?",
		History: []contractx.HistoryEntry{
			{Role: contractx.RoleUser, Content: "capital of France?"},
			{Role: contractx.RoleBot, Content: "Paris", Agents: map[string]string{"agent_rag": "Paris"}},
		},
	})
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}

	if st.Agents["agent_rag"] != "Paris, as I said before" {
		t.Fatalf("Agents[agent_rag] = %q", st.Agents["agent_rag"])
	}
	if index.lastK != 0 {
		t.Fatal("index was queried despite entry short-circuit")
	}

	entrySystem := fake.inputs[0][0].Content
	if !strings.Contains(entrySystem, "bot: Paris") {
		t.Fatalf("filtered history missing from entry prompt: %q", entrySystem)
	}
}

func TestGenerateAnswerIndexFaultFallsBack(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{responses: []*schema.Message{{Content: contractx.SentinelContinue}}}
	index := &fakeIndex{err: errors.New("index down")}
	ag := newTestAgent(t, fake, index)

	st, err := ag.GenerateAnswer(context.Background(), &contractx.ConversationState{Question: "capital of France?"})
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}
	if st.Agents["agent_rag"] != contractx.AnswerUnknown {
		t.Fatalf("Agents[agent_rag] = %q, want %q", st.Agents["agent_rag"], contractx.AnswerUnknown)
	}
}

func TestCheckConnection(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{}
	ag := newTestAgent(t, fake, &fakeIndex{})

	if status := ag.CheckConnection(context.Background()); !status.Healthy {
		t.Fatalf("CheckConnection() = %+v, want healthy", status)
	}

	down := newTestAgent(t, &fakeChatModel{}, &fakeIndex{err: errors.New("index down")})
	if status := down.CheckConnection(context.Background()); status.Healthy {
		t.Fatalf("CheckConnection() = %+v, want unhealthy", status)
	}
}
