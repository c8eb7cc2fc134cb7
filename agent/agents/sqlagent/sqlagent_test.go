package sqlagent

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

type fakeDB struct {
	schema     string
	result     string
	runErr     error
	pingErr    error
	lastQuery  string
	pings      int
	reconnects int
}

func (f *fakeDB) Run(ctx context.Context, query string) (string, error) {
	f.lastQuery = query
	if f.runErr != nil {
		return "", f.runErr
	}
	return f.result, nil
}

func (f *fakeDB) Schema(ctx context.Context) (string, error) {
	return f.schema, nil
}

func (f *fakeDB) Ping(ctx context.Context) error {
	f.pings++
	return f.pingErr
}

func (f *fakeDB) Reconnect(ctx context.Context) error {
	f.reconnects++
	f.pingErr = nil
	return nil
}

func newTestAgent(t *testing.T, fake *fakeChatModel, db *fakeDB) *Agent {
	t.Helper()
	ag, err := New(context.Background(), fake, db, Config{
		AgentID:    "sql",
		Directive:  "answers from the users database",
		EntryCheck: true,
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
		{Content: "```sql\nSELECT COUNT(*)\nFROM users\n```"},
		{Content: "```sql\nSELECT COUNT(*)\nFROM users\n```"},
		{Content: "There are 42 users."},
	}}
	db := &fakeDB{
		schema: "[(public, users, id, bigint)]",
		result: "[(42)]",
	}
	ag := newTestAgent(t, fake, db)

	st, err := ag.GenerateAnswer(context.Background(), &contractx.ConversationState{Question: "how many users?"})
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}

	if st.Agents["agent_sql"] != "There are 42 users." {
		t.Fatalf("Agents[agent_sql] = %q", st.Agents["agent_sql"])
	}
	if db.lastQuery != "SELECT COUNT(*) FROM users" {
		t.Fatalf("executed query = %q, want cleaned one-liner", db.lastQuery)
	}

	answerSystem := fake.inputs[3][0].Content
	if !strings.Contains(answerSystem, "[(42)]") {
		t.Fatalf("execution result missing from answer prompt: %q", answerSystem)
	}
}

func TestGenerateAnswerStaleConnectionReconnects(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{responses: []*schema.Message{
		{Content: contractx.SentinelContinue},
		{Content: "SELECT COUNT(*) FROM users"},
		{Content: "SELECT COUNT(*) FROM users"},
		{Content: "There are 42 users."},
	}}
	db := &fakeDB{
		schema:  "[(public, users, id, bigint)]",
		result:  "[(42)]",
		pingErr: errors.New("connection reset"),
	}
	ag := newTestAgent(t, fake, db)

	st, err := ag.GenerateAnswer(context.Background(), &contractx.ConversationState{Question: "how many users?"})
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}
	if db.reconnects != 1 {
		t.Fatalf("reconnects = %d, want 1", db.reconnects)
	}
	if st.Agents["agent_sql"] != "There are 42 users." {
		t.Fatalf("Agents[agent_sql] = %q, want the pipeline to proceed after reconnect", st.Agents["agent_sql"])
	}
}

func TestGenerateAnswerEntryShortCircuitSkipsDatabase(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{responses: []*schema.Message{{Content: "42 users, as I said before"}}}
	db := &fakeDB{pingErr: errors.New("connection reset")}
	ag := newTestAgent(t, fake, db)

	st, err := ag.GenerateAnswer(context.Background(), &contractx.ConversationState{Question: "how many users?"})
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}
	if st.Agents["agent_sql"] != "42 users, as I said before" {
		t.Fatalf("Agents[agent_sql] = %q", st.Agents["agent_sql"])
	}
	if db.pings != 0 || db.reconnects != 0 {
		t.Fatalf("database touched on short-circuit: pings = %d, reconnects = %d", db.pings, db.reconnects)
	}
}

func TestGenerateAnswerQueryFaultFallsBack(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{responses: []*schema.Message{
		{Content: contractx.SentinelContinue},
		{Content: "SELECT 1"},
		{Content: "SELECT 1"},
	}}
	db := &fakeDB{runErr: errors.New("syntax error")}
	ag := newTestAgent(t, fake, db)

	st, err := ag.GenerateAnswer(context.Background(), &contractx.ConversationState{Question: "how many users?"})
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}
	if st.Agents["agent_sql"] != contractx.AnswerUnknown {
		t.Fatalf("Agents[agent_sql] = %q, want %q", st.Agents["agent_sql"], contractx.AnswerUnknown)
	}
}

func TestGenerateAnswerEmptyReviewedQueryFallsBack(t *testing.T) {
	t.Parallel()

	fake := &fakeChatModel{responses: []*schema.Message{
		{Content: contractx.SentinelContinue},
		{Content: "SELECT 1"},
		{Content: "```sql\n\n```"},
	}}
	db := &fakeDB{}
	ag := newTestAgent(t, fake, db)

	st, err := ag.GenerateAnswer(context.Background(), &contractx.ConversationState{Question: "how many users?"})
	if err != nil {
		t.Fatalf("GenerateAnswer() error = %v", err)
	}
	if st.Agents["agent_sql"] != contractx.AnswerUnknown {
		t.Fatalf("Agents[agent_sql] = %q, want %q", st.Agents["agent_sql"], contractx.AnswerUnknown)
	}
	if db.lastQuery != "" {
		t.Fatalf("empty reviewed query was executed: %q", db.lastQuery)
	}
}

func TestCheckConnectionReconnects(t *testing.T) {
	t.Parallel()

	db := &fakeDB{pingErr: errors.New("connection reset")}
	ag := newTestAgent(t, &fakeChatModel{}, db)

	status := ag.CheckConnection(context.Background())
	if !status.Healthy || status.Info != "reconnected" {
		t.Fatalf("CheckConnection() = %+v, want healthy reconnected", status)
	}

	healthy := ag.CheckConnection(context.Background())
	if !healthy.Healthy || healthy.Info != "up and running" {
		t.Fatalf("CheckConnection() = %+v, want up and running", healthy)
	}
}
