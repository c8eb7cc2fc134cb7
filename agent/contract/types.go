package contract

// Role values used in conversation history entries.
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// Sentinel strings exchanged with the language model and the caller.
const (
	// SentinelContinue is returned by an agent's entry-point check when it
	// cannot answer from history alone and must consult its backend.
	SentinelContinue = "CONTINUE"

	// AnswerUnknown is written into the agents map whenever an agent's
	// pipeline faults. Failures are isolated per agent, never propagated.
	AnswerUnknown = "I don't know"

	// AnswerOutOfScope is the summarizer's fixed apology when no agent
	// produced an answer.
	AnswerOutOfScope = "This question falls outside of my area of knowledge"

	// NextFinish is the supervisor's terminal routing decision.
	NextFinish = "FINISH"
)

type AgentRole string

const (
	RoleSupervisor AgentRole = "supervisor"
	RoleSummarizer AgentRole = "summarizer"
	RoleGreeter    AgentRole = "greeter"
	RoleRag        AgentRole = "rag"
	RoleSql        AgentRole = "sql"
	RoleCsv        AgentRole = "csv"
	RoleApi        AgentRole = "api"
)

// HistoryEntry is one prior conversational turn. Bot entries additionally
// carry the raw answer of every agent that responded that turn, keyed by
// agent name; Content holds the summarized default.
type HistoryEntry struct {
	Role    string            `json:"role"`
	Content string            `json:"content"`
	Agents  map[string]string `json:"agents,omitempty"`
}

// ConversationState is threaded through every graph node of one invocation.
// It is owned exclusively by that invocation: Question and History are
// read-only inputs, each agent node inserts exactly one key into Agents,
// RelevantAgents is written once by the supervisor's filtering step, and
// Answer is written once by the summarizer.
type ConversationState struct {
	Question       string            `json:"question"`
	History        []HistoryEntry    `json:"history"`
	Agents         map[string]string `json:"agents"`
	RelevantAgents []string          `json:"relevant_agents"`
	Answer         string            `json:"answer"`
}

// EnsureAgentsMap makes sure st.Agents is initialized.
func (st *ConversationState) EnsureAgentsMap() {
	if st.Agents == nil {
		st.Agents = make(map[string]string, 4)
	}
}

// GraphInput is the orchestration graph's per-question input.
type GraphInput struct {
	Question string         `json:"question"`
	History  []HistoryEntry `json:"history"`
}

// GraphOutput is what one invocation returns to the caller: the final
// answer plus every per-agent raw answer for history stamping.
type GraphOutput struct {
	Answer string            `json:"answer"`
	Agents map[string]string `json:"agents"`
}

// RosterEntry pairs an agent name with its capability directive. The
// supervisor routes on directives; agents self-assess against them.
type RosterEntry struct {
	Name      string `json:"agent_name"`
	Directive string `json:"agent_skills"`
}

// HealthStatus is the combined result of a backend probe plus, on failure,
// a single reconnect attempt.
type HealthStatus struct {
	Healthy bool   `json:"healthy"`
	Info    string `json:"info"`
}

// Document is one vector index hit.
type Document struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Feedback is a user's verdict on one answered question.
type Feedback struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Like      bool   `json:"like"`
}
