package contract

import "context"

// Agent is one capability agent in the roster. GenerateAnswer runs the
// agent's pipeline and writes exactly one entry into state.Agents keyed by
// Name(); pipeline faults are absorbed into the AnswerUnknown contract, so
// a non-nil error means the state itself was unusable, never that the
// backend or the model misbehaved.
type Agent interface {
	Name() string
	Directive() string
	GenerateAnswer(ctx context.Context, st *ConversationState) (*ConversationState, error)
}

// HealthChecker is implemented by agents wrapping a reconnectable backend.
type HealthChecker interface {
	CheckConnection(ctx context.Context) HealthStatus
}

// VectorIndex is the retrieval agent's backend capability.
type VectorIndex interface {
	SimilaritySearch(ctx context.Context, query string, k int) ([]Document, error)
}

// RelationalDB is the SQL agent's backend capability. Run executes one
// statement and returns the rows in a printable representation; Schema
// returns the full (schema, table, column, type) tuple listing.
type RelationalDB interface {
	Run(ctx context.Context, query string) (string, error)
	Schema(ctx context.Context) (string, error)
	Ping(ctx context.Context) error
	Reconnect(ctx context.Context) error
}

// BlobStore is the CSV agent's backend capability.
type BlobStore interface {
	Get(ctx context.Context, container, key string) ([]byte, error)
}

// SpecFetcher retrieves a raw OpenAPI/Swagger document.
type SpecFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ScriptRunner executes a model-generated script in isolation and returns
// the value of its designated result variable.
type ScriptRunner interface {
	Run(ctx context.Context, script string) (string, error)
}
