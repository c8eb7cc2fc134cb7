// Package session persists per-session conversation history and answer
// feedback as append-only Postgres tables.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	contractx "github.com/fabimass/ai-chatbot-multiagent/agent/contract"
)

// HistoryRecord is one conversational turn of one session. Bot records
// additionally carry the raw answer of every agent that responded that
// turn. Records are appended and bulk-deleted per session, never updated.
type HistoryRecord struct {
	bun.BaseModel `bun:"table:chat_history"`

	ID           int64             `bun:"id,pk,autoincrement"`
	SessionID    string            `bun:"session_id,notnull"`
	Role         string            `bun:"role,notnull"`
	Content      string            `bun:"content,notnull"`
	AgentAnswers map[string]string `bun:"agent_answers,type:jsonb,nullzero"`
	CreatedAt    time.Time         `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// FeedbackRecord is one user verdict on one answered question.
type FeedbackRecord struct {
	bun.BaseModel `bun:"table:chat_feedback"`

	ID        int64     `bun:"id,pk,autoincrement"`
	SessionID string    `bun:"session_id,notnull"`
	Question  string    `bun:"question,notnull"`
	Answer    string    `bun:"answer,notnull"`
	Like      bool      `bun:"liked,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// Store is the append-only session log consumed by the HTTP layer.
type Store interface {
	Append(ctx context.Context, sessionID string, entry contractx.HistoryEntry) error
	History(ctx context.Context, sessionID string) ([]contractx.HistoryEntry, error)
	DeleteHistory(ctx context.Context, sessionID string) error
	AddFeedback(ctx context.Context, fb contractx.Feedback) error
}

// PostgresStore implements Store on a bun connection.
type PostgresStore struct {
	db *bun.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db *bun.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: database handle is required", contractx.ErrValidation)
	}
	return &PostgresStore{db: db}, nil
}

// EnsureSchema creates the history and feedback tables if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	models := []any{(*HistoryRecord)(nil), (*FeedbackRecord)(nil)}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("%w: create table: %v", contractx.ErrBackendUnavailable, err)
		}
	}
	return nil
}

// Append writes one history entry at the tail of the session's log.
func (s *PostgresStore) Append(ctx context.Context, sessionID string, entry contractx.HistoryEntry) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: session id is required", contractx.ErrValidation)
	}

	record := &HistoryRecord{
		SessionID:    sessionID,
		Role:         entry.Role,
		Content:      entry.Content,
		AgentAnswers: entry.Agents,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return fmt.Errorf("%w: append history: %v", contractx.ErrBackendUnavailable, err)
	}
	return nil
}

// History returns the session's entries in insertion order.
func (s *PostgresStore) History(ctx context.Context, sessionID string) ([]contractx.HistoryEntry, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session id is required", contractx.ErrValidation)
	}

	var records []HistoryRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("session_id = ?", sessionID).
		Order("created_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load history: %v", contractx.ErrBackendUnavailable, err)
	}

	entries := make([]contractx.HistoryEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, contractx.HistoryEntry{
			Role:    record.Role,
			Content: record.Content,
			Agents:  record.AgentAnswers,
		})
	}
	return entries, nil
}

// DeleteHistory removes every entry of one session.
func (s *PostgresStore) DeleteHistory(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: session id is required", contractx.ErrValidation)
	}

	_, err := s.db.NewDelete().
		Model((*HistoryRecord)(nil)).
		Where("session_id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: delete history: %v", contractx.ErrBackendUnavailable, err)
	}
	return nil
}

// AddFeedback records one verdict.
func (s *PostgresStore) AddFeedback(ctx context.Context, fb contractx.Feedback) error {
	if strings.TrimSpace(fb.SessionID) == "" {
		return fmt.Errorf("%w: session id is required", contractx.ErrValidation)
	}

	record := &FeedbackRecord{
		SessionID: fb.SessionID,
		Question:  fb.Question,
		Answer:    fb.Answer,
		Like:      fb.Like,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return fmt.Errorf("%w: add feedback: %v", contractx.ErrBackendUnavailable, err)
	}
	return nil
}
