// Package rag is the retrieval-augmented capability agent: it answers from
// a remote vector index, or straight from history when its entry-point
// check already has the answer.
package rag

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog"

	"github.com/fabimass/ai-chatbot-multiagent/agent/chains"
	contractx "github.com/fabimass/ai-chatbot-multiagent/agent/contract"
	historyx "github.com/fabimass/ai-chatbot-multiagent/agent/history"
	promptx "github.com/fabimass/ai-chatbot-multiagent/agent/prompt"
	logx "github.com/fabimass/ai-chatbot-multiagent/pkg/logger"
)

type Config struct {
	AgentID    string `envconfig:"AGENT_ID" split_words:"true" default:"rag"`
	Directive  string `envconfig:"DIRECTIVE" split_words:"true" required:"true"`
	EntryCheck bool   `envconfig:"ENTRY_CHECK" split_words:"true" default:"true"`
	TopK       int    `envconfig:"TOP_K" split_words:"true" default:"3"`
}

type Agent struct {
	name      string
	directive string
	index     contractx.VectorIndex

	entryRunner  chains.TextRunner
	answerRunner chains.TextRunner

	entryCheck bool
	topK       int
	log        zerolog.Logger
}

var (
	_ contractx.Agent         = (*Agent)(nil)
	_ contractx.HealthChecker = (*Agent)(nil)
)

func New(ctx context.Context, chatModel einomodel.BaseChatModel, index contractx.VectorIndex, cfg Config) (*Agent, error) {
	if index == nil {
		return nil, fmt.Errorf("%w: vector index is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(cfg.Directive) == "" {
		return nil, fmt.Errorf("%w: agent directive is required", contractx.ErrValidation)
	}

	name := "agent_" + strings.TrimSpace(cfg.AgentID)
	prompts := promptx.LoadPromptSet()

	entryRunner, err := chains.CompileText(ctx, chatModel, prompts.Entry, "{question}", name+".entry")
	if err != nil {
		return nil, fmt.Errorf("%w: compile entry chain: %v", contractx.ErrModelInvoke, err)
	}
	answerRunner, err := chains.CompileText(ctx, chatModel, prompts.RagAnswer, "{question}", name+".answer")
	if err != nil {
		return nil, fmt.Errorf("%w: compile answer chain: %v", contractx.ErrModelInvoke, err)
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = 3
	}

	return &Agent{
		name:         name,
		directive:    strings.TrimSpace(cfg.Directive),
		index:        index,
		entryRunner:  entryRunner,
		answerRunner: answerRunner,
		entryCheck:   cfg.EntryCheck,
		topK:         topK,
		log:          logx.For(name),
	}, nil
}

func (a *Agent) Name() string {
	return a.name
}

func (a *Agent) Directive() string {
	return a.directive
}

// GenerateAnswer writes this agent's answer into st.Agents. Pipeline
// faults are absorbed into the AnswerUnknown contract so a failing index
// or model never aborts the conversation.
func (a *Agent) GenerateAnswer(ctx context.Context, st *contractx.ConversationState) (*contractx.ConversationState, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: conversation state is nil", contractx.ErrValidation)
	}
	st.EnsureAgentsMap()

	answer, err := a.answer(ctx, st)
	if err != nil {
		a.log.Warn().Err(err).Str("question", st.Question).Msg("pipeline fault, answering with fallback")
		answer = contractx.AnswerUnknown
	}
	st.Agents[a.name] = answer
	return st, nil
}

func (a *Agent) answer(ctx context.Context, st *contractx.ConversationState) (string, error) {
	transcript := historyx.Transcript(historyx.Filter(st.History, a.name))

	if a.entryCheck {
		out, err := a.entryRunner.Invoke(ctx, map[string]any{
			"question":  st.Question,
			"history":   transcript,
			"directive": a.directive,
		})
		if err != nil {
			return "", fmt.Errorf("%w: entry check: %v", contractx.ErrModelInvoke, err)
		}
		if out != contractx.SentinelContinue {
			a.log.Debug().Msg("entry check answered from history")
			return out, nil
		}
	}

	context_, err := a.retrieveContext(ctx, st.Question)
	if err != nil {
		return "", err
	}

	out, err := a.answerRunner.Invoke(ctx, map[string]any{
		"question": st.Question,
		"context":  context_,
		"history":  transcript,
	})
	if err != nil {
		return "", fmt.Errorf("%w: answer synthesis: %v", contractx.ErrModelInvoke, err)
	}
	return out, nil
}

// retrieveContext runs the top-k similarity search and concatenates hit
// contents in index order.
func (a *Agent) retrieveContext(ctx context.Context, query string) (string, error) {
	docs, err := a.index.SimilaritySearch(ctx, query, a.topK)
	if err != nil {
		return "", fmt.Errorf("%w: similarity search: %v", contractx.ErrBackendUnavailable, err)
	}

	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		parts = append(parts, doc.Content)
	}
	return strings.Join(parts, "\n\n"), nil
}

// CheckConnection probes the index with a one-hit search.
func (a *Agent) CheckConnection(ctx context.Context) contractx.HealthStatus {
	if _, err := a.index.SimilaritySearch(ctx, "test", 1); err != nil {
		return contractx.HealthStatus{Healthy: false, Info: err.Error()}
	}
	return contractx.HealthStatus{Healthy: true, Info: "up and running"}
}
