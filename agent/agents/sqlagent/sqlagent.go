// Package sqlagent is the capability agent for a relational database: it
// turns the question into one SQL statement, has the model review it,
// executes it and synthesizes a grounded answer from the rows.
package sqlagent

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
	AgentID    string `envconfig:"AGENT_ID" split_words:"true" default:"sql"`
	Directive  string `envconfig:"DIRECTIVE" split_words:"true" required:"true"`
	EntryCheck bool   `envconfig:"ENTRY_CHECK" split_words:"true" default:"true"`
}

type Agent struct {
	name      string
	directive string
	db        contractx.RelationalDB

	entryRunner    chains.TextRunner
	generateRunner chains.TextRunner
	reviewRunner   chains.TextRunner
	answerRunner   chains.TextRunner

	entryCheck bool
	log        zerolog.Logger
}

var (
	_ contractx.Agent         = (*Agent)(nil)
	_ contractx.HealthChecker = (*Agent)(nil)
)

func New(ctx context.Context, chatModel einomodel.BaseChatModel, db contractx.RelationalDB, cfg Config) (*Agent, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: relational database is required", contractx.ErrValidation)
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
	generateRunner, err := chains.CompileText(ctx, chatModel, prompts.SqlGenerate, "{question}", name+".generate")
	if err != nil {
		return nil, fmt.Errorf("%w: compile generate chain: %v", contractx.ErrModelInvoke, err)
	}
	reviewRunner, err := chains.CompileText(ctx, chatModel, prompts.SqlReview, "{snippet}", name+".review")
	if err != nil {
		return nil, fmt.Errorf("%w: compile review chain: %v", contractx.ErrModelInvoke, err)
	}
	answerRunner, err := chains.CompileText(ctx, chatModel, prompts.SqlAnswer, "{question}", name+".answer")
	if err != nil {
		return nil, fmt.Errorf("%w: compile answer chain: %v", contractx.ErrModelInvoke, err)
	}

	return &Agent{
		name:           name,
		directive:      strings.TrimSpace(cfg.Directive),
		db:             db,
		entryRunner:    entryRunner,
		generateRunner: generateRunner,
		reviewRunner:   reviewRunner,
		answerRunner:   answerRunner,
		entryCheck:     cfg.EntryCheck,
		log:            logx.For(name),
	}, nil
}

func (a *Agent) Name() string {
	return a.name
}

func (a *Agent) Directive() string {
	return a.directive
}

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

	// Reconnect first if the connection went stale while idle. An entry
	// short-circuit never reaches this, so it never probes the database.
	if err := a.db.Ping(ctx); err != nil {
		a.log.Warn().Err(err).Msg("database probe failed, reconnecting")
		if err := a.db.Reconnect(ctx); err != nil {
			a.log.Warn().Err(err).Msg("reconnect failed")
		}
	}

	schema, err := a.db.Schema(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch schema: %w", err)
	}

	query, err := a.generateQuery(ctx, st.Question, schema, transcript)
	if err != nil {
		return "", err
	}

	result, err := a.db.Run(ctx, query)
	if err != nil {
		return "", fmt.Errorf("execute query: %w", err)
	}

	out, err := a.answerRunner.Invoke(ctx, map[string]any{
		"question": st.Question,
		"query":    query,
		"result":   result,
		"history":  transcript,
	})
	if err != nil {
		return "", fmt.Errorf("%w: answer synthesis: %v", contractx.ErrModelInvoke, err)
	}
	return out, nil
}

// generateQuery produces a statement, has the model review it for common
// mistakes, then cleans fencing and newlines for the driver.
func (a *Agent) generateQuery(ctx context.Context, question, schema, transcript string) (string, error) {
	query, err := a.generateRunner.Invoke(ctx, map[string]any{
		"question": question,
		"schema":   schema,
		"history":  transcript,
	})
	if err != nil {
		return "", fmt.Errorf("%w: query generation: %v", contractx.ErrModelInvoke, err)
	}

	reviewed, err := a.reviewRunner.Invoke(ctx, map[string]any{
		"snippet": query,
	})
	if err != nil {
		return "", fmt.Errorf("%w: query review: %v", contractx.ErrModelInvoke, err)
	}

	cleaned := chains.CleanSQL(reviewed)
	if cleaned == "" {
		return "", fmt.Errorf("%w: reviewed query is empty", contractx.ErrSchemaViolation)
	}
	a.log.Debug().Str("query", cleaned).Msg("generated query")
	return cleaned, nil
}

// CheckConnection probes the database; on failure it attempts exactly one
// reconnect and reports the combined outcome.
func (a *Agent) CheckConnection(ctx context.Context) contractx.HealthStatus {
	if err := a.db.Ping(ctx); err == nil {
		return contractx.HealthStatus{Healthy: true, Info: "up and running"}
	}

	if err := a.db.Reconnect(ctx); err != nil {
		return contractx.HealthStatus{Healthy: false, Info: err.Error()}
	}
	return contractx.HealthStatus{Healthy: true, Info: "reconnected"}
}
