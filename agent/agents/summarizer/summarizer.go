// Package summarizer merges the per-agent answers of one invocation into
// the single final answer.
package summarizer

import (
	"context"
	"encoding/json"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog"

	"github.com/fabimass/ai-chatbot-multiagent/agent/chains"
	contractx "github.com/fabimass/ai-chatbot-multiagent/agent/contract"
	promptx "github.com/fabimass/ai-chatbot-multiagent/agent/prompt"
	logx "github.com/fabimass/ai-chatbot-multiagent/pkg/logger"
)

type Summarizer struct {
	runner chains.TextRunner
	log    zerolog.Logger
}

func New(ctx context.Context, chatModel einomodel.BaseChatModel) (*Summarizer, error) {
	prompts := promptx.LoadPromptSet()
	runner, err := chains.CompileText(ctx, chatModel, prompts.Summarizer, "{question}", "summarizer")
	if err != nil {
		return nil, fmt.Errorf("%w: compile summarizer chain: %v", contractx.ErrModelInvoke, err)
	}
	return &Summarizer{runner: runner, log: logx.For("summarizer")}, nil
}

// Summarize writes the final answer into st.Answer. When no agent ever
// ran, the fixed apology is used without invoking the model; a model
// fault is absorbed into the same apology.
func (s *Summarizer) Summarize(ctx context.Context, st *contractx.ConversationState) *contractx.ConversationState {
	if len(st.Agents) == 0 {
		st.Answer = contractx.AnswerOutOfScope
		return st
	}

	responses, err := json.Marshal(st.Agents)
	if err != nil {
		s.log.Warn().Err(err).Msg("render responses failed, answering with fallback")
		st.Answer = contractx.AnswerOutOfScope
		return st
	}

	out, err := s.runner.Invoke(ctx, map[string]any{
		"question":  st.Question,
		"responses": string(responses),
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("summarization fault, answering with fallback")
		st.Answer = contractx.AnswerOutOfScope
		return st
	}

	st.Answer = out
	return st
}
