// Package supervisor routes one question to the subset of registered
// agents able to answer it, then drives the turn-taking loop until every
// selected agent has answered.
package supervisor

import (
	"context"
	"encoding/json"
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

type Supervisor struct {
	roster       []contractx.RosterEntry
	rosterJSON   string
	selectRunner chains.TextRunner
	log          zerolog.Logger
}

func New(ctx context.Context, chatModel einomodel.BaseChatModel, roster []contractx.RosterEntry) (*Supervisor, error) {
	if len(roster) == 0 {
		return nil, fmt.Errorf("%w: agent roster is empty", contractx.ErrValidation)
	}

	rendered, err := json.Marshal(roster)
	if err != nil {
		return nil, fmt.Errorf("render roster: %w", err)
	}

	prompts := promptx.LoadPromptSet()
	selectRunner, err := chains.CompileText(ctx, chatModel, prompts.Supervisor, "{question}", "supervisor.select")
	if err != nil {
		return nil, fmt.Errorf("%w: compile selection chain: %v", contractx.ErrModelInvoke, err)
	}

	return &Supervisor{
		roster:       roster,
		rosterJSON:   string(rendered),
		selectRunner: selectRunner,
		log:          logx.For("supervisor"),
	}, nil
}

// SelectRelevant computes the ordered agent subset for this invocation and
// writes it into st.RelevantAgents. The policy never routes to zero
// agents: an empty or fully-unrecognized selection, and a model fault,
// all fall back to the whole roster.
func (s *Supervisor) SelectRelevant(ctx context.Context, st *contractx.ConversationState) *contractx.ConversationState {
	out, err := s.selectRunner.Invoke(ctx, map[string]any{
		"question": st.Question,
		"roster":   s.rosterJSON,
		"history":  historyx.Transcript(st.History),
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("selection fault, falling back to full roster")
		st.RelevantAgents = s.allNames()
		return st
	}

	selected := make([]string, 0, len(s.roster))
	seen := make(map[string]bool, len(s.roster))
	for _, name := range chains.ParseList(out) {
		if !s.registered(name) {
			s.log.Warn().Str("agent", name).Msg("dropping unregistered agent from selection")
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		selected = append(selected, name)
	}

	if len(selected) == 0 {
		selected = s.allNames()
	}

	s.log.Info().Strs("relevant_agents", selected).Msg("agents selected")
	st.RelevantAgents = selected
	return st
}

// Next returns the first agent in st.RelevantAgents that has not answered
// yet, or FINISH once all have. Re-evaluated after every agent node runs,
// so it is the graph's loop-continuation predicate.
func (s *Supervisor) Next(st *contractx.ConversationState) string {
	for _, name := range st.RelevantAgents {
		if _, done := st.Agents[name]; !done {
			return name
		}
	}
	return contractx.NextFinish
}

func (s *Supervisor) allNames() []string {
	names := make([]string, len(s.roster))
	for i, entry := range s.roster {
		names[i] = entry.Name
	}
	return names
}

func (s *Supervisor) registered(name string) bool {
	name = strings.TrimSpace(name)
	for _, entry := range s.roster {
		if entry.Name == name {
			return true
		}
	}
	return false
}
