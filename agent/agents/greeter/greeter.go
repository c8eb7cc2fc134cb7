// Package greeter produces the capability introduction shown when a user
// asks what the assistant can do. It answers from the roster directives
// alone and never touches a backend.
package greeter

import (
	"context"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog"

	"github.com/fabimass/ai-chatbot-multiagent/agent/chains"
	contractx "github.com/fabimass/ai-chatbot-multiagent/agent/contract"
	promptx "github.com/fabimass/ai-chatbot-multiagent/agent/prompt"
	logx "github.com/fabimass/ai-chatbot-multiagent/pkg/logger"
)

const greetQuestion = "hi! what can you do?"

type Greeter struct {
	skills string
	runner chains.TextRunner
	log    zerolog.Logger
}

func New(ctx context.Context, chatModel einomodel.BaseChatModel, roster []contractx.RosterEntry) (*Greeter, error) {
	skills := make([]string, 0, len(roster))
	for _, entry := range roster {
		skills = append(skills, entry.Directive)
	}

	prompts := promptx.LoadPromptSet()
	runner, err := chains.CompileText(ctx, chatModel, prompts.Greeter, "{question}", "greeter")
	if err != nil {
		return nil, fmt.Errorf("%w: compile greeter chain: %v", contractx.ErrModelInvoke, err)
	}

	return &Greeter{
		skills: strings.Join(skills, "; "),
		runner: runner,
		log:    logx.For("greeter"),
	}, nil
}

// Greet returns the assistant's self-introduction.
func (g *Greeter) Greet(ctx context.Context) (string, error) {
	out, err := g.runner.Invoke(ctx, map[string]any{
		"question": greetQuestion,
		"roster":   g.skills,
	})
	if err != nil {
		return "", fmt.Errorf("%w: greeting: %v", contractx.ErrModelInvoke, err)
	}
	return out, nil
}
