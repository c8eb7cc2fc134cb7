// Package chains builds the compiled LLM stages shared by every agent:
// a system template plus a human template, rendered per invoke, sent to a
// chat model, with the plain text content plucked out of the reply.
package chains

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	contractx "github.com/fabimass/ai-chatbot-multiagent/agent/contract"
)

// TextRunner is one compiled prompt stage: FString placeholder map in,
// trimmed model text out.
type TextRunner = compose.Runnable[map[string]any, string]

// CompileText compiles a prompt->model->content graph. Both templates may
// contain FString placeholders that must be present in the invoke input.
func CompileText(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemTemplate string,
	humanTemplate string,
	graphName string,
) (TextRunner, error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemTemplate),
		schema.UserMessage(humanTemplate),
	)

	graph := compose.NewGraph[map[string]any, string]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add model node: %w", err)
	}
	if err := graph.AddLambdaNode("extract_content",
		compose.InvokableLambda(func(ctx context.Context, msg *schema.Message) (string, error) {
			if msg == nil {
				return "", fmt.Errorf("%w: model returned nil message", contractx.ErrSchemaViolation)
			}
			return strings.TrimSpace(msg.Content), nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add extract node: %w", err)
	}

	edges := [][2]string{
		{compose.START, "prompt"},
		{"prompt", "model"},
		{"model", "extract_content"},
		{"extract_content", compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", graphName, err)
	}
	return runner, nil
}

var (
	fenceOpenRe  = regexp.MustCompile("^```[a-zA-Z0-9]*\n")
	fenceCloseRe = regexp.MustCompile("\n```\\s*$")
)

// StripFence removes a leading markdown code fence (with optional language
// tag) and a trailing fence. Snippets without fences pass through unchanged.
func StripFence(s string) string {
	s = strings.TrimSpace(s)
	s = fenceOpenRe.ReplaceAllString(s, "")
	s = fenceCloseRe.ReplaceAllString(s, "")
	return s
}

// CleanSQL strips markdown fencing, collapses embedded newlines to spaces
// and trims the statement so it can be handed to the driver as one line.
func CleanSQL(s string) string {
	s = StripFence(s)
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

// ParseList splits a comma-separated selector response into identifiers.
// Whitespace is stripped before splitting; an empty response yields an
// empty list, not a one-element list.
func ParseList(s string) []string {
	s = strings.ReplaceAll(s, " ", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
