// Package graph wires the supervisor, the capability agents and the
// summarizer into one compiled state machine: relevance is computed once,
// then the picker/agent loop runs each selected agent exactly once before
// handing the collected answers to the summarizer.
package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog"

	"github.com/fabimass/ai-chatbot-multiagent/agent/agents/summarizer"
	"github.com/fabimass/ai-chatbot-multiagent/agent/agents/supervisor"
	contractx "github.com/fabimass/ai-chatbot-multiagent/agent/contract"
	logx "github.com/fabimass/ai-chatbot-multiagent/pkg/logger"
)

const summarizerNode = "summarizer_node"

// Graph is the per-question entry point. Compiled once at startup from
// the static roster; each invocation threads a fresh ConversationState.
type Graph struct {
	runner compose.Runnable[contractx.GraphInput, contractx.GraphOutput]
	log    zerolog.Logger
}

func New(
	ctx context.Context,
	sup *supervisor.Supervisor,
	sum *summarizer.Summarizer,
	agents []contractx.Agent,
) (*Graph, error) {
	if sup == nil || sum == nil {
		return nil, fmt.Errorf("%w: supervisor and summarizer are required", contractx.ErrValidation)
	}
	if len(agents) == 0 {
		return nil, fmt.Errorf("%w: agent roster is empty", contractx.ErrValidation)
	}

	graph := compose.NewGraph[contractx.GraphInput, contractx.GraphOutput]()

	if err := graph.AddLambdaNode("filter_agents",
		compose.InvokableLambda(func(ctx context.Context, in contractx.GraphInput) (*contractx.ConversationState, error) {
			st := &contractx.ConversationState{
				Question: in.Question,
				History:  in.History,
			}
			st.EnsureAgentsMap()
			return sup.SelectRelevant(ctx, st), nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add filter node: %w", err)
	}

	// The picker carries no logic of its own; the branch below re-evaluates
	// the supervisor's routing decision every time control returns here.
	if err := graph.AddLambdaNode("pick_next",
		compose.InvokableLambda(func(ctx context.Context, st *contractx.ConversationState) (*contractx.ConversationState, error) {
			if st == nil {
				return nil, fmt.Errorf("%w: conversation state is nil", contractx.ErrValidation)
			}
			return st, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add picker node: %w", err)
	}

	nodeByAgent := make(map[string]string, len(agents))
	ends := make(map[string]bool, len(agents)+1)
	ends[summarizerNode] = true

	for _, ag := range agents {
		ag := ag
		node := ag.Name() + "_node"
		if _, dup := nodeByAgent[ag.Name()]; dup {
			return nil, fmt.Errorf("%w: duplicate agent name %s", contractx.ErrValidation, ag.Name())
		}
		nodeByAgent[ag.Name()] = node
		ends[node] = true

		if err := graph.AddLambdaNode(node,
			compose.InvokableLambda(func(ctx context.Context, st *contractx.ConversationState) (*contractx.ConversationState, error) {
				return ag.GenerateAnswer(ctx, st)
			}),
		); err != nil {
			return nil, fmt.Errorf("add agent node %s: %w", node, err)
		}
		if err := graph.AddEdge(node, "pick_next"); err != nil {
			return nil, fmt.Errorf("add edge %s->pick_next: %w", node, err)
		}
	}

	if err := graph.AddLambdaNode(summarizerNode,
		compose.InvokableLambda(func(ctx context.Context, st *contractx.ConversationState) (contractx.GraphOutput, error) {
			if st == nil {
				return contractx.GraphOutput{}, fmt.Errorf("%w: conversation state is nil", contractx.ErrValidation)
			}
			st = sum.Summarize(ctx, st)
			return contractx.GraphOutput{Answer: st.Answer, Agents: st.Agents}, nil
		}),
	); err != nil {
		return nil, fmt.Errorf("add summarizer node: %w", err)
	}

	branch := compose.NewGraphBranch(
		func(ctx context.Context, st *contractx.ConversationState) (string, error) {
			if st == nil {
				return "", fmt.Errorf("%w: conversation state is nil", contractx.ErrValidation)
			}
			next := sup.Next(st)
			if next == contractx.NextFinish {
				return summarizerNode, nil
			}
			node, ok := nodeByAgent[next]
			if !ok {
				return "", fmt.Errorf("%w: supervisor routed to unknown agent %s", contractx.ErrSchemaViolation, next)
			}
			return node, nil
		},
		ends,
	)
	if err := graph.AddBranch("pick_next", branch); err != nil {
		return nil, fmt.Errorf("add routing branch: %w", err)
	}

	if err := graph.AddEdge(compose.START, "filter_agents"); err != nil {
		return nil, fmt.Errorf("add edge start->filter: %w", err)
	}
	if err := graph.AddEdge("filter_agents", "pick_next"); err != nil {
		return nil, fmt.Errorf("add edge filter->picker: %w", err)
	}
	if err := graph.AddEdge(summarizerNode, compose.END); err != nil {
		return nil, fmt.Errorf("add edge summarizer->end: %w", err)
	}

	// Each agent runs at most once, so the loop is bounded by the roster;
	// the step cap is a backstop, never the intended termination path.
	runner, err := graph.Compile(ctx,
		compose.WithGraphName("orchestrator.answer_question"),
		compose.WithMaxRunSteps(2*len(agents)+4),
	)
	if err != nil {
		return nil, fmt.Errorf("compile orchestration graph: %w", err)
	}

	return &Graph{runner: runner, log: logx.For("graph")}, nil
}

// Invoke runs one question through the graph; faults pass through.
func (g *Graph) Invoke(ctx context.Context, in contractx.GraphInput) (contractx.GraphOutput, error) {
	return g.runner.Invoke(ctx, in)
}

// Ask is the never-raise variant consumed by the HTTP layer: anything
// escaping the graph is converted into the apology contract.
func (g *Graph) Ask(ctx context.Context, in contractx.GraphInput) contractx.GraphOutput {
	out, err := g.runner.Invoke(ctx, in)
	if err != nil {
		g.log.Error().Err(err).Str("question", in.Question).Msg("invocation fault, answering with fallback")
		return contractx.GraphOutput{
			Answer: contractx.AnswerOutOfScope,
			Agents: map[string]string{},
		}
	}
	if out.Agents == nil {
		out.Agents = map[string]string{}
	}
	return out
}
