// Package apiagent is the capability agent for a generic REST API: it
// parses the service's OpenAPI/Swagger document once at construction,
// picks relevant GET endpoints per question, has the model write a
// request script, executes it in the sandbox and synthesizes a grounded
// answer from the response.
package apiagent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/fabimass/ai-chatbot-multiagent/agent/chains"
	contractx "github.com/fabimass/ai-chatbot-multiagent/agent/contract"
	historyx "github.com/fabimass/ai-chatbot-multiagent/agent/history"
	promptx "github.com/fabimass/ai-chatbot-multiagent/agent/prompt"
	logx "github.com/fabimass/ai-chatbot-multiagent/pkg/logger"
)

type Config struct {
	AgentID    string `envconfig:"AGENT_ID" split_words:"true" default:"api"`
	Directive  string `envconfig:"DIRECTIVE" split_words:"true" required:"true"`
	SpecURL    string `envconfig:"SPEC_URL" split_words:"true" required:"true"`
	BaseURL    string `envconfig:"BASE_URL" split_words:"true"`
	Token      string `envconfig:"TOKEN" split_words:"true"`
	EntryCheck bool   `envconfig:"ENTRY_CHECK" split_words:"true" default:"true"`

	// EndpointFilter is a substring allowlist over GET paths. Empty means
	// every GET endpoint is exposed to the selector.
	EndpointFilter []string `envconfig:"ENDPOINT_FILTER" split_words:"true"`
}

type Agent struct {
	name      string
	directive string
	runner    contractx.ScriptRunner

	entryRunner    chains.TextRunner
	selectRunner   chains.TextRunner
	generateRunner chains.TextRunner
	reviewRunner   chains.TextRunner
	answerRunner   chains.TextRunner

	baseURL    string
	token      string
	endpoints  map[string]any // GET path -> operation object, cached at construction
	paths      []string       // sorted endpoint paths for the selector prompt
	entryCheck bool
	log        zerolog.Logger
}

var _ contractx.Agent = (*Agent)(nil)

func New(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	fetcher contractx.SpecFetcher,
	runner contractx.ScriptRunner,
	cfg Config,
) (*Agent, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("%w: spec fetcher is required", contractx.ErrValidation)
	}
	if runner == nil {
		return nil, fmt.Errorf("%w: script runner is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(cfg.Directive) == "" {
		return nil, fmt.Errorf("%w: agent directive is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(cfg.SpecURL) == "" {
		return nil, fmt.Errorf("%w: spec url is required", contractx.ErrValidation)
	}

	raw, err := fetcher.Fetch(ctx, strings.TrimSpace(cfg.SpecURL))
	if err != nil {
		return nil, fmt.Errorf("fetch api spec: %w", err)
	}
	doc, err := parseSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("parse api spec: %w", err)
	}

	endpoints := getEndpoints(doc, cfg.EndpointFilter)
	paths := make([]string, 0, len(endpoints))
	for path := range endpoints {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = baseURLFromSpec(doc)
	}

	name := "agent_" + strings.TrimSpace(cfg.AgentID)
	prompts := promptx.LoadPromptSet()

	entryRunner, err := chains.CompileText(ctx, chatModel, prompts.Entry, "{question}", name+".entry")
	if err != nil {
		return nil, fmt.Errorf("%w: compile entry chain: %v", contractx.ErrModelInvoke, err)
	}
	selectRunner, err := chains.CompileText(ctx, chatModel, prompts.EndpointSelector, "{question}", name+".select")
	if err != nil {
		return nil, fmt.Errorf("%w: compile selector chain: %v", contractx.ErrModelInvoke, err)
	}
	generateRunner, err := chains.CompileText(ctx, chatModel, prompts.ApiGenerate, "{question}", name+".generate")
	if err != nil {
		return nil, fmt.Errorf("%w: compile generate chain: %v", contractx.ErrModelInvoke, err)
	}
	reviewRunner, err := chains.CompileText(ctx, chatModel, prompts.CodeReview, "{snippet}", name+".review")
	if err != nil {
		return nil, fmt.Errorf("%w: compile review chain: %v", contractx.ErrModelInvoke, err)
	}
	answerRunner, err := chains.CompileText(ctx, chatModel, prompts.CodeAnswer, "{question}", name+".answer")
	if err != nil {
		return nil, fmt.Errorf("%w: compile answer chain: %v", contractx.ErrModelInvoke, err)
	}

	return &Agent{
		name:           name,
		directive:      strings.TrimSpace(cfg.Directive),
		runner:         runner,
		entryRunner:    entryRunner,
		selectRunner:   selectRunner,
		generateRunner: generateRunner,
		reviewRunner:   reviewRunner,
		answerRunner:   answerRunner,
		baseURL:        baseURL,
		token:          strings.TrimSpace(cfg.Token),
		endpoints:      endpoints,
		paths:          paths,
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

// Endpoints returns the cached GET paths, in sorted order.
func (a *Agent) Endpoints() []string {
	out := make([]string, len(a.paths))
	copy(out, a.paths)
	return out
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

	details, err := a.selectEndpoints(ctx, st.Question, transcript)
	if err != nil {
		return "", err
	}

	code, err := a.generateCode(ctx, st.Question, details, transcript)
	if err != nil {
		return "", err
	}

	result, err := a.runner.Run(ctx, code)
	if err != nil {
		return "", fmt.Errorf("execute script: %w", err)
	}

	out, err := a.answerRunner.Invoke(ctx, map[string]any{
		"question": st.Question,
		"code":     code,
		"result":   result,
		"history":  transcript,
	})
	if err != nil {
		return "", fmt.Errorf("%w: answer synthesis: %v", contractx.ErrModelInvoke, err)
	}
	return out, nil
}

// selectEndpoints asks the model for the relevant paths and renders each
// cached operation object as JSON. Unknown paths are dropped; an empty
// selection yields empty details, not an error.
func (a *Agent) selectEndpoints(ctx context.Context, question, transcript string) (string, error) {
	out, err := a.selectRunner.Invoke(ctx, map[string]any{
		"question":  question,
		"endpoints": strings.Join(a.paths, ", "),
		"history":   transcript,
	})
	if err != nil {
		return "", fmt.Errorf("%w: endpoint selection: %v", contractx.ErrModelInvoke, err)
	}

	selected := chains.ParseList(out)
	a.log.Debug().Strs("endpoints", selected).Msg("selected endpoints")

	details := make(map[string]json.RawMessage, len(selected))
	for _, path := range selected {
		op, ok := a.endpoints[path]
		if !ok {
			continue
		}
		rendered, err := json.Marshal(op)
		if err != nil {
			return "", fmt.Errorf("render endpoint %s: %w", path, err)
		}
		details[path] = rendered
	}

	rendered, err := json.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("render endpoint details: %w", err)
	}
	return string(rendered), nil
}

func (a *Agent) generateCode(ctx context.Context, question, details, transcript string) (string, error) {
	code, err := a.generateRunner.Invoke(ctx, map[string]any{
		"question": question,
		"base_url": a.baseURL,
		"context":  details,
		"token":    a.token,
		"history":  transcript,
	})
	if err != nil {
		return "", fmt.Errorf("%w: code generation: %v", contractx.ErrModelInvoke, err)
	}

	reviewed, err := a.reviewRunner.Invoke(ctx, map[string]any{
		"snippet": code,
	})
	if err != nil {
		return "", fmt.Errorf("%w: code review: %v", contractx.ErrModelInvoke, err)
	}

	cleaned := chains.StripFence(reviewed)
	if cleaned == "" {
		return "", fmt.Errorf("%w: reviewed script is empty", contractx.ErrSchemaViolation)
	}
	return cleaned, nil
}

// parseSpec decodes a raw OpenAPI/Swagger document, trying JSON first and
// falling back to YAML.
func parseSpec(raw []byte) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err == nil {
		return doc, nil
	}

	var node any
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("document is neither valid JSON nor YAML: %w", err)
	}
	doc, ok := normalize(node).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: document root is not a mapping", contractx.ErrSchemaViolation)
	}
	return doc, nil
}

// normalize rewrites YAML mapping keys to strings so the document can be
// re-rendered with encoding/json. Numeric keys (status codes) come out of
// the decoder as non-strings.
func normalize(node any) any {
	switch v := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			out[key] = normalize(value)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			out[fmt.Sprintf("%v", key)] = normalize(value)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, value := range v {
			out[i] = normalize(value)
		}
		return out
	default:
		return v
	}
}

// getEndpoints extracts the GET operations from the document's paths
// object, keeping only paths that contain at least one allowlist
// substring. An empty allowlist keeps everything.
func getEndpoints(doc map[string]any, filter []string) map[string]any {
	endpoints := make(map[string]any)
	paths, ok := doc["paths"].(map[string]any)
	if !ok {
		return endpoints
	}

	allow := make([]string, 0, len(filter))
	for _, f := range filter {
		if f = strings.TrimSpace(f); f != "" {
			allow = append(allow, f)
		}
	}

	for path, item := range paths {
		operations, ok := item.(map[string]any)
		if !ok {
			continue
		}
		op, ok := operations["get"]
		if !ok {
			continue
		}
		if !matchesFilter(path, allow) {
			continue
		}
		endpoints[path] = op
	}
	return endpoints
}

func matchesFilter(path string, allow []string) bool {
	if len(allow) == 0 {
		return true
	}
	for _, f := range allow {
		if strings.Contains(path, f) {
			return true
		}
	}
	return false
}

// baseURLFromSpec reads the service base URL out of the document: OpenAPI
// 3 servers first, then Swagger 2 host/basePath.
func baseURLFromSpec(doc map[string]any) string {
	if servers, ok := doc["servers"].([]any); ok && len(servers) > 0 {
		if server, ok := servers[0].(map[string]any); ok {
			if u, ok := server["url"].(string); ok {
				return strings.TrimRight(strings.TrimSpace(u), "/")
			}
		}
	}

	host, _ := doc["host"].(string)
	if host == "" {
		return ""
	}
	scheme := "https"
	if schemes, ok := doc["schemes"].([]any); ok && len(schemes) > 0 {
		if s, ok := schemes[0].(string); ok && s != "" {
			scheme = s
		}
	}
	basePath, _ := doc["basePath"].(string)
	return strings.TrimRight(scheme+"://"+host+basePath, "/")
}
