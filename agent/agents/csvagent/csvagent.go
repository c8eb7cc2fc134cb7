// Package csvagent is the capability agent for a collection of CSV files
// in a blob store: it picks relevant files from an index, previews them,
// has the model write a script over the data, executes it in the sandbox
// and synthesizes a grounded answer.
package csvagent

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog"

	"github.com/fabimass/ai-chatbot-multiagent/agent/chains"
	contractx "github.com/fabimass/ai-chatbot-multiagent/agent/contract"
	historyx "github.com/fabimass/ai-chatbot-multiagent/agent/history"
	promptx "github.com/fabimass/ai-chatbot-multiagent/agent/prompt"
	logx "github.com/fabimass/ai-chatbot-multiagent/pkg/logger"
)

const previewRows = 5

type Config struct {
	AgentID    string `envconfig:"AGENT_ID" split_words:"true" default:"csv"`
	Directive  string `envconfig:"DIRECTIVE" split_words:"true" required:"true"`
	Container  string `envconfig:"CONTAINER" split_words:"true" required:"true"`
	IndexFile  string `envconfig:"INDEX_FILE" split_words:"true" default:"index.csv"`
	Location   string `envconfig:"LOCATION" split_words:"true"`
	EntryCheck bool   `envconfig:"ENTRY_CHECK" split_words:"true" default:"true"`
}

type Agent struct {
	name      string
	directive string
	store     contractx.BlobStore
	runner    contractx.ScriptRunner

	entryRunner    chains.TextRunner
	selectRunner   chains.TextRunner
	generateRunner chains.TextRunner
	reviewRunner   chains.TextRunner
	answerRunner   chains.TextRunner

	container  string
	indexFile  string
	location   string
	entryCheck bool
	log        zerolog.Logger
}

var (
	_ contractx.Agent         = (*Agent)(nil)
	_ contractx.HealthChecker = (*Agent)(nil)
)

func New(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	store contractx.BlobStore,
	runner contractx.ScriptRunner,
	cfg Config,
) (*Agent, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: blob store is required", contractx.ErrValidation)
	}
	if runner == nil {
		return nil, fmt.Errorf("%w: script runner is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(cfg.Directive) == "" {
		return nil, fmt.Errorf("%w: agent directive is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(cfg.Container) == "" {
		return nil, fmt.Errorf("%w: blob container is required", contractx.ErrValidation)
	}

	name := "agent_" + strings.TrimSpace(cfg.AgentID)
	prompts := promptx.LoadPromptSet()

	entryRunner, err := chains.CompileText(ctx, chatModel, prompts.Entry, "{question}", name+".entry")
	if err != nil {
		return nil, fmt.Errorf("%w: compile entry chain: %v", contractx.ErrModelInvoke, err)
	}
	selectRunner, err := chains.CompileText(ctx, chatModel, prompts.FileSelector, "{question}", name+".select")
	if err != nil {
		return nil, fmt.Errorf("%w: compile selector chain: %v", contractx.ErrModelInvoke, err)
	}
	generateRunner, err := chains.CompileText(ctx, chatModel, prompts.CsvGenerate, "{question}", name+".generate")
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

	indexFile := strings.TrimSpace(cfg.IndexFile)
	if indexFile == "" {
		indexFile = "index.csv"
	}
	location := strings.TrimSpace(cfg.Location)
	if location == "" {
		location = "container " + strings.TrimSpace(cfg.Container)
	}

	return &Agent{
		name:           name,
		directive:      strings.TrimSpace(cfg.Directive),
		store:          store,
		runner:         runner,
		entryRunner:    entryRunner,
		selectRunner:   selectRunner,
		generateRunner: generateRunner,
		reviewRunner:   reviewRunner,
		answerRunner:   answerRunner,
		container:      strings.TrimSpace(cfg.Container),
		indexFile:      indexFile,
		location:       location,
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

	index, err := a.store.Get(ctx, a.container, a.indexFile)
	if err != nil {
		return "", fmt.Errorf("fetch index file: %w", err)
	}

	files, err := a.selectFiles(ctx, st.Question, string(index), transcript)
	if err != nil {
		return "", err
	}

	previews, err := a.previewFiles(ctx, files)
	if err != nil {
		return "", err
	}

	code, err := a.generateCode(ctx, st.Question, previews, transcript)
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

// selectFiles asks the model which indexed files matter for the question.
// An empty selection is not an error: the pipeline proceeds with no context.
func (a *Agent) selectFiles(ctx context.Context, question, index, transcript string) ([]string, error) {
	out, err := a.selectRunner.Invoke(ctx, map[string]any{
		"question": question,
		"index":    index,
		"history":  transcript,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: file selection: %v", contractx.ErrModelInvoke, err)
	}
	files := chains.ParseList(out)
	a.log.Debug().Strs("files", files).Msg("selected files")
	return files, nil
}

// previewFiles fetches the first rows of each selected file and renders
// them as record-oriented JSON keyed by file name.
func (a *Agent) previewFiles(ctx context.Context, files []string) (string, error) {
	previews := make(map[string]json.RawMessage, len(files))
	for _, file := range files {
		data, err := a.store.Get(ctx, a.container, file)
		if err != nil {
			return "", fmt.Errorf("fetch file %s: %w", file, err)
		}
		preview, err := previewCSV(data, previewRows)
		if err != nil {
			return "", fmt.Errorf("preview file %s: %w", file, err)
		}
		previews[file] = preview
	}

	rendered, err := json.Marshal(previews)
	if err != nil {
		return "", fmt.Errorf("render previews: %w", err)
	}
	return string(rendered), nil
}

func (a *Agent) generateCode(ctx context.Context, question, context_, transcript string) (string, error) {
	code, err := a.generateRunner.Invoke(ctx, map[string]any{
		"question": question,
		"context":  context_,
		"location": a.location,
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

// CheckConnection probes the index blob; on failure it retries once.
func (a *Agent) CheckConnection(ctx context.Context) contractx.HealthStatus {
	if _, err := a.store.Get(ctx, a.container, a.indexFile); err == nil {
		return contractx.HealthStatus{Healthy: true, Info: "up and running"}
	}

	if _, err := a.store.Get(ctx, a.container, a.indexFile); err != nil {
		return contractx.HealthStatus{Healthy: false, Info: err.Error()}
	}
	return contractx.HealthStatus{Healthy: true, Info: "reconnected"}
}

// previewCSV returns the first n data rows as record-oriented JSON, with
// missing values rendered as "null" the way the index summaries expect.
func previewCSV(data []byte, n int) (json.RawMessage, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return json.Marshal([]map[string]string{})
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	records := make([]map[string]string, 0, n)
	for len(records) < n {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		record := make(map[string]string, len(header))
		for i, col := range header {
			value := ""
			if i < len(row) {
				value = strings.TrimSpace(row[i])
			}
			if value == "" {
				value = "null"
			}
			record[col] = value
		}
		records = append(records, record)
	}

	return json.Marshal(records)
}
