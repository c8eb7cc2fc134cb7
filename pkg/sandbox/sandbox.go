// Package sandbox executes model-generated scripts outside the agent
// process: the script is written to a throwaway working directory and run
// by a configured interpreter in a subprocess with a scrubbed environment
// and a hard wall-clock timeout. The script's designated result variable
// is read back from a sentinel-prefixed stdout line.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	contractx "github.com/fabimass/ai-chatbot-multiagent/agent/contract"
)

// ResultSentinel marks the line of subprocess stdout that carries the
// result variable's value. Everything after the last sentinel is the result.
const ResultSentinel = "<<<RESULT>>>"

const defaultResultProbe = "print('" + ResultSentinel + "' + str(result))"

type Config struct {
	Interpreter string        `envconfig:"INTERPRETER" split_words:"true" default:"python3"`
	Timeout     time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"30s"`

	// ResultProbe is the statement appended to every script to surface its
	// result variable on stdout. The default matches the Python interpreter.
	ResultProbe string `envconfig:"RESULT_PROBE" split_words:"true"`
}

// Runner implements contract.ScriptRunner.
type Runner struct {
	interpreter string
	timeout     time.Duration
	resultProbe string
}

var _ contractx.ScriptRunner = (*Runner)(nil)

func New(cfg Config) *Runner {
	interpreter := strings.TrimSpace(cfg.Interpreter)
	if interpreter == "" {
		interpreter = "python3"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	probe := strings.TrimSpace(cfg.ResultProbe)
	if probe == "" {
		probe = defaultResultProbe
	}
	return &Runner{
		interpreter: interpreter,
		timeout:     timeout,
		resultProbe: probe,
	}
}

// Run executes the script and returns the value of its result variable.
func (r *Runner) Run(ctx context.Context, script string) (string, error) {
	if strings.TrimSpace(script) == "" {
		return "", fmt.Errorf("%w: script is empty", contractx.ErrValidation)
	}

	workDir, err := os.MkdirTemp("", "agent-sandbox-*")
	if err != nil {
		return "", fmt.Errorf("create sandbox dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	scriptPath := filepath.Join(workDir, "script")
	payload := script + "\n\n" + r.resultProbe + "\n"
	if err := os.WriteFile(scriptPath, []byte(payload), 0o600); err != nil {
		return "", fmt.Errorf("write sandbox script: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.interpreter, scriptPath)
	cmd.Dir = workDir
	cmd.Env = []string{
		"PATH=" + os.Getenv("PATH"),
		"HOME=" + workDir,
		"LANG=C.UTF-8",
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("script timed out after %s", r.timeout)
		}
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return "", fmt.Errorf("script execution failed: %s", detail)
	}

	return ExtractResult(stdout.String())
}

// ExtractResult pulls the result value out of subprocess stdout.
func ExtractResult(output string) (string, error) {
	idx := strings.LastIndex(output, ResultSentinel)
	if idx < 0 {
		return "", errors.New("script produced no result")
	}
	return strings.TrimSpace(output[idx+len(ResultSentinel):]), nil
}
