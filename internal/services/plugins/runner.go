package plugins

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"go-feature-platform/internal/config"
)

// Result is what a plugin reports back: the status boolean, a human
// message and a free-form payload. It must be the final stdout line.
type Result struct {
	Status bool            `json:"status"`
	Msg    string          `json:"msg"`
	Data   json.RawMessage `json:"data"`
}

// ErrNoResult means the plugin ran to completion without honoring the
// result contract. Callers report this as an error terminal state, distinct
// from a plugin that ran and returned failure.
var ErrNoResult = errors.New("plugin produced no result line")

// Sink receives the plugin's log stream while it runs. Stdout lines are the
// plugin's own log output; stderr lines are diagnostics worth recording
// durably but not worth pushing to an end-user UI.
type Sink interface {
	Stdout(line string)
	Stderr(line string)
}

// Runner invokes a plugin entry point as a subprocess: effective config as
// one JSON object on stdin, log lines streamed from stdout/stderr, final
// stdout line parsed as the Result.
type Runner interface {
	Run(ctx context.Context, handle *Handle, cfg map[string]string, sink Sink) (*Result, error)
}

type subprocessRunner struct {
	cfg *config.PluginConfig
	log *logrus.Logger
}

func NewRunner(cfg *config.PluginConfig, log *logrus.Logger) Runner {
	return &subprocessRunner{cfg: cfg, log: log}
}

func (r *subprocessRunner) Run(ctx context.Context, handle *Handle, cfg map[string]string, sink Sink) (*Result, error) {
	stdin, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	cmd := exec.CommandContext(ctx, r.cfg.Interpreter, handle.Entry)
	cmd.Dir = filepath.Dir(handle.Entry)
	cmd.Stdin = bytes.NewReader(stdin)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start plugin %s: %w", handle.Entry, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)

	// The final stdout line is the result, not a log line, so each line is
	// held back until the next one proves it was not the last.
	var lastLine string
	var sawLine bool
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			if sawLine {
				sink.Stdout(lastLine)
			}
			lastLine = scanner.Text()
			sawLine = true
		}
	}()
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(stderr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			sink.Stderr(scanner.Text())
		}
	}()

	wg.Wait()
	waitErr := cmd.Wait()

	var result *Result
	if sawLine {
		result = parseResultLine([]byte(lastLine))
	}

	if waitErr != nil {
		// The process failed; everything it printed is log output.
		if sawLine {
			sink.Stdout(lastLine)
		}
		return nil, fmt.Errorf("plugin exited abnormally: %w", waitErr)
	}
	if result == nil {
		if sawLine {
			sink.Stdout(lastLine)
		}
		return nil, ErrNoResult
	}
	return result, nil
}

// parseResultLine decodes line as a result object. A log line that merely
// mentions "status" somewhere does not qualify: the key must be present and
// hold a boolean.
func parseResultLine(line []byte) *Result {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return nil
	}
	raw, ok := fields["status"]
	if !ok {
		return nil
	}
	var status bool
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil
	}
	var result Result
	if err := json.Unmarshal(line, &result); err != nil {
		return nil
	}
	return &result
}
