package plugins

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"go-feature-platform/internal/config"
)

type recordingSink struct {
	mu     sync.Mutex
	stdout []string
	stderr []string
}

func (s *recordingSink) Stdout(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stdout = append(s.stdout, line)
}

func (s *recordingSink) Stderr(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stderr = append(s.stderr, line)
}

func writeShellPlugin(t *testing.T, body string) *Handle {
	t.Helper()
	dir := t.TempDir()
	entry := filepath.Join(dir, "main.sh")
	if err := os.WriteFile(entry, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return &Handle{Path: dir, Entry: entry}
}

func shellRunner() Runner {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewRunner(&config.PluginConfig{
		Interpreter: "sh",
		ScriptExt:   ".sh",
		EntryFile:   "main.sh",
	}, log)
}

func TestRunnerRunSuccess(t *testing.T) {
	handle := writeShellPlugin(t, `
cat > /dev/null
echo "starting up"
echo "working"
echo '{"status": true, "msg": "done", "data": {"count": 3}}'
`)
	sink := &recordingSink{}

	result, err := shellRunner().Run(context.Background(), handle, map[string]string{"key": "value"}, sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Status || result.Msg != "done" {
		t.Errorf("Run() result = %+v", result)
	}
	if len(result.Data) == 0 {
		t.Error("Run() result carries no data payload")
	}
	if len(sink.stdout) != 2 || sink.stdout[0] != "starting up" || sink.stdout[1] != "working" {
		t.Errorf("stdout log lines = %v, result line must be held back", sink.stdout)
	}
}

func TestRunnerRunFailureResult(t *testing.T) {
	handle := writeShellPlugin(t, `
cat > /dev/null
echo '{"status": false, "msg": "nothing to do"}'
`)
	sink := &recordingSink{}

	result, err := shellRunner().Run(context.Background(), handle, nil, sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Status {
		t.Error("Run() result.Status = true, want false")
	}
	if result.Msg != "nothing to do" {
		t.Errorf("Run() result.Msg = %q", result.Msg)
	}
}

func TestRunnerRunNoResult(t *testing.T) {
	handle := writeShellPlugin(t, `
cat > /dev/null
echo "just a log line"
`)
	sink := &recordingSink{}

	_, err := shellRunner().Run(context.Background(), handle, nil, sink)
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("Run() error = %v, want ErrNoResult", err)
	}
	if len(sink.stdout) != 1 || sink.stdout[0] != "just a log line" {
		t.Errorf("stdout log lines = %v, held-back line must be flushed", sink.stdout)
	}
}

func TestRunnerRunResultRequiresStatusBool(t *testing.T) {
	tests := []struct {
		name     string
		lastLine string
	}{
		{"status only as substring", `{"message": "status check done"}`},
		{"status key not boolean", `{"status": "ok", "msg": "done"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handle := writeShellPlugin(t, `
cat > /dev/null
echo '`+tt.lastLine+`'
`)
			sink := &recordingSink{}

			_, err := shellRunner().Run(context.Background(), handle, nil, sink)
			if !errors.Is(err, ErrNoResult) {
				t.Fatalf("Run() error = %v, want ErrNoResult", err)
			}
			if len(sink.stdout) != 1 || sink.stdout[0] != tt.lastLine {
				t.Errorf("stdout log lines = %v, final line must be flushed as a log", sink.stdout)
			}
		})
	}
}

func TestRunnerRunCrash(t *testing.T) {
	handle := writeShellPlugin(t, `
cat > /dev/null
echo "about to die"
echo "boom" >&2
exit 3
`)
	sink := &recordingSink{}

	_, err := shellRunner().Run(context.Background(), handle, nil, sink)
	if err == nil || errors.Is(err, ErrNoResult) {
		t.Fatalf("Run() error = %v, want abnormal exit", err)
	}
	if len(sink.stdout) != 1 || sink.stdout[0] != "about to die" {
		t.Errorf("stdout log lines = %v", sink.stdout)
	}
	if len(sink.stderr) != 1 || sink.stderr[0] != "boom" {
		t.Errorf("stderr log lines = %v", sink.stderr)
	}
}

func TestRunnerRunStderrNotResult(t *testing.T) {
	// A result-shaped line on stderr must not satisfy the result contract.
	handle := writeShellPlugin(t, `
cat > /dev/null
echo '{"status": true, "msg": "fake"}' >&2
`)
	sink := &recordingSink{}

	_, err := shellRunner().Run(context.Background(), handle, nil, sink)
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("Run() error = %v, want ErrNoResult", err)
	}
}

func TestRunnerConfigOnStdin(t *testing.T) {
	handle := writeShellPlugin(t, `
input=$(cat)
echo "$input"
echo '{"status": true, "msg": "ok"}'
`)
	sink := &recordingSink{}

	result, err := shellRunner().Run(context.Background(), handle, map[string]string{"greeting": "hello"}, sink)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !result.Status {
		t.Errorf("Run() result = %+v", result)
	}
	if len(sink.stdout) != 1 || sink.stdout[0] != `{"greeting":"hello"}` {
		t.Errorf("stdout log lines = %v, want echoed config JSON", sink.stdout)
	}
}
