package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"go-feature-platform/internal/models"
	"go-feature-platform/internal/utils"
)

func newTestRunContext(t *testing.T, store *fakeLogStore, broadcaster *fakeBroadcaster) *RunContext {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	feature := &models.FeatureEntity{ID: 5, Name: "report"}
	rc, err := NewRunContext(context.Background(), log, store, broadcaster, nil, nil, feature, "client-1", models.ExecutionKindManual)
	if err != nil {
		t.Fatalf("NewRunContext() error = %v", err)
	}
	return rc
}

func TestNewRunContextRecordsRunning(t *testing.T) {
	store := &fakeLogStore{nextID: 41}
	broadcaster := newFakeBroadcaster()
	rc := newTestRunContext(t, store, broadcaster)

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.headers) != 1 {
		t.Fatalf("headers created = %d, want 1", len(store.headers))
	}
	header := store.headers[0]
	if header.Status != models.ExecutionStatusRunning {
		t.Errorf("header status = %q, want RUNNING", header.Status)
	}
	if header.ClientID != "client-1" {
		t.Errorf("header client id = %q", header.ClientID)
	}
	// Sequence comes from max existing header id + 1.
	if !strings.HasSuffix(rc.RequestID(), "42") {
		t.Errorf("request id = %q, want suffix 42", rc.RequestID())
	}
	if len(store.details) != 1 {
		t.Fatalf("details appended = %d, want the init line", len(store.details))
	}
	if !strings.Contains(store.details[0].Message, rc.RequestID()) {
		t.Errorf("init detail = %q, want it to carry the request id", store.details[0].Message)
	}
}

// stallingLogStore widens the window between the max-id read and the header
// insert so concurrent constructions collide unless the two are serialized.
type stallingLogStore struct {
	fakeLogStore
	stall time.Duration
}

func (s *stallingLogStore) MaxID(ctx context.Context, opts ...utils.DBOption) (uint, error) {
	id, err := s.fakeLogStore.MaxID(ctx, opts...)
	time.Sleep(s.stall)
	return id, err
}

func TestRunContextConcurrentRequestIDsDistinct(t *testing.T) {
	store := &stallingLogStore{stall: 5 * time.Millisecond}
	broadcaster := newFakeBroadcaster()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	feature := &models.FeatureEntity{ID: 5, Name: "report"}

	const runs = 8
	ids := make([]string, runs)
	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rc, err := NewRunContext(context.Background(), log, store, broadcaster, nil, nil,
				feature, fmt.Sprintf("client-%d", i), models.ExecutionKindManual)
			if err != nil {
				t.Error(err)
				return
			}
			ids[i] = rc.RequestID()
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, runs)
	for _, id := range ids {
		if seen[id] {
			t.Errorf("request id %q minted twice", id)
		}
		seen[id] = true
	}
	if len(seen) != runs {
		t.Errorf("distinct request ids = %d, want %d", len(seen), runs)
	}
}

func TestRunContextFinalizeOnce(t *testing.T) {
	store := &fakeLogStore{}
	broadcaster := newFakeBroadcaster()
	rc := newTestRunContext(t, store, broadcaster)

	ctx := context.Background()
	rc.Done(ctx, "first", nil)
	rc.Fail(ctx, "second", nil)
	rc.Terminate(ctx, "third")

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.finalCount != 1 {
		t.Errorf("Finalize called %d times, want 1", store.finalCount)
	}
	if store.finalStatus != models.ExecutionStatusSuccess {
		t.Errorf("final status = %q, only the first terminal call may win", store.finalStatus)
	}

	terminal := 0
	broadcaster.mu.Lock()
	for _, ev := range broadcaster.events {
		if ev.event == "feature_done" {
			terminal++
		}
	}
	broadcaster.mu.Unlock()
	if terminal != 1 {
		t.Errorf("feature_done emitted %d times, want 1", terminal)
	}
}

func TestRunContextDoneRecordsResultPayload(t *testing.T) {
	store := &fakeLogStore{}
	broadcaster := newFakeBroadcaster()
	rc := newTestRunContext(t, store, broadcaster)

	rc.Done(context.Background(), "done", map[string]interface{}{"count": 3})

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.finalResult) == 0 {
		t.Fatal("finalized header carries no result payload")
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(store.finalResult, &decoded); err != nil {
		t.Fatalf("result payload is not valid JSON: %v", err)
	}
	if decoded["count"] != float64(3) {
		t.Errorf("result payload = %v", decoded)
	}
}

func TestRunContextLogAppendOrder(t *testing.T) {
	store := &fakeLogStore{}
	broadcaster := newFakeBroadcaster()
	rc := newTestRunContext(t, store, broadcaster)

	ctx := context.Background()
	lines := []string{"step 1 of 4", "step 2 of 4", "step 3 of 4", "step 4 of 4"}
	for _, line := range lines {
		rc.Log(ctx, line, "info", true)
	}

	got := store.detailMessages()
	if len(got) != len(lines)+1 { // init line first
		t.Fatalf("durable details = %d, want %d", len(got), len(lines)+1)
	}
	for i, want := range lines {
		if got[i+1] != want {
			t.Errorf("detail[%d] = %q, want %q", i+1, got[i+1], want)
		}
	}
}

func TestRunContextLogBroadcastFlag(t *testing.T) {
	store := &fakeLogStore{}
	broadcaster := newFakeBroadcaster()
	rc := newTestRunContext(t, store, broadcaster)

	ctx := context.Background()
	rc.Log(ctx, "visible", "info", true)
	rc.Log(ctx, "quiet diagnostic", "error", false)

	store.mu.Lock()
	durable := len(store.details)
	store.mu.Unlock()
	if durable != 3 { // init line + both
		t.Errorf("durable details = %d, want 3", durable)
	}

	broadcaster.mu.Lock()
	logged := 0
	for _, ev := range broadcaster.events {
		if ev.event == "log" {
			logged++
		}
	}
	broadcaster.mu.Unlock()
	if logged != 2 { // init line + "visible"
		t.Errorf("broadcast log events = %d, want 2", logged)
	}
}

func TestRunContextErrorKeepsDiagnosticsOffTheWire(t *testing.T) {
	store := &fakeLogStore{}
	broadcaster := newFakeBroadcaster()
	rc := newTestRunContext(t, store, broadcaster)

	rc.Error(context.Background(), "could not load plugin", nil, errors.New("exec format error"))

	if store.finalStatus != models.ExecutionStatusError {
		t.Errorf("final status = %q, want ERROR", store.finalStatus)
	}

	// Cause and stack are durably recorded but never broadcast.
	var durableCause bool
	for _, msg := range store.detailMessages() {
		if strings.HasPrefix(msg, "Cause: exec format error") {
			durableCause = true
		}
	}
	if !durableCause {
		t.Error("cause line missing from the durable log")
	}

	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	for _, ev := range broadcaster.events {
		if ev.event != "log" {
			continue
		}
		payload, ok := ev.data.(map[string]string)
		if !ok {
			t.Fatalf("log event data = %T", ev.data)
		}
		if strings.HasPrefix(payload["message"], "Cause:") || strings.HasPrefix(payload["message"], "Stack:") {
			t.Errorf("diagnostic line %q leaked to the live channel", payload["message"])
		}
	}
}

func TestNormalizeLevel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "info", want: "INFO"},
		{in: "debug", want: "DEBUG"},
		{in: "DEBUG", want: "DEBUG"},
		{in: "warn", want: "WARN"},
		{in: "warning", want: "WARN"},
		{in: "error", want: "ERROR"},
		{in: "ERROR", want: "ERROR"},
		{in: "", want: "INFO"},
		{in: "verbose", want: "INFO"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := normalizeLevel(tt.in); got != tt.want {
				t.Errorf("normalizeLevel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
