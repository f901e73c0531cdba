package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type stubRecognizer struct {
	results chan Result
	stopped bool
	mu      sync.Mutex
}

func newStubRecognizer() *stubRecognizer {
	return &stubRecognizer{results: make(chan Result, 16)}
}

func (s *stubRecognizer) Start(context.Context) (<-chan Result, error) {
	return s.results, nil
}

func (s *stubRecognizer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

func (s *stubRecognizer) wasStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type stubFactory struct {
	mu        sync.Mutex
	instances []*stubRecognizer
	bound     chan *stubRecognizer
}

func newStubFactory() *stubFactory {
	return &stubFactory{bound: make(chan *stubRecognizer, 16)}
}

func (f *stubFactory) make() (Recognizer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := newStubRecognizer()
	f.instances = append(f.instances, rec)
	f.bound <- rec
	return rec, nil
}

func (f *stubFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.instances)
}

func waitRecognizer(t *testing.T, f *stubFactory) *stubRecognizer {
	t.Helper()
	select {
	case rec := <-f.bound:
		return rec
	case <-time.After(time.Second):
		t.Fatalf("no recognizer bound within deadline")
		return nil
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}

func TestAdapterAccumulatesOnlyFinalResults(t *testing.T) {
	factory := newStubFactory()

	var mu sync.Mutex
	var finals []string
	var interims []string

	adapter := NewAdapter(factory.make, func(text string) {
		mu.Lock()
		defer mu.Unlock()
		finals = append(finals, text)
	}, zap.NewNop(), WithInterim(func(text string) {
		mu.Lock()
		defer mu.Unlock()
		interims = append(interims, text)
	}))

	if err := adapter.Enable(); err != nil {
		t.Fatalf("enable failed: %v", err)
	}
	rec := waitRecognizer(t, factory)

	rec.results <- Result{Text: "I led", Final: false}
	rec.results <- Result{Text: "I led a project", Final: true}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(finals) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	if finals[0] != "I led a project" {
		t.Fatalf("unexpected final text: %q", finals[0])
	}
	if len(interims) != 1 || interims[0] != "I led" {
		t.Fatalf("unexpected interim results: %v", interims)
	}

	adapter.Close()
}

func TestAdapterRestartsOnSpontaneousDrop(t *testing.T) {
	factory := newStubFactory()
	adapter := NewAdapter(factory.make, nil, zap.NewNop())

	if err := adapter.Enable(); err != nil {
		t.Fatalf("enable failed: %v", err)
	}
	first := waitRecognizer(t, factory)

	// Platform silently times the stream out.
	close(first.results)

	second := waitRecognizer(t, factory)
	if second == first {
		t.Fatalf("expected a fresh binding after drop")
	}
	if !adapter.Enabled() {
		t.Fatalf("adapter should stay enabled across an auto-restart")
	}

	adapter.Close()
}

func TestAdapterRestartBudgetExhaustion(t *testing.T) {
	factory := newStubFactory()
	adapter := NewAdapter(factory.make, nil, zap.NewNop(), WithRestartBudget(2))

	if err := adapter.Enable(); err != nil {
		t.Fatalf("enable failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		rec := waitRecognizer(t, factory)
		close(rec.results)
	}

	waitFor(t, func() bool { return adapter.Err() != nil })

	if kind := KindOf(adapter.Err()); kind != ErrNetwork {
		t.Fatalf("expected network classification, got %s", kind)
	}
	if adapter.Enabled() {
		t.Fatalf("adapter should be disabled after budget exhaustion")
	}
	if factory.count() != 3 {
		t.Fatalf("expected 3 bindings (1 initial + 2 restarts), got %d", factory.count())
	}

	adapter.Close()
}

func TestAdapterPermissionDeniedSuppressesRestart(t *testing.T) {
	factory := newStubFactory()
	adapter := NewAdapter(factory.make, nil, zap.NewNop())

	if err := adapter.Enable(); err != nil {
		t.Fatalf("enable failed: %v", err)
	}
	rec := waitRecognizer(t, factory)

	rec.results <- Result{Err: NewError(ErrPermissionDenied, errors.New("microphone access revoked"))}
	close(rec.results)

	waitFor(t, func() bool { return adapter.Err() != nil })

	if kind := KindOf(adapter.Err()); kind != ErrPermissionDenied {
		t.Fatalf("expected permission-denied, got %s", kind)
	}
	if factory.count() != 1 {
		t.Fatalf("expected no restart after permission denial, got %d bindings", factory.count())
	}

	if err := adapter.Enable(); err == nil {
		t.Fatalf("enable should be rejected while an error is pending")
	}

	adapter.ClearErr()
	if err := adapter.Enable(); err != nil {
		t.Fatalf("enable after clearing error: %v", err)
	}

	adapter.Close()
}

func TestAdapterUnsupportedPlatform(t *testing.T) {
	adapter := NewAdapter(nil, nil, zap.NewNop())

	if adapter.Supported() {
		t.Fatalf("nil factory should report unsupported")
	}

	err := adapter.Enable()
	if err == nil {
		t.Fatalf("expected enable to fail")
	}
	if kind := KindOf(err); kind != ErrUnsupported {
		t.Fatalf("expected unsupported classification, got %s", kind)
	}
}

func TestAdapterDisableReleasesBinding(t *testing.T) {
	factory := newStubFactory()
	adapter := NewAdapter(factory.make, nil, zap.NewNop())

	if err := adapter.Enable(); err != nil {
		t.Fatalf("enable failed: %v", err)
	}
	rec := waitRecognizer(t, factory)

	adapter.Disable()

	if !rec.wasStopped() {
		t.Fatalf("disable must stop the live recognizer")
	}
	if adapter.Enabled() {
		t.Fatalf("adapter still reports enabled after disable")
	}

	// A drop after disable must not restart.
	close(rec.results)
	time.Sleep(20 * time.Millisecond)
	if factory.count() != 1 {
		t.Fatalf("unexpected restart after disable")
	}
}
