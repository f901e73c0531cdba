// Package capture wraps a continuous speech-recognition stream into a single
// accumulating answer sink, with restart-on-drop and typed error
// classification.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ErrKind classifies why recognition stopped working.
type ErrKind int

const (
	ErrUnknown ErrKind = iota
	// ErrNetwork is transient; the user may retry voice input.
	ErrNetwork
	// ErrPermissionDenied is terminal for the session: microphone access
	// was revoked. Auto-restart is suppressed.
	ErrPermissionDenied
	// ErrUnsupported means the recognition capability never existed on this
	// platform. The session should force text-input mode.
	ErrUnsupported
)

func (k ErrKind) String() string {
	switch k {
	case ErrNetwork:
		return "network"
	case ErrPermissionDenied:
		return "permission-denied"
	case ErrUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error is a classified capture failure.
type Error struct {
	Kind  ErrKind
	cause error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("capture: %s", e.Kind)
	}
	return fmt.Sprintf("capture: %s: %v", e.Kind, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// NewError wraps cause with a classification.
func NewError(kind ErrKind, cause error) *Error {
	return &Error{Kind: kind, cause: cause}
}

// KindOf extracts the classification from an error chain.
func KindOf(err error) ErrKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ErrUnknown
}

// Result is one incremental recognition event. Interim results are visible
// for display but only final results are committed to the answer sink.
type Result struct {
	Text  string
	Final bool
	Err   error
}

// Recognizer is the platform continuous-recognition capability. Start opens
// the stream; the returned channel is closed when the stream terminates,
// whether requested or spontaneous. Stop requests termination and releases
// the underlying capture hardware.
type Recognizer interface {
	Start(ctx context.Context) (<-chan Result, error)
	Stop() error
}

// Factory binds a fresh recognizer instance. Each Enable binds a new
// instance so a stale stream is never reused.
type Factory func() (Recognizer, error)

const defaultRestartBudget = 5

// Adapter owns at most one live recognizer binding at a time and forwards
// final text chunks to the configured sink. A spontaneous stream drop while
// still enabled triggers an auto-restart, at most once per termination and
// bounded by a total budget per Enable, so a silently timed-out platform
// stream approximates continuous capture without looping forever.
type Adapter struct {
	factory       Factory
	logger        *zap.Logger
	onFinal       func(text string)
	onInterim     func(text string)
	restartBudget int

	mu         sync.Mutex
	gen        int
	enabled    bool
	closed     bool
	err        error
	recognizer Recognizer
	cancel     context.CancelFunc
	restarts   int
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithInterim sets the preview callback for interim results.
func WithInterim(f func(string)) Option {
	return func(a *Adapter) { a.onInterim = f }
}

// WithRestartBudget overrides the per-enable auto-restart budget.
func WithRestartBudget(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.restartBudget = n
		}
	}
}

// NewAdapter builds an adapter around the given recognizer factory. A nil
// factory models a platform without the recognition capability: Enable is
// rejected with ErrUnsupported until the error is cleared (and then rejected
// again).
func NewAdapter(factory Factory, onFinal func(string), logger *zap.Logger, opts ...Option) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if onFinal == nil {
		onFinal = func(string) {}
	}

	a := &Adapter{
		factory:       factory,
		logger:        logger,
		onFinal:       onFinal,
		restartBudget: defaultRestartBudget,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Supported reports whether a recognition capability is available at all.
func (a *Adapter) Supported() bool {
	return a.factory != nil
}

// Enabled reports whether a live binding is currently wanted.
func (a *Adapter) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// Err returns the pending classified error, if any. Clearing it is a
// precondition for re-enabling capture.
func (a *Adapter) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// ClearErr drops the pending error state.
func (a *Adapter) ClearErr() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = nil
}

// Enable binds a fresh recognizer and starts consuming results. It rejects
// while an error is pending and when the adapter is closed. Enabling an
// already-enabled adapter is a no-op.
func (a *Adapter) Enable() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return errors.New("capture: adapter is closed")
	}
	if a.factory == nil {
		a.err = NewError(ErrUnsupported, errors.New("speech recognition capability is not available"))
		return a.err
	}
	if a.err != nil {
		return fmt.Errorf("capture: pending error must be cleared before enabling: %w", a.err)
	}
	if a.enabled {
		return nil
	}

	a.restarts = 0
	return a.bindLocked()
}

// bindLocked discards any stale binding and starts a new one. Caller holds mu.
func (a *Adapter) bindLocked() error {
	a.releaseLocked()

	rec, err := a.factory()
	if err != nil {
		a.err = classify(err)
		return a.err
	}

	ctx, cancel := context.WithCancel(context.Background())
	results, err := rec.Start(ctx)
	if err != nil {
		cancel()
		a.err = classify(err)
		return a.err
	}

	a.gen++
	a.enabled = true
	a.recognizer = rec
	a.cancel = cancel

	go a.consume(a.gen, results)
	return nil
}

// Disable stops the live binding and releases the capture hardware. The
// accumulated answer is untouched; any pending error state is kept.
func (a *Adapter) Disable() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = false
	a.releaseLocked()
}

// Close tears the adapter down for good. Idempotent; always releases the
// hardware binding.
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.enabled = false
	a.releaseLocked()
}

func (a *Adapter) releaseLocked() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.recognizer != nil {
		if err := a.recognizer.Stop(); err != nil {
			a.logger.Debug("stopping recognizer", zap.Error(err))
		}
		a.recognizer = nil
	}
	a.gen++
}

// consume drains one recognizer stream. The generation check makes results
// from a superseded binding inert.
func (a *Adapter) consume(gen int, results <-chan Result) {
	for res := range results {
		a.mu.Lock()
		if gen != a.gen {
			a.mu.Unlock()
			return
		}

		if res.Err != nil {
			a.err = classify(res.Err)
			a.enabled = false
			a.releaseLocked()
			kind := KindOf(a.err)
			a.mu.Unlock()
			a.logger.Warn("speech recognition error",
				zap.String("kind", kind.String()),
				zap.Error(res.Err),
			)
			return
		}

		text := strings.TrimSpace(res.Text)
		final := res.Final
		a.mu.Unlock()

		if text == "" {
			continue
		}
		if final {
			a.onFinal(text)
		} else if a.onInterim != nil {
			a.onInterim(text)
		}
	}

	// Stream closed. Restart only on a spontaneous drop: caller still wants
	// capture, no error pending, budget left.
	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.gen || !a.enabled || a.err != nil || a.closed {
		return
	}

	if a.restarts >= a.restartBudget {
		a.enabled = false
		a.err = NewError(ErrNetwork, fmt.Errorf("recognition stream dropped %d times", a.restarts))
		a.logger.Warn("capture restart budget exhausted", zap.Int("restarts", a.restarts))
		return
	}

	a.restarts++
	a.logger.Debug("restarting dropped recognition stream", zap.Int("attempt", a.restarts))
	if err := a.bindLocked(); err != nil {
		a.enabled = false
		a.logger.Warn("capture restart failed", zap.Error(err))
	}
}

// classify preserves an existing classification and defaults the rest to
// unknown.
func classify(err error) error {
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	return NewError(ErrUnknown, err)
}
