// Package interview drives the mock-interview session: question progression,
// recording state, the busy windows around synthesis and scoring, and the
// transcript.
package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/ai"
	"github.com/spigell/interview-coach/internal/transcript"
)

var (
	// ErrBusy rejects candidate actions while a synthesis or scoring call
	// is outstanding. Exactly one such call may be in flight at a time.
	ErrBusy = errors.New("interview: a question or scoring call is in progress")
	// ErrComplete rejects actions on a finished session.
	ErrComplete = errors.New("interview: session is complete")
	// ErrClosed rejects actions on a torn-down session.
	ErrClosed = errors.New("interview: session is closed")
	// ErrNotStarted rejects candidate actions before Start.
	ErrNotStarted = errors.New("interview: session has not started")
)

// Capturer is the session-facing subset of the speech capture adapter.
type Capturer interface {
	Enable() error
	Disable()
	Err() error
	ClearErr()
	Supported() bool
	Close()
}

// Speaker is the session-facing subset of the playback adapter. Speak blocks
// for the synthesis window only; failures are swallowed downstream.
type Speaker interface {
	Speak(ctx context.Context, text string)
	Close()
}

// noopCapturer keeps the session flow intact when voice capture is not
// wired at all.
type noopCapturer struct{}

func (noopCapturer) Enable() error   { return nil }
func (noopCapturer) Disable()        {}
func (noopCapturer) Err() error      { return nil }
func (noopCapturer) ClearErr()       {}
func (noopCapturer) Supported() bool { return false }
func (noopCapturer) Close()          {}

type noopSpeaker struct{}

func (noopSpeaker) Speak(context.Context, string) {}
func (noopSpeaker) Close()                        {}

// Deps aggregates the external capabilities a session coordinates.
type Deps struct {
	Capture Capturer
	Speaker Speaker
	Scorer  ai.Scorer
	Logger  *zap.Logger
}

// Session is the orchestrator. All state mutation is serialized behind one
// mutex; async completions re-check liveness before touching state so a
// torn-down session is never mutated.
type Session struct {
	id             string
	questions      []string
	resume         ai.ResumeInput
	jobDescription string

	capture Capturer
	speaker Speaker
	scorer  ai.Scorer
	logger  *zap.Logger

	mu         sync.Mutex
	status     Status
	idx        int
	answer     string
	transcript *transcript.Log
	report     *ai.Report
	closed     bool

	elapsed    atomic.Int64
	timerStop  chan struct{}
	timerGroup sync.WaitGroup
}

// New builds a session over a fixed, non-empty question sequence.
func New(questions []string, resume ai.ResumeInput, jobDescription string, deps Deps) (*Session, error) {
	if len(questions) == 0 {
		return nil, errors.New("interview: at least one question is required")
	}
	if deps.Scorer == nil {
		return nil, errors.New("interview: a scorer is required")
	}
	if deps.Capture == nil {
		deps.Capture = noopCapturer{}
	}
	if deps.Speaker == nil {
		deps.Speaker = noopSpeaker{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	qs := make([]string, len(questions))
	copy(qs, questions)

	id := uuid.NewString()

	return &Session{
		id:             id,
		questions:      qs,
		resume:         resume,
		jobDescription: jobDescription,
		capture:        deps.Capture,
		speaker:        deps.Speaker,
		scorer:         deps.Scorer,
		logger:         deps.Logger.With(zap.String("session_id", id[:8])),
		status:         StatusIdle,
		transcript:     &transcript.Log{},
		timerStop:      make(chan struct{}),
	}, nil
}

// ID returns the session identity used to guard async completions.
func (s *Session) ID() string { return s.id }

// Status returns the current state snapshot.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// CurrentIndex returns the index of the active question.
func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx
}

// CurrentQuestion returns the active question text.
func (s *Session) CurrentQuestion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questions[s.idx]
}

// QuestionCount returns N, the fixed length of the question sequence.
func (s *Session) QuestionCount() int { return len(s.questions) }

// Answer returns the accumulated answer buffer.
func (s *Session) Answer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answer
}

// Transcript returns a snapshot of the recorded turns.
func (s *Session) Transcript() []transcript.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Entries()
}

// Report returns the final report once the session is complete.
func (s *Session) Report() *ai.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

// Elapsed returns whole seconds since Start, ticking while the session is
// open regardless of status.
func (s *Session) Elapsed() int64 { return s.elapsed.Load() }

// CaptureErr surfaces the classified capture error, if any.
func (s *Session) CaptureErr() error { return s.capture.Err() }

// VoiceSupported reports whether live capture is available on this platform.
func (s *Session) VoiceSupported() bool { return s.capture.Supported() }

// apply moves the state machine, or reports the invalid transition.
func (s *Session) apply(event Event) error {
	next, err := Transition(s.status, event)
	if err != nil {
		return err
	}
	s.status = next
	return nil
}

// Start begins the session: speaks question 0 and settles into
// AwaitingAnswer. The first AI transcript entry is appended before the
// synthesis window opens.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if err := s.apply(EventBegin); err != nil {
		s.mu.Unlock()
		return err
	}

	question := s.questions[0]
	s.transcript.AppendAI(question)
	s.timerGroup.Add(1)
	s.mu.Unlock()

	go s.runTimer()

	s.logger.Info("session started", zap.Int("questions", len(s.questions)))

	s.speaker.Speak(ctx, question)

	return s.settleAfterSpeak()
}

// settleAfterSpeak lands the session in AwaitingAnswer after a synthesis
// window, unless it was torn down meanwhile.
func (s *Session) settleAfterSpeak() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.apply(EventQuestionReady)
}

// ToggleRecording flips between AwaitingAnswer and Recording. Rejected while
// a synthesis or scoring call is outstanding. Entering Recording clears any
// pending capture error and binds the adapter; leaving stops capture but
// preserves the accumulated buffer.
func (s *Session) ToggleRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusThinking, StatusScoring:
		return ErrBusy
	case StatusComplete:
		return ErrComplete
	case StatusIdle:
		return ErrNotStarted
	case StatusRecording:
		if err := s.apply(EventPause); err != nil {
			return err
		}
		s.capture.Disable()
		return nil
	case StatusAwaitingAnswer:
		s.capture.ClearErr()
		if err := s.capture.Enable(); err != nil {
			return fmt.Errorf("enabling capture: %w", err)
		}
		return s.apply(EventRecord)
	default:
		return fmt.Errorf("interview: unexpected status %q", s.status)
	}
}

// AppendAnswerText commits a finalized recognition chunk to the answer
// buffer. Chunks arriving after completion or teardown are dropped.
func (s *Session) AppendAnswerText(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.status == StatusComplete || s.status == StatusScoring {
		return
	}
	s.answer = strings.TrimSpace(strings.TrimSpace(s.answer) + " " + text)
}

// ManualTextInput overwrites the answer buffer directly, bypassing the
// capture adapter. Used when voice mode is disabled or erroring.
func (s *Session) ManualTextInput(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.status {
	case StatusThinking, StatusScoring:
		return ErrBusy
	case StatusComplete:
		return ErrComplete
	}

	s.answer = text
	return nil
}

// SubmitAnswer finalizes the current answer and advances. An empty trimmed
// buffer still advances without a transcript entry: passing on a question is
// legal. Submitting always silences the microphone, even mid-utterance. On
// the last question it runs the scoring call; a scoring failure rolls back
// to AwaitingAnswer at the same index so a retry is well-formed.
func (s *Session) SubmitAnswer(ctx context.Context) (*ai.Report, error) {
	s.mu.Lock()

	switch s.status {
	case StatusThinking, StatusScoring:
		s.mu.Unlock()
		return nil, ErrBusy
	case StatusComplete:
		s.mu.Unlock()
		return nil, ErrComplete
	case StatusIdle:
		s.mu.Unlock()
		return nil, ErrNotStarted
	}

	if answer := strings.TrimSpace(s.answer); answer != "" {
		s.transcript.AppendUser(answer)
		s.answer = ""
	}

	s.capture.Disable()

	if s.idx == len(s.questions)-1 {
		return s.finishLocked(ctx)
	}

	if err := s.apply(EventAdvance); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	s.idx++
	question := s.questions[s.idx]
	s.transcript.AppendAI(question)
	idx := s.idx
	s.mu.Unlock()

	s.logger.Info("advancing to next question", zap.Int("index", idx))
	s.speaker.Speak(ctx, question)

	return nil, s.settleAfterSpeak()
}

// finishLocked runs the terminal scoring call. Called with the lock held;
// releases it around the external call.
func (s *Session) finishLocked(ctx context.Context) (*ai.Report, error) {
	if err := s.apply(EventFinish); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	entries := s.transcript.Entries()
	s.mu.Unlock()

	s.logger.Info("scoring interview", zap.Int("transcript_entries", len(entries)))
	report, err := s.scorer.ScoreTranscript(ctx, entries, s.resume, s.jobDescription)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		// The session was torn down while scoring; the late result must
		// not resurrect it.
		return nil, ErrClosed
	}

	if err != nil {
		if rollbackErr := s.apply(EventScoreFailed); rollbackErr != nil {
			return nil, rollbackErr
		}
		return nil, fmt.Errorf("scoring interview: %w", err)
	}

	if err := s.apply(EventScored); err != nil {
		return nil, err
	}

	s.report = report
	s.logger.Info("session complete", zap.Float64("overall_score", report.OverallScore))
	return report, nil
}

// Close tears the session down: stops the timer, releases the capture
// hardware binding and stops in-flight audio. Idempotent; safe on every
// exit path.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	started := s.status != StatusIdle
	s.mu.Unlock()

	if started {
		close(s.timerStop)
		s.timerGroup.Wait()
	}

	s.capture.Close()
	s.speaker.Close()
	s.logger.Info("session closed", zap.Int64("elapsed_seconds", s.Elapsed()))
}

func (s *Session) runTimer() {
	defer s.timerGroup.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.elapsed.Add(1)
		case <-s.timerStop:
			return
		}
	}
}
