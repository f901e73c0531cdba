// Package playback turns question text into synthesized audio and plays it,
// tracking a busy flag for the synthesis window.
package playback

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/spigell/interview-coach/internal/ai"
)

// Speaker converts text into audio through an external synthesis call and
// hands the decoded clip to a player. Calls are serialized: a second Speak
// waits for the previous synthesis and playback handoff to finish rather
// than overlapping audio.
type Speaker struct {
	synth  ai.Synthesizer
	player Player
	logger *zap.Logger

	speakMu sync.Mutex
	busy    atomic.Bool

	mu       sync.Mutex
	closed   bool
	playCtx  context.Context
	playStop context.CancelFunc
	playing  sync.WaitGroup
}

// NewSpeaker builds a speaker. A nil player falls back to NopPlayer.
func NewSpeaker(synth ai.Synthesizer, player Player, logger *zap.Logger) *Speaker {
	if player == nil {
		player = NopPlayer
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Speaker{
		synth:    synth,
		player:   player,
		logger:   logger,
		playCtx:  ctx,
		playStop: cancel,
	}
}

// Busy reports whether a synthesis request is in flight. The flag covers the
// network round trip and decode only; audible playback continues after Busy
// returns false.
func (s *Speaker) Busy() bool {
	return s.busy.Load()
}

// Speak synthesizes the text and starts playback. Playback is
// fire-and-forget once started. Any failure is logged and swallowed: speech
// is cosmetic and the session proceeds text-only.
func (s *Speaker) Speak(ctx context.Context, text string) {
	s.speakMu.Lock()
	defer s.speakMu.Unlock()

	s.busy.Store(true)
	defer s.busy.Store(false)

	if s.synth == nil {
		return
	}

	payload, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		s.logger.Warn("speech synthesis failed, continuing text-only", zap.Error(err))
		return
	}

	clip, err := DecodeClip(payload)
	if err != nil {
		s.logger.Warn("discarding undecodable audio payload", zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	playCtx := s.playCtx
	s.playing.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.playing.Done()
		if err := s.player.Play(playCtx, clip); err != nil && playCtx.Err() == nil {
			s.logger.Warn("audio playback failed", zap.Error(err))
		}
	}()
}

// Close stops any in-flight audio and rejects further playback. Idempotent.
func (s *Speaker) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.playStop()
	s.mu.Unlock()

	s.playing.Wait()
}
