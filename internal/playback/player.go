package playback

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Player renders a decoded clip on the local audio device.
type Player interface {
	Play(ctx context.Context, clip Clip) error
}

// PlayFunc adapts a function to the Player interface.
type PlayFunc func(ctx context.Context, clip Clip) error

func (f PlayFunc) Play(ctx context.Context, clip Clip) error { return f(ctx, clip) }

// NopPlayer discards audio. Used in tests and headless runs where the
// session is text-only anyway.
var NopPlayer Player = PlayFunc(func(context.Context, Clip) error { return nil })

// CmdPlayer pipes raw PCM into an external player binary such as paplay or
// pw-play.
type CmdPlayer struct {
	// Command is the player binary. Defaults to paplay.
	Command string
}

// Play writes the clip to the player's stdin in s16le raw mode.
func (p CmdPlayer) Play(ctx context.Context, clip Clip) error {
	command := strings.TrimSpace(p.Command)
	if command == "" {
		command = "paplay"
	}

	args := []string{
		"--raw",
		"--format=s16le",
		"--channels=" + strconv.Itoa(Channels),
		"--rate=" + strconv.Itoa(clip.SampleRate),
	}

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stdin = bytes.NewReader(clip.Encode())
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("play clip via %s: %w", command, err)
	}
	return nil
}
