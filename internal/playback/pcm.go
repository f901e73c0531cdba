package playback

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Synthesized audio arrives as raw 16-bit little-endian PCM at a fixed
// format: 24 kHz, mono.
const (
	SampleRate = 24000
	Channels   = 1
)

// Clip is decoded, normalized audio ready for a player.
type Clip struct {
	Samples    []float32
	SampleRate int
}

// DecodeClip converts a raw 16-bit LE PCM payload into normalized samples in
// [-1, 1). An empty or odd-length payload is a decode error.
func DecodeClip(data []byte) (Clip, error) {
	if len(data) == 0 {
		return Clip{}, errors.New("empty audio payload")
	}
	if len(data)%2 != 0 {
		return Clip{}, fmt.Errorf("truncated 16-bit payload: %d bytes", len(data))
	}

	samples := make([]float32, len(data)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(v) / 32768.0
	}

	return Clip{Samples: samples, SampleRate: SampleRate}, nil
}

// Encode converts normalized samples back into raw 16-bit LE PCM for players
// that consume bytes.
func (c Clip) Encode() []byte {
	out := make([]byte, len(c.Samples)*2)
	for i, s := range c.Samples {
		v := math.Round(float64(s) * 32768.0)
		if v > 32767 {
			v = 32767
		}
		if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}
