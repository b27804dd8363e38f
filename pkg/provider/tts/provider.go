// Package tts defines the Provider interface for streamed speech synthesis.
//
// The game service hands out a streaming audio endpoint with every pirate
// reply. Posting the reply text to it yields an incremental event stream of
// audio fragments; a Provider drains that stream into one buffer. [Playable]
// then turns the collected bytes into a clip a player can decode, wrapping
// raw linear PCM in a WAV container.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"log/slog"

	"github.com/MrWong99/outwit/pkg/audio"
)

// Provider is the abstraction over a streaming synthesis endpoint.
type Provider interface {
	// Collect posts text to endpoint and concatenates every audio fragment of
	// the resulting stream in arrival order. text must be exactly the text
	// shown to the player.
	//
	// Returns (nil, nil) when the stream ended without any fragment. An
	// explicit error marker in the stream aborts reading and is returned as
	// apierr.ErrStream; malformed fragments are skipped and counted.
	Collect(ctx context.Context, endpoint, text string) (*Result, error)
}

// Playable applies the post-processing required before playback: raw linear
// PCM is wrapped in a WAV container at the negotiated sample rate, compressed
// formats pass through unchanged. Returns nil for a nil or empty result.
func Playable(res *Result, enc Encoding) *audio.Clip {
	if res == nil || len(res.Audio) == 0 {
		return nil
	}
	if !enc.IsLinearPCM() {
		return &audio.Clip{Data: res.Audio, Format: enc.Compressed()}
	}
	pcm := res.Audio
	if len(pcm)%2 != 0 {
		slog.Warn("tts: odd byte count in PCM stream, dropping trailing byte", "bytes", len(pcm))
		pcm = pcm[:len(pcm)-1]
	}
	return &audio.Clip{Data: audio.WrapPCM16(pcm, enc.Rate()), Format: "wav"}
}
