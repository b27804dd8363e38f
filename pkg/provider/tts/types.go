package tts

import (
	"strconv"
	"strings"
)

const (
	defaultSampleRate       = 16000
	defaultCompressedFormat = "mpeg"
)

// Result is the outcome of draining one audio stream.
type Result struct {
	// Audio is the concatenation of all decoded fragments in arrival order.
	Audio []byte

	// Fragments is the number of fragments decoded into Audio.
	Fragments int

	// Skipped is the number of malformed fragments that were dropped.
	Skipped int

	// Terminated reports whether the stream ended with an explicit
	// terminator rather than by the connection closing.
	Terminated bool
}

// Encoding describes the raw audio encoding negotiated with the server.
type Encoding struct {
	// Raw is the raw-audio encoding tag. "pcm" (or a "pcm_<rate>" form such
	// as "pcm_24000") selects uncompressed 16-bit linear samples; anything
	// else is treated as a self-describing compressed format.
	Raw string

	// SampleRate is the PCM sample rate in Hz. When zero it is taken from a
	// "pcm_<rate>" tag, falling back to 16000.
	SampleRate int

	// CompressedFormat is the container tag of compressed audio (MIME
	// subtype, e.g. "mpeg"). Defaults to "mpeg".
	CompressedFormat string
}

// IsLinearPCM reports whether the stream carries raw linear samples.
func (e Encoding) IsLinearPCM() bool {
	raw := strings.ToLower(strings.TrimSpace(e.Raw))
	return raw == "pcm" || strings.HasPrefix(raw, "pcm_")
}

// Rate returns the effective PCM sample rate.
func (e Encoding) Rate() int {
	if e.SampleRate > 0 {
		return e.SampleRate
	}
	raw := strings.ToLower(strings.TrimSpace(e.Raw))
	if rest, ok := strings.CutPrefix(raw, "pcm_"); ok {
		if n, err := strconv.Atoi(rest); err == nil && n > 0 {
			return n
		}
	}
	return defaultSampleRate
}

// Compressed returns the effective compressed container tag.
func (e Encoding) Compressed() string {
	if f := strings.TrimSpace(e.CompressedFormat); f != "" {
		return f
	}
	return defaultCompressedFormat
}
