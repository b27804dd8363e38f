// Package audio holds the playable audio value passed between the
// transcription, streaming, and session layers, together with the RIFF/WAVE
// helpers used to turn raw linear PCM into a self-describing container.
package audio

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Clip is an owned, playable audio buffer with its container format.
type Clip struct {
	// Data holds the encoded audio bytes.
	Data []byte

	// Format is the container tag, e.g. "wav", "mpeg", "webm". It doubles as
	// the MIME subtype and as the format field of transcription uploads.
	Format string
}

// MIMEType returns the content type for the clip, e.g. "audio/wav".
func (c Clip) MIMEType() string {
	f := strings.ToLower(strings.TrimSpace(c.Format))
	if f == "" {
		f = "wav"
	}
	return "audio/" + f
}

// Empty reports whether the clip carries no audio.
func (c Clip) Empty() bool { return len(c.Data) == 0 }

// Hash returns a deterministic content digest of the clip bytes. It is used
// to recognise the same recording across redraws and is not a security
// primitive.
func (c Clip) Hash() string {
	return ContentHash(c.Data)
}

// ContentHash is the digest used by [Clip.Hash]: 64-bit xxHash rendered as
// 16 hex digits.
func ContentHash(b []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(b))
}
