// Package stt defines the Provider interface for speech-to-text backends.
//
// A provider uploads one complete recorded clip and returns its transcript.
// Failures are *apierr.Error values and keep three outcomes apart:
//
//   - apierr.ErrTransport: the service could not be reached.
//   - apierr.ErrService: the service rejected the clip.
//   - apierr.ErrTranscriptionEmpty: the service answered but heard nothing.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"

	"github.com/MrWong99/outwit/pkg/audio"
)

// Provider is the abstraction over any batch transcription backend.
type Provider interface {
	// Transcribe uploads clip, declaring clip.Format to the service, and
	// returns the recognised text. A successful result always has non-blank
	// Text; a blank transcript is reported as apierr.ErrTranscriptionEmpty.
	Transcribe(ctx context.Context, clip audio.Clip) (Transcript, error)
}
