// Package mock provides a test double for the stt.Provider interface.
//
// Script the transcripts (or errors) returned by successive Transcribe calls
// and inspect which clips were uploaded:
//
//	p := &mock.Provider{Results: []mock.Result{{Text: "Ahoy"}}}
//	tr, _ := p.Transcribe(ctx, clip)
//	len(p.Calls) // 1
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/outwit/pkg/audio"
	"github.com/MrWong99/outwit/pkg/provider/stt"
)

// Result is one scripted Transcribe outcome.
type Result struct {
	Text string
	Err  error
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Results are returned by successive Transcribe calls. Once exhausted the
	// last entry is repeated. When empty, Transcribe returns "ok".
	Results []Result

	// Calls records a copy of every clip passed to Transcribe.
	Calls []audio.Clip
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// Transcribe records the call and returns the next scripted Result.
func (p *Provider) Transcribe(_ context.Context, clip audio.Clip) (stt.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := len(p.Calls)
	p.Calls = append(p.Calls, audio.Clip{Data: append([]byte(nil), clip.Data...), Format: clip.Format})
	if len(p.Results) == 0 {
		return stt.Transcript{Text: "ok"}, nil
	}
	if idx >= len(p.Results) {
		idx = len(p.Results) - 1
	}
	r := p.Results[idx]
	if r.Err != nil {
		return stt.Transcript{}, r.Err
	}
	return stt.Transcript{Text: r.Text}, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = nil
}
