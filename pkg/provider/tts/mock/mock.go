// Package mock provides a test double for the tts.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/outwit/pkg/provider/tts"
)

// CollectCall records a single invocation of Provider.Collect.
type CollectCall struct {
	Endpoint string
	Text     string
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Collect. A nil Result with a nil Err models a
	// stream that produced no fragments.
	Result *tts.Result

	// Err, if non-nil, is returned from Collect.
	Err error

	// Calls records every call to Collect.
	Calls []CollectCall
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)

// Collect records the call and returns Result, Err.
func (p *Provider) Collect(_ context.Context, endpoint, text string) (*tts.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, CollectCall{Endpoint: endpoint, Text: text})
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Result == nil {
		return nil, nil
	}
	r := *p.Result
	return &r, nil
}

// CallCount returns the number of Collect calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
