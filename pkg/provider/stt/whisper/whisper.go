// Package whisper provides an STT provider that talks directly to a
// whisper.cpp server (the whisper-server binary, POST /inference).
//
// It is an alternative to the game service's own transcription endpoint for
// deployments that run a local recogniser. Clips are uploaded whole; clips
// tagged "pcm" are raw 16-bit mono samples and are wrapped in a WAV container
// first, since whisper.cpp only decodes WAV without --convert. WAV input that
// is not 16 kHz mono is downmixed and resampled before upload.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080", whisper.WithLanguage("pl"))
//	tr, err := p.Transcribe(ctx, audio.Clip{Data: wav, Format: "wav"})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/outwit/pkg/apierr"
	"github.com/MrWong99/outwit/pkg/audio"
	"github.com/MrWong99/outwit/pkg/provider/stt"
)

const (
	defaultLanguage   = "en"
	defaultSampleRate = 16000
	defaultTimeout    = 30 * time.Second
	op                = "transcribe"

	// whisper.cpp rejects WAV input at any other rate.
	modelSampleRate = 16000
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base.en", "small"). When empty the server uses whichever model it
// was started with, which is the default.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the language code sent to the whisper.cpp server
// (e.g., "en", "pl"). "auto" lets the server detect it. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithSampleRate sets the sample rate assumed for raw "pcm" clips.
// Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(p *Provider) {
		p.sampleRate = rate
	}
}

// WithTimeout sets the per-request deadline. Defaults to 30 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.timeout = d
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = hc
	}
}

// Breaker guards outbound calls. *resilience.CircuitBreaker satisfies it.
type Breaker interface {
	Execute(fn func() error) error
}

// WithBreaker routes every upload through b.
func WithBreaker(b Breaker) Option {
	return func(p *Provider) {
		p.breaker = b
	}
}

// Provider implements stt.Provider backed by a whisper.cpp HTTP server.
type Provider struct {
	serverURL  string
	model      string
	language   string
	sampleRate int
	timeout    time.Duration
	httpClient *http.Client
	breaker    Breaker
}

// New creates a new Provider that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	serverURL = strings.TrimRight(strings.TrimSpace(serverURL), "/")
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  serverURL,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
		timeout:    defaultTimeout,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe posts clip to /inference as multipart/form-data and returns the
// recognised text.
func (p *Provider) Transcribe(ctx context.Context, clip audio.Clip) (stt.Transcript, error) {
	if clip.Empty() {
		return stt.Transcript{}, apierr.Validation(op, "audio clip is empty")
	}

	data, format := clip.Data, strings.ToLower(strings.TrimSpace(clip.Format))
	if format == "pcm" {
		data, format = audio.WrapPCM16(data, p.sampleRate), "wav"
	}
	if format == "" {
		format = "wav"
	}
	if format == "wav" {
		data = conform(data)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio."+format)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: write audio data: %w", err)
	}
	fields := map[string]string{
		"response_format": "json",
		"language":        p.language,
		"model":           p.model,
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := mw.WriteField(k, v); err != nil {
			return stt.Transcript{}, fmt.Errorf("whisper: write %s field: %w", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var result inferenceResponse
	call := func() error {
		return p.post(ctx, &body, mw.FormDataContentType(), &result)
	}
	if p.breaker != nil {
		err = apierr.Classify(op, p.breaker.Execute(call))
	} else {
		err = call()
	}
	if err != nil {
		return stt.Transcript{}, err
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return stt.Transcript{}, &apierr.Error{Kind: apierr.KindTranscriptionEmpty, Op: op, Detail: "no speech recognised"}
	}
	return stt.Transcript{Text: text, Language: result.Language}, nil
}

type inferenceResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

func (p *Provider) post(ctx context.Context, body io.Reader, contentType string, out *inferenceResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", body)
	if err != nil {
		return apierr.Transport(op, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return apierr.Classify(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apierr.FromResponse(op, resp)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apierr.Classify(op, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apierr.Schema(op, err)
	}
	return nil
}

// conform rewrites a PCM WAV into 16 kHz mono. Anything it cannot parse or
// convert is uploaded as is and left to the server to reject.
func conform(data []byte) []byte {
	w, err := audio.ParseWAV(data)
	if err != nil {
		return data
	}
	if w.Channels == 1 && w.SampleRate == modelSampleRate {
		return data
	}
	c, err := audio.Conform(w, modelSampleRate)
	if err != nil {
		return data
	}
	return audio.WrapPCM16(c.Data, c.SampleRate)
}
