// Package gateway provides an STT provider backed by the game service's own
// speech-to-text endpoint (POST /api/speech-to-text).
//
// The clip is uploaded as multipart/form-data: an "audio" file part named
// "audio.<format>" with content type "audio/<format>", and a "format" field
// from which the server infers the decoder to use.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/MrWong99/outwit/pkg/apierr"
	"github.com/MrWong99/outwit/pkg/audio"
	"github.com/MrWong99/outwit/pkg/provider/stt"
)

const (
	endpoint       = "/api/speech-to-text"
	defaultTimeout = 30 * time.Second
	maxResponse    = 1 << 20
	op             = "transcribe"
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Breaker guards outbound calls. *resilience.CircuitBreaker satisfies it.
type Breaker interface {
	Execute(fn func() error) error
}

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

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

// WithBreaker routes every upload through b.
func WithBreaker(b Breaker) Option {
	return func(p *Provider) {
		p.breaker = b
	}
}

// Provider implements stt.Provider against the game service.
type Provider struct {
	serverURL  string
	timeout    time.Duration
	httpClient *http.Client
	breaker    Breaker
}

// New creates a Provider for the game service at serverURL.
func New(serverURL string, opts ...Option) (*Provider, error) {
	serverURL = strings.TrimRight(strings.TrimSpace(serverURL), "/")
	if serverURL == "" {
		return nil, errors.New("gateway: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  serverURL,
		timeout:    defaultTimeout,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// response is the JSON body returned by the speech-to-text endpoint.
type response struct {
	Success  bool    `json:"success"`
	Text     *string `json:"text"`
	Error    *string `json:"error"`
	Language string  `json:"language,omitempty"`
}

// Transcribe uploads clip and returns its transcript.
func (p *Provider) Transcribe(ctx context.Context, clip audio.Clip) (stt.Transcript, error) {
	if clip.Empty() {
		return stt.Transcript{}, apierr.Validation(op, "audio clip is empty")
	}
	format := strings.ToLower(strings.TrimSpace(clip.Format))
	if format == "" {
		format = "wav"
	}

	body, contentType, err := buildForm(clip.Data, format)
	if err != nil {
		return stt.Transcript{}, apierr.Validation(op, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var out response
	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+endpoint, bytes.NewReader(body))
		if err != nil {
			return apierr.Transport(op, err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return apierr.Classify(op, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return apierr.FromResponse(op, resp)
		}
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponse)).Decode(&out); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return apierr.Classify(op, ctxErr)
			}
			return apierr.Schema(op, err)
		}
		return nil
	}

	if p.breaker != nil {
		err = apierr.Classify(op, p.breaker.Execute(call))
	} else {
		err = call()
	}
	if err != nil {
		return stt.Transcript{}, err
	}

	if !out.Success {
		detail := "unknown error"
		if out.Error != nil && strings.TrimSpace(*out.Error) != "" {
			detail = *out.Error
		}
		return stt.Transcript{}, &apierr.Error{Kind: apierr.KindService, Op: op, Detail: detail}
	}
	text := ""
	if out.Text != nil {
		text = strings.TrimSpace(*out.Text)
	}
	if text == "" {
		return stt.Transcript{}, &apierr.Error{Kind: apierr.KindTranscriptionEmpty, Op: op, Detail: "no speech recognised"}
	}
	return stt.Transcript{Text: text, Language: out.Language}, nil
}

// buildForm encodes the multipart upload and returns it with its content type.
func buildForm(data []byte, format string) ([]byte, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="audio"; filename="audio.%s"`, format))
	h.Set("Content-Type", "audio/"+format)
	fw, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create audio part: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return nil, "", fmt.Errorf("write audio data: %w", err)
	}
	if err := mw.WriteField("format", format); err != nil {
		return nil, "", fmt.Errorf("write format field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return body.Bytes(), mw.FormDataContentType(), nil
}
