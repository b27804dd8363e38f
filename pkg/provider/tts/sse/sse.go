// Package sse drains the game service's streaming audio endpoint.
//
// The endpoint is posted {"text": ...} and answers with a line-oriented event
// stream. Every data line carries one of:
//
//	data: <base64 audio fragment>
//	data: [DONE]
//	data: ERROR:<base64 error message>
//
// Empty lines and lines without the data prefix (comments, keep-alives,
// event names) are ignored.
package sse

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/outwit/pkg/apierr"
	"github.com/MrWong99/outwit/pkg/provider/tts"
)

const (
	dataPrefix  = "data:"
	doneMarker  = "[DONE]"
	errorPrefix = "ERROR:"
	op          = "collect audio"

	defaultTimeout = 180 * time.Second

	// defaultMaxLine bounds a single event line. Base64 fragments of a few
	// hundred milliseconds of audio stay well below this.
	defaultMaxLine = 4 << 20
)

// Compile-time assertion that Collector implements tts.Provider.
var _ tts.Provider = (*Collector)(nil)

// Option is a functional option for configuring a Collector.
type Option func(*Collector)

// WithTimeout sets the deadline for draining one stream. Defaults to 180 s.
func WithTimeout(d time.Duration) Option {
	return func(c *Collector) {
		c.timeout = d
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Collector) {
		c.httpClient = hc
	}
}

// WithMaxLineBytes bounds the length of a single event line.
func WithMaxLineBytes(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.maxLine = n
		}
	}
}

// Collector implements tts.Provider over an event stream.
type Collector struct {
	timeout    time.Duration
	maxLine    int
	httpClient *http.Client
}

// New creates a Collector.
func New(opts ...Option) *Collector {
	c := &Collector{
		timeout:    defaultTimeout,
		maxLine:    defaultMaxLine,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Collect posts text to endpoint and returns the concatenated audio.
func (c *Collector) Collect(ctx context.Context, endpoint, text string) (*tts.Result, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, apierr.Validation(op, "streaming endpoint is empty")
	}
	if strings.TrimSpace(text) == "" {
		return nil, apierr.Validation(op, "text is empty")
	}

	payload, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text})
	if err != nil {
		return nil, apierr.Validation(op, err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, apierr.Validation(op, "invalid streaming endpoint: "+err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apierr.Classify(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apierr.FromResponse(op, resp)
	}

	res, err := c.read(resp.Body)
	if err != nil {
		return nil, err
	}
	if res.Fragments == 0 {
		return nil, nil
	}
	return res, nil
}

// read consumes event lines until the terminator, an error marker, or EOF.
func (c *Collector) read(r io.Reader) (*tts.Result, error) {
	sc := bufio.NewScanner(r)
	// The scanner's limit is the larger of max and the initial capacity.
	sc.Buffer(make([]byte, 0, min(64<<10, c.maxLine)), c.maxLine)

	res := &tts.Result{}
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		payload, ok := strings.CutPrefix(line, dataPrefix)
		if !ok {
			continue
		}
		// One optional space follows the field separator.
		payload = strings.TrimPrefix(payload, " ")
		if payload == "" {
			continue
		}

		if payload == doneMarker {
			res.Terminated = true
			return res, nil
		}
		if msg, ok := strings.CutPrefix(payload, errorPrefix); ok {
			return nil, &apierr.Error{Kind: apierr.KindStream, Op: op, Detail: decodeErrorMessage(msg)}
		}

		frag, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			res.Skipped++
			derr := &apierr.Error{Kind: apierr.KindDecode, Op: op, Err: err}
			slog.Warn("sse: skipping malformed audio fragment", "err", derr, "fragment", res.Fragments+res.Skipped)
			continue
		}
		res.Audio = append(res.Audio, frag...)
		res.Fragments++
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &apierr.Error{Kind: apierr.KindDecode, Op: op, Detail: "event line too long", Err: err}
		}
		return nil, apierr.Classify(op, err)
	}
	slog.Debug("sse: stream closed without terminator", "fragments", res.Fragments)
	return res, nil
}

// decodeErrorMessage decodes the base64 payload of an error marker. Servers
// that send the message in plain text are tolerated.
func decodeErrorMessage(msg string) string {
	msg = strings.TrimSpace(msg)
	if b, err := base64.StdEncoding.DecodeString(msg); err == nil && len(b) > 0 {
		return string(b)
	}
	if msg == "" {
		return "audio stream reported an error"
	}
	return msg
}
