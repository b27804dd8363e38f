// Package gameapi is a client for the remote pirate game service.
//
// The client maps request/response exchanges onto typed values and never
// touches shared session state: callers apply a [TurnResult] themselves, and
// only on success. Every failure is an *apierr.Error.
//
// Usage:
//
//	c, err := gameapi.New("http://localhost:8000")
//	game, err := c.StartGame(ctx, gameapi.DifficultyEasy, "Kapitan")
//	res, err := c.SendTurn(ctx, game.ID, "I am your long-lost brother", false)
package gameapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrWong99/outwit/pkg/apierr"
)

const (
	startEndpoint        = "/api/game/start"
	conversationEndpoint = "/api/game/conversation"

	// defaultTurnTimeout accommodates server-side speech synthesis, which can
	// take well over a minute.
	defaultTurnTimeout  = 120 * time.Second
	defaultStartTimeout = 30 * time.Second
	defaultPingTimeout  = 5 * time.Second

	// maxResponseBody bounds decoded JSON responses.
	maxResponseBody = 8 << 20

	opStart = "start game"
	opTurn  = "send turn"
	opPing  = "ping game service"
)

// Breaker guards outbound calls. *resilience.CircuitBreaker satisfies it.
type Breaker interface {
	Execute(fn func() error) error
}

// Option is a functional option for configuring a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for all requests. Timeouts are
// applied per call through the request context, so the client's own Timeout
// should normally be zero.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTurnTimeout sets the deadline for a single conversation turn.
// Defaults to 120 s.
func WithTurnTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.turnTimeout = d
	}
}

// WithStartTimeout sets the deadline for starting a game. Defaults to 30 s.
func WithStartTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.startTimeout = d
	}
}

// WithBreaker routes every call through b.
func WithBreaker(b Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// Client talks to the game service. It is safe for concurrent use.
type Client struct {
	baseURL      *url.URL
	httpClient   *http.Client
	turnTimeout  time.Duration
	startTimeout time.Duration
	breaker      Breaker
}

// New creates a Client for the service at baseURL (e.g. "http://localhost:8000").
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("gameapi: baseURL must not be empty")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("gameapi: parse baseURL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("gameapi: baseURL %q must use http or https", baseURL)
	}
	c := &Client{
		baseURL:      u,
		httpClient:   &http.Client{},
		turnTimeout:  defaultTurnTimeout,
		startTimeout: defaultStartTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the service base URL.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// StartGame creates a new game. On failure nothing about the caller's
// current session should change.
func (c *Client) StartGame(ctx context.Context, difficulty Difficulty, pirateName string) (*Game, error) {
	if !difficulty.IsValid() {
		return nil, apierr.Validation(opStart, fmt.Sprintf("difficulty %q is invalid", difficulty))
	}
	pirateName = strings.TrimSpace(pirateName)
	if pirateName == "" {
		return nil, apierr.Validation(opStart, "pirate name is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, c.startTimeout)
	defer cancel()

	var out startResponse
	err := c.postJSON(ctx, opStart, startEndpoint, startRequest{
		Difficulty: difficulty,
		PirateName: pirateName,
	}, &out)
	if err != nil {
		return nil, err
	}
	if err := out.validate(); err != nil {
		return nil, apierr.Schema(opStart, err)
	}

	g := &Game{
		ID:         *out.GameID,
		Difficulty: difficulty,
		PirateName: pirateName,
	}
	if out.PirateName != "" {
		g.PirateName = out.PirateName
	}
	return g, nil
}

// SendTurn posts one player message and returns the pirate's reply. The
// message is trimmed; an empty message is rejected before any network call.
// wantAudio asks the server to synthesise a direct audio reference.
func (c *Client) SendTurn(ctx context.Context, gameID, message string, wantAudio bool) (*TurnResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apierr.Validation(opTurn, "message is empty")
	}
	if strings.TrimSpace(gameID) == "" {
		return nil, apierr.Validation(opTurn, "no game in progress; start a game first")
	}

	ctx, cancel := context.WithTimeout(ctx, c.turnTimeout)
	defer cancel()

	var out turnResponse
	err := c.postJSON(ctx, opTurn, conversationEndpoint, turnRequest{
		GameID:       gameID,
		Message:      message,
		IncludeAudio: wantAudio,
	}, &out)
	if err != nil {
		return nil, err
	}
	if err := out.validate(); err != nil {
		return nil, apierr.Schema(opTurn, err)
	}

	res := &TurnResult{
		PirateResponse:     *out.PirateResponse,
		MeritScore:         *out.MeritScore,
		IsWon:              *out.IsWon,
		IsLost:             deref(out.IsLost),
		NegativeCategories: out.NegativeCategories,
		AudioURL:           c.resolve(deref(out.AudioURL)),
		StreamingEndpoint:  c.resolve(deref(out.StreamingAudioEndpoint)),
	}
	if len(res.NegativeCategories) == 0 {
		res.NegativeCategories = nil
	}
	return res, nil
}

// Ping reports whether the service answers HTTP at all. Any response,
// including 404, counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL.String()+"/", nil)
	if err != nil {
		return apierr.Transport(opPing, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apierr.Classify(opPing, err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	resp.Body.Close()
	return nil
}

// postJSON marshals in, POSTs it to path, and decodes a 2xx body into out.
func (c *Client) postJSON(ctx context.Context, op, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return apierr.Validation(op, "encode request: "+err.Error())
	}

	call := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.String()+path, bytes.NewReader(body))
		if err != nil {
			return apierr.Transport(op, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return apierr.Classify(op, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return apierr.FromResponse(op, resp)
		}

		dec := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody))
		if err := dec.Decode(out); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return apierr.Classify(op, ctxErr)
			}
			return apierr.Schema(op, err)
		}
		return nil
	}

	if c.breaker == nil {
		return call()
	}
	return apierr.Classify(op, c.breaker.Execute(call))
}

// resolve turns a possibly relative reference from a response into an
// absolute URL against the base URL. Unparseable references are returned
// unchanged.
func (c *Client) resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return c.baseURL.ResolveReference(u).String()
}
