// Package app is the interaction loop of the outwit client: it turns player
// events (start a game, type a message, submit a recording) into calls to
// the game, transcription, and audio services and into an updated session.
//
// Every event returns an [Outcome] carrying the new session snapshot, the
// notices to show the player, and whether the front end should redraw at
// once. No service error escapes an event handler; each becomes a [Notice].
//
// For testing, inject mock implementations through [Providers].
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/outwit/internal/config"
	"github.com/MrWong99/outwit/internal/observe"
	"github.com/MrWong99/outwit/internal/reconcile"
	"github.com/MrWong99/outwit/internal/session"
	"github.com/MrWong99/outwit/pkg/apierr"
	"github.com/MrWong99/outwit/pkg/audio"
	"github.com/MrWong99/outwit/pkg/gameapi"
	"github.com/MrWong99/outwit/pkg/provider/stt"
	"github.com/MrWong99/outwit/pkg/provider/tts"
)

// GameService is the subset of the game client the loop needs.
// *gameapi.Client satisfies it.
type GameService interface {
	StartGame(ctx context.Context, difficulty gameapi.Difficulty, pirateName string) (*gameapi.Game, error)
	SendTurn(ctx context.Context, gameID, message string, wantAudio bool) (*gameapi.TurnResult, error)
}

// Providers holds the remote collaborators. TTS may be nil, in which case
// streamed reply audio is skipped.
type Providers struct {
	Game GameService
	STT  stt.Provider
	TTS  tts.Provider
}

// Option is a functional option for New.
type Option func(*App)

// WithMetrics records turn, transcription, stream, and game metrics to m.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithStore uses s instead of a fresh session store.
func WithStore(s *session.Store) Option {
	return func(a *App) { a.store = s }
}

// App owns one player's session. Events are serialised; callers may invoke
// them from any goroutine.
type App struct {
	providers  Providers
	encoding   tts.Encoding
	legacyOnly bool
	metrics    *observe.Metrics
	log        *slog.Logger

	store      *session.Store
	reconciler *reconcile.Reconciler

	mu sync.Mutex
	// pending collects notices raised while a turn is dispatched.
	pending []Notice
}

// New creates an App from cfg and providers.
func New(cfg *config.Config, providers Providers, opts ...Option) (*App, error) {
	if providers.Game == nil || providers.STT == nil {
		return nil, errors.New("app: game and stt providers are required")
	}
	a := &App{
		providers: providers,
		encoding: tts.Encoding{
			Raw:              cfg.Audio.RawEncoding,
			SampleRate:       cfg.Audio.SampleRate,
			CompressedFormat: cfg.Audio.CompressedFormat,
		},
		legacyOnly: cfg.Audio.LegacyOnly,
		log:        slog.Default().With("component", "app"),
	}
	for _, o := range opts {
		o(a)
	}
	if a.store == nil {
		a.store = session.NewStore()
	}

	rOpts := []reconcile.Option{
		// Legacy deployments have no streaming endpoint, so typed turns ask
		// the server for a direct audio_url instead.
		reconcile.WithTypedAudio(a.legacyOnly),
	}
	if a.metrics != nil {
		rOpts = append(rOpts, reconcile.WithMetrics(a.metrics))
	}
	r, err := reconcile.New(a.store, providers.STT, reconcile.DispatchFunc(a.dispatch), rOpts...)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.reconciler = r
	return a, nil
}

// Snapshot returns the current session.
func (a *App) Snapshot() session.State {
	return a.store.Snapshot()
}

// StartGame starts a new game and replaces the session with it. On failure
// the previous session is left untouched.
func (a *App) StartGame(ctx context.Context, difficulty gameapi.Difficulty, pirateName string) Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	ctx, span := observe.StartSpan(ctx, "start game")
	game, err := a.providers.Game.StartGame(ctx, difficulty, pirateName)
	observe.EndSpan(span, err)
	if err != nil {
		a.log.Warn("start game failed", "err", err)
		return a.outcome(false, errorNotice("Failed to start game", err))
	}

	st := a.store.Begin(game)
	if a.metrics != nil {
		a.metrics.RecordGame(ctx, "started", string(st.Difficulty))
	}
	observe.Logger(ctx).Info("game started", "game_id", st.GameID, "difficulty", st.Difficulty)
	return a.outcome(true, Notice{
		Level: LevelSuccess,
		Text:  fmt.Sprintf("Game started! Difficulty: %s", st.Difficulty),
	})
}

// SubmitText sends a typed message unless it repeats the last one.
func (a *App) SubmitText(ctx context.Context, text string) Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.store.Snapshot().Active() {
		return a.outcome(false, noGameNotice())
	}
	c := a.reconciler.HandleText(ctx, text)
	return a.cycleOutcome(c, false)
}

// SubmitClip runs a voice cycle for clip. It is safe to submit the same clip
// on every redraw; it is transcribed and sent at most once.
func (a *App) SubmitClip(ctx context.Context, clip *audio.Clip) Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()

	if clip == nil || clip.Empty() {
		return a.outcome(false)
	}
	if !a.store.Snapshot().Active() {
		return a.outcome(false, noGameNotice())
	}
	c := a.reconciler.HandleClip(ctx, clip)
	return a.cycleOutcome(c, true)
}

// dispatch sends one turn and applies it. It runs inside an event handler
// with a.mu held.
func (a *App) dispatch(ctx context.Context, text string, wantAudio bool) error {
	st := a.store.Snapshot()
	if !st.Active() {
		return apierr.Validation("send turn", "Please start a game first!")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return apierr.Validation("send turn", "Please enter a message!")
	}

	ctx, span := observe.StartSpan(ctx, "send turn")
	start := time.Now()
	res, err := a.providers.Game.SendTurn(ctx, st.GameID, text, wantAudio)
	if a.metrics != nil {
		a.metrics.RecordTurn(ctx, observe.StatusOf(err), time.Since(start))
	}
	observe.EndSpan(span, err)
	if err != nil {
		return err
	}

	reply := session.Reply{UserText: text, Result: res}
	ref := res.AudioSource(a.legacyOnly)
	switch ref.Kind {
	case gameapi.AudioStream:
		reply.Audio = a.collectAudio(ctx, ref.URL, res.PirateResponse)
	case gameapi.AudioDirect:
		reply.AudioURL = ref.URL
	}

	next := a.store.ApplyTurn(reply)
	a.finish(ctx, st, next)
	return nil
}

// collectAudio fetches the streamed reply audio. Failures degrade to a
// warning; the turn itself already succeeded.
func (a *App) collectAudio(ctx context.Context, endpoint, text string) *audio.Clip {
	if a.providers.TTS == nil {
		a.log.Debug("no audio collector configured; skipping reply audio")
		return nil
	}
	ctx, span := observe.StartSpan(ctx, "collect audio")
	start := time.Now()
	res, err := a.providers.TTS.Collect(ctx, endpoint, text)
	observe.EndSpan(span, err)
	if err != nil {
		observe.Logger(ctx).Warn("reply audio unavailable", "err", err)
		a.pending = append(a.pending, Notice{Level: LevelWarn, Text: "Audio unavailable: " + describe(err)})
		return nil
	}
	if res == nil {
		return nil
	}
	if a.metrics != nil {
		a.metrics.RecordStream(ctx, res.Fragments, res.Skipped, time.Since(start))
	}
	return tts.Playable(res, a.encoding)
}

// finish reports a game that just reached a terminal state.
func (a *App) finish(ctx context.Context, before, after session.State) {
	if before.Finished() || !after.Finished() {
		return
	}
	event, notice := "lost", Notice{Level: LevelError, Text: "The pirate saw through you. Game over!"}
	if after.IsWon {
		event, notice = "won", Notice{Level: LevelSuccess, Text: "You Won! You successfully tricked the pirate into giving you their treasure!"}
	}
	if a.metrics != nil {
		a.metrics.RecordGame(ctx, event, string(after.Difficulty))
	}
	observe.Logger(ctx).Info("game finished", "game_id", after.GameID, "outcome", event, "merit_score", after.MeritScore)
	a.pending = append(a.pending, notice)
}

func (a *App) cycleOutcome(c reconcile.Cycle, voice bool) Outcome {
	var notices []Notice
	if voice && c.Phase == reconcile.PhaseDispatch {
		notices = append(notices, Notice{Level: LevelSuccess, Text: "Transcribed: " + c.Text})
	}
	switch {
	case c.Reason == reconcile.ReasonTranscriptionFailed:
		if c.Err != nil {
			notices = append(notices, errorNotice("Transcription failed", c.Err))
		} else {
			notices = append(notices, Notice{Level: LevelWarn, Text: "Transcription failed: no speech recognised"})
		}
	case c.Phase == reconcile.PhaseDispatch && c.Err != nil:
		notices = append(notices, errorNotice("Failed to send message", c.Err))
	}
	notices = append(notices, a.pending...)
	a.pending = nil
	return a.outcome(c.Refresh, notices...)
}

func (a *App) outcome(refresh bool, notices ...Notice) Outcome {
	return Outcome{State: a.store.Snapshot(), Notices: notices, Refresh: refresh}
}
