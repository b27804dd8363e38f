// Package reconcile decides, for every input cycle, whether a voice clip or a
// typed message turns into exactly one outgoing game turn.
//
// The recording device is level-triggered: it keeps reporting the last clip
// until the player records a new one, and the front end may replay the same
// typed input after a redraw. The [Reconciler] absorbs both by running each
// cycle through a small state machine:
//
//	IDLE → CLIP_CAPTURED → HASH_CHECK → TRANSCRIBING → DUP_CHECK → DISPATCH
//	                           │              │             │
//	                           └──────────────┴─────────────┴──→ SUPPRESSED
//
// A clip whose content hash matches the last processed clip is suppressed
// before transcription. A transcript or typed message equal to the most
// recent user entry is suppressed before dispatch.
package reconcile

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/MrWong99/outwit/internal/observe"
	"github.com/MrWong99/outwit/internal/session"
	"github.com/MrWong99/outwit/pkg/audio"
	"github.com/MrWong99/outwit/pkg/provider/stt"
)

// Phase is a state of one input cycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseClipCaptured
	PhaseHashCheck
	PhaseTranscribing
	PhaseDupCheck
	PhaseDispatch
	PhaseSuppressed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseClipCaptured:
		return "CLIP_CAPTURED"
	case PhaseHashCheck:
		return "HASH_CHECK"
	case PhaseTranscribing:
		return "TRANSCRIBING"
	case PhaseDupCheck:
		return "DUP_CHECK"
	case PhaseDispatch:
		return "DISPATCH"
	case PhaseSuppressed:
		return "SUPPRESSED"
	default:
		return "UNKNOWN"
	}
}

// Reason explains why a cycle ended without dispatching.
type Reason int

const (
	ReasonNone Reason = iota

	// ReasonNoClip means no clip was available; the cycle stayed idle.
	ReasonNoClip

	// ReasonSameClip means the clip was already processed.
	ReasonSameClip

	// ReasonTranscriptionFailed means transcription errored or came back
	// empty. The clip stays marked as processed.
	ReasonTranscriptionFailed

	// ReasonDuplicateText means the text equals the last sent user message.
	ReasonDuplicateText
)

// String returns a snake_case label suitable for metric attributes.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonNoClip:
		return "no_clip"
	case ReasonSameClip:
		return "same_clip"
	case ReasonTranscriptionFailed:
		return "transcription_failed"
	case ReasonDuplicateText:
		return "duplicate_text"
	default:
		return "unknown"
	}
}

// Cycle is the outcome of one input cycle.
type Cycle struct {
	// Trace lists every phase entered, in order. The last element equals
	// Phase.
	Trace []Phase

	// Phase is the final phase: PhaseIdle, PhaseSuppressed, or
	// PhaseDispatch.
	Phase Phase

	// Reason is set when the cycle did not dispatch.
	Reason Reason

	// Text is the message that was compared and, if dispatched, sent. For
	// voice cycles it is the transcript.
	Text string

	// Err is the transcription or dispatch error, if any.
	Err error

	// Refresh asks the front end to redraw immediately. It is set after a
	// successful dispatch.
	Refresh bool
}

// Dispatched reports whether the cycle sent a turn successfully.
func (c Cycle) Dispatched() bool { return c.Phase == PhaseDispatch && c.Err == nil }

func (c *Cycle) enter(p Phase) {
	c.Trace = append(c.Trace, p)
	c.Phase = p
}

func (c *Cycle) suppress(r Reason) {
	c.enter(PhaseSuppressed)
	c.Reason = r
}

// Dispatcher sends one turn and applies its result to the session. It is
// called at most once per cycle.
type Dispatcher interface {
	Dispatch(ctx context.Context, text string, wantAudio bool) error
}

// DispatchFunc adapts a function to [Dispatcher].
type DispatchFunc func(ctx context.Context, text string, wantAudio bool) error

// Dispatch calls f.
func (f DispatchFunc) Dispatch(ctx context.Context, text string, wantAudio bool) error {
	return f(ctx, text, wantAudio)
}

// Option configures a [Reconciler].
type Option func(*Reconciler)

// WithTypedAudio sets the wantAudio flag used for typed messages. Voice
// cycles always dispatch with wantAudio false because their reply audio
// comes from the streaming path.
func WithTypedAudio(want bool) Option {
	return func(r *Reconciler) {
		r.typedAudio = want
	}
}

// WithMetrics records cycle outcomes to m.
func WithMetrics(m *observe.Metrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// Reconciler runs input cycles for one session. It is not safe for
// concurrent use; a session has exactly one interaction loop.
type Reconciler struct {
	store      *session.Store
	stt        stt.Provider
	dispatcher Dispatcher
	typedAudio bool
	metrics    *observe.Metrics
}

// New creates a Reconciler over store that transcribes with p and sends turns
// through d.
func New(store *session.Store, p stt.Provider, d Dispatcher, opts ...Option) (*Reconciler, error) {
	if store == nil || p == nil || d == nil {
		return nil, errors.New("reconcile: store, transcriber, and dispatcher are required")
	}
	r := &Reconciler{
		store:      store,
		stt:        p,
		dispatcher: d,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// HandleClip runs a voice cycle for clip. A nil or empty clip leaves the
// cycle idle.
func (r *Reconciler) HandleClip(ctx context.Context, clip *audio.Clip) Cycle {
	var c Cycle
	c.enter(PhaseIdle)
	if clip == nil || clip.Empty() {
		c.Reason = ReasonNoClip
		return c
	}

	ctx, span := observe.StartSpan(ctx, "reconcile clip")
	defer func() { observe.EndSpan(span, c.Err) }()

	c.enter(PhaseClipCaptured)
	hash := clip.Hash()

	c.enter(PhaseHashCheck)
	if hash == r.store.Snapshot().ProcessedAudioHash {
		c.suppress(ReasonSameClip)
		r.record(ctx, c)
		return c
	}
	r.store.SetProcessedAudioHash(hash)

	c.enter(PhaseTranscribing)
	tr, err := r.stt.Transcribe(ctx, *clip)
	if err != nil {
		c.Err = err
		c.suppress(ReasonTranscriptionFailed)
		r.record(ctx, c)
		return c
	}
	c.Text = strings.TrimSpace(tr.Text)
	if c.Text == "" {
		c.suppress(ReasonTranscriptionFailed)
		r.record(ctx, c)
		return c
	}

	c.enter(PhaseDupCheck)
	if r.isDuplicate(c.Text) {
		// The turn went out in an earlier cycle. Forget the clip so the next
		// real recording is not blocked, even if it hashes the same.
		r.store.SetProcessedAudioHash("")
		c.suppress(ReasonDuplicateText)
		r.record(ctx, c)
		return c
	}

	r.dispatch(ctx, &c, false)
	return c
}

// HandleText runs a typed-input cycle for text.
func (r *Reconciler) HandleText(ctx context.Context, text string) Cycle {
	var c Cycle
	c.enter(PhaseIdle)

	ctx, span := observe.StartSpan(ctx, "reconcile text")
	defer func() { observe.EndSpan(span, c.Err) }()

	c.Text = strings.TrimSpace(text)
	c.enter(PhaseDupCheck)
	if c.Text != "" && r.isDuplicate(c.Text) {
		c.suppress(ReasonDuplicateText)
		r.record(ctx, c)
		return c
	}

	r.dispatch(ctx, &c, r.typedAudio)
	return c
}

func (r *Reconciler) dispatch(ctx context.Context, c *Cycle, wantAudio bool) {
	c.enter(PhaseDispatch)
	c.Err = r.dispatcher.Dispatch(ctx, c.Text, wantAudio)
	c.Refresh = c.Err == nil
	r.record(ctx, *c)
}

// isDuplicate compares text with the last user entry after Unicode
// normalization, so composed and decomposed spellings of the same words
// count as equal.
func (r *Reconciler) isDuplicate(text string) bool {
	last, ok := r.store.Snapshot().LastUserText()
	if !ok {
		return false
	}
	return normalize(last) == normalize(text)
}

func normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func (r *Reconciler) record(ctx context.Context, c Cycle) {
	outcome := "dispatched"
	if c.Phase == PhaseSuppressed {
		outcome = "suppressed"
		observe.Logger(ctx).Debug("input cycle suppressed",
			"component", "reconcile",
			"reason", c.Reason.String(),
			"err", c.Err,
		)
	}
	if r.metrics != nil {
		r.metrics.RecordCycle(ctx, outcome, c.Reason.String())
	}
}
