package gameapi

import (
	"errors"
	"fmt"
	"strings"
)

// Difficulty selects the deception threshold of a game. It is fixed for the
// lifetime of a session.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid reports whether d is a recognised difficulty.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// WinThreshold returns the deception score the server requires to win at
// this difficulty. It is informational only; winning is decided remotely.
func (d Difficulty) WinThreshold() int {
	switch d {
	case DifficultyMedium:
		return 60
	case DifficultyHard:
		return 80
	default:
		return 40
	}
}

// ParseDifficulty converts s (case-insensitive) into a Difficulty.
func ParseDifficulty(s string) (Difficulty, error) {
	d := Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", fmt.Errorf("difficulty %q is invalid; valid values: easy, medium, hard", s)
	}
	return d, nil
}

// Game is the result of a successful start-game exchange.
type Game struct {
	// ID is the opaque identifier issued by the game service.
	ID string

	// Difficulty is the difficulty the game was created with.
	Difficulty Difficulty

	// PirateName is the pirate's display name.
	PirateName string
}

// AudioKind says where a pirate reply's audio can be obtained.
type AudioKind int

const (
	// AudioNone means the reply carries no audio.
	AudioNone AudioKind = iota

	// AudioDirect means the audio is available at a playable URL.
	AudioDirect

	// AudioStream means the audio must be synthesised by posting the reply
	// text to a streaming endpoint.
	AudioStream
)

// AudioRef is the single audio source selected for a reply.
type AudioRef struct {
	Kind AudioKind
	URL  string
}

// TurnResult is the typed outcome of one conversation turn.
type TurnResult struct {
	// PirateResponse is the pirate's in-character reply text.
	PirateResponse string

	// MeritScore is the server-computed deception score after this turn.
	MeritScore int

	// IsWon and IsLost are the terminal-state flags. At most one is true.
	IsWon  bool
	IsLost bool

	// NegativeCategories maps penalty category names to non-positive values.
	// Nil when the server reported no penalties.
	NegativeCategories map[string]int

	// AudioURL is the legacy direct audio reference, if any.
	AudioURL string

	// StreamingEndpoint is the absolute URL of the streaming audio endpoint,
	// if any.
	StreamingEndpoint string
}

// AudioSource selects exactly one audio source for the reply. The streaming
// endpoint is preferred unless legacyOnly is set, in which case only the
// direct URL is considered.
func (r *TurnResult) AudioSource(legacyOnly bool) AudioRef {
	switch {
	case !legacyOnly && r.StreamingEndpoint != "":
		return AudioRef{Kind: AudioStream, URL: r.StreamingEndpoint}
	case r.AudioURL != "":
		return AudioRef{Kind: AudioDirect, URL: r.AudioURL}
	default:
		return AudioRef{Kind: AudioNone}
	}
}

// ---- wire types ----

type startRequest struct {
	Difficulty Difficulty `json:"difficulty"`
	PirateName string     `json:"pirate_name"`
}

type startResponse struct {
	GameID     *string `json:"game_id"`
	Difficulty string  `json:"difficulty,omitempty"`
	PirateName string  `json:"pirate_name,omitempty"`
}

type turnRequest struct {
	GameID       string `json:"game_id"`
	Message      string `json:"message"`
	IncludeAudio bool   `json:"include_audio"`
}

// turnResponse uses pointers for required fields so that a missing field is
// a schema error rather than a silent zero value. is_lost is optional because
// older servers never send it.
type turnResponse struct {
	PirateResponse         *string        `json:"pirate_response"`
	MeritScore             *int           `json:"merit_score"`
	IsWon                  *bool          `json:"is_won"`
	IsLost                 *bool          `json:"is_lost"`
	NegativeCategories     map[string]int `json:"negative_categories"`
	AudioURL               *string        `json:"audio_url"`
	StreamingAudioEndpoint *string        `json:"streaming_audio_endpoint"`
}

var (
	errMissingGameID = errors.New("response is missing game_id")
	errBothTerminal  = errors.New("response reports is_won and is_lost at the same time")
)

func (r *startResponse) validate() error {
	if r.GameID == nil || strings.TrimSpace(*r.GameID) == "" {
		return errMissingGameID
	}
	return nil
}

func (r *turnResponse) validate() error {
	var errs []error
	if r.PirateResponse == nil {
		errs = append(errs, errors.New("response is missing pirate_response"))
	}
	if r.MeritScore == nil {
		errs = append(errs, errors.New("response is missing merit_score"))
	}
	if r.IsWon == nil {
		errs = append(errs, errors.New("response is missing is_won"))
	}
	if r.IsWon != nil && r.IsLost != nil && *r.IsWon && *r.IsLost {
		errs = append(errs, errBothTerminal)
	}
	for name, v := range r.NegativeCategories {
		if v > 0 {
			errs = append(errs, fmt.Errorf("negative_categories[%q] = %d is positive", name, v))
		}
	}
	return errors.Join(errs...)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
