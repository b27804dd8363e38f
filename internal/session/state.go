// Package session holds the client-side state of one player's game.
//
// A [State] is an immutable snapshot: every mutation builds a new State and
// publishes it with a single atomic swap in [Store]. Readers therefore never
// observe a half-applied turn (a new score without the matching win flag, a
// user entry without its pirate reply). Starting a new game replaces the
// whole State, which also invalidates the audio deduplication marker.
package session

import (
	"maps"
	"slices"

	"github.com/MrWong99/outwit/pkg/audio"
	"github.com/MrWong99/outwit/pkg/gameapi"
)

// Role identifies who authored a transcript entry.
type Role string

const (
	RoleUser   Role = "user"
	RolePirate Role = "pirate"
)

// Entry is one line of the conversation transcript. At most one of Audio and
// AudioURL is set.
type Entry struct {
	Role    Role
	Content string

	// Audio is owned, decoded, playable audio collected from a stream.
	Audio *audio.Clip

	// AudioURL is a legacy direct reference to server-hosted audio.
	AudioURL string
}

// HasAudio reports whether the entry carries playable audio of either kind.
func (e Entry) HasAudio() bool { return e.Audio != nil || e.AudioURL != "" }

// State is a snapshot of one session. Treat it as read-only; the slices and
// maps it holds are never mutated after publication.
type State struct {
	// GameID is empty until a game has been started.
	GameID     string
	Difficulty gameapi.Difficulty
	PirateName string

	// MeritScore is taken verbatim from the latest turn response.
	MeritScore int

	// IsWon and IsLost are terminal flags. Once one is set it stays set for
	// the rest of the session and the other can no longer become true.
	IsWon  bool
	IsLost bool

	// NegativeCategories is replaced, not merged, on every turn. Nil when the
	// last turn reported no penalties.
	NegativeCategories map[string]int

	// Transcript is append-only.
	Transcript []Entry

	// ProcessedAudioHash is the content hash of the last voice clip sent for
	// transcription, or empty.
	ProcessedAudioHash string
}

// Active reports whether a game is in progress.
func (s State) Active() bool { return s.GameID != "" }

// Finished reports whether the game reached a terminal state.
func (s State) Finished() bool { return s.IsWon || s.IsLost }

// LastUserText returns the content of the most recent user entry.
func (s State) LastUserText() (string, bool) {
	for i := len(s.Transcript) - 1; i >= 0; i-- {
		if s.Transcript[i].Role == RoleUser {
			return s.Transcript[i].Content, true
		}
	}
	return "", false
}

// Turns returns the number of user entries in the transcript.
func (s State) Turns() int {
	n := 0
	for _, e := range s.Transcript {
		if e.Role == RoleUser {
			n++
		}
	}
	return n
}

// Reply is everything a successful turn contributes to the session.
type Reply struct {
	// UserText is the trimmed message that was sent.
	UserText string

	// Result is the server's typed response.
	Result *gameapi.TurnResult

	// Audio is the collected, playable reply audio, if any. When set it takes
	// precedence over AudioURL.
	Audio *audio.Clip

	// AudioURL is the legacy direct reference, if any.
	AudioURL string
}

// withTurn returns a copy of s with reply applied.
func (s State) withTurn(r Reply) State {
	next := s
	next.Transcript = slices.Clip(s.Transcript)

	pirate := Entry{Role: RolePirate, Content: r.Result.PirateResponse}
	switch {
	case r.Audio != nil:
		pirate.Audio = r.Audio
	case r.AudioURL != "":
		pirate.AudioURL = r.AudioURL
	}
	next.Transcript = append(next.Transcript,
		Entry{Role: RoleUser, Content: r.UserText},
		pirate,
	)

	next.MeritScore = r.Result.MeritScore
	next.NegativeCategories = maps.Clone(r.Result.NegativeCategories)
	if !s.Finished() {
		next.IsWon = r.Result.IsWon
		next.IsLost = r.Result.IsLost && !r.Result.IsWon
	}
	return next
}
