package session

import (
	"sync/atomic"

	"github.com/MrWong99/outwit/pkg/gameapi"
)

// Store owns the current [State] of one session. Each method publishes a
// complete new State with one atomic pointer swap.
//
// A session has a single logical owner (the interaction loop), so the
// read-modify-write methods do not guard against concurrent writers; the
// atomic pointer only guarantees that concurrent readers such as telemetry
// handlers see whole snapshots.
type Store struct {
	cur atomic.Pointer[State]
}

// NewStore returns a Store holding the zero State.
func NewStore() *Store {
	s := &Store{}
	s.cur.Store(&State{})
	return s
}

// Snapshot returns the current State.
func (s *Store) Snapshot() State {
	return *s.cur.Load()
}

// Begin replaces the session with a fresh one for game. Score, terminal
// flags, penalties, transcript, and the audio marker all start from zero.
func (s *Store) Begin(game *gameapi.Game) State {
	next := &State{
		GameID:     game.ID,
		Difficulty: game.Difficulty,
		PirateName: game.PirateName,
	}
	s.cur.Store(next)
	return *next
}

// ApplyTurn appends the user entry and the pirate reply and takes over the
// score, flags, and penalties of reply in one step.
func (s *Store) ApplyTurn(reply Reply) State {
	next := s.cur.Load().withTurn(reply)
	s.cur.Store(&next)
	return next
}

// SetProcessedAudioHash records hash as the last clip sent for
// transcription. An empty hash clears the marker.
func (s *Store) SetProcessedAudioHash(hash string) {
	next := *s.cur.Load()
	next.ProcessedAudioHash = hash
	s.cur.Store(&next)
}

// Reset discards the session entirely.
func (s *Store) Reset() {
	s.cur.Store(&State{})
}
