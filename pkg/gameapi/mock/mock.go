// Package mock provides a test double for the game service client.
//
// Example:
//
//	svc := &mock.Service{
//	    Game: &gameapi.Game{ID: "g1", Difficulty: gameapi.DifficultyEasy},
//	    Turns: []*gameapi.TurnResult{{PirateResponse: "Arrr?", MeritScore: 12}},
//	}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/outwit/pkg/gameapi"
)

// StartGameCall records a single invocation of Service.StartGame.
type StartGameCall struct {
	Difficulty gameapi.Difficulty
	PirateName string
}

// SendTurnCall records a single invocation of Service.SendTurn.
type SendTurnCall struct {
	GameID    string
	Message   string
	WantAudio bool
}

// Service is a mock game service. It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	// Game is returned by StartGame. When nil a game with ID "game-1" is
	// synthesised from the call arguments.
	Game *gameapi.Game

	// StartGameErr, if non-nil, is returned from StartGame.
	StartGameErr error

	// Turns are returned by successive SendTurn calls. Once exhausted the
	// last entry is repeated. When empty a fixed reply is returned.
	Turns []*gameapi.TurnResult

	// SendTurnErr, if non-nil, is returned from SendTurn.
	SendTurnErr error

	StartGameCalls []StartGameCall
	SendTurnCalls  []SendTurnCall
}

// StartGame records the call and returns Game or StartGameErr.
func (s *Service) StartGame(_ context.Context, difficulty gameapi.Difficulty, pirateName string) (*gameapi.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StartGameCalls = append(s.StartGameCalls, StartGameCall{Difficulty: difficulty, PirateName: pirateName})
	if s.StartGameErr != nil {
		return nil, s.StartGameErr
	}
	if s.Game != nil {
		g := *s.Game
		return &g, nil
	}
	return &gameapi.Game{ID: "game-1", Difficulty: difficulty, PirateName: pirateName}, nil
}

// SendTurn records the call and returns the next scripted TurnResult or
// SendTurnErr.
func (s *Service) SendTurn(_ context.Context, gameID, message string, wantAudio bool) (*gameapi.TurnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := len(s.SendTurnCalls)
	s.SendTurnCalls = append(s.SendTurnCalls, SendTurnCall{GameID: gameID, Message: message, WantAudio: wantAudio})
	if s.SendTurnErr != nil {
		return nil, s.SendTurnErr
	}
	if len(s.Turns) == 0 {
		return &gameapi.TurnResult{PirateResponse: "Arrr."}, nil
	}
	if idx >= len(s.Turns) {
		idx = len(s.Turns) - 1
	}
	r := *s.Turns[idx]
	return &r, nil
}

// TurnCount returns the number of SendTurn calls. Thread-safe.
func (s *Service) TurnCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SendTurnCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (s *Service) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.StartGameCalls = nil
	s.SendTurnCalls = nil
}
