package session_test

import (
	"testing"

	"github.com/MrWong99/outwit/internal/session"
	"github.com/MrWong99/outwit/pkg/audio"
	"github.com/MrWong99/outwit/pkg/gameapi"
)

func begin(t *testing.T) *session.Store {
	t.Helper()
	s := session.NewStore()
	s.Begin(&gameapi.Game{ID: "g1", Difficulty: gameapi.DifficultyMedium, PirateName: "Kapitan"})
	return s
}

func TestStore_ZeroState(t *testing.T) {
	t.Parallel()
	st := session.NewStore().Snapshot()
	if st.Active() {
		t.Error("new store should not have an active game")
	}
	if _, ok := st.LastUserText(); ok {
		t.Error("LastUserText on empty transcript should report false")
	}
}

func TestStore_BeginResetsEverything(t *testing.T) {
	t.Parallel()
	s := begin(t)
	s.ApplyTurn(session.Reply{
		UserText: "hello",
		Result: &gameapi.TurnResult{
			PirateResponse:     "Arrr",
			MeritScore:         999,
			IsWon:              true,
			NegativeCategories: map[string]int{"threat": -5},
		},
		AudioURL: "http://x/a.mp3",
	})
	s.SetProcessedAudioHash("abc")

	st := s.Begin(&gameapi.Game{ID: "g2", Difficulty: gameapi.DifficultyHard, PirateName: "Barbossa"})
	if st.GameID != "g2" || st.Difficulty != gameapi.DifficultyHard || st.PirateName != "Barbossa" {
		t.Errorf("unexpected identity: %+v", st)
	}
	if st.MeritScore != 0 || st.IsWon || st.IsLost {
		t.Errorf("score/flags not reset: %+v", st)
	}
	if len(st.Transcript) != 0 || st.NegativeCategories != nil || st.ProcessedAudioHash != "" {
		t.Errorf("collections not reset: %+v", st)
	}
	if got := s.Snapshot(); got.GameID != "g2" {
		t.Errorf("Snapshot GameID = %q, want g2", got.GameID)
	}
}

func TestStore_ApplyTurn(t *testing.T) {
	t.Parallel()
	s := begin(t)
	clip := &audio.Clip{Data: []byte("RIFF"), Format: "wav"}
	st := s.ApplyTurn(session.Reply{
		UserText: "I am your long-lost brother",
		Result:   &gameapi.TurnResult{PirateResponse: "Arrr?", MeritScore: 12},
		Audio:    clip,
		AudioURL: "http://ignored",
	})

	if len(st.Transcript) != 2 {
		t.Fatalf("transcript len = %d, want 2", len(st.Transcript))
	}
	u, p := st.Transcript[0], st.Transcript[1]
	if u.Role != session.RoleUser || u.Content != "I am your long-lost brother" || u.HasAudio() {
		t.Errorf("user entry = %+v", u)
	}
	if p.Role != session.RolePirate || p.Content != "Arrr?" {
		t.Errorf("pirate entry = %+v", p)
	}
	if p.Audio != clip || p.AudioURL != "" {
		t.Errorf("pirate entry should carry only the collected clip, got %+v", p)
	}
	if st.MeritScore != 12 {
		t.Errorf("MeritScore = %d, want 12", st.MeritScore)
	}
	if got, _ := st.LastUserText(); got != "I am your long-lost brother" {
		t.Errorf("LastUserText = %q", got)
	}
	if st.Turns() != 1 {
		t.Errorf("Turns = %d, want 1", st.Turns())
	}
}

func TestStore_SnapshotsAreIsolated(t *testing.T) {
	t.Parallel()
	s := begin(t)
	before := s.Snapshot()
	s.ApplyTurn(session.Reply{UserText: "a", Result: &gameapi.TurnResult{PirateResponse: "b", MeritScore: 3}})
	first := s.Snapshot()
	s.ApplyTurn(session.Reply{UserText: "c", Result: &gameapi.TurnResult{PirateResponse: "d", MeritScore: 7}})

	if len(before.Transcript) != 0 || before.MeritScore != 0 {
		t.Errorf("earlier snapshot changed: %+v", before)
	}
	if len(first.Transcript) != 2 || first.MeritScore != 3 {
		t.Errorf("first snapshot changed: %+v", first)
	}
	if got := s.Snapshot(); len(got.Transcript) != 4 {
		t.Errorf("transcript len = %d, want 4", len(got.Transcript))
	}
}

func TestStore_PenaltiesReplaced(t *testing.T) {
	t.Parallel()
	s := begin(t)
	pen := map[string]int{"threat": -10}
	s.ApplyTurn(session.Reply{UserText: "a", Result: &gameapi.TurnResult{PirateResponse: "b", NegativeCategories: pen}})
	pen["threat"] = -99

	st := s.Snapshot()
	if st.NegativeCategories["threat"] != -10 {
		t.Errorf("penalties aliased caller map: %v", st.NegativeCategories)
	}

	st = s.ApplyTurn(session.Reply{UserText: "c", Result: &gameapi.TurnResult{PirateResponse: "d"}})
	if st.NegativeCategories != nil {
		t.Errorf("penalties should be replaced, got %v", st.NegativeCategories)
	}
}

func TestStore_TerminalFlagsSticky(t *testing.T) {
	t.Parallel()
	s := begin(t)
	s.ApplyTurn(session.Reply{UserText: "a", Result: &gameapi.TurnResult{PirateResponse: "b", IsWon: true, MeritScore: 80}})
	st := s.ApplyTurn(session.Reply{UserText: "c", Result: &gameapi.TurnResult{PirateResponse: "d", IsLost: true, MeritScore: 10}})

	if !st.IsWon || st.IsLost {
		t.Errorf("flags = won:%v lost:%v, want won only", st.IsWon, st.IsLost)
	}
	if !st.Finished() {
		t.Error("Finished should be true")
	}
	if st.MeritScore != 10 {
		t.Errorf("MeritScore = %d, want latest value 10", st.MeritScore)
	}
}

func TestStore_ProcessedAudioHash(t *testing.T) {
	t.Parallel()
	s := begin(t)
	s.SetProcessedAudioHash("h1")
	if got := s.Snapshot().ProcessedAudioHash; got != "h1" {
		t.Errorf("hash = %q, want h1", got)
	}
	s.SetProcessedAudioHash("")
	if got := s.Snapshot().ProcessedAudioHash; got != "" {
		t.Errorf("hash = %q, want empty", got)
	}
}

func TestStore_Reset(t *testing.T) {
	t.Parallel()
	s := begin(t)
	s.SetProcessedAudioHash("h1")
	s.Reset()
	if st := s.Snapshot(); st.Active() || st.ProcessedAudioHash != "" {
		t.Errorf("Reset left state behind: %+v", st)
	}
}
