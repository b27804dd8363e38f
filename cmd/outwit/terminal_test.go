package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/outwit/internal/app"
	"github.com/MrWong99/outwit/internal/config"
	"github.com/MrWong99/outwit/internal/session"
	"github.com/MrWong99/outwit/pkg/audio"
	"github.com/MrWong99/outwit/pkg/gameapi"
	gamemock "github.com/MrWong99/outwit/pkg/gameapi/mock"
	sttmock "github.com/MrWong99/outwit/pkg/provider/stt/mock"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line     string
		wantKind commandKind
		wantArg  string
		wantDiff gameapi.Difficulty
		wantName string
		wantErr  bool
	}{
		{line: "Ahoy, captain", wantKind: cmdSay, wantArg: "Ahoy, captain"},
		{line: "/start", wantKind: cmdStart, wantDiff: gameapi.DifficultyEasy, wantName: "Kapitan"},
		{line: "/start hard", wantKind: cmdStart, wantDiff: gameapi.DifficultyHard, wantName: "Kapitan"},
		{line: "/start Medium Black Beard", wantKind: cmdStart, wantDiff: gameapi.DifficultyMedium, wantName: "Black Beard"},
		{line: "/start legendary", wantErr: true},
		{line: "/voice rec.wav", wantKind: cmdVoice, wantArg: "rec.wav"},
		{line: "/voice", wantErr: true},
		{line: "/status", wantKind: cmdStatus},
		{line: "/HELP", wantKind: cmdHelp},
		{line: "/exit", wantKind: cmdQuit},
		{line: "/dance", wantKind: cmdUnknown, wantArg: "/dance"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			c, err := parseCommand(tt.line, gameapi.DifficultyEasy, "Kapitan")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.kind != tt.wantKind || c.arg != tt.wantArg {
				t.Errorf("got kind=%d arg=%q, want kind=%d arg=%q", c.kind, c.arg, tt.wantKind, tt.wantArg)
			}
			if tt.wantKind == cmdStart && (c.difficulty != tt.wantDiff || c.pirateName != tt.wantName) {
				t.Errorf("got %s/%q, want %s/%q", c.difficulty, c.pirateName, tt.wantDiff, tt.wantName)
			}
		})
	}
}

func TestLoadClip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "message.WAV")
	if err := os.WriteFile(path, []byte("RIFF"), 0o600); err != nil {
		t.Fatal(err)
	}
	clip, err := loadClip(path)
	if err != nil {
		t.Fatalf("loadClip: %v", err)
	}
	if clip.Format != "wav" || string(clip.Data) != "RIFF" {
		t.Errorf("clip = %+v", clip)
	}
	if _, err := loadClip(filepath.Join(dir, "missing.wav")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRenderStatus(t *testing.T) {
	st := session.State{
		GameID:             "g1",
		Difficulty:         gameapi.DifficultyMedium,
		MeritScore:         25,
		NegativeCategories: map[string]int{"threat": -5, "bribe": -2},
		IsWon:              true,
	}
	got := renderStatus(st)
	for _, want := range []string{"25 / 60", "bribe -2", "threat -5", "WON"} {
		if !strings.Contains(got, want) {
			t.Errorf("status %q missing %q", got, want)
		}
	}
	if strings.Index(got, "bribe") > strings.Index(got, "threat") {
		t.Error("penalties should be listed in name order")
	}
	if !strings.Contains(renderStatus(session.State{}), "/start") {
		t.Error("idle status should point at /start")
	}
}

func TestRenderEntry_AudioMarkers(t *testing.T) {
	e := session.Entry{Role: session.RolePirate, Content: "Arrr", Audio: &audio.Clip{Data: []byte{1, 2, 3}, Format: "mpeg"}}
	if got := renderEntry(e, "Kapitan"); !strings.Contains(got, "audio/mpeg, 3 bytes") || !strings.Contains(got, "Kapitan") {
		t.Errorf("entry = %q", got)
	}
	e = session.Entry{Role: session.RolePirate, Content: "Arrr", AudioURL: "http://x/a.mp3"}
	if got := renderEntry(e, "Kapitan"); !strings.Contains(got, "http://x/a.mp3") {
		t.Errorf("entry = %q", got)
	}
}

func TestTerminal_Session(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	game := &gamemock.Service{Turns: []*gameapi.TurnResult{{PirateResponse: "Who goes there?", MeritScore: 7}}}
	a, err := app.New(cfg, app.Providers{Game: game, STT: &sttmock.Provider{}})
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	term := newTerminal(a, &out, cfg)
	in := strings.NewReader("hello before start\n/start medium Flint\nI bring word from the governor\n\n/quit\nnever sent\n")
	if err := term.Run(context.Background(), in); err != nil {
		t.Fatalf("Run: %v", err)
	}

	text := out.String()
	for _, want := range []string{
		"Please start a game first!",
		"Game started! Difficulty: medium",
		"Conversation with Flint",
		"I bring word from the governor",
		"Who goes there?",
		"7 / 60",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if game.TurnCount() != 1 {
		t.Errorf("SendTurn calls = %d, want 1", game.TurnCount())
	}
}

func TestReadLines_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	lines := readLines(ctx, strings.NewReader("one\ntwo\nthree\n"))

	if got := <-lines; got != "one" {
		t.Fatalf("first line = %q, want one", got)
	}
	cancel()

	// The reader may hand over at most the line it was already offering,
	// then it must close the channel.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-lines:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("reader did not stop after cancel")
		}
	}
}

func TestReadLines_ClosesOnEOF(t *testing.T) {
	var got []string
	for line := range readLines(context.Background(), strings.NewReader("a\nb\n")) {
		got = append(got, line)
	}
	if strings.Join(got, ",") != "a,b" {
		t.Errorf("lines = %v, want [a b]", got)
	}
}
