package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/MrWong99/outwit/internal/app"
	"github.com/MrWong99/outwit/internal/config"
	"github.com/MrWong99/outwit/internal/session"
	"github.com/MrWong99/outwit/pkg/audio"
	"github.com/MrWong99/outwit/pkg/gameapi"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			Padding(0, 1)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	pirateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Bold(true)

	contentStyle = lipgloss.NewStyle().Padding(0, 2)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)

	noticeStyles = map[app.Level]lipgloss.Style{
		app.LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		app.LevelSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		app.LevelWarn:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		app.LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
)

const helpText = `Commands:
  /start [difficulty] [pirate name]  start a new game (easy, medium, hard)
  /voice <file>                      send a recorded message (wav, pcm, mp3, webm)
  /status                            show score and penalties
  /help                              show this help
  /quit                              leave the game
Anything else is sent to the pirate.

Trick the pirate into handing over the treasure. Reach the deception
threshold to win: 40 on easy, 60 on medium, 80 on hard.`

type commandKind int

const (
	cmdSay commandKind = iota
	cmdStart
	cmdVoice
	cmdStatus
	cmdHelp
	cmdQuit
	cmdUnknown
)

type command struct {
	kind commandKind
	// arg is the message for cmdSay, the file for cmdVoice, or the
	// unrecognised word for cmdUnknown.
	arg        string
	difficulty gameapi.Difficulty
	pirateName string
}

// parseCommand interprets one input line. Difficulty and pirate name fall
// back to defaults when omitted.
func parseCommand(line string, defDifficulty gameapi.Difficulty, defName string) (command, error) {
	if !strings.HasPrefix(line, "/") {
		return command{kind: cmdSay, arg: line}, nil
	}
	word, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(word) {
	case "/start":
		c := command{kind: cmdStart, difficulty: defDifficulty, pirateName: defName}
		if rest == "" {
			return c, nil
		}
		d, name, _ := strings.Cut(rest, " ")
		diff, err := gameapi.ParseDifficulty(d)
		if err != nil {
			return command{}, err
		}
		c.difficulty = diff
		if name = strings.TrimSpace(name); name != "" {
			c.pirateName = name
		}
		return c, nil
	case "/voice":
		if rest == "" {
			return command{}, fmt.Errorf("usage: /voice <file>")
		}
		return command{kind: cmdVoice, arg: rest}, nil
	case "/status":
		return command{kind: cmdStatus}, nil
	case "/help", "/?":
		return command{kind: cmdHelp}, nil
	case "/quit", "/exit":
		return command{kind: cmdQuit}, nil
	default:
		return command{kind: cmdUnknown, arg: word}, nil
	}
}

// loadClip reads a recording from disk. The format is taken from the file
// extension.
func loadClip(path string) (*audio.Clip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if format == "" {
		format = "wav"
	}
	return &audio.Clip{Data: data, Format: format}, nil
}

// terminal drives the game from a line-oriented console.
type terminal struct {
	app          *app.App
	out          io.Writer
	difficulty   gameapi.Difficulty
	pirateName   string
	rendered     int
	renderedGame string
}

func newTerminal(a *app.App, out io.Writer, cfg *config.Config) *terminal {
	d, err := gameapi.ParseDifficulty(cfg.Game.Difficulty)
	if err != nil {
		d = gameapi.DifficultyEasy
	}
	return &terminal{app: a, out: out, difficulty: d, pirateName: cfg.Game.PirateName}
}

// Run reads commands from in until EOF, /quit, or ctx is cancelled.
func (t *terminal) Run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(t.out, titleStyle.Render("Outwit the AI Pirate"))
	fmt.Fprintln(t.out, metaStyle.Render(helpText))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines := readLines(ctx, in)
	for {
		fmt.Fprint(t.out, "> ")
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if !t.handle(ctx, line) {
				return nil
			}
		}
	}
}

// handle executes one line and reports whether the loop should continue.
func (t *terminal) handle(ctx context.Context, line string) bool {
	if strings.TrimSpace(line) == "" {
		return true
	}
	c, err := parseCommand(line, t.difficulty, t.pirateName)
	if err != nil {
		t.notice(app.Notice{Level: app.LevelWarn, Text: err.Error()})
		return true
	}

	switch c.kind {
	case cmdQuit:
		return false
	case cmdHelp:
		fmt.Fprintln(t.out, metaStyle.Render(helpText))
	case cmdStatus:
		t.status(t.app.Snapshot())
	case cmdUnknown:
		t.notice(app.Notice{Level: app.LevelWarn, Text: "unknown command " + c.arg + "; try /help"})
	case cmdStart:
		t.show(t.app.StartGame(ctx, c.difficulty, c.pirateName))
	case cmdVoice:
		clip, err := loadClip(c.arg)
		if err != nil {
			t.notice(app.Notice{Level: app.LevelError, Text: "Could not read recording: " + err.Error()})
			return true
		}
		t.show(t.app.SubmitClip(ctx, clip))
	case cmdSay:
		t.show(t.app.SubmitText(ctx, line))
	}
	return true
}

func (t *terminal) show(out app.Outcome) {
	t.transcript(out.State)
	for _, n := range out.Notices {
		t.notice(n)
	}
	if out.Refresh {
		t.status(out.State)
	}
}

// transcript prints entries not yet shown. A new game starts from the top.
func (t *terminal) transcript(st session.State) {
	if st.GameID != t.renderedGame {
		t.renderedGame, t.rendered = st.GameID, 0
		if st.Active() {
			fmt.Fprintln(t.out, titleStyle.Render("Conversation with "+st.PirateName))
		}
	}
	for _, e := range st.Transcript[min(t.rendered, len(st.Transcript)):] {
		fmt.Fprintln(t.out, renderEntry(e, st.PirateName))
	}
	t.rendered = len(st.Transcript)
}

func (t *terminal) notice(n app.Notice) {
	fmt.Fprintln(t.out, noticeStyles[n.Level].Render(n.Text))
}

func (t *terminal) status(st session.State) {
	fmt.Fprintln(t.out, renderStatus(st))
}

func renderEntry(e session.Entry, pirateName string) string {
	var b strings.Builder
	if e.Role == session.RoleUser {
		b.WriteString(userStyle.Render("You"))
	} else {
		b.WriteString(pirateStyle.Render(pirateName))
	}
	b.WriteString("\n")
	b.WriteString(contentStyle.Render(e.Content))
	switch {
	case e.Audio != nil:
		b.WriteString("\n")
		b.WriteString(metaStyle.Render(fmt.Sprintf("  ♪ audio/%s, %d bytes", e.Audio.Format, len(e.Audio.Data))))
	case e.AudioURL != "":
		b.WriteString("\n")
		b.WriteString(metaStyle.Render("  ♪ " + e.AudioURL))
	}
	return b.String()
}

func renderStatus(st session.State) string {
	if !st.Active() {
		return metaStyle.Render("No game in progress. Use /start to begin.")
	}
	parts := []string{fmt.Sprintf("Deception Score: %d / %d", st.MeritScore, st.Difficulty.WinThreshold())}
	for _, cat := range slices.Sorted(maps.Keys(st.NegativeCategories)) {
		parts = append(parts, fmt.Sprintf("%s %d", cat, st.NegativeCategories[cat]))
	}
	switch {
	case st.IsWon:
		parts = append(parts, "WON")
	case st.IsLost:
		parts = append(parts, "LOST")
	}
	return metaStyle.Render(strings.Join(parts, " · "))
}
