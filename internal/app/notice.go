package app

import (
	"errors"
	"fmt"

	"github.com/MrWong99/outwit/internal/session"
	"github.com/MrWong99/outwit/pkg/apierr"
)

// Level is the severity of a [Notice].
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarn
	LevelError
)

// String returns the lower-case level name.
func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelSuccess:
		return "success"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Notice is an inline message for the player.
type Notice struct {
	Level Level
	Text  string
}

// Outcome is the result of one player event.
type Outcome struct {
	// State is the session after the event.
	State session.State

	// Notices are shown once, in order.
	Notices []Notice

	// Refresh asks the front end to redraw immediately.
	Refresh bool
}

func noGameNotice() Notice {
	return Notice{Level: LevelError, Text: "Please start a game first!"}
}

// errorNotice renders err for the player. Local validation problems are
// warnings shown verbatim; everything else is an error prefixed with what
// was being attempted.
func errorNotice(prefix string, err error) Notice {
	var e *apierr.Error
	if errors.As(err, &e) && e.Kind == apierr.KindValidation {
		return Notice{Level: LevelWarn, Text: e.Detail}
	}
	return Notice{Level: LevelError, Text: prefix + ": " + describe(err)}
}

// describe renders err without the operation prefix the client adds.
func describe(err error) string {
	var e *apierr.Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	switch e.Kind {
	case apierr.KindService:
		switch {
		case e.Detail != "":
			return "API Error: " + e.Detail
		case e.Status != 0:
			return fmt.Sprintf("HTTP %d", e.Status)
		}
		return "service error"
	case apierr.KindTransport:
		if e.Detail != "" {
			return "service " + e.Detail
		}
		if e.Err != nil {
			return "service unreachable (" + e.Err.Error() + ")"
		}
		return "service unreachable"
	default:
		if e.Detail != "" {
			return e.Detail
		}
		if e.Err != nil {
			return e.Err.Error()
		}
		return e.Kind.String() + " error"
	}
}
