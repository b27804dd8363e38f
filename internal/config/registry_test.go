package config_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/MrWong99/outwit/internal/config"
	"github.com/MrWong99/outwit/pkg/audio"
	"github.com/MrWong99/outwit/pkg/provider/stt"
)

type stubSTT struct{ lang string }

func (s stubSTT) Transcribe(context.Context, audio.Clip) (stt.Transcript, error) {
	return stt.Transcript{Text: "ahoy", Language: s.lang}, nil
}

func TestRegistry_UnknownSTT(t *testing.T) {
	t.Parallel()
	_, err := config.NewRegistry().CreateSTT(config.STTConfig{Provider: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("err = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_RegisteredSTT(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	r.RegisterSTT("stub", func(c config.STTConfig) (stt.Provider, error) {
		return stubSTT{lang: c.Language}, nil
	})

	p, err := r.CreateSTT(config.STTConfig{Provider: "stub", Language: "de"})
	if err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	tr, err := p.Transcribe(context.Background(), audio.Clip{})
	if err != nil || tr.Language != "de" {
		t.Errorf("Transcribe = %+v, %v; factory did not receive config", tr, err)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	r := config.NewRegistry()
	r.RegisterSTT("bad", func(config.STTConfig) (stt.Provider, error) { return nil, boom })

	if _, err := r.CreateSTT(config.STTConfig{Provider: "bad"}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
}

func TestRegistry_STTNames(t *testing.T) {
	t.Parallel()
	r := config.NewRegistry()
	factory := func(config.STTConfig) (stt.Provider, error) { return stubSTT{}, nil }
	r.RegisterSTT("whisper", factory)
	r.RegisterSTT("gateway", factory)

	if got := r.STTNames(); !slices.Equal(got, []string{"gateway", "whisper"}) {
		t.Errorf("STTNames = %v", got)
	}
}
