package whisper_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/MrWong99/outwit/pkg/apierr"
	"github.com/MrWong99/outwit/pkg/audio"
	"github.com/MrWong99/outwit/pkg/provider/stt/whisper"
)

// ---- helpers ----------------------------------------------------------------

// newMockServer creates a test server that responds to POST /inference with a
// JSON body containing responseText. It stores the uploaded file bytes in
// *uploaded and increments *callCount on every matched request.
func newMockServer(t *testing.T, responseText string, callCount *atomic.Int32, uploaded *[]byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/inference" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if callCount != nil {
			callCount.Add(1)
		}
		if uploaded != nil {
			f, _, err := r.FormFile("file")
			if err != nil {
				t.Errorf("FormFile: %v", err)
			} else {
				*uploaded, _ = io.ReadAll(f)
				f.Close()
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"text": responseText})
	}))
}

func mustNew(t *testing.T, url string, opts ...whisper.Option) *whisper.Provider {
	t.Helper()
	p, err := whisper.New(url, opts...)
	if err != nil {
		t.Fatalf("whisper.New: %v", err)
	}
	return p
}

// ---- tests ------------------------------------------------------------------

func TestNew_EmptyURL(t *testing.T) {
	if _, err := whisper.New(""); err == nil {
		t.Fatal("expected error for empty serverURL")
	}
}

func TestTranscribe_ReturnsTrimmedText(t *testing.T) {
	var calls atomic.Int32
	srv := newMockServer(t, " Ahoy there ", &calls, nil)
	defer srv.Close()

	p := mustNew(t, srv.URL, whisper.WithLanguage("pl"), whisper.WithModel("small"))
	tr, err := p.Transcribe(context.Background(), audio.Clip{Data: audio.WrapPCM16([]byte{1, 0}, 16000), Format: "wav"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Text != "Ahoy there" {
		t.Errorf("Text = %q, want %q", tr.Text, "Ahoy there")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestTranscribe_WrapsAndResamplesRawPCM(t *testing.T) {
	var uploaded []byte
	srv := newMockServer(t, "hello", nil, &uploaded)
	defer srv.Close()

	pcm := []byte{0x01, 0x02, 0x03, 0x04}
	p := mustNew(t, srv.URL, whisper.WithSampleRate(8000))
	if _, err := p.Transcribe(context.Background(), audio.Clip{Data: pcm, Format: "pcm"}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	info, err := audio.ParseWAV(uploaded)
	if err != nil {
		t.Fatalf("uploaded body is not WAV: %v", err)
	}
	if info.SampleRate != 16000 || info.Channels != 1 {
		t.Errorf("uploaded WAV = %dHz %dch, want 16000Hz mono", info.SampleRate, info.Channels)
	}
	// Two samples at 8 kHz become four at 16 kHz.
	if len(info.Data) != 8 || string(info.Data[:2]) != string(pcm[:2]) {
		t.Errorf("uploaded samples = %v", info.Data)
	}
}

func TestTranscribe_EmptyResultIsClassified(t *testing.T) {
	srv := newMockServer(t, "   ", nil, nil)
	defer srv.Close()

	_, err := mustNew(t, srv.URL).Transcribe(context.Background(), audio.Clip{Data: []byte{1, 2}, Format: "wav"})
	if !errors.Is(err, apierr.ErrTranscriptionEmpty) {
		t.Errorf("err = %v, want transcription empty", err)
	}
}

func TestTranscribe_ServerErrorIsService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := mustNew(t, srv.URL).Transcribe(context.Background(), audio.Clip{Data: []byte{1, 2}, Format: "wav"})
	if !errors.Is(err, apierr.ErrService) {
		t.Errorf("err = %v, want service", err)
	}
}

func TestTranscribe_EmptyClip(t *testing.T) {
	_, err := mustNew(t, "http://127.0.0.1:1").Transcribe(context.Background(), audio.Clip{})
	if !errors.Is(err, apierr.ErrValidation) {
		t.Errorf("err = %v, want validation", err)
	}
}

func TestTranscribe_PassesMatchingWAVThrough(t *testing.T) {
	var uploaded []byte
	srv := newMockServer(t, "hello", nil, &uploaded)
	defer srv.Close()

	wav := audio.WrapPCM16([]byte{1, 2, 3, 4}, 16000)
	if _, err := mustNew(t, srv.URL).Transcribe(context.Background(), audio.Clip{Data: wav, Format: "wav"}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if string(uploaded) != string(wav) {
		t.Error("16 kHz mono WAV should be uploaded unchanged")
	}
}

func TestTranscribe_UploadsNonWAVUnchanged(t *testing.T) {
	var uploaded []byte
	srv := newMockServer(t, "hello", nil, &uploaded)
	defer srv.Close()

	mp3 := []byte("ID3 not really mp3")
	if _, err := mustNew(t, srv.URL).Transcribe(context.Background(), audio.Clip{Data: mp3, Format: "mp3"}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if string(uploaded) != string(mp3) {
		t.Error("mp3 clip should be uploaded unchanged")
	}
}

type countingBreaker struct{ calls int }

func (b *countingBreaker) Execute(fn func() error) error {
	b.calls++
	return fn()
}

func TestTranscribe_UsesBreaker(t *testing.T) {
	srv := newMockServer(t, "hello", nil, nil)
	defer srv.Close()

	b := &countingBreaker{}
	if _, err := mustNew(t, srv.URL, whisper.WithBreaker(b)).Transcribe(context.Background(), audio.Clip{Data: []byte{1, 2}, Format: "wav"}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if b.calls != 1 {
		t.Errorf("breaker calls = %d, want 1", b.calls)
	}
}

func TestTranscribe_OpenBreakerIsTransport(t *testing.T) {
	open := errors.New("circuit breaker is open")
	b := breakerFunc(func(func() error) error { return open })

	_, err := mustNew(t, "http://127.0.0.1:1", whisper.WithBreaker(b)).Transcribe(context.Background(), audio.Clip{Data: []byte{1, 2}, Format: "wav"})
	if !errors.Is(err, apierr.ErrTransport) || !errors.Is(err, open) {
		t.Errorf("err = %v, want transport wrapping the breaker error", err)
	}
}

type breakerFunc func(func() error) error

func (f breakerFunc) Execute(fn func() error) error { return f(fn) }
