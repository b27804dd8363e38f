package audio

import (
	"bytes"
	"testing"
)

func pcmOf(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		putSample(out, i, s)
	}
	return out
}

func TestDownmix(t *testing.T) {
	// L=100 R=200, L=-32768 R=-32768, L=32767 R=-32767
	in := pcmOf(100, 200, -32768, -32768, 32767, -32767)
	want := pcmOf(150, -32768, 0)
	if got := Downmix(in); !bytes.Equal(got, want) {
		t.Errorf("Downmix = %v, want %v", got, want)
	}
}

func TestDownmix_DropsPartialFrame(t *testing.T) {
	in := append(pcmOf(10, 20), 0x01, 0x02)
	if got := Downmix(in); len(got) != 2 {
		t.Errorf("len = %d, want 2", len(got))
	}
}

func TestResample(t *testing.T) {
	t.Run("same rate", func(t *testing.T) {
		in := pcmOf(1, 2, 3)
		if got := Resample(in, 16000, 16000); !bytes.Equal(got, in) {
			t.Error("same-rate resample should return input")
		}
	})
	t.Run("invalid rate", func(t *testing.T) {
		in := pcmOf(1, 2, 3)
		if got := Resample(in, 0, 16000); !bytes.Equal(got, in) {
			t.Error("invalid rate should return input")
		}
	})
	t.Run("downsample halves length", func(t *testing.T) {
		in := pcmOf(0, 100, 200, 300, 400, 500, 600, 700)
		got := Resample(in, 32000, 16000)
		want := pcmOf(0, 200, 400, 600)
		if !bytes.Equal(got, want) {
			t.Errorf("Resample = %v, want %v", got, want)
		}
	})
	t.Run("upsample interpolates", func(t *testing.T) {
		got := Resample(pcmOf(0, 100), 8000, 16000)
		want := pcmOf(0, 50, 100, 100)
		if !bytes.Equal(got, want) {
			t.Errorf("Resample = %v, want %v", got, want)
		}
	})
}

func TestConform(t *testing.T) {
	stereo48k := WAV{
		Format:        formatPCM,
		SampleRate:    48000,
		Channels:      2,
		BitsPerSample: 16,
		Data:          pcmOf(300, 300, 300, 300, 300, 300, 600, 600, 600, 600, 600, 600),
	}
	got, err := Conform(stereo48k, 16000)
	if err != nil {
		t.Fatalf("Conform: %v", err)
	}
	if got.Channels != 1 || got.SampleRate != 16000 {
		t.Errorf("format = %dch %dHz, want 1ch 16000Hz", got.Channels, got.SampleRate)
	}
	if want := pcmOf(300, 600); !bytes.Equal(got.Data, want) {
		t.Errorf("data = %v, want %v", got.Data, want)
	}

	// The result must wrap and parse back losslessly.
	back, err := ParseWAV(WrapPCM16(got.Data, got.SampleRate))
	if err != nil || !bytes.Equal(back.Data, got.Data) {
		t.Errorf("round trip failed: %v", err)
	}
}

func TestConform_AlreadyMatching(t *testing.T) {
	in := WAV{Format: formatPCM, SampleRate: 16000, Channels: 1, BitsPerSample: 16, Data: pcmOf(1, 2, 3)}
	got, err := Conform(in, 16000)
	if err != nil {
		t.Fatalf("Conform: %v", err)
	}
	if !bytes.Equal(got.Data, in.Data) {
		t.Error("matching input should be unchanged")
	}
}

func TestConform_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   WAV
		rate int
	}{
		{"float samples", WAV{Format: 3, SampleRate: 16000, Channels: 1, BitsPerSample: 32}, 16000},
		{"8-bit", WAV{Format: formatPCM, SampleRate: 16000, Channels: 1, BitsPerSample: 8}, 16000},
		{"surround", WAV{Format: formatPCM, SampleRate: 16000, Channels: 6, BitsPerSample: 16}, 16000},
		{"bad rate", WAV{Format: formatPCM, SampleRate: 16000, Channels: 1, BitsPerSample: 16}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Conform(tt.in, tt.rate); err == nil {
				t.Error("expected error")
			}
		})
	}
}
