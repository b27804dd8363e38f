package audio

import (
	"encoding/binary"
	"fmt"
)

// Conform converts a 16-bit PCM WAV to mono at sampleRate, the input format
// speech recognisers expect. Stereo is downmixed first, then resampled. A WAV
// that already matches is returned unchanged.
func Conform(w WAV, sampleRate int) (WAV, error) {
	if w.Format != formatPCM || w.BitsPerSample != bitsPerSample {
		return WAV{}, fmt.Errorf("audio: cannot conform format %d with %d-bit samples", w.Format, w.BitsPerSample)
	}
	if sampleRate <= 0 {
		return WAV{}, fmt.Errorf("audio: invalid target sample rate %d", sampleRate)
	}

	pcm := w.Data
	switch w.Channels {
	case 1:
	case 2:
		pcm = Downmix(pcm)
	default:
		return WAV{}, fmt.Errorf("audio: cannot conform %d channels", w.Channels)
	}
	pcm = Resample(pcm, w.SampleRate, sampleRate)

	return WAV{
		Format:        formatPCM,
		SampleRate:    sampleRate,
		Channels:      1,
		BitsPerSample: bitsPerSample,
		Data:          pcm,
	}, nil
}

// Downmix averages interleaved 16-bit stereo frames into mono. A trailing
// partial frame is dropped.
func Downmix(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(sample(pcm, 2*i))
		r := int32(sample(pcm, 2*i+1))
		putSample(out, i, int16((l+r)/2))
	}
	return out
}

// Resample converts 16-bit mono PCM from srcRate to dstRate by linear
// interpolation. Equal or invalid rates return pcm unchanged.
func Resample(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	n := len(pcm) / 2
	outN := int(int64(n) * int64(dstRate) / int64(srcRate))
	out := make([]byte, outN*2)
	step := float64(srcRate) / float64(dstRate)

	for i := range outN {
		pos := float64(i) * step
		idx := int(pos)
		frac := pos - float64(idx)

		s0 := sample(pcm, idx)
		s1 := s0
		if idx+1 < n {
			s1 = sample(pcm, idx+1)
		}
		putSample(out, i, int16(float64(s0)*(1-frac)+float64(s1)*frac))
	}
	return out
}

func sample(pcm []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(pcm[2*i:]))
}

func putSample(pcm []byte, i int, s int16) {
	binary.LittleEndian.PutUint16(pcm[2*i:], uint16(s))
}
