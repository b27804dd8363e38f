package audio

import (
	"encoding/binary"
	"errors"
)

const (
	// bitsPerSample is fixed at 16 for signed little-endian linear PCM.
	bitsPerSample = 16

	// wavHeaderSize is the size of the canonical RIFF/WAVE header written by
	// WrapPCM16 (RIFF descriptor + 16-byte fmt chunk + data chunk header).
	wavHeaderSize = 44

	// formatPCM is the WAVE_FORMAT_PCM tag in the fmt chunk.
	formatPCM = 1
)

// WAV describes a RIFF/WAVE container located by [ParseWAV].
type WAV struct {
	// Format is the audio format tag from the fmt chunk (1 = linear PCM).
	Format int

	// SampleRate is in samples per second.
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int

	// BitsPerSample is the sample width in bits.
	BitsPerSample int

	// Data is the payload of the data chunk. It aliases the parsed buffer.
	Data []byte
}

// WrapPCM16 wraps raw 16-bit signed little-endian mono PCM samples in a
// canonical RIFF/WAVE container declaring 1 channel, 16-bit samples, and
// sampleRate. The caller guarantees len(pcm) is a multiple of the sample
// width. The result is freshly allocated; pcm is not retained.
func WrapPCM16(pcm []byte, sampleRate int) []byte {
	const channels = 1
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataSize := len(pcm)

	buf := make([]byte, wavHeaderSize+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size − 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], formatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], channels)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[wavHeaderSize:], pcm)

	return buf
}

// ParseWAV walks the chunks of a RIFF/WAVE container and returns its format
// and data payload. Unknown chunks (LIST, fact, ...) are skipped, so files
// written by browsers and recorders with extra metadata parse as well as the
// canonical layout produced by [WrapPCM16].
func ParseWAV(wav []byte) (WAV, error) {
	if len(wav) < 12 {
		return WAV{}, errors.New("audio: WAV too short to be a RIFF file")
	}
	if string(wav[0:4]) != "RIFF" {
		return WAV{}, errors.New("audio: missing RIFF header")
	}
	if string(wav[8:12]) != "WAVE" {
		return WAV{}, errors.New("audio: missing WAVE identifier")
	}

	var info WAV
	foundFmt := false

	offset := 12
	for offset+8 <= len(wav) {
		chunkID := string(wav[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[offset+4 : offset+8]))
		body := offset + 8

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || body+16 > len(wav) {
				return WAV{}, errors.New("audio: truncated fmt chunk")
			}
			f := wav[body:]
			info.Format = int(binary.LittleEndian.Uint16(f[0:2]))
			info.Channels = int(binary.LittleEndian.Uint16(f[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(f[4:8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(f[14:16]))
			foundFmt = true
		case "data":
			if !foundFmt {
				return WAV{}, errors.New("audio: data chunk before fmt chunk")
			}
			end := body + chunkSize
			if end > len(wav) {
				// Streaming writers leave the size unset; take what is there.
				end = len(wav)
			}
			info.Data = wav[body:end]
			return info, nil
		}

		// Chunks are word-aligned: pad by 1 if odd size.
		offset = body + chunkSize
		if chunkSize%2 != 0 {
			offset++
		}
	}
	return WAV{}, errors.New("audio: missing data chunk")
}
