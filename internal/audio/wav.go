package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const wavHeaderSize = 44

// PCM is decoded 16-bit interleaved audio.
type PCM struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// EncodeWAV frames little-endian 16-bit PCM with a canonical 44-byte header.
func EncodeWAV(pcm []byte, sampleRate int, channels int) []byte {
	if channels <= 0 {
		channels = 1
	}
	const bitsPerSample = 16
	byteRate := sampleRate * channels * (bitsPerSample / 8)
	blockAlign := channels * (bitsPerSample / 8)

	out := make([]byte, wavHeaderSize, wavHeaderSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	return append(out, pcm...)
}

// DecodeWAV parses 16-bit PCM WAV data. Chunks other than fmt and data are skipped.
func DecodeWAV(data []byte) (PCM, error) {
	if len(data) < 12 {
		return PCM{}, fmt.Errorf("wav data too short: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" {
		return PCM{}, errors.New("invalid wav: missing RIFF header")
	}
	if string(data[8:12]) != "WAVE" {
		return PCM{}, errors.New("invalid wav: missing WAVE format")
	}

	var (
		out     PCM
		haveFmt bool
	)
	offset := 12
	for offset+8 <= len(data) {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		if size < 0 || body+size > len(data) {
			if id != "data" {
				return PCM{}, fmt.Errorf("invalid wav: chunk %q overruns data", id)
			}
			// Streamed WAVs may carry a placeholder data size.
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return PCM{}, errors.New("invalid wav: short fmt chunk")
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			channels := int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			rate := int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if format != 1 {
				return PCM{}, fmt.Errorf("unsupported wav format %d (only PCM)", format)
			}
			if bits != 16 {
				return PCM{}, fmt.Errorf("unsupported wav bit depth %d (only 16-bit)", bits)
			}
			if channels < 1 || channels > 2 {
				return PCM{}, fmt.Errorf("unsupported wav channel count %d", channels)
			}
			if rate <= 0 {
				return PCM{}, errors.New("invalid wav: zero sample rate")
			}
			out.Channels = channels
			out.SampleRate = rate
			haveFmt = true
		case "data":
			if !haveFmt {
				return PCM{}, errors.New("invalid wav: data chunk before fmt chunk")
			}
			out.Samples = BytesToSamples(data[body : body+size])
			return out, nil
		}

		offset = body + size + size%2
	}
	return PCM{}, errors.New("invalid wav: missing data chunk")
}

// BytesToSamples reinterprets little-endian 16-bit PCM. A trailing odd byte is dropped.
func BytesToSamples(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return samples
}

// SamplesToBytes is the inverse of BytesToSamples.
func SamplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}
