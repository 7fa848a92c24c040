package audio

import (
	"encoding/binary"
	"errors"
)

// DecodeWAV parses a complete RIFF/WAVE file and returns its PCM16 samples.
// Only 16-bit PCM data is supported.
func DecodeWAV(data []byte) (pcm []int16, sampleRate int, channels int, err error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, 0, errors.New("invalid wav header")
	}

	bitsPerSample := 0
	offset := 12
	dataOffset := -1
	dataSize := 0
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		offset += 8
		if chunkSize < 0 {
			return nil, 0, 0, errors.New("invalid wav chunk size")
		}
		if offset+chunkSize > len(data) {
			chunkSize = len(data) - offset
		}

		switch chunkID {
		case "fmt ":
			if chunkSize >= 16 {
				channels = int(binary.LittleEndian.Uint16(data[offset+2 : offset+4]))
				sampleRate = int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
				bitsPerSample = int(binary.LittleEndian.Uint16(data[offset+14 : offset+16]))
			}
		case "data":
			dataOffset = offset
			dataSize = chunkSize
		}

		offset += chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}

	if sampleRate <= 0 || channels <= 0 {
		return nil, 0, 0, errors.New("wav fmt chunk not found")
	}
	if bitsPerSample != 16 {
		return nil, 0, 0, errors.New("unsupported wav bits per sample")
	}
	if dataOffset < 0 || dataSize <= 0 || dataOffset+dataSize > len(data) {
		return nil, 0, 0, errors.New("wav data chunk not found")
	}
	return BytesToInt16Slice(data[dataOffset : dataOffset+dataSize]), sampleRate, channels, nil
}

// DownmixMono averages interleaved multi-channel PCM16 down to one channel.
func DownmixMono(pcm []int16, channels int) []int16 {
	if channels <= 1 || len(pcm) == 0 {
		return pcm
	}
	frames := len(pcm) / channels
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		sum := 0
		for ch := 0; ch < channels; ch++ {
			sum += int(pcm[i*channels+ch])
		}
		out[i] = int16(sum / channels)
	}
	return out
}
