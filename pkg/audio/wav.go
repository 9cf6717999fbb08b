package audio

import (
	"encoding/binary"
	"fmt"
	"os"
)

// wavHeaderSize is the byte length of a canonical PCM WAV header.
const wavHeaderSize = 44

// WriteWAV writes 16-bit mono PCM to path as a canonical RIFF/WAVE file.
// Speech recognition providers consume these temp files; the caller owns
// their lifecycle.
func WriteWAV(path string, pcm []byte, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audio: create wav %q: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(WAVHeader(len(pcm), sampleRate)); err != nil {
		return fmt.Errorf("audio: write wav header: %w", err)
	}
	if _, err := f.Write(pcm); err != nil {
		return fmt.Errorf("audio: write wav data: %w", err)
	}
	return nil
}

// WAVHeader builds a 44-byte canonical PCM WAV header for dataLen bytes of
// 16-bit mono audio at sampleRate.
func WAVHeader(dataLen, sampleRate int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	h := make([]byte, wavHeaderSize)
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], uint32(36+dataLen))
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(h[20:22], 1)  // PCM format tag
	binary.LittleEndian.PutUint16(h[22:24], channels)
	binary.LittleEndian.PutUint32(h[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(h[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(h[34:36], bitsPerSample)
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], uint32(dataLen))
	return h
}

// StripWAVHeader returns the PCM payload of a canonical 44-byte-header WAV
// buffer. Buffers without a RIFF magic are returned unchanged — some
// synthesis providers already return raw PCM.
func StripWAVHeader(data []byte) []byte {
	if len(data) > wavHeaderSize && string(data[0:4]) == "RIFF" {
		return data[wavHeaderSize:]
	}
	return data
}
