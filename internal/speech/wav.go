package speech

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	wavHeaderSize  = 44
	bitsPerSample  = 16
	bytesPerSample = bitsPerSample / 8
)

// EncodeWAV wraps 16-bit little-endian mono PCM in a RIFF/WAVE header.
func EncodeWAV(pcm []byte, sampleRate int) []byte {
	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(pcm))

	byteRate := sampleRate * bytesPerSample
	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	_ = binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bytesPerSample))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// DecodeWAV returns the PCM payload and sample rate of a 16-bit mono WAV.
// Chunks other than "fmt " and "data" are skipped.
func DecodeWAV(data []byte) ([]byte, int, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, errors.New("not a RIFF/WAVE file")
	}

	var (
		sampleRate int
		haveFormat bool
	)
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, errors.New("short fmt chunk")
			}
			audioFormat := binary.LittleEndian.Uint16(data[body:])
			channels := binary.LittleEndian.Uint16(data[body+2:])
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4:]))
			bits := binary.LittleEndian.Uint16(data[body+14:])
			if audioFormat != 1 || channels != 1 || bits != bitsPerSample {
				return nil, 0, fmt.Errorf("unsupported wav layout: format=%d channels=%d bits=%d", audioFormat, channels, bits)
			}
			haveFormat = true
		case "data":
			if !haveFormat {
				return nil, 0, errors.New("data chunk before fmt chunk")
			}
			return data[body : body+size], sampleRate, nil
		}

		// Chunks are padded to an even size.
		pos = body + size + size%2
	}
	return nil, 0, errors.New("no data chunk")
}

// PCMDuration is the playback length of 16-bit mono PCM at sampleRate.
func PCMDuration(pcmLen, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := pcmLen / bytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
