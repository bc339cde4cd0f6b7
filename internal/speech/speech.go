// Package speech holds the speech-to-text and text-to-speech ports and their
// vendor variants, plus the WAV framing used for captured audio.
package speech

import (
	"context"
	"path/filepath"
	"slices"
	"strings"
)

// Format is an audio container/codec name such as "wav" or "mp3"
type Format string

const (
	FormatWAV  Format = "wav"
	FormatMP3  Format = "mp3"
	FormatOGG  Format = "ogg"
	FormatM4A  Format = "m4a"
	FormatFLAC Format = "flac"
	FormatWebM Format = "webm"
	FormatAAC  Format = "aac"
)

// FormatFromMIME maps a MIME type like "audio/ogg; codecs=opus" to a Format.
func FormatFromMIME(mimeType string) (Format, bool) {
	base := strings.TrimSpace(strings.ToLower(strings.SplitN(mimeType, ";", 2)[0]))
	switch base {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return FormatWAV, true
	case "audio/mpeg", "audio/mp3":
		return FormatMP3, true
	case "audio/ogg", "audio/opus":
		return FormatOGG, true
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return FormatM4A, true
	case "audio/flac", "audio/x-flac":
		return FormatFLAC, true
	case "audio/webm":
		return FormatWebM, true
	case "audio/aac":
		return FormatAAC, true
	}
	return "", false
}

// FormatFromFilename maps a file extension to a Format.
func FormatFromFilename(name string) (Format, bool) {
	ext := Format(strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), "."))
	switch ext {
	case FormatWAV, FormatMP3, FormatOGG, FormatM4A, FormatFLAC, FormatWebM, FormatAAC:
		return ext, true
	case "oga", "opus":
		return FormatOGG, true
	}
	return "", false
}

// MIMEType returns the canonical MIME type for f
func (f Format) MIMEType() string {
	switch f {
	case FormatWAV:
		return "audio/wav"
	case FormatMP3:
		return "audio/mpeg"
	case FormatM4A:
		return "audio/mp4"
	default:
		return "audio/" + string(f)
	}
}

// Transcription is the text recognised in a clip
type Transcription struct {
	Text       string
	Language   string
	Confidence *float64
}

// Transcriber converts speech to text. Failures are *failure.ProviderError.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format Format) (*Transcription, error)
	SupportedFormats() []Format
	Close() error
}

// Audio is synthesized speech
type Audio struct {
	Data   []byte
	Format Format
}

// Voice describes a voice a Synthesizer offers
type Voice struct {
	ID       string
	Name     string
	Language string
}

// Synthesizer converts text to speech. Empty voiceID or model selects the
// configured default.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID, model string) (*Audio, error)
	ListVoices(ctx context.Context) ([]Voice, error)
	Close() error
}

// Supports reports whether t accepts format
func Supports(t Transcriber, format Format) bool {
	return slices.Contains(t.SupportedFormats(), format)
}
