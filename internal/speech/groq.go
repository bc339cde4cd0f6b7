package speech

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/zombor/receipt-assistant/internal/failure"
	"github.com/zombor/receipt-assistant/internal/openaicompat"
)

// audioTranscriber is the part of openaicompat.Client used here
type audioTranscriber interface {
	Transcribe(ctx context.Context, model, filename string, audio []byte) (*openaicompat.TranscriptionResponse, error)
}

// GroqTranscriber implements Transcriber with Groq-hosted Whisper
type GroqTranscriber struct {
	client    audioTranscriber
	modelName string
	timeout   time.Duration
}

// NewGroqTranscriber creates a Whisper transcriber on a shared client
func NewGroqTranscriber(client audioTranscriber, modelName string, timeout time.Duration) *GroqTranscriber {
	if modelName == "" {
		modelName = "whisper-large-v3-turbo"
	}
	return &GroqTranscriber{client: client, modelName: modelName, timeout: timeout}
}

// SupportedFormats lists the containers Whisper accepts
func (g *GroqTranscriber) SupportedFormats() []Format {
	return []Format{FormatWAV, FormatMP3, FormatOGG, FormatM4A, FormatFLAC, FormatWebM}
}

// Transcribe uploads audio and returns its transcript
func (g *GroqTranscriber) Transcribe(ctx context.Context, audio []byte, format Format) (*Transcription, error) {
	if !Supports(g, format) {
		return nil, &failure.UnsupportedInputError{MediaType: format.MIMEType()}
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	resp, err := g.client.Transcribe(ctx, g.modelName, "audio."+string(format), audio)
	if err != nil {
		return nil, failure.NewProviderError("groq", failure.CapabilityTranscription, openaicompat.StatusCode(err), err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, failure.NewProviderError("groq", failure.CapabilityTranscription, 0, errors.New("empty transcript"))
	}
	return &Transcription{Text: text, Language: resp.Language}, nil
}

// Close is a no-op; the HTTP client is shared
func (g *GroqTranscriber) Close() error {
	return nil
}
