// Package assistant is the boundary channel adapters talk to. Every entry
// point returns a Reply; failures are logged and reworded, never returned.
package assistant

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/zombor/receipt-assistant/internal/extraction"
	"github.com/zombor/receipt-assistant/internal/failure"
	"github.com/zombor/receipt-assistant/internal/receipt"
	"github.com/zombor/receipt-assistant/internal/scanning"
	"github.com/zombor/receipt-assistant/internal/speech"
	"github.com/zombor/receipt-assistant/internal/vad"
)

// DefaultMinUtterance is the shortest utterance worth transcribing
const DefaultMinUtterance = 1700 * time.Millisecond

// Extractor runs one extraction
type Extractor interface {
	Extract(ctx context.Context, in extraction.Input) (*extraction.Result, error)
}

// Reply is what a channel sends back to the user
type Reply struct {
	Text string
	// Audio is a spoken confirmation, set only for live voice turns
	Audio    *speech.Audio
	Receipts []*receipt.Receipt
	// Err is the failure behind a diagnostic Text, for channels that log
	Err error
}

// Config tunes the assistant
type Config struct {
	MinUtterance       time.Duration
	SampleRate         int
	SpeakConfirmations bool
	VoiceID            string
	VoiceModel         string
}

func (c Config) withDefaults() Config {
	if c.MinUtterance <= 0 {
		c.MinUtterance = DefaultMinUtterance
	}
	if c.SampleRate <= 0 {
		c.SampleRate = vad.DefaultSampleRate
	}
	return c
}

// Assistant wires the extraction pipeline to the channel entry points
type Assistant struct {
	extractor   Extractor
	transcriber speech.Transcriber
	synthesizer speech.Synthesizer
	storage     receipt.Storage
	cfg         Config
}

// New creates an Assistant. synthesizer and storage may be nil.
func New(extractor Extractor, transcriber speech.Transcriber, synthesizer speech.Synthesizer, storage receipt.Storage, cfg Config) *Assistant {
	return &Assistant{
		extractor:   extractor,
		transcriber: transcriber,
		synthesizer: synthesizer,
		storage:     storage,
		cfg:         cfg.withDefaults(),
	}
}

// HandleText extracts a purchase from typed text
func (a *Assistant) HandleText(ctx context.Context, text string) Reply {
	return a.extract(ctx, "text", extraction.Input{Text: text}, nil)
}

// HandleImage extracts a purchase from a receipt photo or PDF. caption may
// be empty.
func (a *Assistant) HandleImage(ctx context.Context, image []byte, contentType, caption string) Reply {
	if !scanning.IsSupported(contentType) {
		return a.fail("image", &failure.UnsupportedInputError{MediaType: contentType})
	}
	att := &extraction.Attachment{Data: image, ContentType: contentType}
	archive := func(id int64) {
		a.archive(receipt.MediaName(id, "image", imageExt(contentType)), image)
	}
	return a.extract(ctx, "image", extraction.Input{Text: caption, Image: att}, archive)
}

// HandleAudio extracts a purchase from a recorded voice note. The reasoning
// engine decides when to transcribe it.
func (a *Assistant) HandleAudio(ctx context.Context, audio []byte, contentType, caption string) Reply {
	format, ok := speech.FormatFromMIME(contentType)
	if !ok || a.transcriber == nil || !speech.Supports(a.transcriber, format) {
		return a.fail("audio", &failure.UnsupportedInputError{MediaType: contentType})
	}
	att := &extraction.Attachment{Data: audio, ContentType: contentType}
	archive := func(id int64) {
		a.archive(receipt.MediaName(id, "audio", string(format)), audio)
	}
	return a.extract(ctx, "audio", extraction.Input{Text: caption, Audio: att}, archive)
}

// HandleUtteranceAudio handles one utterance of PCM16 mono audio cut by the
// segmenter: transcribe, extract, then optionally speak the confirmation.
// Utterances no longer than the minimum are never transcribed.
func (a *Assistant) HandleUtteranceAudio(ctx context.Context, pcm []byte) Reply {
	return a.handleUtterance(ctx, pcm, a.cfg.SampleRate)
}

func (a *Assistant) handleUtterance(ctx context.Context, pcm []byte, sampleRate int) Reply {
	duration := speech.PCMDuration(len(pcm), sampleRate)
	if duration <= a.cfg.MinUtterance {
		return a.fail("utterance", &failure.TooShortInputError{Duration: duration, Minimum: a.cfg.MinUtterance})
	}
	if a.transcriber == nil || !speech.Supports(a.transcriber, speech.FormatWAV) {
		return a.fail("utterance", &failure.UnsupportedInputError{MediaType: speech.FormatWAV.MIMEType()})
	}

	wav := speech.EncodeWAV(pcm, sampleRate)
	transcription, err := a.transcriber.Transcribe(ctx, wav, speech.FormatWAV)
	if err != nil {
		return a.fail("utterance", err)
	}
	text := strings.TrimSpace(transcription.Text)
	if text == "" {
		return Reply{Text: MsgNothingHeard}
	}
	slog.Info("Transcribed utterance", "duration", duration, "chars", len(text))

	archive := func(id int64) {
		a.archive(receipt.MediaName(id, "audio", string(speech.FormatWAV)), wav)
	}
	reply := a.extract(ctx, "utterance", extraction.Input{Text: text}, archive)
	if reply.Err == nil && a.cfg.SpeakConfirmations {
		reply.Audio = a.speak(ctx, spokenText(reply))
	}
	return reply
}

func (a *Assistant) extract(ctx context.Context, channel string, in extraction.Input, archive func(id int64)) Reply {
	result, err := a.extractor.Extract(ctx, in)
	if err != nil {
		return a.fail(channel, err)
	}
	if archive != nil {
		for _, r := range result.Receipts {
			archive(r.ReceiptID)
		}
	}
	return Reply{Text: result.Reply, Receipts: result.Receipts}
}

func (a *Assistant) fail(channel string, err error) Reply {
	slog.Error("Failed to handle message", "channel", channel, "error", err)
	return Reply{Text: Diagnose(err), Err: err}
}

func (a *Assistant) archive(name string, data []byte) {
	if a.storage == nil {
		return
	}
	if _, err := a.storage.Save(name, data); err != nil {
		slog.Error("Failed to archive media", "name", name, "error", err)
	}
}

// speak synthesizes text. Failures only cost the audio.
func (a *Assistant) speak(ctx context.Context, text string) *speech.Audio {
	if a.synthesizer == nil || text == "" {
		return nil
	}
	audio, err := a.synthesizer.Synthesize(ctx, text, a.cfg.VoiceID, a.cfg.VoiceModel)
	if err != nil {
		slog.Error("Failed to synthesize confirmation", "error", err)
		return nil
	}
	return audio
}

func spokenText(r Reply) string {
	if len(r.Receipts) == 0 {
		return r.Text
	}
	parts := make([]string, len(r.Receipts))
	for i, rc := range r.Receipts {
		parts[i] = receipt.SpokenSummary(rc)
	}
	return strings.Join(parts, " ")
}

func imageExt(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/gif":
		return "gif"
	case "image/heic":
		return "heic"
	case "image/heif":
		return "heif"
	case "application/pdf":
		return "pdf"
	default:
		return "png"
	}
}
