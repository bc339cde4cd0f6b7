package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/zombor/receipt-assistant/internal/assistant"
	"github.com/zombor/receipt-assistant/internal/mcpserver"
	"github.com/zombor/receipt-assistant/internal/receipt"
	"github.com/zombor/receipt-assistant/internal/speech"
	"github.com/zombor/receipt-assistant/internal/vad"
	"github.com/zombor/receipt-assistant/internal/webhook"
)

type webhookOptions struct {
	addr          string
	verifyToken   string
	appSecret     string
	token         string
	phoneNumberID string
	senderRate    float64
	senderBurst   int
	timeout       time.Duration
}

func runWebhook(ctx context.Context, helper *assistant.Assistant, opts webhookOptions) error {
	if opts.verifyToken == "" || opts.token == "" || opts.phoneNumberID == "" {
		return errors.New("webhook mode needs --whatsapp-verify-token, --whatsapp-token and --whatsapp-phone-number-id")
	}

	graph := webhook.NewGraphClient(opts.token, opts.phoneNumberID, opts.timeout)
	server := webhook.NewServer(helper, graph, webhook.Config{
		VerifyToken: opts.verifyToken,
		AppSecret:   opts.appSecret,
		SenderRate:  opts.senderRate,
		SenderBurst: opts.senderBurst,
	})

	errc := make(chan error, 1)
	go func() {
		errc <- server.Start(opts.addr)
	}()
	slog.Info("Webhook listening", "address", opts.addr, "endpoint", "/whatsapp_response")
	if opts.appSecret != "" {
		slog.Info("Payload signatures required")
	}

	select {
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return nil
	}
}

func runMCP(ctx context.Context, helper *assistant.Assistant, store receipt.DB) error {
	slog.Info("Serving MCP over stdio")
	return mcpserver.NewServer(helper, store, version).Run(ctx)
}

// replayFrame is the frame length the replay cuts the file into
const replayFrame = 100 * time.Millisecond

// runReplay feeds a WAV file through a live audio session in 100ms frames,
// as a microphone would, and prints every reply.
func runReplay(ctx context.Context, helper *assistant.Assistant, path string, cfg vad.Config) error {
	if path == "" {
		return errors.New("replay mode needs --replay-file")
	}
	if format, ok := speech.FormatFromFilename(path); !ok || format != speech.FormatWAV {
		return fmt.Errorf("replay file %q must be a .wav recording", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading replay file: %w", err)
	}
	pcm, rate, err := speech.DecodeWAV(data)
	if err != nil {
		return fmt.Errorf("decoding replay file: %w", err)
	}
	cfg.SampleRate = rate

	session := helper.NewAudioSession(ctx, cfg, func(r assistant.Reply) {
		fmt.Println(r.Text)
		if r.Audio != nil {
			slog.Info("Spoken confirmation synthesized", "format", r.Audio.Format, "bytes", len(r.Audio.Data))
		}
	})
	slog.Info("Replaying audio", "file", path, "sample_rate", rate, "duration", speech.PCMDuration(len(pcm), rate), "session", session.ID)

	frameBytes := int(time.Duration(rate)*replayFrame/time.Second) * 2
	elapsed := 0.0
	push := func(frame []byte) {
		session.Push(vad.Frame{Data: frame, ElapsedMS: elapsed, Start: elapsed == 0})
		elapsed += float64(replayFrame.Milliseconds())
	}

	for off := 0; off < len(pcm); off += frameBytes {
		end := min(off+frameBytes, len(pcm))
		push(pcm[off:end])
	}

	// Trailing silence lets a recording that ends mid-sentence finalize.
	timeout := cfg.SilenceTimeout
	if timeout <= 0 {
		timeout = vad.DefaultSilenceTimeout
	}
	silence := make([]byte, frameBytes)
	for i := time.Duration(0); i <= timeout; i += replayFrame {
		push(silence)
	}

	session.Close()
	return nil
}
