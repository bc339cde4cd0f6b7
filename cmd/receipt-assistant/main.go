package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/receipt-assistant/internal/assistant"
	"github.com/zombor/receipt-assistant/internal/extraction"
	"github.com/zombor/receipt-assistant/internal/provider"
	"github.com/zombor/receipt-assistant/internal/receipt"
	"github.com/zombor/receipt-assistant/internal/reasoning"
	"github.com/zombor/receipt-assistant/internal/vad"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("receipt-assistant")
	var (
		mode     = fs.StringLong("mode", "webhook", "Run mode: 'webhook', 'mcp' or 'replay'")
		addr     = fs.StringLong("addr", ":8001", "Webhook listen address")
		logLevel = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")

		reasoningName     = fs.StringLong("reasoning", "gemini", "Reasoning provider: gemini, groq or ollama")
		transcriptionName = fs.StringLong("transcription", "gemini", "Speech-to-text provider: gemini or groq")
		synthesisName     = fs.StringLong("synthesis", provider.Disabled, "Text-to-speech provider: elevenlabs, polly or none")
		visionName        = fs.StringLong("vision", "gemini", "Vision provider: gemini, groq or ollama")
		storeName         = fs.StringLong("store", "sqlite", "Store: sqlite, bolt or postgres")
		providerTimeout   = fs.DurationLong("provider-timeout", 25*time.Second, "Timeout for each provider call")

		geminiKey                = fs.StringLong("gemini-key", "", "Google Gemini API key")
		geminiReasoningModel     = fs.StringLong("gemini-reasoning-model", "gemini-2.0-flash", "Gemini model for reasoning")
		geminiTranscriptionModel = fs.StringLong("gemini-transcription-model", "gemini-2.0-flash", "Gemini model for transcription")
		geminiVisionModel        = fs.StringLong("gemini-vision-model", "gemini-2.0-flash", "Gemini model for receipt images")

		groqKey                = fs.StringLong("groq-key", "", "Groq API key")
		groqURL                = fs.StringLong("groq-url", "https://api.groq.com/openai/v1", "Groq OpenAI-compatible base URL")
		groqRPS                = fs.Float64Long("groq-rps", 0, "Maximum Groq requests per second (0 = unlimited)")
		groqBurst              = fs.IntLong("groq-burst", 1, "Groq request burst")
		groqReasoningModel     = fs.StringLong("groq-reasoning-model", "llama-3.3-70b-versatile", "Groq model for reasoning")
		groqTranscriptionModel = fs.StringLong("groq-transcription-model", "whisper-large-v3", "Groq model for transcription")
		groqVisionModel        = fs.StringLong("groq-vision-model", "meta-llama/llama-4-scout-17b-16e-instruct", "Groq model for receipt images")

		ollamaURL            = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaReasoningModel = fs.StringLong("ollama-reasoning-model", "llama3.1", "Ollama model for reasoning")
		ollamaVisionModel    = fs.StringLong("ollama-vision-model", "llava", "Ollama model for receipt images")

		elevenLabsKey   = fs.StringLong("elevenlabs-key", "", "ElevenLabs API key")
		elevenLabsVoice = fs.StringLong("elevenlabs-voice", "", "ElevenLabs voice id")
		elevenLabsModel = fs.StringLong("elevenlabs-model", "eleven_multilingual_v2", "ElevenLabs model")
		pollyRegion     = fs.StringLong("polly-region", "us-east-1", "Amazon Polly region")
		pollyVoice      = fs.StringLong("polly-voice", "Joanna", "Amazon Polly voice id")
		pollyEngine     = fs.StringLong("polly-engine", "neural", "Amazon Polly engine")

		sqlitePath  = fs.StringLong("sqlite-path", "receipts.db", "SQLite database file path")
		boltPath    = fs.StringLong("bolt-path", "receipts.bolt", "BoltDB database file path")
		postgresDSN = fs.StringLong("postgres-dsn", "", "Postgres connection string")
		mediaDir    = fs.StringLong("media-dir", "", "Directory to archive receipt media (optional)")

		maxRounds          = fs.IntLong("max-rounds", extraction.DefaultMaxRounds, "Maximum reasoning rounds per message")
		temperature        = fs.Float64Long("temperature", 0.1, "Reasoning temperature")
		silenceThreshold   = fs.Float64Long("silence-threshold", vad.DefaultThreshold, "RMS energy below which audio counts as silence")
		silenceTimeout     = fs.DurationLong("silence-timeout", vad.DefaultSilenceTimeout, "Silence that ends an utterance")
		minUtterance       = fs.DurationLong("min-utterance", assistant.DefaultMinUtterance, "Utterances this short or shorter are discarded")
		sampleRate         = fs.IntLong("sample-rate", vad.DefaultSampleRate, "Sample rate of live PCM audio")
		speakConfirmations = fs.BoolLong("speak-confirmations", "Synthesize spoken confirmations for voice utterances")

		verifyToken   = fs.StringLong("whatsapp-verify-token", "", "Webhook verification token")
		appSecret     = fs.StringLong("whatsapp-app-secret", "", "App secret for payload signatures (optional)")
		whatsappToken = fs.StringLong("whatsapp-token", "", "WhatsApp Cloud API access token")
		phoneNumberID = fs.StringLong("whatsapp-phone-number-id", "", "WhatsApp phone number id")
		senderRate    = fs.Float64Long("sender-rate", 0.5, "Messages per second allowed per sender (0 = unlimited)")
		senderBurst   = fs.IntLong("sender-burst", 3, "Message burst allowed per sender")

		replayFile = fs.StringLong("replay-file", "", "WAV file to replay in replay mode")

		showVersion = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_ASSISTANT"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := setupLogging(*logLevel, *mode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Resolve providers; unknown names fail here, before any work
	slog.Info("Selecting providers...",
		"reasoning", *reasoningName, "transcription", *transcriptionName,
		"synthesis", *synthesisName, "vision", *visionName, "store", *storeName)
	selector, err := provider.NewSelector(provider.Config{
		Names: provider.Names{
			Reasoning:     *reasoningName,
			Transcription: *transcriptionName,
			Synthesis:     *synthesisName,
			Vision:        *visionName,
			Store:         *storeName,
		},
		Timeout: *providerTimeout,
		Gemini: provider.GeminiConfig{
			APIKey:             *geminiKey,
			ReasoningModel:     *geminiReasoningModel,
			TranscriptionModel: *geminiTranscriptionModel,
			VisionModel:        *geminiVisionModel,
		},
		Groq: provider.GroqConfig{
			APIKey:             *groqKey,
			BaseURL:            *groqURL,
			RequestsPerSecond:  *groqRPS,
			Burst:              *groqBurst,
			ReasoningModel:     *groqReasoningModel,
			TranscriptionModel: *groqTranscriptionModel,
			VisionModel:        *groqVisionModel,
		},
		Ollama: provider.OllamaConfig{
			BaseURL:        *ollamaURL,
			ReasoningModel: *ollamaReasoningModel,
			VisionModel:    *ollamaVisionModel,
		},
		ElevenLabs: provider.ElevenLabsConfig{
			APIKey:  *elevenLabsKey,
			VoiceID: *elevenLabsVoice,
			Model:   *elevenLabsModel,
		},
		Polly: provider.PollyConfig{
			Region:  *pollyRegion,
			VoiceID: *pollyVoice,
			Engine:  *pollyEngine,
		},
		SQLitePath:  *sqlitePath,
		BoltPath:    *boltPath,
		PostgresDSN: *postgresDSN,
	})
	if err != nil {
		slog.Error("Invalid provider configuration", "error", err)
		os.Exit(1)
	}
	defer selector.Close()

	slog.Info("Initializing providers...")
	if err := selector.Warm(ctx); err != nil {
		slog.Error("Failed to initialize providers", "error", err)
		os.Exit(1)
	}

	// Warm succeeded, so these lookups return cached instances
	reasoner, _ := selector.Reasoner(ctx)
	transcriber, _ := selector.Transcriber(ctx)
	synthesizer, _ := selector.Synthesizer(ctx)
	analyzer, _ := selector.Analyzer(ctx)
	store, _ := selector.Store(ctx)

	var storage receipt.Storage
	if *mediaDir != "" {
		slog.Info("Initializing media archive...", "path", *mediaDir)
		local, err := receipt.NewLocalStorage(*mediaDir)
		if err != nil {
			slog.Error("Failed to initialize media archive", "error", err)
			os.Exit(1)
		}
		storage = local
	}

	orchestrator := extraction.New(reasoner, store, analyzer, transcriber, extraction.Config{
		MaxRounds:   *maxRounds,
		Temperature: reasoning.Float(*temperature),
	})

	assistantCfg := assistant.Config{
		MinUtterance:       *minUtterance,
		SampleRate:         *sampleRate,
		SpeakConfirmations: *speakConfirmations,
	}
	// synthesizer is nil when synthesis is disabled
	helper := assistant.New(orchestrator, transcriber, synthesizer, storage, assistantCfg)

	switch *mode {
	case "webhook":
		err = runWebhook(ctx, helper, webhookOptions{
			addr:          *addr,
			verifyToken:   *verifyToken,
			appSecret:     *appSecret,
			token:         *whatsappToken,
			phoneNumberID: *phoneNumberID,
			senderRate:    *senderRate,
			senderBurst:   *senderBurst,
			timeout:       *providerTimeout,
		})
	case "mcp":
		err = runMCP(ctx, helper, store)
	case "replay":
		err = runReplay(ctx, helper, *replayFile, vad.Config{
			Threshold:      *silenceThreshold,
			SilenceTimeout: *silenceTimeout,
			SampleRate:     *sampleRate,
		})
	default:
		err = fmt.Errorf("invalid mode %q (valid: webhook, mcp, replay)", *mode)
	}
	if err != nil {
		slog.Error("Exiting", "mode", *mode, "error", err)
		os.Exit(1)
	}
	slog.Info("Shutting down...")
}

// setupLogging installs the default logger. MCP mode owns stdout, so logs go
// to stderr in every mode.
func setupLogging(level, mode string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler).With("mode", mode))
	return nil
}
