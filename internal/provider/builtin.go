package provider

import (
	"context"
	"sync"

	"github.com/zombor/receipt-assistant/internal/openaicompat"
	"github.com/zombor/receipt-assistant/internal/receipt"
	"github.com/zombor/receipt-assistant/internal/reasoning"
	"github.com/zombor/receipt-assistant/internal/scanning"
	"github.com/zombor/receipt-assistant/internal/speech"
)

const defaultGroqBaseURL = "https://api.groq.com/openai/v1"

// builtinFactories wires every shipped provider to cfg. Groq variants share
// one rate-limited HTTP client.
func builtinFactories(cfg Config) Factories {
	groqClient := sync.OnceValue(func() *openaicompat.Client {
		baseURL := cfg.Groq.BaseURL
		if baseURL == "" {
			baseURL = defaultGroqBaseURL
		}
		return openaicompat.New(baseURL, cfg.Groq.APIKey,
			openaicompat.WithRateLimit(cfg.Groq.RequestsPerSecond, cfg.Groq.Burst))
	})

	return Factories{
		Reasoning: map[string]Factory[reasoning.Reasoner]{
			"gemini": func(ctx context.Context) (reasoning.Reasoner, error) {
				return reasoning.NewGemini(ctx, cfg.Gemini.APIKey, cfg.Gemini.ReasoningModel, cfg.Timeout)
			},
			"groq": func(context.Context) (reasoning.Reasoner, error) {
				if err := requireKey("groq", cfg.Groq.APIKey); err != nil {
					return nil, err
				}
				return reasoning.NewGroq(groqClient(), cfg.Groq.ReasoningModel, cfg.Timeout), nil
			},
			"ollama": func(context.Context) (reasoning.Reasoner, error) {
				return reasoning.NewOllama(cfg.Ollama.BaseURL, cfg.Ollama.ReasoningModel, cfg.Timeout), nil
			},
		},
		Transcription: map[string]Factory[speech.Transcriber]{
			"gemini": func(ctx context.Context) (speech.Transcriber, error) {
				return speech.NewGeminiTranscriber(ctx, cfg.Gemini.APIKey, cfg.Gemini.TranscriptionModel, cfg.Timeout)
			},
			"groq": func(context.Context) (speech.Transcriber, error) {
				if err := requireKey("groq", cfg.Groq.APIKey); err != nil {
					return nil, err
				}
				return speech.NewGroqTranscriber(groqClient(), cfg.Groq.TranscriptionModel, cfg.Timeout), nil
			},
		},
		Synthesis: map[string]Factory[speech.Synthesizer]{
			"elevenlabs": func(context.Context) (speech.Synthesizer, error) {
				return speech.NewElevenLabs(cfg.ElevenLabs.APIKey, cfg.ElevenLabs.VoiceID, cfg.ElevenLabs.Model, cfg.Timeout)
			},
			"polly": func(ctx context.Context) (speech.Synthesizer, error) {
				return speech.NewPolly(ctx, cfg.Polly.Region, cfg.Polly.VoiceID, cfg.Polly.Engine, cfg.Timeout)
			},
		},
		Vision: map[string]Factory[scanning.Analyzer]{
			"gemini": func(ctx context.Context) (scanning.Analyzer, error) {
				return scanning.NewGemini(ctx, cfg.Gemini.APIKey, cfg.Gemini.VisionModel, cfg.Timeout)
			},
			"groq": func(context.Context) (scanning.Analyzer, error) {
				if err := requireKey("groq", cfg.Groq.APIKey); err != nil {
					return nil, err
				}
				return scanning.NewGroq(groqClient(), cfg.Groq.VisionModel, cfg.Timeout), nil
			},
			"ollama": func(context.Context) (scanning.Analyzer, error) {
				return scanning.NewOllama(cfg.Ollama.BaseURL, cfg.Ollama.VisionModel, cfg.Timeout), nil
			},
		},
		Store: map[string]Factory[receipt.DB]{
			"sqlite": func(context.Context) (receipt.DB, error) {
				return receipt.NewSQLite(cfg.SQLitePath)
			},
			"bolt": func(context.Context) (receipt.DB, error) {
				return receipt.NewBoltDB(cfg.BoltPath)
			},
			"postgres": func(ctx context.Context) (receipt.DB, error) {
				return receipt.NewPostgres(ctx, cfg.PostgresDSN)
			},
		},
	}
}

func requireKey(provider, key string) error {
	if key == "" {
		return &MissingKeyError{Provider: provider}
	}
	return nil
}

// MissingKeyError reports a selected provider without credentials
type MissingKeyError struct {
	Provider string
}

func (e *MissingKeyError) Error() string {
	return e.Provider + " api key is required"
}
