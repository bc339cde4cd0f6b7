// Package provider resolves configured provider names to one lazily built,
// process-wide instance per capability.
package provider

import "time"

// Names selects one provider per capability
type Names struct {
	Reasoning     string
	Transcription string
	Synthesis     string
	Vision        string
	Store         string
}

// Config carries every provider's settings; only the selected ones are used
type Config struct {
	Names   Names
	Timeout time.Duration

	Gemini     GeminiConfig
	Groq       GroqConfig
	Ollama     OllamaConfig
	ElevenLabs ElevenLabsConfig
	Polly      PollyConfig

	SQLitePath  string
	BoltPath    string
	PostgresDSN string
}

// GeminiConfig configures Google Gemini
type GeminiConfig struct {
	APIKey             string
	ReasoningModel     string
	TranscriptionModel string
	VisionModel        string
}

// GroqConfig configures Groq's OpenAI-compatible API
type GroqConfig struct {
	APIKey             string
	BaseURL            string
	RequestsPerSecond  float64
	Burst              int
	ReasoningModel     string
	TranscriptionModel string
	VisionModel        string
}

// OllamaConfig configures a local Ollama server
type OllamaConfig struct {
	BaseURL        string
	ReasoningModel string
	VisionModel    string
}

// ElevenLabsConfig configures ElevenLabs speech synthesis
type ElevenLabsConfig struct {
	APIKey  string
	VoiceID string
	Model   string
}

// PollyConfig configures Amazon Polly speech synthesis
type PollyConfig struct {
	Region  string
	VoiceID string
	Engine  string
}
