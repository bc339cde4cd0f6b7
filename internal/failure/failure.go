// Package failure holds the error taxonomy shared by every port and the
// pipeline. Errors carry enough context for logs; turning them into text a
// user can read is left to the channel-facing layer.
package failure

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Capability names the kind of backend that failed.
type Capability string

const (
	CapabilityReasoning     Capability = "reasoning"
	CapabilityTranscription Capability = "transcription"
	CapabilitySynthesis     Capability = "synthesis"
	CapabilityVision        Capability = "vision"
	CapabilityMedia         Capability = "media"
)

// ProviderError reports a network, auth or rate-limit failure from a backend.
type ProviderError struct {
	Provider   string
	Capability Capability
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s provider (status %d): %v", e.Provider, e.Capability, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s provider: %v", e.Provider, e.Capability, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the call ran out of time.
func (e *ProviderError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// RateLimited reports whether the backend refused the call for quota reasons.
func (e *ProviderError) RateLimited() bool {
	return e.StatusCode == 429
}

// NewProviderError wraps err unless it already is a ProviderError.
func NewProviderError(provider string, capability Capability, statusCode int, err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: provider, Capability: capability, StatusCode: statusCode, Err: err}
}

// ValidationError reports structured-output arguments that do not match the
// receipt schema.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid receipt: %s: %v", e.Reason, e.Err)
	}
	return "invalid receipt: " + e.Reason
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a failed store operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// UnsupportedInputError reports media a channel sent that nothing can handle.
type UnsupportedInputError struct {
	MediaType string
}

func (e *UnsupportedInputError) Error() string {
	return fmt.Sprintf("unsupported input: %q", e.MediaType)
}

// TooShortInputError reports an utterance below the minimum duration.
type TooShortInputError struct {
	Duration time.Duration
	Minimum  time.Duration
}

func (e *TooShortInputError) Error() string {
	return fmt.Sprintf("utterance too short: %s (minimum %s)", e.Duration, e.Minimum)
}
