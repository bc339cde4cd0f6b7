package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/zombor/receipt-assistant/internal/receipt"
	"github.com/zombor/receipt-assistant/internal/reasoning"
	"github.com/zombor/receipt-assistant/internal/scanning"
	"github.com/zombor/receipt-assistant/internal/speech"
)

// Disabled turns off an optional capability (synthesis)
const Disabled = "none"

// UnknownProviderError reports a name with no registered implementation
type UnknownProviderError struct {
	Capability string
	Name       string
	Known      []string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown %s provider %q (known: %s)", e.Capability, e.Name, strings.Join(e.Known, ", "))
}

// Factory builds one provider instance
type Factory[T any] func(ctx context.Context) (T, error)

// Factories maps provider names to constructors per capability
type Factories struct {
	Reasoning     map[string]Factory[reasoning.Reasoner]
	Transcription map[string]Factory[speech.Transcriber]
	Synthesis     map[string]Factory[speech.Synthesizer]
	Vision        map[string]Factory[scanning.Analyzer]
	Store         map[string]Factory[receipt.DB]
}

// lazy builds its value once; later calls get the same value or error
type lazy[T any] struct {
	once  sync.Once
	build Factory[T]
	val   T
	err   error
	built bool
}

func (l *lazy[T]) get(ctx context.Context) (T, error) {
	l.once.Do(func() {
		l.val, l.err = l.build(ctx)
		l.built = l.err == nil
	})
	return l.val, l.err
}

func resolve[T any](capability, name string, factories map[string]Factory[T]) (*lazy[T], error) {
	f, ok := factories[name]
	if !ok {
		return nil, &UnknownProviderError{
			Capability: capability,
			Name:       name,
			Known:      slices.Sorted(maps.Keys(factories)),
		}
	}
	return &lazy[T]{build: f}, nil
}

// Selector hands out the configured provider for each capability
type Selector struct {
	names         Names
	reasoning     *lazy[reasoning.Reasoner]
	transcription *lazy[speech.Transcriber]
	synthesis     *lazy[speech.Synthesizer]
	vision        *lazy[scanning.Analyzer]
	store         *lazy[receipt.DB]
}

// NewSelector validates cfg.Names against the built-in providers
func NewSelector(cfg Config) (*Selector, error) {
	return NewSelectorWithFactories(cfg.Names, builtinFactories(cfg))
}

// NewSelectorWithFactories validates names against factories. Nothing is
// constructed until first use.
func NewSelectorWithFactories(names Names, factories Factories) (*Selector, error) {
	s := &Selector{names: names}
	var errs []error
	var err error

	if s.reasoning, err = resolve("reasoning", names.Reasoning, factories.Reasoning); err != nil {
		errs = append(errs, err)
	}
	if s.transcription, err = resolve("transcription", names.Transcription, factories.Transcription); err != nil {
		errs = append(errs, err)
	}
	if names.Synthesis != Disabled {
		if s.synthesis, err = resolve("synthesis", names.Synthesis, factories.Synthesis); err != nil {
			errs = append(errs, err)
		}
	}
	if s.vision, err = resolve("vision", names.Vision, factories.Vision); err != nil {
		errs = append(errs, err)
	}
	if s.store, err = resolve("store", names.Store, factories.Store); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return s, nil
}

// Names returns the selected provider names
func (s *Selector) Names() Names {
	return s.names
}

// Reasoner returns the process-wide reasoning provider
func (s *Selector) Reasoner(ctx context.Context) (reasoning.Reasoner, error) {
	return s.reasoning.get(ctx)
}

// Transcriber returns the process-wide speech-to-text provider
func (s *Selector) Transcriber(ctx context.Context) (speech.Transcriber, error) {
	return s.transcription.get(ctx)
}

// Synthesizer returns the process-wide text-to-speech provider, or nil when
// synthesis is disabled
func (s *Selector) Synthesizer(ctx context.Context) (speech.Synthesizer, error) {
	if s.synthesis == nil {
		return nil, nil
	}
	return s.synthesis.get(ctx)
}

// Analyzer returns the process-wide vision provider
func (s *Selector) Analyzer(ctx context.Context) (scanning.Analyzer, error) {
	return s.vision.get(ctx)
}

// Store returns the process-wide structured store
func (s *Selector) Store(ctx context.Context) (receipt.DB, error) {
	return s.store.get(ctx)
}

// Warm constructs every selected provider so configuration errors such as
// missing keys surface at startup
func (s *Selector) Warm(ctx context.Context) error {
	var errs []error
	if _, err := s.Reasoner(ctx); err != nil {
		errs = append(errs, fmt.Errorf("reasoning provider %q: %w", s.names.Reasoning, err))
	}
	if _, err := s.Transcriber(ctx); err != nil {
		errs = append(errs, fmt.Errorf("transcription provider %q: %w", s.names.Transcription, err))
	}
	if _, err := s.Synthesizer(ctx); err != nil {
		errs = append(errs, fmt.Errorf("synthesis provider %q: %w", s.names.Synthesis, err))
	}
	if _, err := s.Analyzer(ctx); err != nil {
		errs = append(errs, fmt.Errorf("vision provider %q: %w", s.names.Vision, err))
	}
	if _, err := s.Store(ctx); err != nil {
		errs = append(errs, fmt.Errorf("store %q: %w", s.names.Store, err))
	}
	return errors.Join(errs...)
}

type closer interface {
	Close() error
}

// Close closes every provider that was constructed
func (s *Selector) Close() error {
	var errs []error
	closeBuilt := func(name string, built bool, c closer) {
		if !built || c == nil {
			return
		}
		if err := c.Close(); err != nil {
			slog.Error("Failed to close provider", "provider", name, "error", err)
			errs = append(errs, err)
		}
	}

	closeBuilt(s.names.Reasoning, s.reasoning.built, s.reasoning.val)
	closeBuilt(s.names.Transcription, s.transcription.built, s.transcription.val)
	if s.synthesis != nil {
		closeBuilt(s.names.Synthesis, s.synthesis.built, s.synthesis.val)
	}
	closeBuilt(s.names.Vision, s.vision.built, s.vision.val)
	closeBuilt(s.names.Store, s.store.built, s.store.val)
	return errors.Join(errs...)
}
