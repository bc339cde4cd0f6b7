package assistant

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/zombor/receipt-assistant/internal/vad"
)

// AudioSession pumps live frames through a segmenter and handles finished
// utterances on its own worker, so Push never waits on a provider.
type AudioSession struct {
	ID string

	assistant *Assistant
	segmenter *vad.Session
	onReply   func(Reply)

	mu      sync.Mutex
	pending []*vad.Utterance
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

// NewAudioSession starts a session whose replies are delivered to onReply in
// utterance order. ctx bounds the worker's provider calls.
func (a *Assistant) NewAudioSession(ctx context.Context, cfg vad.Config, onReply func(Reply)) *AudioSession {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = a.cfg.SampleRate
	}
	s := &AudioSession{
		ID:        uuid.NewString(),
		assistant: a,
		segmenter: vad.NewSession(cfg),
		onReply:   onReply,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go s.run(ctx)
	slog.Debug("Audio session started", "session", s.ID)
	return s
}

// Push feeds one frame. Frames must be pushed from one goroutine in arrival
// order.
func (s *AudioSession) Push(f vad.Frame) {
	u := s.segmenter.Push(f)
	if u == nil {
		return
	}
	slog.Debug("Utterance finalized", "session", s.ID, "duration", u.Duration())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = append(s.pending, u)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// State reports the segmenter state
func (s *AudioSession) State() vad.State {
	return s.segmenter.State()
}

// Close stops accepting frames, drops unfinished audio and waits until every
// finalized utterance has been answered. It must be called from the goroutine
// that pushes frames.
func (s *AudioSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.wake)
	s.mu.Unlock()

	s.segmenter.Close()
	<-s.done
	slog.Debug("Audio session closed", "session", s.ID)
}

func (s *AudioSession) run(ctx context.Context) {
	defer close(s.done)
	for {
		s.mu.Lock()
		var next *vad.Utterance
		if len(s.pending) > 0 {
			next = s.pending[0]
			s.pending = s.pending[1:]
		}
		s.mu.Unlock()

		if next != nil {
			reply := s.assistant.handleUtterance(ctx, next.PCM, next.SampleRate)
			if s.onReply != nil {
				s.onReply(reply)
			}
			continue
		}

		if _, ok := <-s.wake; !ok {
			// Drain anything queued between the last check and Close.
			s.mu.Lock()
			rest := s.pending
			s.pending = nil
			s.mu.Unlock()
			for _, u := range rest {
				reply := s.assistant.handleUtterance(ctx, u.PCM, u.SampleRate)
				if s.onReply != nil {
					s.onReply(reply)
				}
			}
			return
		}
	}
}
