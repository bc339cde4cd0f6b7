// Package vad segments a live 16-bit mono PCM stream into utterances using
// an energy threshold and a silence timeout.
package vad

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Defaults used when Config fields are zero
const (
	DefaultThreshold      = 3500
	DefaultSilenceTimeout = 1300 * time.Millisecond
	DefaultSampleRate     = 24000
)

// State of a Session
type State int

const (
	StateIdle State = iota
	StateArmed
	StateSpeaking
	StateSilentPending
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateSpeaking:
		return "speaking"
	case StateSilentPending:
		return "silent_pending"
	case StateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config holds the detector settings
type Config struct {
	// Threshold is the RMS energy below which a frame counts as silence
	Threshold float64
	// SilenceTimeout is how much accumulated silence ends an utterance
	SilenceTimeout time.Duration
	// SampleRate of the incoming PCM
	SampleRate int
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.SilenceTimeout <= 0 {
		c.SilenceTimeout = DefaultSilenceTimeout
	}
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	return c
}

// Frame is one block of little-endian PCM16 samples. ElapsedMS is the
// stream clock at the frame; Start marks the first frame of a recording.
type Frame struct {
	Data      []byte
	ElapsedMS float64
	Start     bool
}

// Utterance is the audio between speech onset and the silence trigger
type Utterance struct {
	PCM        []byte
	SampleRate int
}

// Duration is the playback length of the utterance
func (u *Utterance) Duration() time.Duration {
	samples := len(u.PCM) / 2
	return time.Duration(samples) * time.Second / time.Duration(u.SampleRate)
}

// Session holds the detector state of one audio connection. It is not safe
// for concurrent use; frames must be pushed in arrival order.
type Session struct {
	cfg         Config
	state       State
	started     bool
	lastElapsed float64
	silentMS    float64
	frames      [][]byte
	buffered    int
}

// NewSession creates an armed session
func NewSession(cfg Config) *Session {
	return &Session{cfg: cfg.withDefaults(), state: StateArmed}
}

// State returns the current state
func (s *Session) State() State {
	return s.state
}

// Buffered returns the number of PCM bytes waiting to be finalized
func (s *Session) Buffered() int {
	return s.buffered
}

// Push processes one frame. It returns an utterance when accumulated silence
// reaches the timeout while speaking. Every frame is buffered, silent ones
// included, so nothing is dropped.
func (s *Session) Push(f Frame) *Utterance {
	if s.state == StateIdle {
		return nil
	}

	s.frames = append(s.frames, f.Data)
	s.buffered += len(f.Data)

	if f.Start || !s.started {
		s.started = true
		s.lastElapsed = f.ElapsedMS
		s.state = StateSpeaking
		return nil
	}

	delta := f.ElapsedMS - s.lastElapsed
	s.lastElapsed = f.ElapsedMS
	if delta < 0 {
		delta = 0
	}

	if RMS(f.Data) < s.cfg.Threshold {
		s.silentMS += delta
		speaking := s.state == StateSpeaking || s.state == StateSilentPending
		if speaking && s.silentMS >= float64(s.cfg.SilenceTimeout.Milliseconds()) {
			return s.finalize()
		}
		if speaking {
			s.state = StateSilentPending
		}
		return nil
	}

	s.silentMS = 0
	s.state = StateSpeaking
	return nil
}

// finalize concatenates and clears the buffer, then re-arms.
func (s *Session) finalize() *Utterance {
	s.state = StateFinalized
	pcm := make([]byte, 0, s.buffered)
	for _, frame := range s.frames {
		pcm = append(pcm, frame...)
	}
	s.frames = nil
	s.buffered = 0
	s.silentMS = 0
	s.state = StateArmed
	return &Utterance{PCM: pcm, SampleRate: s.cfg.SampleRate}
}

// Close discards any buffered audio and moves the session to idle
func (s *Session) Close() {
	s.frames = nil
	s.buffered = 0
	s.state = StateIdle
}

// RMS is the root-mean-square amplitude of little-endian PCM16 samples. A
// trailing odd byte is ignored.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sample := float64(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
		sum += sample * sample
	}
	return math.Sqrt(sum / float64(n))
}
