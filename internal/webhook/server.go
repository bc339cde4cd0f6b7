// Package webhook serves the WhatsApp Cloud API webhook: verification,
// incoming text, voice and image messages, and replies through the Graph API.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/zombor/receipt-assistant/internal/assistant"
)

// Assistant answers one user turn
type Assistant interface {
	HandleText(ctx context.Context, text string) assistant.Reply
	HandleImage(ctx context.Context, image []byte, contentType, caption string) assistant.Reply
	HandleAudio(ctx context.Context, audio []byte, contentType, caption string) assistant.Reply
}

// Messenger talks to the messaging platform
type Messenger interface {
	DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error)
	SendText(ctx context.Context, to, body string) error
}

// Config holds the webhook settings
type Config struct {
	// VerifyToken must match hub.verify_token during subscription
	VerifyToken string
	// AppSecret, when set, requires a valid X-Hub-Signature-256 on POSTs
	AppSecret string
	// SenderRate limits messages per sender per second; <= 0 disables it
	SenderRate  float64
	SenderBurst int
}

// Server handles webhook requests
type Server struct {
	assistant Assistant
	messenger Messenger
	cfg       Config
	mux       *http.ServeMux

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewServer creates a new Server with default mux
func NewServer(a Assistant, m Messenger, cfg Config) *Server {
	return NewServerWithMux(a, m, cfg, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(a Assistant, m Messenger, cfg Config, mux *http.ServeMux) *Server {
	if cfg.SenderBurst < 1 {
		cfg.SenderBurst = 1
	}
	s := &Server{
		assistant: a,
		messenger: m,
		cfg:       cfg,
		mux:       mux,
		limiters:  make(map[string]*rate.Limiter),
	}
	s.registerRoutes()
	return s
}

// verifySignature checks the payload HMAC when an app secret is configured
func (s *Server) verifySignature(r *http.Request, body []byte) bool {
	if s.cfg.AppSecret == "" {
		return true // No signature required if not configured
	}

	sig := r.Header.Get("X-Hub-Signature-256")
	if !strings.HasPrefix(sig, "sha256=") {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(sig, "sha256="))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(s.cfg.AppSecret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// allow reports whether sender is within its message rate
func (s *Server) allow(sender string) bool {
	if s.cfg.SenderRate <= 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[sender]
	if !ok {
		l = rate.NewLimiter(rate.Limit(s.cfg.SenderRate), s.cfg.SenderBurst)
		s.limiters[sender] = l
	}
	return l.Allow()
}

// registerRoutes registers all routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /whatsapp_response", s.handleVerify)
	s.mux.HandleFunc("POST /whatsapp_response", s.handleMessage)
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting webhook server", "address", addr)
	return http.ListenAndServe(addr, s.mux)
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
