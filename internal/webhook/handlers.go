package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/zombor/receipt-assistant/internal/assistant"
)

// Notices sent to WhatsApp users
const (
	ProcessingNotice  = "Processing your request... "
	UnsupportedNotice = "Sorry, I can only process text, audio, and image messages."
	RateLimitedNotice = "You're sending messages too quickly. Please wait a moment and try again."
)

// maxBodySize bounds a webhook payload
const maxBodySize = 1 << 20

type payload struct {
	Entry []struct {
		Changes []struct {
			Value changeValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type changeValue struct {
	Messages []message        `json:"messages"`
	Statuses []map[string]any `json:"statuses"`
}

type message struct {
	From string `json:"from"`
	ID   string `json:"id"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
	Audio *media `json:"audio"`
	Image *media `json:"image"`
}

type media struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption"`
}

// handleHealth reports liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleVerify answers the subscription handshake
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if s.cfg.VerifyToken == "" || q.Get("hub.verify_token") != s.cfg.VerifyToken {
		http.Error(w, "Verification token mismatch", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(q.Get("hub.challenge")))
}

// handleMessage processes one webhook event
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		slog.Error("Error reading webhook body", "error", err)
		http.Error(w, "Error reading body", http.StatusBadRequest)
		return
	}
	if !s.verifySignature(r, body) {
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var p payload
	if err := json.Unmarshal(body, &p); err != nil {
		slog.Error("Error decoding webhook payload", "error", err)
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}
	if len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 {
		http.Error(w, "Unknown event type", http.StatusBadRequest)
		return
	}

	value := p.Entry[0].Changes[0].Value
	switch {
	case len(value.Messages) > 0:
		s.processMessage(w, r, value.Messages[0])
	case len(value.Statuses) > 0:
		w.Write([]byte("Status update received"))
	default:
		http.Error(w, "Unknown event type", http.StatusBadRequest)
	}
}

func (s *Server) processMessage(w http.ResponseWriter, r *http.Request, msg message) {
	ctx := r.Context()
	logger := slog.With("from", msg.From, "message_id", msg.ID, "type", msg.Type)

	if !s.allow(msg.From) {
		logger.Warn("Sender rate limited")
		s.send(r, msg.From, RateLimitedNotice)
		w.Write([]byte("Rate limited"))
		return
	}

	s.send(r, msg.From, ProcessingNotice)

	var reply assistant.Reply
	switch {
	case msg.Type == "text" && msg.Text != nil:
		reply = s.assistant.HandleText(ctx, msg.Text.Body)
	case msg.Type == "audio" && msg.Audio != nil:
		data, contentType, err := s.download(r, msg.Audio)
		if err != nil {
			reply = assistant.Reply{Text: assistant.Diagnose(err), Err: err}
			break
		}
		reply = s.assistant.HandleAudio(ctx, data, contentType, msg.Audio.Caption)
	case msg.Type == "image" && msg.Image != nil:
		data, contentType, err := s.download(r, msg.Image)
		if err != nil {
			reply = assistant.Reply{Text: assistant.Diagnose(err), Err: err}
			break
		}
		reply = s.assistant.HandleImage(ctx, data, contentType, msg.Image.Caption)
	default:
		s.send(r, msg.From, UnsupportedNotice)
		w.Write([]byte("Unsupported message type"))
		return
	}

	if reply.Err != nil {
		logger.Error("Error processing message", "error", reply.Err)
	}
	if err := s.messenger.SendText(ctx, msg.From, reply.Text); err != nil {
		logger.Error("Error sending reply", "error", err)
		http.Error(w, "Failed to send message", http.StatusInternalServerError)
		return
	}
	w.Write([]byte("Message processed"))
}

func (s *Server) download(r *http.Request, m *media) ([]byte, string, error) {
	data, contentType, err := s.messenger.DownloadMedia(r.Context(), m.ID)
	if err != nil {
		return nil, "", err
	}
	if m.MimeType != "" {
		contentType = m.MimeType
	}
	if len(data) == 0 {
		return nil, "", errors.New("downloaded media is empty")
	}
	return data, contentType, nil
}

// send delivers a notice; failures are only logged
func (s *Server) send(r *http.Request, to, text string) {
	if err := s.messenger.SendText(r.Context(), to, text); err != nil {
		slog.Error("Error sending notice", "to", to, "error", err)
	}
}
