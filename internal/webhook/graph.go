package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zombor/receipt-assistant/internal/failure"
)

// DefaultGraphURL is the WhatsApp Cloud API base
const DefaultGraphURL = "https://graph.facebook.com/v21.0"

const providerName = "whatsapp"

// maxMediaSize bounds downloaded media
const maxMediaSize = 50 << 20

// GraphClient downloads media from and sends messages through the WhatsApp
// Cloud API
type GraphClient struct {
	baseURL       string
	token         string
	phoneNumberID string
	client        *http.Client
}

// NewGraphClient creates a client with the default base URL
func NewGraphClient(token, phoneNumberID string, timeout time.Duration) *GraphClient {
	return NewGraphClientWithURL(DefaultGraphURL, token, phoneNumberID, &http.Client{Timeout: timeout})
}

// NewGraphClientWithURL creates a client against baseURL, for testing
func NewGraphClientWithURL(baseURL, token, phoneNumberID string, client *http.Client) *GraphClient {
	return &GraphClient{
		baseURL:       strings.TrimRight(baseURL, "/"),
		token:         token,
		phoneNumberID: phoneNumberID,
		client:        client,
	}
}

type mediaMetadata struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

// DownloadMedia fetches the media behind mediaID and its content type.
func (g *GraphClient) DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	if mediaID == "" {
		return nil, "", errors.New("media id is empty")
	}

	var meta mediaMetadata
	resp, err := g.do(ctx, http.MethodGet, g.baseURL+"/"+mediaID, nil)
	if err != nil {
		return nil, "", err
	}
	err = json.NewDecoder(resp.Body).Decode(&meta)
	resp.Body.Close()
	if err != nil {
		return nil, "", failure.NewProviderError(providerName, failure.CapabilityMedia, 0, fmt.Errorf("decoding media metadata: %w", err))
	}
	if meta.URL == "" {
		return nil, "", failure.NewProviderError(providerName, failure.CapabilityMedia, 0, errors.New("media metadata has no url"))
	}

	resp, err = g.do(ctx, http.MethodGet, meta.URL, nil)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaSize))
	if err != nil {
		return nil, "", failure.NewProviderError(providerName, failure.CapabilityMedia, 0, fmt.Errorf("reading media: %w", err))
	}

	contentType := meta.MimeType
	if contentType == "" {
		contentType = resp.Header.Get("Content-Type")
	}
	return data, contentType, nil
}

type textMessage struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

// SendText sends body to the WhatsApp user to
func (g *GraphClient) SendText(ctx context.Context, to, body string) error {
	msg := textMessage{MessagingProduct: "whatsapp", To: to, Type: "text"}
	msg.Text.Body = body

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	resp, err := g.do(ctx, http.MethodPost, g.baseURL+"/"+g.phoneNumberID+"/messages", data)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// do sends an authorized request; non-2xx answers become provider errors.
func (g *GraphClient) do(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, failure.NewProviderError(providerName, failure.CapabilityMedia, 0, fmt.Errorf("calling graph api: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, failure.NewProviderError(providerName, failure.CapabilityMedia, resp.StatusCode,
			fmt.Errorf("graph api error: %s", strings.TrimSpace(string(respBody))))
	}
	return resp, nil
}
