// Package scanning implements the vision port: reading the text of a
// receipt photo or PDF so the reasoning step can structure it.
package scanning

import (
	"context"
	"slices"
	"strings"
)

// DefaultPrompt asks for every purchased line with its numbers
const DefaultPrompt = `You are reading a photo or scan of a shopping receipt. Carefully read all text in the image and list every purchased item.

For each item give:
- the item name as printed
- the quantity (1 if not shown)
- the unit price
- the line total

Finish with the receipt total if one is printed. Reply in plain text, one item per line. Do not invent items that are not on the receipt.`

// Analysis is the text a vision model read from an image
type Analysis struct {
	Text       string
	Confidence *float64
}

// Analyzer extracts text from images. Failures are *failure.ProviderError,
// or *failure.UnsupportedInputError for content types it cannot read.
type Analyzer interface {
	// Analyze reads image (of the given MIME content type) guided by prompt
	Analyze(ctx context.Context, image []byte, contentType, prompt string) (*Analysis, error)
	// SupportedFormats lists accepted MIME content types
	SupportedFormats() []string
	// Close closes the analyzer and releases resources
	Close() error
}

// supportedFormats is shared by every analyzer: all input is normalized to
// PNG before it leaves the process.
var supportedFormats = []string{
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/heic",
	"image/heif",
	"application/pdf",
}

// SupportedFormats lists the MIME types normalizeImage can handle
func SupportedFormats() []string {
	return slices.Clone(supportedFormats)
}

// IsSupported reports whether contentType is readable
func IsSupported(contentType string) bool {
	return slices.Contains(supportedFormats, normalizeMIME(contentType))
}

func normalizeMIME(contentType string) string {
	mimeType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if mimeType == "image/jpg" {
		return "image/jpeg"
	}
	return mimeType
}
