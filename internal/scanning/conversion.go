package scanning

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"

	"github.com/zombor/receipt-assistant/internal/failure"
)

// pdfToImage renders the first page of a PDF as PNG
func pdfToImage(pdfData []byte) ([]byte, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	// Receipts are almost always a single page.
	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return encodePNG(img)
}

// imageToPNG decodes JPEG, GIF, PNG or HEIC/HEIF and re-encodes it as PNG
func imageToPNG(imageData []byte, mimeType string) ([]byte, error) {
	var (
		img image.Image
		err error
	)
	if isHEIC(imageData, mimeType) {
		img, err = heic.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(imageData))
		if err != nil {
			return nil, fmt.Errorf("decoding image: %w", err)
		}
	}
	return encodePNG(img)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEIC checks the MIME type and the ftyp brand at offset 4
func isHEIC(data []byte, mimeType string) bool {
	if mimeType == "image/heic" || mimeType == "image/heif" {
		return true
	}
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// normalizeImage returns PNG bytes for any supported content type
func normalizeImage(imageData []byte, contentType string) ([]byte, error) {
	mimeType := normalizeMIME(contentType)
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	if !IsSupported(mimeType) {
		return nil, &failure.UnsupportedInputError{MediaType: mimeType}
	}

	switch {
	case mimeType == "application/pdf":
		pngData, err := pdfToImage(imageData)
		if err != nil {
			return nil, fmt.Errorf("converting PDF to image: %w", err)
		}
		return pngData, nil
	case mimeType == "image/png" && !isHEIC(imageData, mimeType):
		return imageData, nil
	default:
		pngData, err := imageToPNG(imageData, mimeType)
		if err != nil {
			return nil, fmt.Errorf("converting image to PNG: %w", err)
		}
		return pngData, nil
	}
}
