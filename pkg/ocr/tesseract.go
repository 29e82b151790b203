package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// CodeChars restricts Tesseract to the characters identifiers use.
const CodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"

// Tesseract is a local OCR engine. The underlying client is not goroutine
// safe, so calls are serialized.
type Tesseract struct {
	mu     sync.Mutex
	client *gosseract.Client
}

var _ Engine = (*Tesseract)(nil)

// NewTesseract creates an engine for the given language, "eng" when empty.
func NewTesseract(language string) (*Tesseract, error) {
	if language == "" {
		language = "eng"
	}
	client := gosseract.NewClient()
	if err := client.SetLanguage(language); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}
	// identifiers are not dictionary words
	if err := client.SetVariable("load_system_dawg", "false"); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to disable system dictionary: %w", err)
	}
	if err := client.SetVariable("load_freq_dawg", "false"); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to disable frequent-word dictionary: %w", err)
	}

	if err := client.SetWhitelist(CodeChars); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set whitelist: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set PSM: %w", err)
	}
	return &Tesseract{client: client}, nil
}

// ReadText returns the whitespace separated words Tesseract finds.
func (t *Tesseract) ReadText(ctx context.Context, img image.Image) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, Preprocess(img)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return nil, ErrClosed
	}
	if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	text, err := t.client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}
	return fragments(text)
}

// Close releases the Tesseract client.
func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

func fragments(text string) ([]string, error) {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, ErrNoText
	}
	return words, nil
}
