// Package ocr reads printed text from item crops.
//
// Two engines are provided: a local Tesseract engine and Google Cloud
// Vision. Both return text fragments in reading order; callers join and
// normalize them.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
)

// ErrNoText is returned when an engine finds no text at all.
var ErrNoText = errors.New("ocr: no text found")

// ErrClosed is returned by an engine used after Close.
var ErrClosed = errors.New("ocr: engine closed")

// Backend names accepted by Open.
const (
	BackendTesseract   = "tesseract"
	BackendCloudVision = "cloudvision"
)

// minTextHeight is the smallest crop side Tesseract reads reliably.
const minTextHeight = 150

// Engine reads text from an image. Implementations must be safe for
// concurrent use.
type Engine interface {
	ReadText(ctx context.Context, img image.Image) ([]string, error)
	Close() error
}

// Config selects and configures an engine.
type Config struct {
	Enabled         bool
	Backend         string
	Language        string
	CredentialsFile string
}

// Open creates the configured engine. It returns (nil, nil) when OCR is
// disabled so callers can treat a nil Engine as "unavailable".
func Open(ctx context.Context, cfg Config) (Engine, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Backend {
	case "", BackendTesseract:
		return NewTesseract(cfg.Language)
	case BackendCloudVision:
		return NewCloudVision(ctx, cfg.CredentialsFile)
	default:
		return nil, fmt.Errorf("unknown OCR backend %q", cfg.Backend)
	}
}

// Preprocess upscales small crops and boosts contrast on a grayscale copy.
func Preprocess(img image.Image) image.Image {
	b := img.Bounds()
	if short := min(b.Dx(), b.Dy()); short > 0 && short < minTextHeight {
		scale := float64(minTextHeight) / float64(short)
		img = imaging.Resize(img, int(float64(b.Dx())*scale+0.5), 0, imaging.Lanczos)
	}
	gray := effect.Grayscale(img)
	return adjust.Contrast(gray, 0.4)
}
