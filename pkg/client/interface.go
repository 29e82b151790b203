package client

import (
	"context"
	"errors"
)

// ErrUnreachable is returned when the inference service cannot be contacted.
var ErrUnreachable = errors.New("inference service unreachable")

// Options tunes a single inference call
type Options struct {
	Temperature float64
	JSON        bool // ask the backend to constrain output to JSON
}

// VisionClient is an inference backend able to answer prompts about images.
// image may be nil for text-only prompts.
type VisionClient interface {
	Invoke(ctx context.Context, model, prompt string, image []byte, opts Options) (string, error)
	Ping(ctx context.Context) error
	Models(ctx context.Context) ([]string, error)
}
