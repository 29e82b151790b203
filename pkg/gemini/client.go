// Package gemini provides a Google Gemini vision backend.
package gemini

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/client"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// Client calls the Gemini API through the genai SDK.
type Client struct {
	client *genai.Client
}

var _ client.VisionClient = (*Client)(nil)

// Config selects the Gemini credentials and endpoint
type Config struct {
	APIKey  string // empty falls back to GEMINI_API_KEY / GOOGLE_API_KEY
	BaseURL string // optional endpoint override
}

// NewClient creates a Gemini client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	c, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{client: c}, nil
}

// Invoke sends the prompt with an optional inline image.
func (c *Client) Invoke(ctx context.Context, model, prompt string, image []byte, opts client.Options) (string, error) {
	if model == "" {
		model = DefaultModel
	}

	parts := make([]*genai.Part, 0, 2)
	if len(image) > 0 {
		parts = append(parts, genai.NewPartFromBytes(image, http.DetectContentType(image)))
	}
	parts = append(parts, genai.NewPartFromText(prompt))
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(opts.Temperature)),
	}
	if opts.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini API request failed: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from gemini")
	}
	return text, nil
}

// Ping lists a single model to confirm the API key and endpoint work.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.client.Models.List(ctx, &genai.ListModelsConfig{PageSize: 1}); err != nil {
		return fmt.Errorf("%w: %v", client.ErrUnreachable, err)
	}
	return nil
}

// Models lists the first page of available model names, without the "models/" prefix.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	page, err := c.client.Models.List(ctx, &genai.ListModelsConfig{PageSize: 100})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", client.ErrUnreachable, err)
	}
	names := make([]string, 0, len(page.Items))
	for _, m := range page.Items {
		names = append(names, strings.TrimPrefix(m.Name, "models/"))
	}
	return names, nil
}
