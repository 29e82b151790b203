package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	gvision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// CloudVision reads text with the Google Cloud Vision TEXT_DETECTION feature.
type CloudVision struct {
	client *gvision.ImageAnnotatorClient
}

var _ Engine = (*CloudVision)(nil)

// NewCloudVision creates a client using Application Default Credentials,
// or the given service account file when credentialsFile is set.
func NewCloudVision(ctx context.Context, credentialsFile string) (*CloudVision, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := gvision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	return &CloudVision{client: client}, nil
}

// ReadText returns the detected words. The first annotation is the full
// text block; the rest are individual words, which are preferred.
func (c *CloudVision) ReadText(ctx context.Context, img image.Image) ([]string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: buf.Bytes()},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_TEXT_DETECTION},
				},
			},
		},
	}

	resp, err := c.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("vision API request failed: %w", err)
	}
	if len(resp.Responses) == 0 {
		return nil, ErrNoText
	}
	if e := resp.Responses[0].Error; e != nil {
		return nil, fmt.Errorf("vision API error: %s", e.Message)
	}

	annotations := resp.Responses[0].TextAnnotations
	descriptions := make([]string, 0, len(annotations))
	for _, a := range annotations {
		descriptions = append(descriptions, a.Description)
	}
	return annotationWords(descriptions)
}

// Close releases the API client.
func (c *CloudVision) Close() error {
	return c.client.Close()
}

func annotationWords(descriptions []string) ([]string, error) {
	switch len(descriptions) {
	case 0:
		return nil, ErrNoText
	case 1:
		return fragments(descriptions[0])
	}
	words := make([]string, 0, len(descriptions)-1)
	for _, d := range descriptions[1:] {
		if d = strings.TrimSpace(d); d != "" {
			words = append(words, d)
		}
	}
	if len(words) == 0 {
		return nil, ErrNoText
	}
	return words, nil
}
