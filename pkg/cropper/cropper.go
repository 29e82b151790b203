// Package cropper turns a tray photo into enhanced, persisted item crops
// with an optional OCR identifier each.
package cropper

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"os"

	"gocv.io/x/gocv"

	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/codes"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/enhance"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/ocr"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/processing"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/types"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/vision"
)

// Cropper segments, enhances, persists and reads each item in a photo
type Cropper struct {
	segmenter *vision.Segmenter
	enhancer  *enhance.Enhancer
	store     Store
	engine    ocr.Engine
	logger    *slog.Logger
}

// New creates a Cropper. engine may be nil when OCR is unavailable;
// nil segmenter, enhancer or logger use defaults.
func New(segmenter *vision.Segmenter, enhancer *enhance.Enhancer, store Store, engine ocr.Engine, logger *slog.Logger) *Cropper {
	if segmenter == nil {
		segmenter = vision.New()
	}
	if enhancer == nil {
		enhancer = enhance.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cropper{
		segmenter: segmenter,
		enhancer:  enhancer,
		store:     store,
		engine:    engine,
		logger:    logger,
	}
}

// Crops returns one DetectedCrop per segmented item, in segmentation order.
// Unreadable input yields no crops; only context cancellation is an error.
func (c *Cropper) Crops(ctx context.Context, path string, ocrEnabled bool) ([]types.DetectedCrop, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		c.logger.Error("cannot read image", "path", path, "error", err)
		return []types.DetectedCrop{}, nil
	}
	src := processing.DecodeMat(data)
	defer src.Close()
	if src.Empty() {
		c.logger.Error("cannot decode image", "path", path)
		return []types.DetectedCrop{}, nil
	}

	regions := c.segmenter.Segment(src)
	c.logger.Info("segmented image", "path", path, "regions", len(regions))
	if ocrEnabled && c.engine == nil {
		c.logger.Debug("OCR requested but no engine is configured", "path", path)
	}

	crops := make([]types.DetectedCrop, 0, len(regions))
	for _, region := range regions {
		if err := ctx.Err(); err != nil {
			return crops, err
		}

		raw, enhanced, err := c.cut(ctx, src, region)
		if err != nil {
			c.logger.Warn("skipping region", "region", region, "error", err)
			continue
		}

		cropPath, err := c.store.Persist(enhanced)
		if err != nil {
			c.logger.Error("failed to persist crop", "region", region, "error", err)
			continue
		}

		code := types.UnknownCode
		if ocrEnabled && c.engine != nil {
			code = c.readCode(ctx, raw, enhanced)
		}

		crops = append(crops, types.DetectedCrop{
			Index:    len(crops),
			Region:   region,
			Enhanced: enhanced,
			Path:     cropPath,
			OCRCode:  code,
		})
		c.logger.Debug("crop ready", "index", len(crops)-1, "path", cropPath, "code", code)
	}
	return crops, nil
}

// cut clones the region out of src and enhances it, returning both the raw
// and enhanced crops as images.
func (c *Cropper) cut(ctx context.Context, src gocv.Mat, region types.Region) (image.Image, image.Image, error) {
	roi := src.Region(region.Rect())
	crop := roi.Clone()
	roi.Close()
	defer crop.Close()

	enhancedMat := c.enhancer.Enhance(crop)
	defer enhancedMat.Close()

	raw, err := processing.ImageFromMat(crop)
	if err != nil {
		return nil, nil, err
	}
	enhanced, err := processing.ImageFromMat(enhancedMat)
	if err != nil {
		return nil, nil, err
	}

	if c.logger.Enabled(ctx, slog.LevelDebug) {
		a0, b0 := enhance.ChromaCast(raw)
		a1, b1 := enhance.ChromaCast(enhanced)
		c.logger.Debug("white balance", "region", region,
			"cast_a_before", a0, "cast_b_before", b0,
			"cast_a_after", a1, "cast_b_after", b1)
	}
	return raw, enhanced, nil
}

// readCode tries each image in turn and returns the first normalized code.
func (c *Cropper) readCode(ctx context.Context, imgs ...image.Image) string {
	for i, img := range imgs {
		words, err := c.engine.ReadText(ctx, img)
		if err != nil {
			if !errors.Is(err, ocr.ErrNoText) {
				c.logger.Warn("OCR failed", "attempt", i+1, "error", err)
			}
			continue
		}
		if code, ok := codes.Normalize(codes.Join(words)); ok {
			return code
		}
		c.logger.Debug("OCR text has no code", "attempt", i+1, "text", words)
	}
	return types.UnknownCode
}
