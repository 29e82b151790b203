// Package analyzer turns the crops of a tray photo into catalogue results.
//
// Every detected crop yields exactly one result, in crop order, whether its
// analysis succeeded or degraded. When segmentation finds nothing the whole
// image is analyzed in one call instead.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonesdeveloperchung-pixel/JadeScribe/internal/telemetry"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/client"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/detection"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/processing"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/retry"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/types"
)

// ErrNoItems is reported when the whole-image fallback returns an empty list.
var ErrNoItems = errors.New("no items found in image")

// CropSource produces the crops of an image.
type CropSource interface {
	Crops(ctx context.Context, path string, ocrEnabled bool) ([]types.DetectedCrop, error)
}

// Describer writes a catalogue description for a successful result.
type Describer interface {
	Describe(ctx context.Context, f types.VisualFeatures) (string, error)
}

// Config holds the analysis settings
type Config struct {
	VisionModel string
	Temperature float64
	Workers     int           // concurrent crop analyses; 1 is sequential
	CropTimeout time.Duration // bounds one crop's whole retry sequence; 0 disables
	Retry       retry.Policy
	MaxImageDim int // longest side sent to the model
	JPEGQuality int
}

// DefaultConfig returns the sequential, low-temperature defaults
func DefaultConfig() Config {
	return Config{
		Temperature: 0.1,
		Workers:     1,
		Retry:       retry.Default(),
		MaxImageDim: 1536,
		JPEGQuality: 90,
	}
}

// AnalyzeOptions selects per-call behavior
type AnalyzeOptions struct {
	OCR      bool
	Hint     string
	Describe bool
}

// Analyzer orchestrates segmentation output, the vision backend and parsing
type Analyzer struct {
	vc        client.VisionClient
	crops     CropSource
	cfg       Config
	processor *processing.Processor
	logger    *slog.Logger
	recorder  telemetry.Recorder
	describer Describer
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithRecorder records telemetry for every crop and image
func WithRecorder(r telemetry.Recorder) Option {
	return func(a *Analyzer) {
		if r != nil {
			a.recorder = r
		}
	}
}

// WithDescriber enables AnalyzeOptions.Describe
func WithDescriber(d Describer) Option {
	return func(a *Analyzer) { a.describer = d }
}

// New creates an Analyzer
func New(vc client.VisionClient, crops CropSource, cfg Config, opts ...Option) *Analyzer {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MaxImageDim <= 0 {
		cfg.MaxImageDim = 1536
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 90
	}
	a := &Analyzer{
		vc:        vc,
		crops:     crops,
		cfg:       cfg,
		processor: processing.NewProcessor(),
		logger:    slog.Default(),
		recorder:  telemetry.Nop{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze catalogues every item in the image at path.
func (a *Analyzer) Analyze(ctx context.Context, path string, ocrEnabled bool, hint string) []types.AnalysisResult {
	return a.AnalyzeWith(ctx, path, AnalyzeOptions{OCR: ocrEnabled, Hint: hint})
}

// AnalyzeWith is Analyze with optional descriptions.
func (a *Analyzer) AnalyzeWith(ctx context.Context, path string, opts AnalyzeOptions) []types.AnalysisResult {
	start := time.Now()

	if err := a.vc.Ping(ctx); err != nil {
		err = fmt.Errorf("vision service unreachable: %w", err)
		a.logger.Error("vision service check failed", "error", err)
		a.record(ctx, "analyze_image", path, start, err, nil)
		return []types.AnalysisResult{types.ErrorResult(err)}
	}

	crops, err := a.crops.Crops(ctx, path, opts.OCR)
	if err != nil && ctx.Err() != nil {
		// Cancelled mid-segmentation: account for the crops already cut
		a.logger.Warn("segmentation cancelled", "path", path, "crops", len(crops), "error", err)
		results := []types.AnalysisResult{types.ErrorResult(fmt.Errorf("segmentation cancelled: %w", err))}
		if len(crops) > 0 {
			results = make([]types.AnalysisResult, len(crops))
			for i, crop := range crops {
				results[i] = notAnalyzed(ctx, crop)
			}
		}
		a.record(ctx, "analyze_image", path, start, err, map[string]any{
			"crops":   len(crops),
			"results": len(results),
			"ocr":     opts.OCR,
		})
		return results
	}
	if err != nil {
		a.logger.Warn("segmentation failed, using whole image", "path", path, "error", err)
		crops = nil
	}

	var results []types.AnalysisResult
	if len(crops) == 0 {
		a.logger.Info("no crops found, analyzing whole image", "path", path)
		results = a.analyzeWhole(ctx, path, opts.Hint)
	} else {
		a.logger.Info("analyzing crops", "path", path, "crops", len(crops), "workers", a.cfg.Workers)
		results = a.analyzeCrops(ctx, crops, opts.Hint)
	}

	if opts.Describe && a.describer != nil {
		a.describe(ctx, results)
	}

	a.record(ctx, "analyze_image", path, start, failure(results), map[string]any{
		"crops":   len(crops),
		"results": len(results),
		"ocr":     opts.OCR,
	})
	return results
}

func (a *Analyzer) analyzeWhole(ctx context.Context, path, hint string) []types.AnalysisResult {
	img, err := a.processor.LoadImage(path)
	if err != nil {
		return []types.AnalysisResult{types.ErrorResult(fmt.Errorf("cannot load image: %w", err))}
	}
	data, err := a.processor.EncodeForModel(img, a.cfg.MaxImageDim, a.cfg.JPEGQuality)
	if err != nil {
		return []types.AnalysisResult{types.ErrorResult(fmt.Errorf("cannot encode image: %w", err))}
	}

	prompt := detection.FallbackPrompt(hint)
	raw, err := retry.Do(ctx, a.policy(path), func(ctx context.Context) (string, error) {
		return a.vc.Invoke(ctx, a.cfg.VisionModel, prompt, data, a.callOptions())
	})
	if err != nil {
		return []types.AnalysisResult{types.ErrorResult(fmt.Errorf("whole-image analysis failed: %w", err))}
	}

	items, err := detection.ParseItems(raw)
	if err != nil {
		a.logger.Warn("whole-image reply unparseable", "path", path, "raw", raw)
		return []types.AnalysisResult{types.ErrorResult(fmt.Errorf("whole-image analysis failed: %w", err))}
	}
	if len(items) == 0 {
		return []types.AnalysisResult{types.ErrorResult(ErrNoItems)}
	}
	return items
}

// analyzeCrops runs up to cfg.Workers crop analyses at once. results[i]
// always belongs to crops[i].
func (a *Analyzer) analyzeCrops(ctx context.Context, crops []types.DetectedCrop, hint string) []types.AnalysisResult {
	results := make([]types.AnalysisResult, len(crops))
	done := make([]bool, len(crops))

	var g errgroup.Group
	g.SetLimit(a.cfg.Workers)
	for i, crop := range crops {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = a.analyzeCrop(ctx, crop, hint)
			done[i] = true
			return nil
		})
	}
	_ = g.Wait()

	for i, crop := range crops {
		if !done[i] {
			results[i] = notAnalyzed(ctx, crop)
		}
	}
	return results
}

// notAnalyzed degrades a crop that never reached the model
func notAnalyzed(ctx context.Context, crop types.DetectedCrop) types.AnalysisResult {
	res := types.DegradedResult(crop.OCRCode, fmt.Sprintf("not analyzed: %v", context.Cause(ctx)))
	res.CropPath = crop.Path
	return res
}

func (a *Analyzer) analyzeCrop(ctx context.Context, crop types.DetectedCrop, hint string) types.AnalysisResult {
	start := time.Now()
	res, err := a.callCrop(ctx, crop, hint)
	res = detection.MergeCode(res, crop)
	res.CropPath = crop.Path

	a.record(ctx, "analyze_crop", crop.Path, start, err, map[string]any{
		"index":    crop.Index,
		"ocr_code": crop.OCRCode,
	})
	return res
}

func (a *Analyzer) callCrop(ctx context.Context, crop types.DetectedCrop, hint string) (types.AnalysisResult, error) {
	data, err := a.cropBytes(crop)
	if err != nil {
		a.logger.Error("cannot prepare crop", "index", crop.Index, "path", crop.Path, "error", err)
		return types.DegradedResult(crop.OCRCode, err.Error()), err
	}

	if a.cfg.CropTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.CropTimeout)
		defer cancel()
	}

	prompt := detection.CropPrompt(crop, hint)
	raw, err := retry.Do(ctx, a.policy(crop.Path), func(ctx context.Context) (string, error) {
		return a.vc.Invoke(ctx, a.cfg.VisionModel, prompt, data, a.callOptions())
	})
	if err != nil {
		a.logger.Error("crop analysis failed", "index", crop.Index, "path", crop.Path, "error", err)
		return types.DegradedResult(crop.OCRCode, err.Error()), err
	}

	res, err := detection.ParseItem(raw)
	if err != nil {
		a.logger.Warn("crop reply unparseable", "index", crop.Index, "path", crop.Path, "raw", raw)
		return res, err
	}
	return res, nil
}

func (a *Analyzer) cropBytes(crop types.DetectedCrop) ([]byte, error) {
	var img image.Image = crop.Enhanced
	if img == nil {
		var err error
		if img, err = a.processor.LoadImage(crop.Path); err != nil {
			return nil, fmt.Errorf("cannot load crop: %w", err)
		}
	}
	return a.processor.EncodeForModel(img, a.cfg.MaxImageDim, a.cfg.JPEGQuality)
}

func (a *Analyzer) describe(ctx context.Context, results []types.AnalysisResult) {
	for i := range results {
		if results[i].Failed() {
			continue
		}
		text, err := a.describer.Describe(ctx, results[i].VisualFeatures)
		if err != nil {
			a.logger.Warn("description failed", "item_code", results[i].ItemCode, "error", err)
		}
		results[i].Description = text
	}
}

func (a *Analyzer) callOptions() client.Options {
	return client.Options{Temperature: a.cfg.Temperature, JSON: true}
}

// policy wraps the configured retry policy with logging for one subject.
func (a *Analyzer) policy(subject string) retry.Policy {
	p := a.cfg.Retry
	hook := p.OnRetry
	p.OnRetry = func(attempt int, err error) {
		a.logger.Warn("vision call failed, retrying", "subject", subject, "attempt", attempt, "of", p.Attempts(), "error", err)
		if hook != nil {
			hook(attempt, err)
		}
	}
	return p
}

func (a *Analyzer) record(ctx context.Context, action, subject string, start time.Time, err error, extra map[string]any) {
	a.recorder.Record(context.WithoutCancel(ctx), telemetry.Event{
		Module:   "analyzer",
		Action:   action,
		Args:     []string{subject},
		Duration: time.Since(start),
		Err:      err,
		Context:  extra,
	})
}

// failure returns the error of a single global error result, if any.
func failure(results []types.AnalysisResult) error {
	if len(results) == 1 && results[0].Error != "" && !results[0].Degraded {
		return errors.New(results[0].Error)
	}
	return nil
}
