// Package jadescribe catalogues jade pendants from tray photos.
//
// A Pipeline wires the components together from a config.Config:
//
//	cfg, err := config.Load(config.GetConfigPath())
//	if err != nil {
//		log.Fatal(err)
//	}
//	p, err := jadescribe.New(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer p.Close()
//
//	for _, r := range p.Analyze(ctx, "tray.jpg", true, "") {
//		fmt.Println(r.ItemCode, r.VisualFeatures.Motif)
//	}
//
// The pipeline runs in stages:
//
//  1. Segmentation (pkg/vision) finds each item on the tray.
//  2. Enhancement (pkg/enhance) white-balances and sharpens every crop.
//  3. OCR (pkg/ocr) reads the printed label, normalized by pkg/codes.
//  4. Analysis (pkg/analyzer) asks a vision model for color, motif and
//     characteristics, retrying and degrading per crop.
//
// Crops are written to the configured output directory. Replies can be
// cached in Redis and every call is recorded in the telemetry database.
package jadescribe

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"

	"github.com/jonesdeveloperchung-pixel/JadeScribe/internal/config"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/internal/describe"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/internal/telemetry"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/analyzer"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/cache"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/client"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/cropper"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/enhance"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/gemini"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/llamacpp"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/ocr"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/ollama"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/retry"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/types"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/vision"
)

// Version of the JadeScribe library
const Version = "1.0.0"

// Pipeline is the assembled cataloguing stack
type Pipeline struct {
	cfg       *config.Config
	vc        client.VisionClient
	cropper   *cropper.Cropper
	analyzer  *analyzer.Analyzer
	describer *describe.Describer
	store     *telemetry.Store
	logger    *slog.Logger
	closers   []func() error
}

// Option customizes pipeline assembly
type Option func(*options)

type options struct {
	logger *slog.Logger
	vc     client.VisionClient
}

// WithLogger sets the logger handed to every component
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithVisionClient replaces the backend selected by cfg.Vision.Backend.
// The Redis cache, when enabled, still wraps it.
func WithVisionClient(vc client.VisionClient) Option {
	return func(o *options) { o.vc = vc }
}

// New validates cfg and assembles a Pipeline. The caller must Close it.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (p *Pipeline, err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	p = &Pipeline{cfg: cfg, logger: o.logger}
	defer func() {
		if err != nil {
			_ = p.Close()
		}
	}()

	p.vc = o.vc
	if p.vc == nil {
		if p.vc, err = NewVisionClient(ctx, cfg.Vision); err != nil {
			return nil, err
		}
	}
	if cfg.Cache.Enabled {
		rdb, err := cache.Connect(ctx, cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB)
		if err != nil {
			return nil, err
		}
		p.closers = append(p.closers, rdb.Close)
		p.vc = cache.New(rdb, p.vc, cfg.Cache.TTL, cache.DefaultNamespace).WithLogger(o.logger)
		o.logger.Info("vision reply cache enabled", "addr", cfg.Cache.Addr, "ttl", cfg.Cache.TTL)
	}

	var recorder telemetry.Recorder = telemetry.Nop{}
	if cfg.Telemetry.Enabled {
		db, err := telemetry.Open(cfg.Telemetry.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open telemetry database: %w", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			p.closers = append(p.closers, sqlDB.Close)
		}
		if p.store, err = telemetry.NewStore(db, Version, o.logger); err != nil {
			return nil, err
		}
		recorder = p.store
	}

	engine, err := ocr.Open(ctx, ocr.Config{
		Enabled:         cfg.OCR.Enabled,
		Backend:         cfg.OCR.Backend,
		Language:        cfg.OCR.Language,
		CredentialsFile: cfg.OCR.CredentialsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start OCR: %w", err)
	}
	if engine != nil {
		p.closers = append(p.closers, engine.Close)
	}

	store, err := cropper.NewFileStore(cfg.Output.Dir, cfg.Output.Format, cfg.Output.Quality)
	if err != nil {
		return nil, err
	}
	p.cropper = cropper.New(
		vision.NewWithConfig(segmentConfig(cfg.Segment)),
		enhance.NewWithOptions(enhanceOptions(cfg.Enhance)),
		store,
		engine,
		o.logger,
	)

	glossary := describe.DefaultGlossary()
	if cfg.Describe.Glossary != "" {
		if glossary, err = describe.LoadGlossary(cfg.Describe.Glossary); err != nil {
			return nil, err
		}
	}
	p.describer = describe.New(p.vc, cfg.Vision.TextModel,
		describe.WithGlossary(glossary),
		describe.WithTemperature(cfg.Describe.Temperature),
		describe.WithLogger(o.logger),
		describe.WithRecorder(recorder),
	)

	p.analyzer = analyzer.New(p.vc, p.cropper, analyzerConfig(cfg),
		analyzer.WithLogger(o.logger),
		analyzer.WithRecorder(recorder),
		analyzer.WithDescriber(p.describer),
	)
	return p, nil
}

// NewVisionClient creates the backend named by cfg.Backend
func NewVisionClient(ctx context.Context, cfg config.VisionConfig) (client.VisionClient, error) {
	switch cfg.Backend {
	case config.BackendOllama, "":
		return ollama.NewClientWithHTTP(cfg.Host, &http.Client{Timeout: cfg.Timeout})
	case config.BackendLlamaCpp:
		return llamacpp.NewClientWithHTTP(cfg.Host, &http.Client{Timeout: cfg.Timeout})
	case config.BackendGemini:
		gc := gemini.Config{APIKey: cfg.APIKey}
		if cfg.Host != "" && cfg.Host != ollama.DefaultHost {
			gc.BaseURL = cfg.Host
		}
		return gemini.NewClient(ctx, gc)
	default:
		return nil, fmt.Errorf("unknown vision backend %q", cfg.Backend)
	}
}

func segmentConfig(c config.SegmentConfig) vision.SegmentConfig {
	return vision.SegmentConfig{
		BlurKernel:   c.BlurKernel,
		BlockSize:    c.BlockSize,
		Offset:       float32(c.Offset),
		MinAreaRatio: c.MinAreaRatio,
		Padding:      c.Padding,
	}
}

func enhanceOptions(c config.EnhanceConfig) enhance.Options {
	return enhance.Options{
		ClipLimit: c.ClipLimit,
		TileGrid:  image.Pt(c.TileGrid, c.TileGrid),
		CastGain:  c.CastGain,
	}
}

func analyzerConfig(c *config.Config) analyzer.Config {
	return analyzer.Config{
		VisionModel: c.Vision.Model,
		Temperature: c.Vision.Temperature,
		Workers:     c.Analysis.Workers,
		CropTimeout: c.Analysis.CropTimeout,
		Retry: retry.Policy{
			MaxRetries: c.Analysis.MaxRetries,
			Delay:      c.Analysis.RetryDelay,
		},
		MaxImageDim: c.Analysis.MaxImageDim,
		JPEGQuality: c.Analysis.JPEGQuality,
	}
}

// Analyze catalogues every item in the image at path
func (p *Pipeline) Analyze(ctx context.Context, path string, ocrEnabled bool, hint string) []types.AnalysisResult {
	return p.analyzer.Analyze(ctx, path, ocrEnabled, hint)
}

// AnalyzeWith is Analyze with per-call options
func (p *Pipeline) AnalyzeWith(ctx context.Context, path string, opts analyzer.AnalyzeOptions) []types.AnalysisResult {
	return p.analyzer.AnalyzeWith(ctx, path, opts)
}

// Segment runs segmentation, enhancement, persistence and OCR only
func (p *Pipeline) Segment(ctx context.Context, path string, ocrEnabled bool) ([]types.DetectedCrop, error) {
	return p.cropper.Crops(ctx, path, ocrEnabled)
}

// Describe writes a catalogue description for one item
func (p *Pipeline) Describe(ctx context.Context, f types.VisualFeatures) (string, error) {
	return p.describer.Describe(ctx, f)
}

// Status reports backend reachability and whether both models are installed
func (p *Pipeline) Status(ctx context.Context) client.Status {
	return client.CheckStatus(ctx, p.vc, p.cfg.Vision.Model, p.cfg.Vision.TextModel)
}

// Telemetry returns the event store, or nil when telemetry is disabled
func (p *Pipeline) Telemetry() *telemetry.Store {
	return p.store
}

// Config returns the configuration the pipeline was built from
func (p *Pipeline) Config() *config.Config {
	return p.cfg
}

// Close releases the OCR engine, Redis and database connections
func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
