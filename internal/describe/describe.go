// Package describe writes short Traditional Chinese catalogue descriptions
// for analyzed items using a text model.
package describe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonesdeveloperchung-pixel/JadeScribe/internal/telemetry"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/client"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/types"
)

// Fallback is returned whenever generation fails.
const Fallback = "（無法生成描述 / Description Generation Failed）"

// DefaultTemperature favors varied wording.
const DefaultTemperature = 0.7

const promptTemplate = `您是一位經驗豐富的高端翡翠珠寶文案撰寫人。
請為以下特徵的翡翠吊墜撰寫一篇精緻、富有詩意且優雅的繁體中文描述：

- 圖案: %s
- 顏色: %s
- 特性: %s
%s
要求：
1. 語氣：沉靜、高端、永恆。
2. 長度：80-120字。
3. 如果有相關的文化寓意，請優雅地融入其中。
4. 請勿提及任何價格或等級保證。
5. 僅輸出描述文本。`

// Describer generates descriptions with a text model.
type Describer struct {
	client      client.VisionClient
	model       string
	temperature float64
	glossary    *Glossary
	logger      *slog.Logger
	recorder    telemetry.Recorder
}

// Option configures a Describer.
type Option func(*Describer)

// WithGlossary replaces the built-in glossary.
func WithGlossary(g *Glossary) Option {
	return func(d *Describer) {
		if g != nil {
			d.glossary = g
		}
	}
}

// WithTemperature overrides DefaultTemperature.
func WithTemperature(t float64) Option {
	return func(d *Describer) { d.temperature = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Describer) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithRecorder records one telemetry event per description.
func WithRecorder(r telemetry.Recorder) Option {
	return func(d *Describer) {
		if r != nil {
			d.recorder = r
		}
	}
}

// New creates a Describer calling model through vc.
func New(vc client.VisionClient, model string, opts ...Option) *Describer {
	d := &Describer{
		client:      vc,
		model:       model,
		temperature: DefaultTemperature,
		glossary:    DefaultGlossary(),
		logger:      slog.Default(),
		recorder:    telemetry.Nop{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Prompt builds the generation prompt for f.
func (d *Describer) Prompt(f types.VisualFeatures) string {
	section := ""
	if sym := d.glossary.Context(f.Motif, f.Color); sym != "" {
		section = "\n以下是與此翡翠相關的文化寓意，請巧妙地融入描述中：\n" + sym + "\n"
	}
	return fmt.Sprintf(promptTemplate, orUnknown(f.Motif), orUnknown(f.Color), orUnknown(f.Characteristics), section)
}

// Describe returns the generated text. On failure it returns Fallback and
// the error.
func (d *Describer) Describe(ctx context.Context, f types.VisualFeatures) (string, error) {
	start := time.Now()
	text, err := d.client.Invoke(ctx, d.model, d.Prompt(f), nil, client.Options{Temperature: d.temperature})
	if err == nil {
		text = strings.TrimSpace(text)
		if text == "" {
			err = fmt.Errorf("empty description from %s", d.model)
		}
	}

	d.recorder.Record(ctx, telemetry.Event{
		Module:   "describe",
		Action:   "generate_description",
		Args:     []string{f.Motif, f.Color},
		Duration: time.Since(start),
		Err:      err,
	})

	if err != nil {
		d.logger.Error("description generation failed", "model", d.model, "error", err)
		return Fallback, err
	}
	return text, nil
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}
