package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonesdeveloperchung-pixel/JadeScribe/internal/utils"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/analyzer"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/processing"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/types"
)

// imageReport pairs an input with its results
type imageReport struct {
	Image   string                 `json:"image"`
	Results []types.AnalysisResult `json:"results"`
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var (
		opts        analyzer.AnalyzeOptions
		outDir      string
		workers     int
		cropTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "analyze <image|dir|url>...",
		Short: "Catalogue every item in one or more tray photos",
		Long: `Segments each photo, reads item labels and asks the vision model for the
visual features of every crop.

Directories are walked for image files; http(s) URLs are downloaded first.
With a single input the result array is printed; with several, one report
per image. With --out each image's results are written to <out>/<name>.json.`,
		Example: `  # Analyze one tray with OCR
  jadescribe analyze tray.jpg --ocr

  # Analyze a folder with four concurrent model calls
  jadescribe analyze ./photos --workers 4 --out results/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if flags.Changed("workers") {
				a.cfg.Analysis.Workers = workers
			}
			if flags.Changed("crop-timeout") {
				a.cfg.Analysis.CropTimeout = cropTimeout
			}
			if !flags.Changed("ocr") {
				opts.OCR = a.cfg.OCR.Enabled
			} else if opts.OCR {
				a.cfg.OCR.Enabled = true
			}

			ctx := cmd.Context()
			tmpDir, err := os.MkdirTemp("", "jadescribe-*")
			if err != nil {
				return err
			}
			defer os.RemoveAll(tmpDir)

			inputs, err := expandInputs(ctx, processing.NewProcessor(), args, tmpDir)
			if err != nil {
				return err
			}
			if len(inputs) == 0 {
				return fmt.Errorf("no image files found in %s", strings.Join(args, ", "))
			}

			p, err := a.pipeline(ctx)
			if err != nil {
				return err
			}
			defer p.Close()

			if outDir != "" {
				if err := utils.EnsureDir(outDir); err != nil {
					return err
				}
			}

			reports := make([]imageReport, 0, len(inputs))
			failed := 0
			for _, in := range inputs {
				if ctx.Err() != nil {
					break
				}
				slog.Info("Analyzing image", "image", in.display)
				results := p.AnalyzeWith(ctx, in.path, opts)
				if globalFailure(results) {
					failed++
				}
				report := imageReport{Image: in.display, Results: results}
				if outDir != "" {
					path := utils.ResultFilename(in.display, outDir)
					if err := writeJSONFile(path, results); err != nil {
						return err
					}
					slog.Info("Results written", "image", in.display, "path", path, "items", len(results))
				}
				reports = append(reports, report)
			}

			if outDir == "" {
				if err := printReports(cmd.OutOrStdout(), reports); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("analysis failed for %d of %d images", failed, len(inputs))
			}
			return ctx.Err()
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.OCR, "ocr", false, "read item labels with OCR (default from config)")
	f.StringVar(&opts.Hint, "hint", "", "free-text hint passed to the model, e.g. \"green jade, carved fish\"")
	f.BoolVar(&opts.Describe, "describe", false, "generate a catalogue description for each item")
	f.StringVarP(&outDir, "out", "o", "", "write <name>.json per image to this directory instead of stdout")
	f.IntVar(&workers, "workers", 1, "concurrent crop analyses")
	f.DurationVar(&cropTimeout, "crop-timeout", 0, "bound on one crop's analysis including retries (0 disables)")

	return cmd
}

// input is a local image path plus the name it was given on the command line
type input struct {
	path    string
	display string
}

// expandInputs resolves URLs and directories into image files
func expandInputs(ctx context.Context, proc *processing.Processor, args []string, tmpDir string) ([]input, error) {
	var out []input
	for _, arg := range args {
		switch {
		case strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://"):
			path, err := proc.DownloadImage(ctx, arg, tmpDir)
			if err != nil {
				return nil, fmt.Errorf("failed to download %s: %w", arg, err)
			}
			out = append(out, input{path: path, display: arg})
		case utils.DirExists(arg):
			files, err := utils.ListImageFiles(arg)
			if err != nil {
				return nil, fmt.Errorf("failed to list %s: %w", arg, err)
			}
			for _, f := range files {
				out = append(out, input{path: f, display: f})
			}
		case utils.FileExists(arg):
			out = append(out, input{path: arg, display: arg})
		default:
			return nil, fmt.Errorf("input not found: %s", arg)
		}
	}
	return out, nil
}

// globalFailure reports whether results is the single error entry that
// replaces the whole list
func globalFailure(results []types.AnalysisResult) bool {
	return len(results) == 1 && results[0].Error != "" && !results[0].Degraded
}

func printReports(w io.Writer, reports []imageReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if len(reports) == 1 {
		return enc.Encode(reports[0].Results)
	}
	return enc.Encode(reports)
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
