package main

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jonesdeveloperchung-pixel/JadeScribe/internal/utils"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/processing"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/types"
)

func newSegmentCmd(a *app) *cobra.Command {
	var (
		ocrEnabled bool
		debugPath  string
	)

	cmd := &cobra.Command{
		Use:   "segment <image>",
		Short: "Segment, enhance and OCR a tray photo without calling the vision model",
		Example: `  # Print crops and their label codes
  jadescribe segment tray.jpg --ocr

  # Also write an overlay with every detected region outlined
  jadescribe segment tray.jpg --debug tray_regions.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !utils.FileExists(path) {
				return fmt.Errorf("input not found: %s", path)
			}
			if ocrEnabled {
				a.cfg.OCR.Enabled = true
			}

			p, err := a.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			crops, err := p.Segment(cmd.Context(), path, ocrEnabled)
			if err != nil {
				return err
			}
			slog.Info("Segmentation complete", "image", path, "crops", len(crops))

			if debugPath != "" {
				if err := writeOverlay(path, debugPath, crops); err != nil {
					return err
				}
				slog.Info("Region overlay written", "path", debugPath)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(crops)
		},
	}

	cmd.Flags().BoolVar(&ocrEnabled, "ocr", false, "read item labels with OCR")
	cmd.Flags().StringVar(&debugPath, "debug", "", "write a copy of the photo with detected regions outlined")

	return cmd
}

func writeOverlay(src, dst string, crops []types.DetectedCrop) error {
	proc := processing.NewProcessor()
	img, err := proc.LoadImage(src)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", src, err)
	}
	regions := make([]types.Region, 0, len(crops))
	for _, c := range crops {
		regions = append(regions, c.Region)
	}
	format := utils.Ext(dst)
	if format == "" {
		format = "png"
	}
	if err := proc.SaveImage(proc.DrawRegions(img, regions), dst, format, 92, false); err != nil {
		return fmt.Errorf("failed to write overlay: %w", err)
	}
	return nil
}
