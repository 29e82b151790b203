package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonesdeveloperchung-pixel/JadeScribe"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/internal/config"
)

// app carries state shared by every subcommand
type app struct {
	cfgFile   string
	logLevel  string
	logFormat string
	backend   string
	host      string
	model     string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "jadescribe",
		Short: "Catalogue jade pendants from tray photos with vision models",
		Long: `JadeScribe segments a tray photo into individual items, enhances each crop,
reads its printed label with OCR and asks a vision model for color, motif and
characteristics.

Configuration is read from ~/.config/jadescribe/config.yaml (or --config),
then environment variables (a .env file is loaded when present), then flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			logger, err := newLogger(cmd.ErrOrStderr(), a.logLevel, a.logFormat)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			return a.loadConfig(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default ~/.config/jadescribe/config.yaml)")
	pf.StringVar(&a.logLevel, "log-level", "info", "log level: debug|info|warn|error")
	pf.StringVar(&a.logFormat, "log-format", "text", "log format: text|json")
	pf.StringVar(&a.backend, "backend", "", "vision backend: ollama|llamacpp|gemini")
	pf.StringVar(&a.host, "host", "", "vision server URL")
	pf.StringVar(&a.model, "model", "", "vision model name")

	cmd.AddCommand(newAnalyzeCmd(a))
	cmd.AddCommand(newSegmentCmd(a))
	cmd.AddCommand(newDescribeCmd(a))
	cmd.AddCommand(newStatusCmd(a))
	cmd.AddCommand(newServeCmd(a))
	cmd.AddCommand(newTelemetryCmd(a))
	cmd.AddCommand(newConfigCmd(a))

	return cmd
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	path := a.cfgFile
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg.ApplyEnv(os.Getenv)

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Vision.Backend = a.backend
	}
	if flags.Changed("host") {
		cfg.Vision.Host = a.host
	}
	if flags.Changed("model") {
		cfg.Vision.Model = a.model
	}
	a.cfg = cfg
	return nil
}

// pipeline assembles the full stack from the effective configuration
func (a *app) pipeline(ctx context.Context) (*jadescribe.Pipeline, error) {
	return jadescribe.New(ctx, a.cfg, jadescribe.WithLogger(slog.Default()))
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q (use text or json)", format)
	}
}
