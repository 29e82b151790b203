package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jonesdeveloperchung-pixel/JadeScribe/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr, secret string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP analysis API",
		Long: `Serves the analysis pipeline over HTTP:

  GET  /healthz
  GET  /v1/status
  POST /v1/analyze   multipart: image, ocr, hint, describe
  POST /v1/describe  JSON visual features

When a JWT secret is configured every /v1 route requires an HS256 bearer token.`,
		Example: `  # Start on the configured address
  jadescribe serve

  # Require tokens signed with a shared secret
  JWT_SECRET=change-me jadescribe serve --addr :9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("jwt-secret") {
				a.cfg.Server.JWTSecret = secret
			}

			p, err := a.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			srv := server.New(p, server.Config{
				Addr:           a.cfg.Server.Addr,
				JWTSecret:      a.cfg.Server.JWTSecret,
				MaxUploadBytes: int64(a.cfg.Server.MaxUploadMB) << 20,
			}, slog.Default())

			// Wait for context cancellation (Ctrl+C) or server error
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "address to listen on")
	cmd.Flags().StringVar(&secret, "jwt-secret", "", "HS256 secret required for /v1 routes")

	return cmd
}
