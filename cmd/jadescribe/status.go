package main

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/jonesdeveloperchung-pixel/JadeScribe"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/client"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check that the vision service is reachable and the models are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// only the backend is needed, so the cache, telemetry and OCR are skipped
			vc, err := jadescribe.NewVisionClient(cmd.Context(), a.cfg.Vision)
			if err != nil {
				return err
			}
			st := client.CheckStatus(cmd.Context(), vc, a.cfg.Vision.Model, a.cfg.Vision.TextModel)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "backend: %s (%s)\n", a.cfg.Vision.Backend, a.cfg.Vision.Host)
			fmt.Fprintf(out, "status:  %s\n", st.Message)

			names := make([]string, 0, len(st.Models))
			for m := range st.Models {
				names = append(names, m)
			}
			slices.Sort(names)
			for _, m := range names {
				mark := "missing"
				if st.Models[m] {
					mark = "ok"
				}
				fmt.Fprintf(out, "  %-28s %s\n", m, mark)
			}

			if !st.Running {
				return errors.New("vision service is not running")
			}
			return nil
		},
	}
}
