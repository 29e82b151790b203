package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/types"
)

func newDescribeCmd(a *app) *cobra.Command {
	var f types.VisualFeatures
	var glossary string

	cmd := &cobra.Command{
		Use:     "describe",
		Short:   "Write a catalogue description from visual features",
		Example: `  jadescribe describe --color 翠綠 --motif 龍 --characteristics "圓雕, 玻璃種"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if glossary != "" {
				a.cfg.Describe.Glossary = glossary
			}
			p, err := a.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer p.Close()

			text, err := p.Describe(cmd.Context(), f)
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}

	cmd.Flags().StringVar(&f.Color, "color", "", "item color")
	cmd.Flags().StringVar(&f.Motif, "motif", "", "carved motif")
	cmd.Flags().StringVar(&f.Characteristics, "characteristics", "", "other visible characteristics")
	cmd.Flags().StringVar(&glossary, "glossary", "", "symbolism glossary YAML replacing the built-in one")

	return cmd
}
