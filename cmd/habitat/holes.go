package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"habitat/internal/ui"
)

var (
	holesCmd = &cobra.Command{
		Use:   "holes",
		Short: "List saved rabbit holes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			holes, err := a.snapshots.List(cmd.Context())
			if err != nil {
				return err
			}
			ui.NewTreeUI(os.Stdout, !*noColor && !color.NoColor).HoleList(holes, a.cfg.Seed.Hole)
			return nil
		},
	}

	exportCmd = &cobra.Command{
		Use:   "export <key> <filename>",
		Short: "Write a saved hole to a json, xml or dot file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return a.session.ExportHole(cmd.Context(), args[0], args[1], *formatFlag)
		},
	}

	formatFlag *string
)

func init() {
	rootCmd.AddCommand(holesCmd, exportCmd)
	formatFlag = exportCmd.Flags().StringP("format", "f", "", "Output format: json, xml or dot (default from the file extension)")
}
