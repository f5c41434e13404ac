package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"habitat/internal/cli"
	"habitat/internal/event"
	"habitat/internal/ui"
)

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Start an interactive exploration shell",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.session.Start(ctx); err != nil {
			return err
		}

		useColor := !*noColor && !color.NoColor
		tui := ui.NewTreeUI(os.Stdout, useColor)
		a.events.Subscribe(event.ExpansionFailed, func(e event.Event) {
			if d, ok := e.Data.(event.ExpansionFailedData); ok {
				tui.Error(d.Err)
			}
		})

		rl, err := cli.NewReadline(a.historyFile())
		if err != nil {
			return err
		}
		defer rl.Close()
		go func() {
			<-ctx.Done()
			rl.Close()
		}()

		if f, err := a.session.Frame(); err == nil {
			tui.FrameStatus(f)
			tui.TreeView(f.Nodes, true)
		}
		return cli.NewCLI(a.session, rl, os.Stdout, useColor).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(exploreCmd)
}
