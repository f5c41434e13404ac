package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"habitat/internal/config"
	"habitat/internal/log"
	"habitat/internal/model"
	"habitat/internal/stream"
)

var (
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve frames to remote renderers over a websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if *addrFlag != "" {
				a.cfg.Stream.Addr = *addrFlag
			}
			if err := a.session.Start(ctx); err != nil {
				return err
			}

			gin.SetMode(gin.ReleaseMode)
			gin.DisableConsoleColor()
			srv := stream.New(a.cfg.Stream, a.session, a.logger, a.metrics)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Run(gctx) })
			if *watchFlag {
				g.Go(func() error {
					return config.Watch(gctx,
						func(cfg *model.Config) {
							if err := a.session.ApplyConfig(cfg); err != nil {
								a.logger.Error(gctx, "Failed to apply configuration", log.Fields{"error": err})
							}
						},
						func(err error) {
							a.logger.Warn(gctx, "Configuration reload failed", log.Fields{"error": err})
						})
				})
			}
			return g.Wait()
		},
	}

	addrFlag  *string
	watchFlag *bool
)

func init() {
	rootCmd.AddCommand(serveCmd)
	addrFlag = serveCmd.Flags().String("addr", "", "host:port to listen on, overrides stream.addr")
	watchFlag = serveCmd.Flags().Bool("watch", true, "Apply configuration file changes while running")
}
