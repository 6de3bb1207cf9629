package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"depth_spider/internal/api"
)

const shutdownTimeout = 15 * time.Second

func serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the crawler and refresh endpoints over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			spiderApp, cfg, err := newApp()
			if err != nil {
				return err
			}
			defer func() {
				if err := spiderApp.Close(); err != nil {
					logger.WithError(err).Warn("close failed")
				}
			}()

			if addr != "" {
				cfg.Server.Addr = addr
			}
			if !debug {
				gin.SetMode(gin.ReleaseMode)
			}

			server := api.NewServer(cfg.Server, spiderApp, logger)

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start()
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigChan:
				logger.WithField("signal", sig.String()).Info("shutting down")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), shutdownTimeout)
			defer cancel()

			return server.Shutdown(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")

	return cmd
}
