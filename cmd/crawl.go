package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"depth_spider/internal/app"
	"depth_spider/internal/models"
)

type runFunc func(*app.SpiderApp, context.Context, app.Request) ([]models.Result, error)

func crawlCommand() *cobra.Command {
	return requestCommand("crawl <url> <depth>", "Crawl a URL, or read it from the store if it was crawled before",
		(*app.SpiderApp).Search)
}

func refreshCommand() *cobra.Command {
	return requestCommand("refresh <url> <depth>", "Drop the stored pages below a URL and crawl it again",
		(*app.SpiderApp).Refresh)
}

// requestCommand runs one request and prints the result as JSON.
func requestCommand(use, short string, run runFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := app.ParseRequest(args[0], args[1])
			if err != nil {
				return err
			}

			spiderApp, _, err := newApp()
			if err != nil {
				return err
			}
			defer func() {
				if err := spiderApp.Close(); err != nil {
					logger.WithError(err).Warn("close failed")
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			results, err := run(spiderApp, ctx, req)
			if err != nil {
				return err
			}

			logger.WithField("results", len(results)).Debug("request done")

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}
}
