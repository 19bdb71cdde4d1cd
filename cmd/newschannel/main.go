package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deusflow/newschannel/internal/app"
	"github.com/deusflow/newschannel/internal/config"
	"github.com/deusflow/newschannel/internal/logger"
	"github.com/deusflow/newschannel/internal/scraper"
)

var debug bool

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "newschannel",
		Short:         "Crawls news sites and announces new articles to Telegram",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runService,
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Start the crawl scheduler and the admin API",
		RunE:  runService,
	})
	root.AddCommand(crawlCommand())
	root.AddCommand(sourcesCommand())
	return root
}

func runService(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	setupLogger(cfg)

	a, err := app.New(cmd.Context(), cfg, logger.Logger)
	if err != nil {
		return err
	}
	defer closeApp(a)

	return a.Run(cmd.Context())
}

func crawlCommand() *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Crawl one source right away and print the articles found",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer closeApp(a)

			if save {
				res, err := a.Scheduler.CrawlAndExtract(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			}

			adapter, err := a.Registry.Resolve(args[0])
			if errors.Is(err, scraper.ErrUnknownSource) {
				logger.Warn("no adapter for source, using the generic one", "url", args[0])
				adapter, err = a.Registry.Generic(args[0]), nil
			}
			if err != nil {
				return err
			}
			articles, err := adapter.Crawl(cmd.Context())
			if err != nil {
				return err
			}
			for _, art := range articles {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", art.Title, art.Source)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d articles from %s\n", len(articles), adapter.Name())
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "store new articles and notify admins")
	return cmd
}

// openApp is used by one-shot commands; they do not need a Telegram token.
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Read()
	if err != nil {
		return nil, err
	}
	setupLogger(cfg)
	return app.New(cmd.Context(), cfg, logger.Logger)
}

func setupLogger(cfg *config.Config) {
	logger.Init(cfg.Debug || debug, cfg.LogFormat)
}

func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		logger.Error("failed to close resources", "error", err)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
