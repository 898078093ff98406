package main

import (
	"log/slog"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	proxy   string
	theme   string
	timeout time.Duration
	verbose bool
	noColor bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "playkuctl",
		Short:         "Storefront diagnostics for PlayKu",
		Long:          `playkuctl fetches storefront pages and reports which product images would get a play icon and what the resulting playlist looks like.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.proxy, "proxy", "", "app proxy base URL, e.g. https://shop.example/apps/playku")
	flags.StringVar(&opts.theme, "theme", "", "theme name used to look up image selectors")
	flags.DurationVar(&opts.timeout, "timeout", 15*time.Second, "per request timeout")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&opts.noColor, "no-color", false, "disable coloured output")

	cmd.AddCommand(newScanCmd(opts), newSelectorsCmd(opts))
	return cmd
}
