package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/LJTian/NewsHub/internal/app"
	"github.com/LJTian/NewsHub/internal/config"
	"github.com/LJTian/NewsHub/internal/logger"
	"github.com/spf13/cobra"
)

// 手动执行单次任务的命令行入口，便于运维排查或在 cron 之外补跑
func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var timeout time.Duration

	root := &cobra.Command{
		Use:          "collect",
		Short:        "Run a single NewsHub pipeline step and exit",
		SilenceUsage: true,
	}
	root.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall deadline for the command")

	withApp := func(run func(ctx context.Context, a *app.App) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if err := logger.Init(logger.Config{Level: cfg.LogLevel, Output: cfg.LogOutput, Pretty: cfg.LogPretty}); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			a, err := app.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return run(ctx, a)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "ingest",
			Short: "Fetch news from every provider, persist, then recompute trending",
			RunE: withApp(func(ctx context.Context, a *app.App) error {
				report, err := a.Scheduler.RefreshNow(ctx)
				printJSON(report)
				return err
			}),
		},
		&cobra.Command{
			Use:   "trending",
			Short: "Recompute the trending flags",
			RunE: withApp(func(ctx context.Context, a *app.App) error {
				n, err := a.Ranker.Recompute(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("trending articles: %d\n", n)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "sweep",
			Short: "Delete stale low-engagement articles",
			RunE: withApp(func(ctx context.Context, a *app.App) error {
				n, err := a.Sweeper.Sweep(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("deleted articles: %d\n", n)
				return nil
			}),
		},
	)
	return root
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
