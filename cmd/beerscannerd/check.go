package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func checkCommand(configPath *string) *cobra.Command {
	var (
		barID int64
		force bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the menu of one bar and print the resulting check",
		Example: `  beerscannerd check --bar 12
  beerscannerd check --bar 12 --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if barID <= 0 {
				return fmt.Errorf("--bar must be a positive bar ID")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := loadApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			check, err := a.scraper.CheckBar(ctx, barID, force)
			if err != nil {
				return err
			}
			if err := deliverPending(ctx, a); err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(check)
		},
	}

	cmd.Flags().Int64Var(&barID, "bar", 0, "ID of the bar to check")
	cmd.Flags().BoolVar(&force, "force", false, "treat the menu as changed even if its fingerprint matches")
	_ = cmd.MarkFlagRequired("bar")
	return cmd
}

func runOnceCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run-once",
		Short: "Run a single check cycle over all due bars and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := loadApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			poolCtx, cancel := context.WithCancel(ctx)
			a.workerPool.Start(poolCtx)
			sum := a.scraper.CheckOnce(ctx)
			cancel()
			a.workerPool.Wait()

			fmt.Printf("run %s: %d bars, %d completed, %d failed, %d skipped, %d resumed, %d notifications\n",
				sum.RunID, sum.Bars, sum.Completed, sum.Failed, sum.Skipped, sum.Resumed, sum.Dispatched)
			return nil
		},
	}
}

// deliverPending sweeps unsent notifications once with a short-lived worker pool.
func deliverPending(ctx context.Context, a *app) error {
	poolCtx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		a.workerPool.Wait()
	}()
	a.workerPool.Start(poolCtx)
	_, err := a.workerPool.Sweep(poolCtx)
	return err
}
