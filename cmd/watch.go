/*
Copyright © 2025 Katie Mulliken <katie@mulliken.net>
*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/seckatie/opinionwatch/internal/config"
	"github.com/seckatie/opinionwatch/internal/core/db"
	"github.com/spf13/cobra"
)

// watchCmd keeps running and checks on a cron schedule.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Check for new opinions on a schedule",
	Long: `watch keeps running and performs a check each time the cron schedule
fires. A check that is still running when the next one is due is skipped,
so checks never overlap.

Example usage:

	opinionwatch watch --schedule "0 */6 * * *" --run-now`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runWatch(cmd); err != nil {
			log.Fatalf("Watch failed: %v", err)
		}
	},
}

func runWatch(cmd *cobra.Command) error {
	schedule, err := cmd.Flags().GetString("schedule")
	if err != nil {
		return fmt.Errorf("failed to read --schedule: %w", err)
	}
	runNow, err := cmd.Flags().GetBool("run-now")
	if err != nil {
		return fmt.Errorf("failed to read --run-now: %w", err)
	}

	cfg, err := config.Load(settings)
	if err != nil {
		return err
	}

	store, err := db.OpenStore(cfg.Store, cfg.StateFile)
	if err != nil {
		return fmt.Errorf("failed to open seen set: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("failed to close seen set: %v", err)
		}
	}()

	checker, err := newChecker(cfg, store)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	check := func() {
		res, err := checker.Run(ctx)
		if err != nil {
			// A corrupt seen set fails every run until it is fixed by hand.
			log.Printf("Check failed: %v", err)
			return
		}
		log.Printf("Check finished: state=%s candidates=%d new=%d attached=%d", res.State, res.Candidates, len(res.New), res.Attached())
	}

	c, err := newScheduler(schedule, check)
	if err != nil {
		return err
	}

	if runNow {
		check()
	}

	c.Start()
	log.Printf("Watching for new opinions on schedule %q", schedule)

	<-ctx.Done()
	log.Println("Shutting down, waiting for a running check to finish...")
	<-c.Stop().Done()
	return nil
}

// newScheduler returns a cron runner that calls check on schedule and skips
// a run while the previous one is still going.
func newScheduler(schedule string, check func()) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	if _, err := c.AddFunc(schedule, check); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return c, nil
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("schedule", "0 */6 * * *", "Cron schedule for checks (standard 5-field format or @every 1h)")
	watchCmd.Flags().Bool("run-now", false, "Run a check immediately before waiting for the schedule")
}
