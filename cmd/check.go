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

	"github.com/seckatie/opinionwatch/internal/config"
	"github.com/seckatie/opinionwatch/internal/core"
	"github.com/seckatie/opinionwatch/internal/core/db"
	"github.com/spf13/cobra"
)

// runCheck performs a single check using the loaded settings.
//
// Delivery and download problems are logged and do not fail the command.
// Only an unreadable or unwritable seen set returns an error.
func runCheck(cmd *cobra.Command) error {
	cfg, err := config.Load(settings)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	res, err := checker.Run(ctx)
	if err != nil {
		return err
	}
	log.Printf("Check finished: state=%s candidates=%d new=%d attached=%d", res.State, res.Candidates, len(res.New), res.Attached())
	return nil
}

// newChecker wires the browser, downloader and mailer described by cfg.
func newChecker(cfg config.Config, store db.Store) (*core.Checker, error) {
	notifier, err := core.NewMailNotifier(cfg.MailOptions())
	if err != nil {
		return nil, err
	}
	if cfg.EmailFrom == "" || cfg.EmailTo == "" {
		log.Println("Warning: EMAIL_FROM or EMAIL_TO is not set; new opinions cannot be delivered")
	}

	return &core.Checker{
		Store:     store,
		Renderer:  cfg.NewRenderer(),
		Fetcher:   core.NewHTTPFetcher(cfg.DownloadDir, cfg.FetchTimeout),
		Notifier:  notifier,
		SourceURL: cfg.SourceURL,
	}, nil
}
