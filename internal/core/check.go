package core

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/seckatie/opinionwatch/internal/core/db"
)

// CheckState is where a check run ended up.
type CheckState string

const (
	StateIdle         CheckState = "idle"
	StateLoaded       CheckState = "loaded"
	StateScraped      CheckState = "scraped"
	StateDiffed       CheckState = "diffed"
	StateFetched      CheckState = "fetched"
	StateNotified     CheckState = "notified"
	StatePersisted    CheckState = "persisted"
	StateSkipped      CheckState = "skipped"
	StateNotifyFailed CheckState = "notify_failed"
)

// CheckResult reports the outcome of a check run.
type CheckResult struct {
	State      CheckState
	Seen       int
	Candidates int
	New        []db.Opinion
	Fetched    []FetchResult
	// NotifyErr is set when delivery failed and the new opinions were
	// left unrecorded for the next run.
	NotifyErr error
}

// Attached returns how many new opinions were downloaded.
func (r CheckResult) Attached() int {
	n := 0
	for _, f := range r.Fetched {
		if f.OK() {
			n++
		}
	}
	return n
}

// Checker runs the load, scrape, diff, fetch, notify, persist sequence.
type Checker struct {
	Store     db.Store
	Renderer  Renderer
	Fetcher   Fetcher
	Notifier  Notifier
	SourceURL string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Run performs one check.
//
// New opinions are recorded only after the notification was sent, so a
// failed send is retried on the next run. Only a seen set that cannot be
// read or written is returned as an error.
func (c *Checker) Run(ctx context.Context) (CheckResult, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	sourceURL := c.SourceURL
	if sourceURL == "" {
		sourceURL = DefaultSourceURL
	}

	res := CheckResult{State: StateIdle}
	log.Printf("Starting Court of Chancery opinion check at %s", now().Format(time.RFC3339))

	seen, err := c.Store.Load()
	if err != nil {
		return res, fmt.Errorf("failed to load seen opinions: %w", err)
	}
	res.State = StateLoaded
	res.Seen = len(seen)
	log.Printf("Previously seen %d opinions", len(seen))

	candidates := FetchCandidates(ctx, c.Renderer, sourceURL, now())
	res.State = StateScraped
	res.Candidates = len(candidates)
	log.Printf("Found %d total opinions on the page", len(candidates))

	res.New = Diff(candidates, seen)
	res.State = StateDiffed
	if len(res.New) == 0 {
		res.State = StateSkipped
		log.Println("No new opinions found")
		return res, nil
	}
	log.Printf("Found %d new opinion(s)!", len(res.New))

	res.Fetched = c.Fetcher.FetchAll(ctx, res.New)
	res.State = StateFetched

	if err := c.Notifier.Notify(ctx, res.New, res.Fetched); err != nil {
		res.State = StateNotifyFailed
		res.NotifyErr = err
		log.Printf("Error sending email: %v", err)
		log.Println("Failed to send email")
		return res, nil
	}
	res.State = StateNotified

	updated := make([]db.Opinion, 0, len(seen)+len(res.New))
	updated = append(updated, seen...)
	updated = append(updated, res.New...)
	if err := c.Store.Save(updated); err != nil {
		return res, fmt.Errorf("failed to save seen opinions: %w", err)
	}
	res.State = StatePersisted
	log.Println("Successfully processed new opinions")
	return res, nil
}
