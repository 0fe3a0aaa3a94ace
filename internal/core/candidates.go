package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/seckatie/opinionwatch/internal/core/db"
)

// Reasons a link is not taken as a candidate.
var (
	ErrNoTarget    = errors.New("link has no usable target")
	ErrEmptyText   = errors.New("link has no visible text")
	ErrNotPDF      = errors.New("link does not point to a PDF")
	ErrNotRelevant = errors.New("link target does not mention chancery")
	ErrDuplicate   = errors.New("link repeats an earlier candidate")
)

const (
	pdfMarker       = ".pdf"
	relevanceMarker = "chancery"
)

// Skipped records a link that was not taken as a candidate and why.
type Skipped struct {
	Link   Link
	Reason error
}

func (s Skipped) String() string {
	return fmt.Sprintf("%q -> %q: %v", s.Link.Text, s.Link.Href, s.Reason)
}

// ExtractCandidates picks the opinion links out of links.
//
// The primary pass keeps PDF links whose target mentions "chancery". If that
// pass finds nothing, every PDF link with visible text is taken instead.
// Every candidate is stamped with now as its discovery time. The skipped
// list explains each link the returned pass did not take.
func ExtractCandidates(links []Link, now time.Time) ([]db.Opinion, []Skipped) {
	found := now.Format(time.RFC3339)

	candidates, skipped := selectLinks(links, found, true)
	if len(candidates) > 0 {
		return candidates, skipped
	}

	log.Println("No chancery PDFs found, trying broader search...")
	return selectLinks(links, found, false)
}

func selectLinks(links []Link, found string, requireRelevance bool) ([]db.Opinion, []Skipped) {
	var candidates []db.Opinion
	var skipped []Skipped
	taken := make(map[string]struct{})

	for _, link := range links {
		if err := checkLink(link, requireRelevance); err != nil {
			skipped = append(skipped, Skipped{Link: link, Reason: err})
			continue
		}
		if _, dup := taken[link.Href]; dup {
			skipped = append(skipped, Skipped{Link: link, Reason: ErrDuplicate})
			continue
		}
		taken[link.Href] = struct{}{}
		candidates = append(candidates, db.Opinion{
			Title:     link.Text,
			URL:       link.Href,
			DateFound: found,
		})
	}
	return candidates, skipped
}

func checkLink(link Link, requireRelevance bool) error {
	if link.Href == "" {
		return ErrNoTarget
	}
	target := strings.ToLower(link.Href)
	if !strings.Contains(target, pdfMarker) {
		return ErrNotPDF
	}
	if requireRelevance && !strings.Contains(target, relevanceMarker) {
		return ErrNotRelevant
	}
	if err := db.ValidateOpinionURL(link.Href); err != nil {
		return fmt.Errorf("%w: %v", ErrNoTarget, err)
	}
	if strings.TrimSpace(link.Text) == "" {
		return ErrEmptyText
	}
	return nil
}

// FetchCandidates renders pageURL and extracts the opinion candidates.
//
// A render failure is logged and yields no candidates, so callers cannot
// tell a broken page from a quiet day.
func FetchCandidates(ctx context.Context, r Renderer, pageURL string, now time.Time) []db.Opinion {
	log.Printf("Loading page: %s", pageURL)
	links, err := r.Render(ctx, pageURL)
	if err != nil {
		log.Printf("Error scraping: %v", err)
		return nil
	}
	log.Printf("Checking %d links...", len(links))

	candidates, _ := ExtractCandidates(links, now)
	for _, c := range candidates {
		log.Printf("Found opinion: %s", c.Title)
	}
	return candidates
}
