// Package discovery searches the job board and yields postings not seen earlier in the run.
package discovery

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jonathan/easy-apply-agent/internal/browser"
	"github.com/jonathan/easy-apply-agent/internal/platform"
	"github.com/jonathan/easy-apply-agent/internal/types"
)

// Config holds discovery pacing.
type Config struct {
	// LoadWait is the pause after scrolling or clicking load-more, letting new cards render.
	LoadWait   browser.Range
	Navigation browser.Range
}

// DefaultConfig returns live-run pacing.
func DefaultConfig() Config {
	p := browser.DefaultPacing()
	return Config{
		LoadWait:   p.Navigation,
		Navigation: p.Navigation,
	}
}

// Discovery pages through search results on one session.
type Discovery struct {
	s         browser.Session
	cfg       Config
	log       logrus.FieldLogger
	exhausted bool
}

// New returns a discovery bound to s.
func New(s browser.Session, cfg Config, log logrus.FieldLogger) *Discovery {
	return &Discovery{s: s, cfg: cfg, log: log}
}

// Search opens the keyword and location results page.
func (d *Discovery) Search(ctx context.Context, title, location string) error {
	d.exhausted = false
	u := platform.SearchURL(title, location)
	if err := d.s.Navigate(ctx, u); err != nil {
		return fmt.Errorf("failed to open job search: %w", err)
	}
	d.log.WithFields(logrus.Fields{"title": title, "location": location}).Info("Job search opened")
	return browser.Pause(ctx, d.cfg.Navigation)
}

// NextBatch returns up to remaining postings whose ids are not in seen, loading
// more results while the rendered cards cannot satisfy the request. An empty
// batch with a nil error means the results are exhausted.
func (d *Discovery) NextBatch(ctx context.Context, seen *types.SeenSet, remaining int) ([]types.JobPosting, error) {
	if remaining <= 0 {
		return nil, nil
	}
	for {
		cards, err := d.s.FindAll(ctx, platform.JobCard)
		if err != nil {
			return nil, fmt.Errorf("failed to read job cards: %w", err)
		}
		batch := d.fresh(ctx, cards, seen, remaining)
		if len(batch) >= remaining || d.exhausted {
			return batch, nil
		}

		grew, err := d.loadMore(ctx, len(cards))
		if err != nil {
			return batch, err
		}
		if !grew {
			d.exhausted = true
			d.log.WithField("cards", len(cards)).Info("No more jobs to load")
		}
	}
}

// fresh converts unseen cards into postings, stopping at limit.
func (d *Discovery) fresh(ctx context.Context, cards []browser.Element, seen *types.SeenSet, limit int) []types.JobPosting {
	var batch []types.JobPosting
	picked := make(map[string]bool)
	for _, card := range cards {
		if len(batch) >= limit {
			break
		}
		id := card.Attr("data-job-id")
		if id == "" {
			id = card.Attr("id")
		}
		if id == "" || picked[id] || seen.Has(id) {
			continue
		}
		picked[id] = true
		batch = append(batch, types.JobPosting{
			JobID:   id,
			Title:   d.childText(ctx, card, platform.JobCardTitle, types.UnknownTitle),
			Company: d.childText(ctx, card, platform.JobCardCompany, types.UnknownCompany),
		})
	}
	return batch
}

func (d *Discovery) childText(ctx context.Context, card browser.Element, sel, fallback string) string {
	els, err := d.s.FindAll(ctx, card.Selector()+" "+sel)
	if err != nil || len(els) == 0 {
		return fallback
	}
	if t := strings.TrimSpace(els[0].Text); t != "" {
		return t
	}
	return fallback
}

// loadMore scrolls and presses the show-more control, reporting whether the card count grew.
func (d *Discovery) loadMore(ctx context.Context, before int) (bool, error) {
	if err := d.s.ScrollToBottom(ctx); err != nil {
		return false, fmt.Errorf("failed to scroll results: %w", err)
	}
	if err := browser.Pause(ctx, d.cfg.LoadWait); err != nil {
		return false, err
	}

	buttons, err := d.s.FindAll(ctx, platform.ShowMoreButton)
	if err != nil {
		return false, fmt.Errorf("failed to find load-more control: %w", err)
	}
	for _, b := range buttons {
		if !b.Clickable() {
			continue
		}
		if err := d.s.Click(ctx, b); err != nil {
			d.log.WithError(err).Debug("Load-more click failed")
			break
		}
		if err := browser.Pause(ctx, d.cfg.LoadWait); err != nil {
			return false, err
		}
		break
	}

	cards, err := d.s.FindAll(ctx, platform.JobCard)
	if err != nil {
		return false, fmt.Errorf("failed to read job cards: %w", err)
	}
	return len(cards) > before, nil
}
