package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wikical/internal/config"
	"wikical/internal/ics"
	"wikical/internal/metrics"
	"wikical/internal/wiki"
)

// PageSource returns the HTML of the events page.
type PageSource interface {
	FetchHTML(ctx context.Context) (string, error)
}

// Result is one rendered calendar.
type Result struct {
	Document string
	// Extracted is the number of events found on the page.
	Extracted int
	// Rendered is the number of VEVENTs in Document, per-day copies included.
	Rendered int
}

// Builder runs fetch, extract, expand and encode for one calendar.
type Builder struct {
	Source  PageSource
	Encoder ics.Encoder
	Extract wiki.ExtractOptions
}

// NewBuilder wires a Builder from configuration. now is the clock used for
// DTSTAMP; nil means time.Now.
func NewBuilder(cfg *config.Config, now func() time.Time) *Builder {
	return &Builder{
		Source: wiki.NewFetcher(cfg.SourceURL, cfg.UserAgent, cfg.Timeout),
		Encoder: ics.Encoder{
			ProductID: cfg.ProductID,
			Now:       now,
		},
		Extract: wiki.ExtractOptions{
			SiteOrigin: cfg.SiteOrigin,
			UIDDomain:  cfg.UIDDomain,
		},
	}
}

// Build fetches the page once and renders the calendar. Errors from the
// source are returned wrapped, so errors.Is(err, wiki.ErrFetch) and
// errors.Is(err, wiki.ErrDecode) keep working.
func (b *Builder) Build(ctx context.Context) (Result, error) {
	start := time.Now()

	page, err := b.Source.FetchHTML(ctx)
	if err != nil {
		metrics.ObserveBuild(resultLabel(err), start, 0, 0)
		return Result{}, fmt.Errorf("feed: %w", err)
	}

	events := wiki.Extract(page, b.Extract)
	all := ics.Expand(events, b.Extract.UIDDomain)

	res := Result{
		Document:  b.Encoder.Encode(all),
		Extracted: len(events),
		Rendered:  len(all),
	}
	metrics.ObserveBuild(metrics.ResultOK, start, res.Extracted, res.Rendered)
	return res, nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, wiki.ErrFetch):
		return metrics.ResultFetchError
	case errors.Is(err, wiki.ErrDecode):
		return metrics.ResultDecodeError
	default:
		return metrics.ResultError
	}
}
