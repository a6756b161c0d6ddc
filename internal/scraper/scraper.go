package scraper

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mattsolle/jobscout/internal/jobs"
	"github.com/mattsolle/jobscout/internal/metrics"
)

// googleSite is the one source with a distinct free-text search term.
const googleSite = "google"

// Query carries the per-site parameters for one source invocation.
type Query struct {
	Term              string
	Location          string
	Limit             int
	MaxAgeHours       int
	Country           string
	FetchDescriptions bool
}

// Source fetches raw postings from one job board. Rows keep the board's
// native column names; normalization happens in the pipeline.
type Source interface {
	Fetch(ctx context.Context, q Query) ([]RawRow, error)
}

// Runner implements jobs.Scraper by fanning a scrape request over the
// requested sites' sources and normalizing the combined result.
type Runner struct {
	sources map[string]Source
	logger  *zap.Logger
}

// NewRunner builds a Runner over the given site-name-to-source registry.
func NewRunner(sources map[string]Source, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{sources: sources, logger: logger}
}

// Scrape invokes each requested site's source in order and returns the
// normalized batch. Any source error propagates to the caller; translation
// to an HTTP status is the API layer's job. An empty combined result
// short-circuits to an empty slice.
func (r *Runner) Scrape(ctx context.Context, req jobs.ScrapeRequest) ([]jobs.Posting, error) {
	req = req.WithDefaults()

	var rows []RawRow
	for _, site := range req.Sites {
		src, ok := r.sources[site]
		if !ok {
			return nil, fmt.Errorf("unknown scrape site %q", site)
		}

		term := req.SearchTerm
		if site == googleSite && req.GoogleSearchTerm != "" {
			term = req.GoogleSearchTerm
		}

		batch, err := src.Fetch(ctx, Query{
			Term:              term,
			Location:          req.Location,
			Limit:             req.ResultsWanted,
			MaxAgeHours:       req.HoursOld,
			Country:           req.Country,
			FetchDescriptions: req.FetchDescriptions,
		})
		if err != nil {
			return nil, fmt.Errorf("scrape %s: %w", site, err)
		}

		metrics.AddPostingsScraped(site, len(batch))
		r.logger.Debug("site scraped",
			zap.String("site", site),
			zap.Int("rows", len(batch)),
		)

		for _, row := range batch {
			if _, ok := row["site"]; !ok {
				row["site"] = site
			}
			rows = append(rows, row)
		}
	}

	if len(rows) == 0 {
		r.logger.Warn("scrape returned no rows", zap.Strings("sites", req.Sites))
		return []jobs.Posting{}, nil
	}

	return Normalize(rows, req.SearchTerm), nil
}
