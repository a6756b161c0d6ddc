package jobs

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mattsolle/jobscout/internal/metrics"
)

// Service composes the scraper adapter and the persistence layer into the
// single scrape-and-ingest path shared by the HTTP API and the scheduler.
// The archiver, publisher and seen cache are optional; a nil value disables
// the corresponding step.
type Service struct {
	scraper Scraper
	store   Store
	seen    SeenCache
	archive Archiver
	events  Publisher
	topic   string
	logger  *zap.Logger
}

// ScrapeEvent is published after every successful scrape run.
type ScrapeEvent struct {
	SearchTerm string   `json:"search_term"`
	Sites      []string `json:"sites"`
	Returned   int      `json:"returned"`
	Inserted   int      `json:"inserted"`
	ArchiveURI string   `json:"archive_uri,omitempty"`
}

// NewService wires the scrape pipeline collaborators.
func NewService(
	scraper Scraper,
	store Store,
	seen SeenCache,
	archive Archiver,
	events Publisher,
	topic string,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		scraper: scraper,
		store:   store,
		seen:    seen,
		archive: archive,
		events:  events,
		topic:   topic,
		logger:  logger,
	}
}

// RunScrape invokes the scraper, upserts the results and re-queries the
// freshly inserted window. Scraper and store failures propagate to the
// caller; archive, cache and event failures are logged and swallowed.
func (s *Service) RunScrape(ctx context.Context, req ScrapeRequest) (ScrapeSummary, error) {
	req = req.WithDefaults()
	log := s.logger.With(zap.String("search_term", req.SearchTerm))
	log.Info("scrape started", zap.Strings("sites", req.Sites))

	records, err := s.scraper.Scrape(ctx, req)
	if err != nil {
		metrics.IncScrapeRun("error")
		return ScrapeSummary{}, fmt.Errorf("run scrape: %w", err)
	}

	if missing := countMissingCompany(records); missing > 0 {
		log.Warn("records missing company field", zap.Int("count", missing))
	}

	candidates := s.filterSeen(ctx, records)

	inserted, err := s.store.UpsertPostings(ctx, candidates)
	if err != nil {
		metrics.IncScrapeRun("error")
		return ScrapeSummary{}, fmt.Errorf("persist postings: %w", err)
	}
	s.markSeen(ctx, candidates)

	archiveURI := s.archiveBatch(ctx, req.SearchTerm, records)
	s.publishEvent(ctx, ScrapeEvent{
		SearchTerm: req.SearchTerm,
		Sites:      req.Sites,
		Returned:   len(records),
		Inserted:   inserted,
		ArchiveURI: archiveURI,
	})

	var items []Posting
	if inserted > 0 {
		_, items, err = s.store.ListPostings(ctx, ListQuery{Limit: inserted})
		if err != nil {
			metrics.IncScrapeRun("error")
			return ScrapeSummary{}, fmt.Errorf("query inserted postings: %w", err)
		}
	}

	metrics.IncScrapeRun("ok")
	metrics.AddPostingsInserted(inserted)
	log.Info("scrape complete",
		zap.Int("returned", len(records)),
		zap.Int("inserted", inserted),
	)

	return ScrapeSummary{
		Inserted: inserted,
		Returned: len(records),
		Items:    items,
	}, nil
}

// filterSeen drops postings whose URL is in the seen cache. Cache errors are
// treated as a miss so the database upsert stays authoritative.
func (s *Service) filterSeen(ctx context.Context, records []Posting) []Posting {
	if s.seen == nil {
		return records
	}
	out := make([]Posting, 0, len(records))
	for _, rec := range records {
		if rec.JobURL != "" {
			seen, err := s.seen.Seen(ctx, rec.JobURL)
			if err != nil {
				s.logger.Warn("seen cache lookup failed", zap.Error(err))
			} else if seen {
				continue
			}
		}
		out = append(out, rec)
	}
	return out
}

func (s *Service) markSeen(ctx context.Context, records []Posting) {
	if s.seen == nil {
		return
	}
	urls := make([]string, 0, len(records))
	for _, rec := range records {
		if rec.JobURL != "" {
			urls = append(urls, rec.JobURL)
		}
	}
	if len(urls) == 0 {
		return
	}
	if err := s.seen.Mark(ctx, urls); err != nil {
		s.logger.Warn("seen cache mark failed", zap.Error(err))
	}
}

func (s *Service) archiveBatch(ctx context.Context, term string, records []Posting) string {
	if s.archive == nil || len(records) == 0 {
		return ""
	}
	uri, err := s.archive.ArchiveBatch(ctx, term, records)
	if err != nil {
		s.logger.Warn("batch archive failed", zap.Error(err))
		return ""
	}
	s.logger.Debug("raw batch archived", zap.String("uri", uri))
	return uri
}

func (s *Service) publishEvent(ctx context.Context, event ScrapeEvent) {
	if s.events == nil {
		return
	}
	if _, err := s.events.Publish(ctx, s.topic, event); err != nil {
		s.logger.Warn("event publish failed", zap.Error(err))
	}
}

func countMissingCompany(records []Posting) int {
	missing := 0
	for _, rec := range records {
		if rec.Company == nil || *rec.Company == "" {
			missing++
		}
	}
	return missing
}
