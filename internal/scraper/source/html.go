package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/mattsolle/jobscout/internal/scraper"
)

const defaultHTMLTimeout = 15 * time.Second

// BoardSelectors maps a board's listing markup to raw columns. Row selects
// one posting card; the rest are resolved relative to it. Description, when
// set, is resolved against the posting's detail page.
type BoardSelectors struct {
	Row         string `mapstructure:"row"`
	Title       string `mapstructure:"title"`
	Company     string `mapstructure:"company"`
	Location    string `mapstructure:"location"`
	URL         string `mapstructure:"url"`
	Salary      string `mapstructure:"salary"`
	Date        string `mapstructure:"date"`
	JobType     string `mapstructure:"job_type"`
	Description string `mapstructure:"description"`
}

// BoardConfig configures a server-rendered HTML board scraped with colly.
// SearchURL may contain the {term}, {location} and {country} placeholders.
type BoardConfig struct {
	Site      string
	SearchURL string
	UserAgent string
	Timeout   time.Duration
	Selectors BoardSelectors
}

// HTMLSource scrapes a listing page with a colly collector.
type HTMLSource struct {
	cfg           BoardConfig
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// NewHTML builds an HTMLSource.
func NewHTML(cfg BoardConfig, logger *zap.Logger) *HTMLSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTMLTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.SetRequestTimeout(cfg.Timeout)
	return &HTMLSource{cfg: cfg, baseCollector: c, logger: logger}
}

// Fetch scrapes the board's listing page for the query. When the request
// asks for full descriptions and the board has a description selector, each
// posting's detail page is visited as well; detail failures degrade to a
// null description instead of failing the batch.
func (s *HTMLSource) Fetch(ctx context.Context, q scraper.Query) ([]scraper.RawRow, error) {
	collector := s.baseCollector.Clone()

	var (
		rows     []scraper.RawRow
		fetchErr error
	)
	sel := s.cfg.Selectors
	collector.OnHTML(sel.Row, func(e *colly.HTMLElement) {
		if q.Limit > 0 && len(rows) >= q.Limit {
			return
		}
		row := scraper.RawRow{
			"site":    s.cfg.Site,
			"title":   strings.TrimSpace(e.ChildText(sel.Title)),
			"job_url": e.Request.AbsoluteURL(e.ChildAttr(sel.URL, "href")),
		}
		setIfPresent(row, "company", e.ChildText(sel.Company))
		setIfPresent(row, "location", e.ChildText(sel.Location))
		setIfPresent(row, "salary_source", e.ChildText(sel.Salary))
		setIfPresent(row, "job_type", e.ChildText(sel.JobType))
		if sel.Date != "" {
			posted := e.ChildAttr(sel.Date, "datetime")
			if posted == "" {
				posted = e.ChildText(sel.Date)
			}
			setIfPresent(row, "date_posted", posted)
		}
		rows = append(rows, row)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	if err := s.visit(ctx, collector, expandSearchURL(s.cfg.SearchURL, q)); err != nil {
		return nil, err
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("fetch listing: %w", fetchErr)
	}

	if q.FetchDescriptions && sel.Description != "" {
		s.fetchDescriptions(ctx, rows)
	}
	return rows, nil
}

// fetchDescriptions fills row["description"] from each posting's detail
// page, best effort.
func (s *HTMLSource) fetchDescriptions(ctx context.Context, rows []scraper.RawRow) {
	for _, row := range rows {
		jobURL, _ := row["job_url"].(string)
		if jobURL == "" {
			continue
		}
		detail := s.baseCollector.Clone()
		detail.OnHTML(s.cfg.Selectors.Description, func(e *colly.HTMLElement) {
			row["description"] = strings.TrimSpace(e.Text)
		})
		if err := s.visit(ctx, detail, jobURL); err != nil {
			s.logger.Warn("description fetch failed",
				zap.String("site", s.cfg.Site),
				zap.String("url", jobURL),
				zap.Error(err),
			)
		}
	}
}

// visit runs a collector visit in a goroutine so the context can cancel the
// wait.
func (s *HTMLSource) visit(ctx context.Context, collector *colly.Collector, target string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("visit canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("visit %s: %w", target, err)
		}
		return nil
	}
}

// expandSearchURL substitutes the {term}, {location} and {country}
// placeholders in a board's search URL template.
func expandSearchURL(tmpl string, q scraper.Query) string {
	return strings.NewReplacer(
		"{term}", url.QueryEscape(q.Term),
		"{location}", url.QueryEscape(q.Location),
		"{country}", strings.ToLower(q.Country),
	).Replace(tmpl)
}

func setIfPresent(row scraper.RawRow, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		row[key] = v
	}
}
