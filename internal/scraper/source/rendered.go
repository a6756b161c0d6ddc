package source

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/mattsolle/jobscout/internal/scraper"
)

const (
	defaultNavTimeout  = 25 * time.Second
	defaultMaxParallel = 1
)

// RenderedConfig configures a JS-heavy board scraped through headless
// Chrome.
type RenderedConfig struct {
	Site        string
	SearchURL   string
	UserAgent   string
	NavTimeout  time.Duration
	MaxParallel int
	Selectors   BoardSelectors
}

// RenderedSource renders the board's listing page with chromedp and extracts
// postings in-page.
type RenderedSource struct {
	cfg         RenderedConfig
	allocCtx    context.Context
	allocCancel context.CancelFunc
	sem         chan struct{}
	logger      *zap.Logger
}

// NewRendered creates a RenderedSource with a shared browser allocator.
func NewRendered(cfg RenderedConfig, logger *zap.Logger) *RenderedSource {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = defaultNavTimeout
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = defaultMaxParallel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &RenderedSource{
		cfg:         cfg,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		sem:         make(chan struct{}, cfg.MaxParallel),
		logger:      logger,
	}
}

// Close tears down the browser allocator.
func (s *RenderedSource) Close() {
	if s == nil {
		return
	}
	s.allocCancel()
}

// Fetch navigates to the search page, waits for the result rows and extracts
// them with an in-page script.
func (s *RenderedSource) Fetch(ctx context.Context, q scraper.Query) ([]scraper.RawRow, error) {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return nil, fmt.Errorf("rendered fetch canceled: %w", ctx.Err())
	}

	tabCtx, cancelTab := chromedp.NewContext(s.allocCtx)
	defer cancelTab()
	taskCtx, cancelTask := context.WithTimeout(tabCtx, s.cfg.NavTimeout)
	defer cancelTask()

	target := expandSearchURL(s.cfg.SearchURL, q)
	limit := q.Limit
	if limit <= 0 {
		limit = defaultAPIPageSize
	}

	var items []map[string]any
	err := chromedp.Run(taskCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetDeviceMetricsOverride(1366, 768, 1, false).Do(ctx)
		}),
		chromedp.Navigate(target),
		chromedp.WaitReady(s.cfg.Selectors.Row, chromedp.ByQuery),
		chromedp.Evaluate(s.extractScript(limit), &items),
	)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", target, err)
	}

	rows := make([]scraper.RawRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, scraper.RawRow(item))
	}
	s.logger.Debug("rendered board scraped",
		zap.String("site", s.cfg.Site),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}

// extractScript builds the in-page extraction expression from the board's
// selectors. Missing selectors produce null columns, which the pipeline
// keeps as nulls.
func (s *RenderedSource) extractScript(limit int) string {
	sel := s.cfg.Selectors
	return fmt.Sprintf(`(() => {
	const text = (el, q) => { if (!q) return null; const n = el.querySelector(q); return n ? n.textContent.trim() : null; };
	const href = (el, q) => { if (!q) return null; const n = el.querySelector(q); return n && n.href ? n.href : null; };
	return Array.from(document.querySelectorAll(%q)).slice(0, %d).map(el => ({
		site: %q,
		title: text(el, %q),
		company: text(el, %q),
		location: text(el, %q),
		job_url: href(el, %q),
		salary_source: text(el, %q),
		date_posted: text(el, %q),
	}));
})()`,
		sel.Row, limit, s.cfg.Site,
		sel.Title, sel.Company, sel.Location, sel.URL, sel.Salary, sel.Date,
	)
}
