// Package jobs defines the canonical job posting record and the service that
// composes scraping, deduplication and persistence.
package jobs

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound indicates that no posting exists for the requested identifier.
var ErrNotFound = errors.New("job not found")

// Posting is the canonical job posting record, independent of source site.
// Nullable columns map to pointer fields.
type Posting struct {
	ID              int64      `json:"id"`
	SiteName        string     `json:"site_name"`
	SearchTerm      string     `json:"search_term"`
	JobTitle        string     `json:"job_title"`
	Company         *string    `json:"company"`
	Location        string     `json:"location"`
	JobURL          string     `json:"job_url"`
	JobType         *string    `json:"job_type"`
	JobLevel        *string    `json:"job_level"`
	Emails          *string    `json:"-"`
	CompanyIndustry *string    `json:"company_industry"`
	CompanyURL      *string    `json:"company_url"`
	ExternalID      *string    `json:"job_id"`
	Description     *string    `json:"description"`
	DatePosted      *time.Time `json:"date_posted"`
	Salary          *string    `json:"salary"`
	IsRemote        bool       `json:"is_remote"`
	Applied         bool       `json:"applied"`
	CreatedAt       time.Time  `json:"created_at"`
}

// EmailList parses the stored comma-separated emails column into a slice.
// Empty or nil values yield nil.
func (p Posting) EmailList() []string {
	return SplitEmails(p.Emails)
}

// SplitEmails splits a comma-separated email string, trimming whitespace.
func SplitEmails(s *string) []string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	parts := strings.Split(*s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// JoinEmails serializes a slice of addresses into the stored comma-separated
// representation. Empty slices yield nil.
func JoinEmails(emails []string) *string {
	cleaned := make([]string, 0, len(emails))
	for _, e := range emails {
		if v := strings.TrimSpace(e); v != "" {
			cleaned = append(cleaned, v)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}
	joined := strings.Join(cleaned, ",")
	return &joined
}

// ScrapeRequest carries the parameters for one scrape run. Field names mirror
// the HTTP request body.
type ScrapeRequest struct {
	Sites             []string `json:"site_name"`
	SearchTerm        string   `json:"search_term"`
	GoogleSearchTerm  string   `json:"google_search_term"`
	Location          string   `json:"location"`
	ResultsWanted     int      `json:"results_wanted"`
	HoursOld          int      `json:"hours_old"`
	Country           string   `json:"country_indeed"`
	FetchDescriptions bool     `json:"linkedin_fetch_description"`
}

// WithDefaults fills unset request fields with the standard defaults.
func (r ScrapeRequest) WithDefaults() ScrapeRequest {
	if len(r.Sites) == 0 {
		r.Sites = []string{"indeed", "linkedin", "google"}
	}
	if r.ResultsWanted <= 0 {
		r.ResultsWanted = 20
	}
	if r.HoursOld <= 0 {
		r.HoursOld = 72
	}
	return r
}

// ScrapeSummary is the outcome of one scrape run.
type ScrapeSummary struct {
	Inserted int
	Returned int
	Items    []Posting
}

// ListQuery carries the filters and pagination window for ListPostings.
// Zero values mean "no filter" except Limit/Offset, which always apply to the
// returned page.
type ListQuery struct {
	SiteName     string
	SearchTerm   string
	Location     string
	Company      string
	Text         string
	Applied      *bool
	CreatedAfter time.Time
	Limit        int
	Offset       int
}

// Store persists canonical postings. It exclusively owns write access: rows
// are created only by UpsertPostings and the sole mutation is MarkApplied.
type Store interface {
	// UpsertPostings inserts postings that have a URL not seen before and
	// returns the count of newly inserted rows. Records without a URL and
	// records whose URL already exists are skipped silently.
	UpsertPostings(ctx context.Context, postings []Posting) (int, error)

	// ListPostings returns the total count of rows matching the filters
	// (ignoring limit/offset) and the matching page ordered by creation
	// time descending.
	ListPostings(ctx context.Context, q ListQuery) (int, []Posting, error)

	// GetPosting returns the posting with the given internal id, or
	// ErrNotFound.
	GetPosting(ctx context.Context, id int64) (Posting, error)

	// MarkApplied sets the applied flag. It reports already=true when the
	// flag was set before the call, and ErrNotFound when no row exists.
	MarkApplied(ctx context.Context, id int64) (already bool, err error)
}

// Scraper produces canonical postings for a scrape request. Errors from the
// underlying sources propagate uncaught; translation happens at the API
// boundary.
type Scraper interface {
	Scrape(ctx context.Context, req ScrapeRequest) ([]Posting, error)
}

// Publisher pushes scrape-completed events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Archiver persists the raw batch of one scrape run for later inspection.
type Archiver interface {
	ArchiveBatch(ctx context.Context, searchTerm string, postings []Posting) (string, error)
}

// SeenCache answers whether a posting URL was ingested recently, short of a
// database round trip. The unique constraint on job_url remains the source
// of truth.
type SeenCache interface {
	Seen(ctx context.Context, url string) (bool, error)
	Mark(ctx context.Context, urls []string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
