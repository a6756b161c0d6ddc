// Package source contains the job-board source implementations feeding the
// scrape pipeline with raw rows.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mattsolle/jobscout/internal/scraper"
)

const (
	defaultAPIPageSize = 50
	defaultAPITimeout  = 15 * time.Second
)

// APIConfig configures a JSON search-API board.
type APIConfig struct {
	Site     string
	BaseURL  string
	AppID    string
	AppKey   string
	Country  string
	PageSize int
	Timeout  time.Duration
}

// APISource fetches postings from a JSON job-board search API, paging until
// the requested count is reached or the board runs out of results.
type APISource struct {
	cfg    APIConfig
	client *http.Client
}

// NewAPI constructs an APISource with a shared HTTP client.
func NewAPI(cfg APIConfig) *APISource {
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultAPIPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultAPITimeout
	}
	return &APISource{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// apiResponse mirrors the board's top-level search response.
type apiResponse struct {
	Results []apiResult `json:"results"`
	Count   int         `json:"count"`
}

type apiResult struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	SalaryMin   float64 `json:"salary_min"`
	SalaryMax   float64 `json:"salary_max"`
	RedirectURL string  `json:"redirect_url"`
	Created     string  `json:"created"`
	ContractTime string `json:"contract_time"`
	Company     struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string `json:"display_name"`
	} `json:"location"`
}

// Fetch retrieves up to q.Limit postings for the query, iterating pages.
func (s *APISource) Fetch(ctx context.Context, q scraper.Query) ([]scraper.RawRow, error) {
	var rows []scraper.RawRow
	for page := 1; len(rows) < q.Limit; page++ {
		batch, err := s.fetchPage(ctx, q, page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		if len(batch) == 0 {
			break
		}
		rows = append(rows, batch...)
		if len(batch) < s.cfg.PageSize {
			break
		}
	}
	if len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return rows, nil
}

func (s *APISource) fetchPage(ctx context.Context, q scraper.Query, page int) ([]scraper.RawRow, error) {
	country := s.cfg.Country
	if q.Country != "" {
		country = strings.ToLower(q.Country)
	}
	endpoint := fmt.Sprintf("%s/%s/search/%d", strings.TrimRight(s.cfg.BaseURL, "/"), country, page)

	params := url.Values{}
	params.Set("app_id", s.cfg.AppID)
	params.Set("app_key", s.cfg.AppKey)
	params.Set("results_per_page", strconv.Itoa(s.cfg.PageSize))
	params.Set("what", q.Term)
	params.Set("where", q.Location)
	params.Set("sort_by", "date")
	if q.MaxAgeHours > 0 {
		params.Set("max_days_old", strconv.Itoa((q.MaxAgeHours+23)/24))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("board returned %d: %s", resp.StatusCode, string(body))
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	rows := make([]scraper.RawRow, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		row := scraper.RawRow{
			"id":          r.ID,
			"site":        s.cfg.Site,
			"title":       r.Title,
			"location":    r.Location.DisplayName,
			"job_url":     r.RedirectURL,
			"description": r.Description,
			"date_posted": r.Created,
		}
		if r.Company.DisplayName != "" {
			row["company"] = r.Company.DisplayName
		}
		if r.ContractTime != "" {
			row["job_type"] = r.ContractTime
		}
		if salary := formatSalary(r.SalaryMin, r.SalaryMax); salary != "" {
			row["salary_source"] = salary
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func formatSalary(min, max float64) string {
	switch {
	case min > 0 && max > 0:
		return fmt.Sprintf("%.0f-%.0f", min, max)
	case min > 0:
		return fmt.Sprintf("%.0f+", min)
	case max > 0:
		return fmt.Sprintf("up to %.0f", max)
	default:
		return ""
	}
}
