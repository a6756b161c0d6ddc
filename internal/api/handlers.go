package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mattsolle/jobscout/internal/jobs"
)

const (
	notFoundDetail = "Job not found"

	defaultListLimit = 20
	maxListLimit     = 200
)

// defaultCreatedAfter is the fixed lower bound applied to /jobs queries when
// the client does not supply created_after.
var defaultCreatedAfter = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// jobPayload is the JSON shape of one posting. Emails are exposed as a list;
// the store keeps them comma-separated.
type jobPayload struct {
	ID              int64      `json:"id"`
	SiteName        string     `json:"site_name"`
	SearchTerm      string     `json:"search_term"`
	JobTitle        string     `json:"job_title"`
	Company         *string    `json:"company"`
	Location        string     `json:"location"`
	JobURL          string     `json:"job_url"`
	JobType         *string    `json:"job_type"`
	JobLevel        *string    `json:"job_level"`
	Emails          []string   `json:"emails"`
	CompanyIndustry *string    `json:"company_industry"`
	CompanyURL      *string    `json:"company_url"`
	JobID           *string    `json:"job_id"`
	Description     *string    `json:"description"`
	DatePosted      *time.Time `json:"date_posted"`
	Salary          *string    `json:"salary"`
	IsRemote        bool       `json:"is_remote"`
	Applied         bool       `json:"applied"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toJobPayload(p jobs.Posting) jobPayload {
	return jobPayload{
		ID:              p.ID,
		SiteName:        p.SiteName,
		SearchTerm:      p.SearchTerm,
		JobTitle:        p.JobTitle,
		Company:         p.Company,
		Location:        p.Location,
		JobURL:          p.JobURL,
		JobType:         p.JobType,
		JobLevel:        p.JobLevel,
		Emails:          p.EmailList(),
		CompanyIndustry: p.CompanyIndustry,
		CompanyURL:      p.CompanyURL,
		JobID:           p.ExternalID,
		Description:     p.Description,
		DatePosted:      p.DatePosted,
		Salary:          p.Salary,
		IsRemote:        p.IsRemote,
		Applied:         p.Applied,
		CreatedAt:       p.CreatedAt,
	}
}

func toJobPayloads(postings []jobs.Posting) []jobPayload {
	out := make([]jobPayload, 0, len(postings))
	for _, p := range postings {
		out = append(out, toJobPayload(p))
	}
	return out
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// scrape triggers a scrape run and reports how many postings came back and
// how many were new. This is the one failure-translation point: any scraper
// or store error surfaces as a 500 carrying the error message.
func (s *Server) scrape(w http.ResponseWriter, r *http.Request) {
	var req jobs.ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	summary, err := s.svc.RunScrape(r.Context(), req)
	if err != nil {
		s.logger.Error("scrape failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"inserted": summary.Inserted,
		"returned": summary.Returned,
		"items":    toJobPayloads(summary.Items),
	})
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	total, items, err := s.store.ListPostings(r.Context(), q)
	if err != nil {
		s.logger.Error("list jobs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total": total,
		"count": len(items),
		"items": toJobPayloads(items),
	})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	posting, err := s.store.GetPosting(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, notFoundDetail)
			return
		}
		s.logger.Error("get job failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toJobPayload(posting))
}

func (s *Server) markApplied(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	already, err := s.store.MarkApplied(r.Context(), id)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, notFoundDetail)
			return
		}
		s.logger.Error("mark applied failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	message := "Job marked as applied successfully"
	if already {
		message = "Job already marked as applied"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": message,
		"job_id":  id,
	})
}

func parseListQuery(r *http.Request) (jobs.ListQuery, error) {
	values := r.URL.Query()
	q := jobs.ListQuery{
		SiteName:     values.Get("site_name"),
		SearchTerm:   values.Get("search_term"),
		Location:     values.Get("location"),
		Company:      values.Get("company"),
		Text:         values.Get("q"),
		CreatedAfter: defaultCreatedAfter,
		Limit:        defaultListLimit,
	}

	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxListLimit {
			return jobs.ListQuery{}, errors.New("limit must be an integer between 1 and 200")
		}
		q.Limit = limit
	}
	if raw := values.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return jobs.ListQuery{}, errors.New("offset must be a non-negative integer")
		}
		q.Offset = offset
	}
	if raw := values.Get("applied"); raw != "" {
		applied, err := strconv.ParseBool(raw)
		if err != nil {
			return jobs.ListQuery{}, errors.New("applied must be a boolean")
		}
		q.Applied = &applied
	}
	if raw := values.Get("created_after"); raw != "" {
		createdAfter, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return jobs.ListQuery{}, errors.New("created_after must be an ISO-8601 timestamp")
		}
		q.CreatedAfter = createdAfter
	}

	return q, nil
}
