// Package archive persists the raw batch of each scrape run as a CSV blob
// for later inspection.
package archive

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/mattsolle/jobscout/internal/jobs"
)

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// csvHeader lists the canonical columns in fixed order.
var csvHeader = []string{
	"site_name", "search_term", "job_title", "company", "location", "job_url",
	"job_type", "job_level", "emails", "company_industry", "company_url",
	"description", "date_posted", "salary", "is_remote", "job_id",
}

// CSVArchiver implements jobs.Archiver over a blob store.
type CSVArchiver struct {
	store  BlobStore
	prefix string
	clock  jobs.Clock
}

// NewCSV builds a CSVArchiver writing under the given path prefix.
func NewCSV(store BlobStore, prefix string, clock jobs.Clock) *CSVArchiver {
	if prefix == "" {
		prefix = "scrapes"
	}
	return &CSVArchiver{store: store, prefix: prefix, clock: clock}
}

// ArchiveBatch encodes the batch as CSV and writes it to the blob store,
// returning the object URI.
func (a *CSVArchiver) ArchiveBatch(ctx context.Context, searchTerm string, postings []jobs.Posting) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range postings {
		if err := w.Write(csvRecord(p)); err != nil {
			return "", fmt.Errorf("write csv record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}

	now := a.clock.Now().UTC()
	path := fmt.Sprintf("%s/%s/%s-%d.csv",
		a.prefix, now.Format("2006/01/02"), slug(searchTerm), now.Unix())

	uri, err := a.store.PutObject(ctx, path, "text/csv", &buf)
	if err != nil {
		return "", fmt.Errorf("archive batch: %w", err)
	}
	return uri, nil
}

func csvRecord(p jobs.Posting) []string {
	return []string{
		p.SiteName,
		p.SearchTerm,
		p.JobTitle,
		deref(p.Company),
		p.Location,
		p.JobURL,
		deref(p.JobType),
		deref(p.JobLevel),
		deref(p.Emails),
		deref(p.CompanyIndustry),
		deref(p.CompanyURL),
		deref(p.Description),
		formatDate(p.DatePosted),
		deref(p.Salary),
		strconv.FormatBool(p.IsRemote),
		deref(p.ExternalID),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// slug reduces a search term to a safe object-name fragment.
func slug(term string) string {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return "scrape"
	}
	var b strings.Builder
	for _, r := range term {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "scrape"
	}
	return b.String()
}
