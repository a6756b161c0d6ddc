// Package scraper turns heterogeneous job-board output into canonical
// posting records.
package scraper

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mattsolle/jobscout/internal/jobs"
)

// RawRow is one record produced by a source, keyed by the source's native
// column names. Values come straight off the wire: strings, numbers, bools,
// times or nil.
type RawRow map[string]any

// columnRenames maps known source-native column names to canonical field
// names. Columns not listed here pass through unchanged and are dropped by
// the final projection.
var columnRenames = map[string]string{
	"id":               "job_id",
	"site":             "site_name",
	"title":            "job_title",
	"company":          "company",
	"location":         "location",
	"job_url":          "job_url",
	"job_type":         "job_type",
	"job_level":        "job_level",
	"emails":           "emails",
	"company_industry": "company_industry",
	"company_url":      "company_url",
	"description":      "description",
	"date_posted":      "date_posted",
	"salary_source":    "salary",
	"is_remote":        "is_remote",
}

// dateLayouts are tried in order when a source reports the posting date as a
// string. Unparseable values become null rather than failing the batch.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"02 Jan 2006",
	"Jan 2, 2006",
	time.RFC1123,
}

// Normalize converts raw source rows into canonical postings. Every record
// carries the full canonical field set: fields absent from the source are
// null, engine sentinels (NaN, zero time) are null, and the search term of
// the originating request overrides any source-provided value. An empty
// input yields an empty slice without error.
func Normalize(rows []RawRow, searchTerm string) []jobs.Posting {
	out := make([]jobs.Posting, 0, len(rows))
	for _, row := range rows {
		r := renameColumns(row)
		posting := jobs.Posting{
			SiteName:        stringOrEmpty(r["site_name"]),
			SearchTerm:      searchTerm,
			JobTitle:        stringOrEmpty(r["job_title"]),
			Company:         asString(r["company"]),
			Location:        stringOrEmpty(r["location"]),
			JobURL:          stringOrEmpty(r["job_url"]),
			JobType:         asString(r["job_type"]),
			JobLevel:        asString(r["job_level"]),
			Emails:          asEmails(r["emails"]),
			CompanyIndustry: asString(r["company_industry"]),
			CompanyURL:      asString(r["company_url"]),
			ExternalID:      asString(r["job_id"]),
			Description:     asString(r["description"]),
			DatePosted:      asTime(r["date_posted"]),
			Salary:          asString(r["salary"]),
			IsRemote:        asBool(r["is_remote"]),
		}
		out = append(out, posting)
	}
	return out
}

func renameColumns(row RawRow) RawRow {
	renamed := make(RawRow, len(row))
	for k, v := range row {
		key := k
		if canonical, ok := columnRenames[k]; ok {
			key = canonical
		}
		renamed[key] = v
	}
	return renamed
}

// asString coerces a raw value to a nullable string. NaN and infinite floats
// are engine sentinels for "missing" and become nil.
func asString(v any) *string {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return &val
	case *string:
		return val
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		s := strconv.FormatFloat(val, 'f', -1, 64)
		return &s
	case int:
		s := strconv.Itoa(val)
		return &s
	case int64:
		s := strconv.FormatInt(val, 10)
		return &s
	case bool:
		s := strconv.FormatBool(val)
		return &s
	default:
		s := fmt.Sprint(val)
		return &s
	}
}

func stringOrEmpty(v any) string {
	if s := asString(v); s != nil {
		return *s
	}
	return ""
}

// asEmails normalizes the emails field into the stored comma-separated
// representation regardless of whether the source reports a string or a
// list.
func asEmails(v any) *string {
	switch val := v.(type) {
	case nil:
		return nil
	case []string:
		return jobs.JoinEmails(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := asString(item); s != nil {
				parts = append(parts, *s)
			}
		}
		return jobs.JoinEmails(parts)
	default:
		s := asString(v)
		if s == nil || strings.TrimSpace(*s) == "" {
			return nil
		}
		return jobs.JoinEmails(strings.Split(*s, ","))
	}
}

func asBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		return err == nil && b
	case float64:
		return !math.IsNaN(val) && val != 0
	default:
		return false
	}
}

// asTime parses the posting date leniently. Zero times and strings no layout
// matches become nil.
func asTime(v any) *time.Time {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		if val.IsZero() {
			return nil
		}
		return &val
	case *time.Time:
		if val == nil || val.IsZero() {
			return nil
		}
		return val
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, trimmed); err == nil {
				return &t
			}
		}
		return nil
	default:
		return nil
	}
}
