package scraper

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNormalizeRenamesSourceColumns(t *testing.T) {
	t.Parallel()

	rows := []RawRow{{
		"id":            "abc-123",
		"site":          "indeed",
		"title":         "Go Developer",
		"company":       "Acme",
		"location":      "Denver, CO",
		"job_url":       "https://example.com/jobs/1",
		"salary_source": "90000-120000",
	}}

	out := Normalize(rows, "golang")
	require.Len(t, out, 1)

	p := out[0]
	require.Equal(t, "indeed", p.SiteName)
	require.Equal(t, "Go Developer", p.JobTitle)
	require.Equal(t, "golang", p.SearchTerm)
	require.Equal(t, "https://example.com/jobs/1", p.JobURL)
	require.NotNil(t, p.ExternalID)
	require.Equal(t, "abc-123", *p.ExternalID)
	require.NotNil(t, p.Salary)
	require.Equal(t, "90000-120000", *p.Salary)
}

func TestNormalizeMissingFieldsBecomeNull(t *testing.T) {
	t.Parallel()

	out := Normalize([]RawRow{{
		"site":    "linkedin",
		"title":   "Engineer",
		"job_url": "https://example.com/jobs/2",
	}}, "swe")
	require.Len(t, out, 1)

	p := out[0]
	require.Nil(t, p.Company)
	require.Nil(t, p.JobType)
	require.Nil(t, p.JobLevel)
	require.Nil(t, p.Emails)
	require.Nil(t, p.Description)
	require.Nil(t, p.DatePosted)
	require.Nil(t, p.Salary)
	require.False(t, p.IsRemote)
}

func TestNormalizeNaNSentinelsBecomeNull(t *testing.T) {
	t.Parallel()

	out := Normalize([]RawRow{{
		"site":          "indeed",
		"title":         "Engineer",
		"job_url":       "https://example.com/jobs/3",
		"company":       math.NaN(),
		"salary_source": math.Inf(1),
		"date_posted":   time.Time{},
	}}, "swe")
	require.Len(t, out, 1)

	p := out[0]
	require.Nil(t, p.Company)
	require.Nil(t, p.Salary)
	require.Nil(t, p.DatePosted)
}

func TestNormalizeSearchTermOverridesSource(t *testing.T) {
	t.Parallel()

	out := Normalize([]RawRow{{
		"site":        "google",
		"title":       "Engineer",
		"job_url":     "https://example.com/jobs/4",
		"search_term": "whatever the source says",
	}}, "data engineer")
	require.Len(t, out, 1)
	require.Equal(t, "data engineer", out[0].SearchTerm)
}

func TestNormalizeDateLayouts(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		value any
		want  *time.Time
	}{
		{"rfc3339", "2026-03-15T10:30:00Z", timePtr(2026, 3, 15, 10, 30)},
		{"date only", "2026-03-15", timePtr(2026, 3, 15, 0, 0)},
		{"slashes", "2026/03/15", timePtr(2026, 3, 15, 0, 0)},
		{"written month", "15 Mar 2026", timePtr(2026, 3, 15, 0, 0)},
		{"garbage", "yesterday-ish", nil},
		{"empty", "", nil},
		{"non-string", 42, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out := Normalize([]RawRow{{
				"site":        "indeed",
				"title":       "Engineer",
				"job_url":     "https://example.com/jobs/5",
				"date_posted": tc.value,
			}}, "swe")
			require.Len(t, out, 1)

			if tc.want == nil {
				require.Nil(t, out[0].DatePosted)
				return
			}
			require.NotNil(t, out[0].DatePosted)
			require.True(t, tc.want.Equal(*out[0].DatePosted))
		})
	}
}

func TestNormalizeEmailsVariants(t *testing.T) {
	t.Parallel()

	out := Normalize([]RawRow{
		{"site": "indeed", "title": "A", "job_url": "u1", "emails": []string{"a@x.com", "b@x.com"}},
		{"site": "indeed", "title": "B", "job_url": "u2", "emails": "c@x.com, d@x.com"},
		{"site": "indeed", "title": "C", "job_url": "u3", "emails": []any{"e@x.com"}},
		{"site": "indeed", "title": "D", "job_url": "u4", "emails": "  "},
	}, "swe")
	require.Len(t, out, 4)

	require.NotNil(t, out[0].Emails)
	require.Equal(t, "a@x.com,b@x.com", *out[0].Emails)
	require.NotNil(t, out[1].Emails)
	require.Equal(t, "c@x.com,d@x.com", *out[1].Emails)
	require.NotNil(t, out[2].Emails)
	require.Equal(t, "e@x.com", *out[2].Emails)
	require.Nil(t, out[3].Emails)
}

func TestNormalizeEmptyInput(t *testing.T) {
	t.Parallel()

	out := Normalize(nil, "anything")
	require.NotNil(t, out)
	require.Empty(t, out)
}

func timePtr(year int, month time.Month, day, hour, minute int) *time.Time {
	t := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
	return &t
}
