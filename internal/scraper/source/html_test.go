package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mattsolle/jobscout/internal/scraper"
)

const listingPage = `<!DOCTYPE html>
<html><body>
<div class="card">
  <h2 class="job-title"><a href="/jobs/1">Go Developer</a></h2>
  <span class="company">Acme</span>
  <span class="place">Remote, US</span>
  <span class="pay">$120k</span>
  <time class="posted" datetime="2026-02-10">2 days ago</time>
</div>
<div class="card">
  <h2 class="job-title"><a href="/jobs/2">SRE</a></h2>
  <span class="company">Globex</span>
  <span class="place">NYC</span>
</div>
</body></html>`

var testSelectors = BoardSelectors{
	Row:      ".card",
	Title:    ".job-title",
	Company:  ".company",
	Location: ".place",
	URL:      ".job-title a",
	Salary:   ".pay",
	Date:     "time.posted",
}

func TestHTMLSourceFetchExtractsRows(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, listingPage)
	}))
	defer srv.Close()

	src := NewHTML(BoardConfig{
		Site:      "indeed",
		SearchURL: srv.URL + "/jobs?q={term}&l={location}",
		Selectors: testSelectors,
	}, nil)

	rows, err := src.Fetch(context.Background(), scraper.Query{
		Term:     "go developer",
		Location: "remote",
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	require.Equal(t, "indeed", first["site"])
	require.Equal(t, "Go Developer", first["title"])
	require.Equal(t, "Acme", first["company"])
	require.Equal(t, "Remote, US", first["location"])
	require.Equal(t, srv.URL+"/jobs/1", first["job_url"])
	require.Equal(t, "$120k", first["salary_source"])
	require.Equal(t, "2026-02-10", first["date_posted"])

	second := rows[1]
	require.Equal(t, "SRE", second["title"])
	_, hasSalary := second["salary_source"]
	require.False(t, hasSalary)
	_, hasDate := second["date_posted"]
	require.False(t, hasDate)
}

func TestHTMLSourceFetchHonorsLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, listingPage)
	}))
	defer srv.Close()

	src := NewHTML(BoardConfig{
		Site:      "indeed",
		SearchURL: srv.URL + "/jobs?q={term}",
		Selectors: testSelectors,
	}, nil)

	rows, err := src.Fetch(context.Background(), scraper.Query{Term: "go", Limit: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestHTMLSourceFetchDescriptions(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/jobs", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `<div class="card"><h2 class="job-title"><a href="%s/jobs/1">Go Dev</a></h2></div>`, srv.URL)
	})
	mux.HandleFunc("/jobs/1", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<div class="desc">  Long form description.  </div>`)
	})

	selectors := testSelectors
	selectors.Description = ".desc"
	src := NewHTML(BoardConfig{
		Site:      "indeed",
		SearchURL: srv.URL + "/jobs?q={term}",
		Selectors: selectors,
	}, nil)

	rows, err := src.Fetch(context.Background(), scraper.Query{
		Term:              "go",
		Limit:             5,
		FetchDescriptions: true,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Long form description.", rows[0]["description"])
}

func TestHTMLSourceFetchListingError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	src := NewHTML(BoardConfig{
		Site:      "indeed",
		SearchURL: srv.URL + "/jobs?q={term}",
		Selectors: testSelectors,
	}, nil)

	_, err := src.Fetch(context.Background(), scraper.Query{Term: "go", Limit: 5})
	require.Error(t, err)
}

func TestExpandSearchURL(t *testing.T) {
	t.Parallel()

	got := expandSearchURL("https://b.example.com/{country}/jobs?q={term}&l={location}", scraper.Query{
		Term:     "go developer",
		Location: "New York, NY",
		Country:  "US",
	})
	require.Equal(t, "https://b.example.com/us/jobs?q=go+developer&l=New+York%2C+NY", got)
}
