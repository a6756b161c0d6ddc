package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeScraper struct {
	records []Posting
	err     error
}

func (f *fakeScraper) Scrape(_ context.Context, _ ScrapeRequest) ([]Posting, error) {
	return f.records, f.err
}

type fakeStore struct {
	upserted   []Posting
	inserted   int
	upsertErr  error
	listed     []Posting
	listQuery  ListQuery
	listCalled bool
}

func (f *fakeStore) UpsertPostings(_ context.Context, postings []Posting) (int, error) {
	f.upserted = postings
	return f.inserted, f.upsertErr
}

func (f *fakeStore) ListPostings(_ context.Context, q ListQuery) (int, []Posting, error) {
	f.listCalled = true
	f.listQuery = q
	return len(f.listed), f.listed, nil
}

func (f *fakeStore) GetPosting(_ context.Context, _ int64) (Posting, error) {
	return Posting{}, ErrNotFound
}

func (f *fakeStore) MarkApplied(_ context.Context, _ int64) (bool, error) {
	return false, ErrNotFound
}

type fakeSeenCache struct {
	seen   map[string]bool
	marked []string
	err    error
}

func (f *fakeSeenCache) Seen(_ context.Context, url string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.seen[url], nil
}

func (f *fakeSeenCache) Mark(_ context.Context, urls []string) error {
	f.marked = append(f.marked, urls...)
	return nil
}

type fakeArchiver struct {
	term    string
	batches [][]Posting
	uri     string
	err     error
}

func (f *fakeArchiver) ArchiveBatch(_ context.Context, term string, postings []Posting) (string, error) {
	f.term = term
	f.batches = append(f.batches, postings)
	return f.uri, f.err
}

type fakePublisher struct {
	topics   []string
	payloads []any
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload)
	return "msg-1", f.err
}

func TestRunScrapeEmptyBatch(t *testing.T) {
	t.Parallel()

	store := &fakeStore{}
	svc := NewService(&fakeScraper{records: []Posting{}}, store, nil, nil, nil, "", nil)

	summary, err := svc.RunScrape(context.Background(), ScrapeRequest{SearchTerm: "swe"})
	require.NoError(t, err)
	require.Equal(t, 0, summary.Returned)
	require.Equal(t, 0, summary.Inserted)
	require.Empty(t, summary.Items)
	require.False(t, store.listCalled)
}

func TestRunScrapeScraperErrorPropagates(t *testing.T) {
	t.Parallel()

	boom := errors.New("board down")
	svc := NewService(&fakeScraper{err: boom}, &fakeStore{}, nil, nil, nil, "", nil)

	_, err := svc.RunScrape(context.Background(), ScrapeRequest{SearchTerm: "swe"})
	require.ErrorIs(t, err, boom)
}

func TestRunScrapeQueriesInsertedWindow(t *testing.T) {
	t.Parallel()

	records := []Posting{
		{JobTitle: "A", JobURL: "u1"},
		{JobTitle: "B", JobURL: "u2"},
		{JobTitle: "C", JobURL: "u3"},
	}
	store := &fakeStore{inserted: 2, listed: records[:2]}
	svc := NewService(&fakeScraper{records: records}, store, nil, nil, nil, "", nil)

	summary, err := svc.RunScrape(context.Background(), ScrapeRequest{SearchTerm: "swe"})
	require.NoError(t, err)
	require.Equal(t, 3, summary.Returned)
	require.Equal(t, 2, summary.Inserted)
	require.Len(t, summary.Items, 2)
	require.True(t, store.listCalled)
	require.Equal(t, 2, store.listQuery.Limit)
}

func TestRunScrapeFiltersSeenURLs(t *testing.T) {
	t.Parallel()

	records := []Posting{
		{JobTitle: "Seen", JobURL: "u1"},
		{JobTitle: "Fresh", JobURL: "u2"},
	}
	cache := &fakeSeenCache{seen: map[string]bool{"u1": true}}
	store := &fakeStore{inserted: 1, listed: records[1:]}
	svc := NewService(&fakeScraper{records: records}, store, cache, nil, nil, "", nil)

	_, err := svc.RunScrape(context.Background(), ScrapeRequest{SearchTerm: "swe"})
	require.NoError(t, err)
	require.Len(t, store.upserted, 1)
	require.Equal(t, "Fresh", store.upserted[0].JobTitle)
	require.Equal(t, []string{"u2"}, cache.marked)
}

func TestRunScrapeCacheErrorFallsBackToStore(t *testing.T) {
	t.Parallel()

	records := []Posting{{JobTitle: "A", JobURL: "u1"}}
	cache := &fakeSeenCache{err: errors.New("redis down")}
	store := &fakeStore{inserted: 1, listed: records}
	svc := NewService(&fakeScraper{records: records}, store, cache, nil, nil, "", nil)

	_, err := svc.RunScrape(context.Background(), ScrapeRequest{SearchTerm: "swe"})
	require.NoError(t, err)
	require.Len(t, store.upserted, 1)
}

func TestRunScrapeArchivesAndPublishes(t *testing.T) {
	t.Parallel()

	records := []Posting{{JobTitle: "A", JobURL: "u1"}}
	archiver := &fakeArchiver{uri: "file:///tmp/archive/x.csv"}
	publisher := &fakePublisher{}
	store := &fakeStore{inserted: 1, listed: records}
	svc := NewService(&fakeScraper{records: records}, store, nil, archiver, publisher, "scrape-events", nil)

	_, err := svc.RunScrape(context.Background(), ScrapeRequest{SearchTerm: "golang"})
	require.NoError(t, err)

	require.Equal(t, "golang", archiver.term)
	require.Len(t, archiver.batches, 1)

	require.Equal(t, []string{"scrape-events"}, publisher.topics)
	require.Len(t, publisher.payloads, 1)
	event, ok := publisher.payloads[0].(ScrapeEvent)
	require.True(t, ok)
	require.Equal(t, "golang", event.SearchTerm)
	require.Equal(t, 1, event.Returned)
	require.Equal(t, 1, event.Inserted)
	require.Equal(t, "file:///tmp/archive/x.csv", event.ArchiveURI)
}

func TestRunScrapeArchiveFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	records := []Posting{{JobTitle: "A", JobURL: "u1"}}
	archiver := &fakeArchiver{err: errors.New("bucket gone")}
	store := &fakeStore{inserted: 1, listed: records}
	svc := NewService(&fakeScraper{records: records}, store, nil, archiver, nil, "", nil)

	summary, err := svc.RunScrape(context.Background(), ScrapeRequest{SearchTerm: "swe"})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Inserted)
}

func TestSplitAndJoinEmails(t *testing.T) {
	t.Parallel()

	joined := JoinEmails([]string{" a@x.com", "", "b@x.com "})
	require.NotNil(t, joined)
	require.Equal(t, "a@x.com,b@x.com", *joined)

	require.Equal(t, []string{"a@x.com", "b@x.com"}, SplitEmails(joined))
	require.Nil(t, JoinEmails(nil))
	require.Nil(t, SplitEmails(nil))

	empty := "  "
	require.Nil(t, SplitEmails(&empty))
}

func TestScrapeRequestWithDefaults(t *testing.T) {
	t.Parallel()

	req := ScrapeRequest{SearchTerm: "swe"}.WithDefaults()
	require.Equal(t, []string{"indeed", "linkedin", "google"}, req.Sites)
	require.Equal(t, 20, req.ResultsWanted)
	require.Equal(t, 72, req.HoursOld)

	custom := ScrapeRequest{Sites: []string{"google"}, ResultsWanted: 5, HoursOld: 24}.WithDefaults()
	require.Equal(t, []string{"google"}, custom.Sites)
	require.Equal(t, 5, custom.ResultsWanted)
	require.Equal(t, 24, custom.HoursOld)
}
