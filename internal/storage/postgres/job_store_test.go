package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/mattsolle/jobscout/internal/jobs"
)

func newMockStore(t *testing.T) (*JobStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewJobStoreWithPool(mock)
	require.NoError(t, err)
	return store, mock
}

func expectInsert(mock pgxmock.PgxPoolIface, p jobs.Posting, rowsAffected int64) {
	mock.ExpectExec("INSERT INTO jobs").
		WithArgs(
			p.SiteName, p.SearchTerm, p.JobTitle, p.Company, p.Location,
			p.JobURL, p.JobType, p.JobLevel, p.Emails, p.CompanyIndustry,
			p.CompanyURL, p.ExternalID, p.Description, p.DatePosted,
			p.Salary, p.IsRemote,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", rowsAffected))
}

func TestUpsertPostingsSkipsRecordsWithoutURL(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	withURL := jobs.Posting{SiteName: "indeed", SearchTerm: "golang", JobTitle: "Go Dev", JobURL: "https://example.com/1"}
	expectInsert(mock, withURL, 1)

	inserted, err := store.UpsertPostings(context.Background(), []jobs.Posting{
		{SiteName: "indeed", SearchTerm: "golang", JobTitle: "No URL"},
		withURL,
	})
	require.NoError(t, err)
	require.Equal(t, 1, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPostingsConflictDoesNotCount(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	first := jobs.Posting{SiteName: "indeed", SearchTerm: "golang", JobTitle: "Go Dev", JobURL: "https://example.com/1"}
	second := jobs.Posting{SiteName: "linkedin", SearchTerm: "golang", JobTitle: "Go Dev Again", JobURL: "https://example.com/1"}
	expectInsert(mock, first, 1)
	expectInsert(mock, second, 0)

	inserted, err := store.UpsertPostings(context.Background(), []jobs.Posting{first, second})
	require.NoError(t, err)
	require.Equal(t, 1, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPostingsTotalIgnoresPageWindow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM jobs").
		WithArgs("indeed").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))

	rows := pgxmock.NewRows(postingColumns()).
		AddRow(int64(1), "indeed", "golang", "Go Dev", (*string)(nil), "Remote",
			"https://example.com/1", (*string)(nil), (*string)(nil), (*string)(nil),
			(*string)(nil), (*string)(nil), (*string)(nil), (*string)(nil),
			(*time.Time)(nil), (*string)(nil), false, false, now)
	mock.ExpectQuery("SELECT (.+) FROM jobs WHERE site_name = \\$1 ORDER BY created_at DESC").
		WithArgs("indeed", 1, 0).
		WillReturnRows(rows)

	total, items, err := store.ListPostings(context.Background(), jobs.ListQuery{
		SiteName: "indeed",
		Limit:    1,
	})
	require.NoError(t, err)
	require.Equal(t, 42, total)
	require.Len(t, items, 1)
	require.Equal(t, "Go Dev", items[0].JobTitle)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPostingNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM jobs WHERE id = \\$1").
		WithArgs(int64(999999)).
		WillReturnRows(pgxmock.NewRows(postingColumns()))

	_, err := store.GetPosting(context.Background(), 999999)
	require.ErrorIs(t, err, jobs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkAppliedFirstCall(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE jobs SET applied = TRUE").
		WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	already, err := store.MarkApplied(context.Background(), 7)
	require.NoError(t, err)
	require.False(t, already)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkAppliedRepeatCall(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE jobs SET applied = TRUE").
		WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT applied FROM jobs WHERE id = \\$1").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"applied"}).AddRow(true))

	already, err := store.MarkApplied(context.Background(), 7)
	require.NoError(t, err)
	require.True(t, already)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkAppliedMissingRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE jobs SET applied = TRUE").
		WithArgs(int64(404)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT applied FROM jobs WHERE id = \\$1").
		WithArgs(int64(404)).
		WillReturnRows(pgxmock.NewRows([]string{"applied"}))

	_, err := store.MarkApplied(context.Background(), 404)
	require.ErrorIs(t, err, jobs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func postingColumns() []string {
	return []string{
		"id", "site_name", "search_term", "job_title", "company", "location",
		"job_url", "job_type", "job_level", "emails", "company_industry",
		"company_url", "job_id", "description", "date_posted", "salary",
		"is_remote", "applied", "created_at",
	}
}
