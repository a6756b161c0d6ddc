// Package postgres provides the Postgres-backed posting store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mattsolle/jobscout/internal/jobs"
)

// Config controls the Postgres connection pool used for posting rows.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// JobStore implements jobs.Store on a pgx connection pool.
type JobStore struct {
	pool dbPool
}

const selectColumns = `id, site_name, search_term, job_title, company, location, job_url,
	job_type, job_level, emails, company_industry, company_url, job_id,
	description, date_posted, salary, is_remote, applied, created_at`

const insertPosting = `
INSERT INTO jobs (
	site_name, search_term, job_title, company, location, job_url,
	job_type, job_level, emails, company_industry, company_url, job_id,
	description, date_posted, salary, is_remote
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
)
ON CONFLICT (job_url) DO NOTHING`

// NewJobStore creates a Postgres-backed JobStore using the provided config.
func NewJobStore(ctx context.Context, cfg Config) (*JobStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &JobStore{pool: pool}, nil
}

// NewJobStoreWithPool constructs a store from an existing pool (primarily
// for testing).
func NewJobStoreWithPool(pool dbPool) (*JobStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &JobStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// UpsertPostings inserts postings keyed on the unique job_url, skipping
// records without a URL. Duplicate URLs are ignored at the store level via
// ON CONFLICT DO NOTHING, so concurrent identical batches cannot produce a
// second row or a constraint error. Returns the count of newly inserted
// rows.
func (s *JobStore) UpsertPostings(ctx context.Context, postings []jobs.Posting) (int, error) {
	inserted := 0
	for _, p := range postings {
		if p.JobURL == "" {
			continue
		}
		tag, err := s.pool.Exec(ctx, insertPosting,
			p.SiteName,
			p.SearchTerm,
			p.JobTitle,
			p.Company,
			p.Location,
			p.JobURL,
			p.JobType,
			p.JobLevel,
			p.Emails,
			p.CompanyIndustry,
			p.CompanyURL,
			p.ExternalID,
			p.Description,
			p.DatePosted,
			p.Salary,
			p.IsRemote,
		)
		if err != nil {
			return inserted, fmt.Errorf("insert posting %s: %w", p.JobURL, err)
		}
		if tag.RowsAffected() > 0 {
			inserted++
		}
	}
	return inserted, nil
}

// ListPostings returns the total count of rows matching the filters
// (ignoring limit/offset) and the matching page ordered by created_at
// descending.
func (s *JobStore) ListPostings(ctx context.Context, q jobs.ListQuery) (int, []jobs.Posting, error) {
	where, args := buildFilters(q)

	countQuery := "SELECT COUNT(*) FROM jobs" + where
	var total int
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return 0, nil, fmt.Errorf("count postings: %w", err)
	}

	pageArgs := append(args, q.Limit, q.Offset)
	pageQuery := fmt.Sprintf(
		"SELECT %s FROM jobs%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		selectColumns, where, len(args)+1, len(args)+2,
	)
	rows, err := s.pool.Query(ctx, pageQuery, pageArgs...)
	if err != nil {
		return 0, nil, fmt.Errorf("list postings: %w", err)
	}
	defer rows.Close()

	var items []jobs.Posting
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return 0, nil, fmt.Errorf("scan posting: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("iterate postings: %w", err)
	}
	return total, items, nil
}

// GetPosting returns the posting with the given internal id.
func (s *JobStore) GetPosting(ctx context.Context, id int64) (jobs.Posting, error) {
	query := fmt.Sprintf("SELECT %s FROM jobs WHERE id = $1", selectColumns)
	p, err := scanPosting(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return jobs.Posting{}, jobs.ErrNotFound
		}
		return jobs.Posting{}, fmt.Errorf("get posting %d: %w", id, err)
	}
	return p, nil
}

// MarkApplied sets the applied flag with a write-if-changed update. It
// reports already=true when the flag was set before the call and
// jobs.ErrNotFound when no row exists.
func (s *JobStore) MarkApplied(ctx context.Context, id int64) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		"UPDATE jobs SET applied = TRUE WHERE id = $1 AND applied = FALSE", id)
	if err != nil {
		return false, fmt.Errorf("mark applied %d: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}

	// No row changed: either the posting is missing or it was applied
	// before this call.
	var applied bool
	err = s.pool.QueryRow(ctx, "SELECT applied FROM jobs WHERE id = $1", id).Scan(&applied)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, jobs.ErrNotFound
		}
		return false, fmt.Errorf("check applied %d: %w", id, err)
	}
	return applied, nil
}

// buildFilters assembles the WHERE clause and its arguments for ListPostings.
func buildFilters(q jobs.ListQuery) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(format string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(format, len(args)))
	}

	if q.SiteName != "" {
		add("site_name = $%d", q.SiteName)
	}
	if q.SearchTerm != "" {
		add("search_term ILIKE $%d", "%"+q.SearchTerm+"%")
	}
	if q.Location != "" {
		add("location ILIKE $%d", "%"+q.Location+"%")
	}
	if q.Company != "" {
		add("company ILIKE $%d", "%"+q.Company+"%")
	}
	if q.Text != "" {
		args = append(args, "%"+q.Text+"%")
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(
			"(job_title ILIKE $%d OR description ILIKE $%d OR company ILIKE $%d)", n, n, n))
	}
	if !q.CreatedAfter.IsZero() {
		add("created_at >= $%d", q.CreatedAfter)
	}
	if q.Applied != nil {
		add("applied = $%d", *q.Applied)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanPosting(row pgx.Row) (jobs.Posting, error) {
	var p jobs.Posting
	err := row.Scan(
		&p.ID,
		&p.SiteName,
		&p.SearchTerm,
		&p.JobTitle,
		&p.Company,
		&p.Location,
		&p.JobURL,
		&p.JobType,
		&p.JobLevel,
		&p.Emails,
		&p.CompanyIndustry,
		&p.CompanyURL,
		&p.ExternalID,
		&p.Description,
		&p.DatePosted,
		&p.Salary,
		&p.IsRemote,
		&p.Applied,
		&p.CreatedAt,
	)
	if err != nil {
		return jobs.Posting{}, err
	}
	return p, nil
}
