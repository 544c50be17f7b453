// Package postgres provides the Postgres-backed job store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// JobStore implements crawler.JobStore on Postgres.
type JobStore struct {
	pool pool
	now  func() time.Time
}

// New connects to Postgres using the provided config.
func New(ctx context.Context, cfg Config) (*JobStore, error) {
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
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &JobStore{pool: p, now: time.Now}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool) (*JobStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &JobStore{pool: p, now: time.Now}, nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Migrate creates the schema if it does not exist.
func (s *JobStore) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: migrate: %w", crawler.ErrStore, err)
		}
	}
	return nil
}

const (
	upsertJobSQL = `
INSERT INTO jobs (job_id, job_url, title, employer, location, work_type, salary, posting_date, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (job_id) DO UPDATE SET
	title        = COALESCE(jobs.title, EXCLUDED.title),
	employer     = COALESCE(jobs.employer, EXCLUDED.employer),
	location     = COALESCE(jobs.location, EXCLUDED.location),
	work_type    = COALESCE(jobs.work_type, EXCLUDED.work_type),
	salary       = COALESCE(jobs.salary, EXCLUDED.salary),
	posting_date = COALESCE(jobs.posting_date, EXCLUDED.posting_date),
	updated_at   = EXCLUDED.updated_at`

	upsertTermSQL = `
INSERT INTO search_terms (term_text, updated_at)
VALUES ($1, $2)
ON CONFLICT (term_text) DO UPDATE SET updated_at = EXCLUDED.updated_at
RETURNING term_id`

	upsertAssociationSQL = `
INSERT INTO job_search_terms (job_id, term_id, valid, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (job_id, term_id) DO UPDATE SET
	valid      = EXCLUDED.valid,
	updated_at = EXCLUDED.updated_at`
)

// RecordOutcome upserts the job, its term and their association in one
// transaction. Existing non-null job fields are never replaced.
func (s *JobStore) RecordOutcome(ctx context.Context, outcome crawler.Outcome) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", crawler.ErrStore, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	now := s.now().UTC()
	f := outcome.Fields
	if _, err := tx.Exec(ctx, upsertJobSQL,
		outcome.JobID,
		outcome.URL,
		f.Title,
		f.Employer,
		f.Location,
		f.WorkType,
		f.Salary,
		f.PostingDate,
		now,
	); err != nil {
		return fmt.Errorf("%w: upsert job %s: %w", crawler.ErrStore, outcome.JobID, err)
	}

	var termID int64
	if err := tx.QueryRow(ctx, upsertTermSQL, outcome.Term, now).Scan(&termID); err != nil {
		return fmt.Errorf("%w: upsert term %q: %w", crawler.ErrStore, outcome.Term, err)
	}

	if _, err := tx.Exec(ctx, upsertAssociationSQL, outcome.JobID, termID, outcome.Valid, now); err != nil {
		return fmt.Errorf("%w: upsert association: %w", crawler.ErrStore, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %w", crawler.ErrStore, err)
	}
	return nil
}

// LookupValidities returns every recorded term validity of a job.
func (s *JobStore) LookupValidities(ctx context.Context, jobID string) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, `
SELECT t.term_text, jst.valid
FROM job_search_terms jst
JOIN search_terms t ON t.term_id = jst.term_id
WHERE jst.job_id = $1`, jobID)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup %s: %w", crawler.ErrStore, jobID, err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var (
			term  string
			valid bool
		)
		if err := rows.Scan(&term, &valid); err != nil {
			return nil, fmt.Errorf("%w: scan validity: %w", crawler.ErrStore, err)
		}
		out[term] = valid
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: lookup %s: %w", crawler.ErrStore, jobID, err)
	}
	return out, nil
}

// Count returns the number of distinct jobs with an association of the given
// validity.
func (s *JobStore) Count(ctx context.Context, valid bool) (int, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT job_id) FROM job_search_terms WHERE valid = $1`, valid,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %w", crawler.ErrStore, err)
	}
	return int(n), nil
}

// ListAssociations returns associations matching filter ordered by job id
// then term id.
func (s *JobStore) ListAssociations(ctx context.Context, filter crawler.AssociationFilter) ([]crawler.Association, error) {
	rows, err := s.pool.Query(ctx, `
SELECT jst.job_id, j.job_url, t.term_text, jst.valid, jst.updated_at
FROM job_search_terms jst
JOIN jobs j ON j.job_id = jst.job_id
JOIN search_terms t ON t.term_id = jst.term_id
WHERE ($1::boolean IS NULL OR jst.valid = $1)
  AND ($2::text IS NULL OR t.term_text = $2)
ORDER BY jst.job_id, t.term_id`, filter.Valid, filter.Term)
	if err != nil {
		return nil, fmt.Errorf("%w: list associations: %w", crawler.ErrStore, err)
	}
	defer rows.Close()

	var out []crawler.Association
	for rows.Next() {
		var a crawler.Association
		if err := rows.Scan(&a.JobID, &a.JobURL, &a.Term, &a.Valid, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan association: %w", crawler.ErrStore, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list associations: %w", crawler.ErrStore, err)
	}
	return out, nil
}

// ListJobs returns jobs ordered by id, optionally only those with a valid
// association.
func (s *JobStore) ListJobs(ctx context.Context, onlyValid bool) ([]crawler.Job, error) {
	rows, err := s.pool.Query(ctx, `
SELECT j.job_id, j.job_url, j.title, j.employer, j.location, j.work_type, j.salary, j.posting_date,
       j.comments, j.requirements, j.follow_up, j.highlight, j.applied, j.contact,
       j.application_comments, j.updated_at
FROM jobs j
WHERE NOT $1::boolean
   OR EXISTS (SELECT 1 FROM job_search_terms v WHERE v.job_id = j.job_id AND v.valid)
ORDER BY j.job_id`, onlyValid)
	if err != nil {
		return nil, fmt.Errorf("%w: list jobs: %w", crawler.ErrStore, err)
	}
	defer rows.Close()

	var out []crawler.Job
	for rows.Next() {
		var j crawler.Job
		if err := rows.Scan(
			&j.ID, &j.URL,
			&j.Fields.Title, &j.Fields.Employer, &j.Fields.Location, &j.Fields.WorkType,
			&j.Fields.Salary, &j.Fields.PostingDate,
			&j.Comments, &j.Requirements, &j.FollowUp, &j.Highlight, &j.Applied, &j.Contact,
			&j.ApplicationComments, &j.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: scan job: %w", crawler.ErrStore, err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list jobs: %w", crawler.ErrStore, err)
	}
	return out, nil
}

// ListTerms returns terms ordered by id.
func (s *JobStore) ListTerms(ctx context.Context) ([]crawler.SearchTerm, error) {
	rows, err := s.pool.Query(ctx, `SELECT term_id, term_text, updated_at FROM search_terms ORDER BY term_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: list terms: %w", crawler.ErrStore, err)
	}
	defer rows.Close()

	var out []crawler.SearchTerm
	for rows.Next() {
		var t crawler.SearchTerm
		if err := rows.Scan(&t.ID, &t.Text, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan term: %w", crawler.ErrStore, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list terms: %w", crawler.ErrStore, err)
	}
	return out, nil
}

// TermValidities returns job id -> term -> validity for every association.
func (s *JobStore) TermValidities(ctx context.Context) (map[string]map[string]bool, error) {
	rows, err := s.pool.Query(ctx, `
SELECT jst.job_id, t.term_text, jst.valid
FROM job_search_terms jst
JOIN search_terms t ON t.term_id = jst.term_id`)
	if err != nil {
		return nil, fmt.Errorf("%w: term validities: %w", crawler.ErrStore, err)
	}
	defer rows.Close()

	out := make(map[string]map[string]bool)
	for rows.Next() {
		var (
			jobID, term string
			valid       bool
		)
		if err := rows.Scan(&jobID, &term, &valid); err != nil {
			return nil, fmt.Errorf("%w: scan validity: %w", crawler.ErrStore, err)
		}
		if out[jobID] == nil {
			out[jobID] = make(map[string]bool)
		}
		out[jobID][term] = valid
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: term validities: %w", crawler.ErrStore, err)
	}
	return out, nil
}

var errJobNotFound = errors.New("job not found")

// RefreshFields overwrites stored fields with every non-nil value in fields.
func (s *JobStore) RefreshFields(ctx context.Context, jobID string, fields crawler.JobFields) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE jobs SET
	title        = COALESCE($2, title),
	employer     = COALESCE($3, employer),
	location     = COALESCE($4, location),
	work_type    = COALESCE($5, work_type),
	salary       = COALESCE($6, salary),
	posting_date = COALESCE($7, posting_date),
	updated_at   = $8
WHERE job_id = $1`,
		jobID,
		fields.Title,
		fields.Employer,
		fields.Location,
		fields.WorkType,
		fields.Salary,
		fields.PostingDate,
		s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("%w: refresh %s: %w", crawler.ErrStore, jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: refresh %s: %w", crawler.ErrStore, jobID, errJobNotFound)
	}
	return nil
}
