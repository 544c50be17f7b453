package postgres

// schemaStatements create the normalized jobs, terms and association tables.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
	job_id               TEXT PRIMARY KEY,
	job_url              TEXT NOT NULL UNIQUE,
	title                TEXT,
	employer             TEXT,
	location             TEXT,
	work_type            TEXT,
	salary               TEXT,
	posting_date         DATE,
	comments             TEXT,
	requirements         TEXT,
	follow_up            TEXT,
	highlight            TEXT,
	applied              TEXT,
	contact              TEXT,
	application_comments TEXT,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS search_terms (
	term_id    SERIAL PRIMARY KEY,
	term_text  TEXT NOT NULL UNIQUE,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS job_search_terms (
	job_id     TEXT NOT NULL REFERENCES jobs (job_id),
	term_id    INTEGER NOT NULL REFERENCES search_terms (term_id),
	valid      BOOLEAN NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (job_id, term_id)
)`,
}
