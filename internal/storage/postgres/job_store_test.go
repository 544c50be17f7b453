package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
)

func newMockStore(t *testing.T) (*JobStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	store, err := NewWithPool(mock)
	require.NoError(t, err)
	now := time.Unix(1700000000, 0).UTC()
	store.now = func() time.Time { return now }
	return store, mock
}

func TestRecordOutcomeRunsInTransaction(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()
	now := store.now()
	title := "Data Engineer"
	outcome := crawler.Outcome{
		Term:   "python",
		URL:    "https://jobs.example.com/job/42",
		JobID:  "42",
		Fields: crawler.JobFields{Title: &title},
		Valid:  true,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO jobs").
		WithArgs("42", outcome.URL, &title, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("INSERT INTO search_terms").
		WithArgs("python", now).
		WillReturnRows(pgxmock.NewRows([]string{"term_id"}).AddRow(int64(3)))
	mock.ExpectExec("INSERT INTO job_search_terms").
		WithArgs("42", int64(3), true, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, store.RecordOutcome(context.Background(), outcome))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordOutcomeRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO jobs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("INSERT INTO search_terms").
		WithArgs("python", pgxmock.AnyArg()).
		WillReturnError(errors.New("connection lost"))
	mock.ExpectRollback()

	err := store.RecordOutcome(context.Background(), crawler.Outcome{
		Term: "python", URL: "https://jobs.example.com/job/1", JobID: "1",
	})
	require.ErrorIs(t, err, crawler.ErrStore)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLookupValidities(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT t.term_text, jst.valid").
		WithArgs("42").
		WillReturnRows(pgxmock.NewRows([]string{"term_text", "valid"}).
			AddRow("python", true).
			AddRow("java", false))

	got, err := store.LookupValidities(context.Background(), "42")
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"python": true, "java": false}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCount(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(false).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(12)))

	got, err := store.Count(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 12, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListTerms(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()
	updated := time.Unix(1690000000, 0).UTC()

	mock.ExpectQuery("SELECT term_id, term_text, updated_at FROM search_terms").
		WillReturnRows(pgxmock.NewRows([]string{"term_id", "term_text", "updated_at"}).
			AddRow(int64(1), "go", updated).
			AddRow(int64(2), "python", updated))

	got, err := store.ListTerms(context.Background())
	require.NoError(t, err)
	require.Equal(t, []crawler.SearchTerm{
		{ID: 1, Text: "go", UpdatedAt: updated},
		{ID: 2, Text: "python", UpdatedAt: updated},
	}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshFieldsUnknownJob(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()
	salary := "$120k"

	mock.ExpectExec("UPDATE jobs SET").
		WithArgs("missing", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), &salary, pgxmock.AnyArg(), store.now()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.RefreshFields(context.Background(), "missing", crawler.JobFields{Salary: &salary})
	require.ErrorIs(t, err, crawler.ErrStore)
	require.ErrorIs(t, err, errJobNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateCreatesTables(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS jobs").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS search_terms").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS job_search_terms").WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.Migrate(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.Error(t, err)
	_, err = NewWithPool(nil)
	require.Error(t, err)
}

func TestListAssociationsPassesFilter(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()
	updated := time.Unix(1690000000, 0).UTC()
	invalid := false
	filter := crawler.AssociationFilter{Valid: &invalid}

	mock.ExpectQuery("SELECT jst.job_id, j.job_url, t.term_text").
		WithArgs(filter.Valid, filter.Term).
		WillReturnRows(pgxmock.NewRows([]string{"job_id", "job_url", "term_text", "valid", "updated_at"}).
			AddRow("7", "https://jobs.example.com/job/7", "go", false, updated))

	got, err := store.ListAssociations(context.Background(), filter)
	require.NoError(t, err)
	require.Equal(t, []crawler.Association{
		{JobID: "7", JobURL: "https://jobs.example.com/job/7", Term: "go", Valid: false, UpdatedAt: updated},
	}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTermValiditiesGroupsByJob(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT jst.job_id, t.term_text, jst.valid").
		WillReturnRows(pgxmock.NewRows([]string{"job_id", "term_text", "valid"}).
			AddRow("1", "go", true).
			AddRow("1", "rust", false).
			AddRow("2", "go", false))

	got, err := store.TermValidities(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]map[string]bool{
		"1": {"go": true, "rust": false},
		"2": {"go": false},
	}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListJobsWrapsQueryError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT j.job_id, j.job_url").
		WithArgs(true).
		WillReturnError(errors.New("connection reset"))

	_, err := store.ListJobs(context.Background(), true)
	require.ErrorIs(t, err, crawler.ErrStore)
	require.NoError(t, mock.ExpectationsWereMet())
}
