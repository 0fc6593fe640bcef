package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/mattn/go-sqlite3"    // registers the "sqlite3" driver
	log "github.com/sirupsen/logrus"

	"tubesum/internal/models"
	"tubesum/internal/store"
)

// Dialect selects driver name, placeholder style and DDL types.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite3"
}

// JobStore persists jobs in a SQL table so several processes (serve, worker)
// can share job state.
type JobStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

var _ store.JobStore = (*JobStore)(nil)

// Open connects to the database, pings it and creates the jobs table if needed.
func Open(ctx context.Context, dialect Dialect, dsn string) (*JobStore, error) {
	if dsn == "" {
		return nil, errors.New("database DSN cannot be empty")
	}
	if dialect != DialectSQLite && dialect != DialectPostgres {
		return nil, fmt.Errorf("unsupported SQL dialect %q", dialect)
	}
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}
	if dialect == DialectSQLite {
		// A single connection keeps ":memory:" databases alive and serializes writers.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	s := New(db, dialect)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection pool. Call Migrate before use.
func New(db *sql.DB, dialect Dialect) *JobStore {
	return &JobStore{db: db, dialect: dialect, now: time.Now}
}

// Migrate creates the summary_jobs table.
func (s *JobStore) Migrate(ctx context.Context) error {
	ts := "TIMESTAMP"
	if s.dialect == DialectPostgres {
		ts = "TIMESTAMPTZ"
	}
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS summary_jobs (
			id           TEXT PRIMARY KEY,
			source_url   TEXT NOT NULL,
			video_id     TEXT NOT NULL DEFAULT '',
			title        TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL,
			created_at   %[1]s NOT NULL,
			completed_at %[1]s NULL,
			summary_text TEXT NOT NULL DEFAULT '',
			error        TEXT NOT NULL DEFAULT '',
			error_kind   TEXT NOT NULL DEFAULT '',
			failed_stage TEXT NOT NULL DEFAULT '',
			updated_at   %[1]s NOT NULL
		)`, ts)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create summary_jobs table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS summary_jobs_created_at_idx ON summary_jobs (created_at)`); err != nil {
		return fmt.Errorf("create summary_jobs index: %w", err)
	}
	return nil
}

// rebind rewrites "?" placeholders to "$n" for PostgreSQL.
func (s *JobStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const jobColumns = `id, source_url, video_id, title, status, created_at, completed_at, summary_text, error, error_kind, failed_stage, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var (
		j           models.Job
		status      string
		kind        string
		failedStage string
		completedAt sql.NullTime
	)
	err := row.Scan(
		&j.ID,
		&j.SourceURL,
		&j.VideoID,
		&j.Title,
		&status,
		&j.CreatedAt,
		&completedAt,
		&j.SummaryText,
		&j.Error,
		&kind,
		&failedStage,
		&j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	j.Status = models.JobStatus(status)
	j.ErrorKind = models.ErrorKind(kind)
	j.FailedStage = models.JobStatus(failedStage)
	j.CreatedAt = j.CreatedAt.UTC()
	j.UpdatedAt = j.UpdatedAt.UTC()
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		j.CompletedAt = &t
	}
	return &j, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func (s *JobStore) Create(ctx context.Context, job *models.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("%w: job id is required", models.ErrValidation)
	}
	if job.Status != models.JobStatusQueued {
		return fmt.Errorf("%w: new job %s must be %s, got %s", models.ErrValidation, job.ID, models.JobStatusQueued, job.Status)
	}

	query := s.rebind(`
		INSERT INTO summary_jobs (` + jobColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`)

	res, err := s.db.ExecContext(ctx, query,
		job.ID,
		job.SourceURL,
		job.VideoID,
		job.Title,
		string(job.Status),
		job.CreatedAt.UTC(),
		nullTime(job.CompletedAt),
		job.SummaryText,
		job.Error,
		string(job.ErrorKind),
		string(job.FailedStage),
		s.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert job %s: %w", job.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("job %s: %w", job.ID, store.ErrDuplicate)
	}
	return nil
}

func (s *JobStore) Get(ctx context.Context, id string) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+jobColumns+` FROM summary_jobs WHERE id = ?`), id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}
	return job, nil
}

func (s *JobStore) Update(ctx context.Context, id string, fn store.UpdateFunc) (*models.Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update of job %s: %w", id, err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Warnf("rollback of job %s update failed: %v", id, err)
		}
	}()

	selectQuery := `SELECT ` + jobColumns + ` FROM summary_jobs WHERE id = ?`
	if s.dialect == DialectPostgres {
		selectQuery += ` FOR UPDATE`
	}
	current, err := scanJob(tx.QueryRowContext(ctx, s.rebind(selectQuery), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s for update: %w", id, err)
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := store.CheckUpdate(current, next); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now().UTC()

	updateQuery := s.rebind(`
		UPDATE summary_jobs
		SET video_id = ?, title = ?, status = ?, completed_at = ?, summary_text = ?,
		    error = ?, error_kind = ?, failed_stage = ?, updated_at = ?
		WHERE id = ?`)
	if _, err := tx.ExecContext(ctx, updateQuery,
		next.VideoID,
		next.Title,
		string(next.Status),
		nullTime(next.CompletedAt),
		next.SummaryText,
		next.Error,
		string(next.ErrorKind),
		string(next.FailedStage),
		next.UpdatedAt,
		id,
	); err != nil {
		return nil, fmt.Errorf("failed to update job %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update of job %s: %w", id, err)
	}
	return next, nil
}

func (s *JobStore) List(ctx context.Context, limit, offset int) ([]*models.Job, error) {
	if limit <= 0 {
		limit = math.MaxInt32
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT `+jobColumns+` FROM summary_jobs ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`),
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*models.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}
	return jobs, nil
}

// Ping checks the database connection.
func (s *JobStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection pool.
func (s *JobStore) Close() error {
	return s.db.Close()
}
