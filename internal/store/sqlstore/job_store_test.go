package sqlstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubesum/internal/models"
	"tubesum/internal/store"
)

func setupTestStore(t *testing.T) *JobStore {
	t.Helper()
	s, err := Open(context.Background(), DialectSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func queuedJob(id string, created time.Time) *models.Job {
	return &models.Job{
		ID:        id,
		SourceURL: "https://youtube.com/watch?v=" + id,
		Status:    models.JobStatusQueued,
		CreatedAt: created,
	}
}

func TestJobStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	created := time.Date(2024, 3, 9, 10, 30, 0, 0, time.UTC)

	require.NoError(t, s.Create(ctx, queuedJob("abc", created)))
	assert.ErrorIs(t, s.Create(ctx, queuedJob("abc", created)), store.ErrDuplicate)

	got, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", got.ID)
	assert.Equal(t, models.JobStatusQueued, got.Status)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.Nil(t, got.CompletedAt)

	_, err = s.Get(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJobStore_UpdateLifecycle(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	require.NoError(t, s.Create(ctx, queuedJob("abc", time.Now())))

	_, err := s.Update(ctx, "abc", func(j *models.Job) error {
		j.Status = models.JobStatusFetching
		return nil
	})
	require.NoError(t, err)

	_, err = s.Update(ctx, "abc", func(j *models.Job) error {
		j.VideoID = "abc123"
		j.Title = "Demo Video"
		return nil
	})
	require.NoError(t, err)

	_, err = s.Update(ctx, "abc", func(j *models.Job) error {
		j.Status = models.JobStatusSummarizing
		return nil
	})
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	for _, st := range []models.JobStatus{
		models.JobStatusExtracting,
		models.JobStatusTranscribing,
		models.JobStatusSummarizing,
		models.JobStatusFormatting,
	} {
		st := st
		_, err := s.Update(ctx, "abc", func(j *models.Job) error {
			j.Status = st
			return nil
		})
		require.NoError(t, err, "transition to %s", st)
	}

	done := time.Date(2024, 3, 9, 11, 0, 0, 0, time.UTC)
	final, err := s.Update(ctx, "abc", func(j *models.Job) error {
		j.Complete("# Demo Video (ID: abc123)", done)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, final.Status)

	got, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "Demo Video", got.Title)
	assert.Equal(t, "abc123", got.VideoID)
	assert.Equal(t, "# Demo Video (ID: abc123)", got.SummaryText)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(done))

	_, err = s.Update(ctx, "abc", func(j *models.Job) error {
		j.Fail(models.JobStatusFormatting, models.KindPersistence, "late failure", time.Now())
		return nil
	})
	assert.ErrorIs(t, err, store.ErrInvalidTransition)
}

func TestJobStore_FailedJobRoundTripsErrorFields(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	require.NoError(t, s.Create(ctx, queuedJob("f1", time.Now())))

	_, err := s.Update(ctx, "f1", func(j *models.Job) error {
		j.Fail(models.JobStatusQueued, models.KindFetch, "fetch failed (FetchError): invalid video URL", time.Now())
		return nil
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, models.KindFetch, got.ErrorKind)
	assert.Equal(t, models.JobStatusQueued, got.FailedStage)
	assert.Contains(t, got.Error, "fetch")
	assert.Empty(t, got.SummaryText)
}

func TestJobStore_UpdateMissing(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.Update(context.Background(), "ghost", func(j *models.Job) error { return nil })
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJobStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		require.NoError(t, s.Create(ctx, queuedJob(fmt.Sprintf("j%d", i), base.Add(time.Duration(i)*time.Hour))))
	}

	jobs, err := s.List(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "j2", jobs[0].ID)
	assert.Equal(t, "j1", jobs[1].ID)

	all, err := s.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestRebind(t *testing.T) {
	pg := New(nil, DialectPostgres)
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))

	lite := New(nil, DialectSQLite)
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestOpen_Validation(t *testing.T) {
	_, err := Open(context.Background(), DialectSQLite, "")
	assert.Error(t, err)
	_, err = Open(context.Background(), Dialect("mysql"), "dsn")
	assert.Error(t, err)
}
