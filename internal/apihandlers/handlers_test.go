package apihandlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tubesum/internal/models"
	"tubesum/internal/store"
)

type mockJobService struct {
	mock.Mock
}

func (m *mockJobService) Submit(ctx context.Context, sourceURL string) (string, error) {
	args := m.Called(ctx, sourceURL)
	return args.String(0), args.Error(1)
}

func (m *mockJobService) Get(ctx context.Context, jobID string) (*models.Job, error) {
	args := m.Called(ctx, jobID)
	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *mockJobService) List(ctx context.Context, limit, offset int) ([]*models.Job, error) {
	args := m.Called(ctx, limit, offset)
	jobs, _ := args.Get(0).([]*models.Job)
	return jobs, args.Error(1)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newRouter(h *APIHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h.RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var queuedJob = &models.Job{
	ID:        "job-1",
	SourceURL: "https://youtube.com/watch?v=abc123",
	VideoID:   "abc123",
	Status:    models.JobStatusQueued,
	CreatedAt: time.Date(2024, 5, 1, 7, 30, 0, 0, time.UTC),
}

func TestSubmitVideoHandler(t *testing.T) {
	jobs := new(mockJobService)
	jobs.On("Submit", mock.Anything, queuedJob.SourceURL).Return("job-1", nil).Once()
	jobs.On("Get", mock.Anything, "job-1").Return(queuedJob, nil).Once()

	w := do(newRouter(&APIHandler{Jobs: jobs}), http.MethodPost, "/api/v1/videos",
		`{"url":"https://youtube.com/watch?v=abc123"}`)

	require.Equal(t, http.StatusAccepted, w.Code)
	var resp struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp.Data["job_id"])
	assert.Equal(t, "abc123", resp.Data["video_id"])
	assert.Equal(t, "", resp.Data["title"])
	assert.Equal(t, "queued", resp.Data["status"])
	assert.Nil(t, resp.Data["completed_at"])
	assert.Contains(t, resp.Data, "summary_text")
	assert.Contains(t, resp.Data, "error")
	jobs.AssertExpectations(t)
}

func TestSubmitVideoHandler_Errors(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		submitErr error
		submitID  string
		wantCode  int
		wantError string
	}{
		{name: "malformed json", body: `{"url":`, wantCode: http.StatusBadRequest, wantError: "bad_request"},
		{name: "missing url", body: `{}`, submitErr: fmt.Errorf("%w: source url is required", models.ErrValidation),
			wantCode: http.StatusBadRequest, wantError: "bad_request"},
		{name: "store failure", body: `{"url":"x"}`, submitErr: errors.New("disk full"),
			wantCode: http.StatusInternalServerError, wantError: "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := new(mockJobService)
			jobs.On("Submit", mock.Anything, mock.Anything).Return(tt.submitID, tt.submitErr).Maybe()

			w := do(newRouter(&APIHandler{Jobs: jobs}), http.MethodPost, "/api/v1/videos", tt.body)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), `"code":"`+tt.wantError+`"`)
		})
	}
}

func TestSubmitVideoHandler_DispatchFailureStillAccepted(t *testing.T) {
	failed := queuedJob.Clone()
	failed.Fail(models.JobStatusFetching, models.KindFetch, "fetch failed (FetchError): job could not be dispatched", time.Now())

	jobs := new(mockJobService)
	jobs.On("Submit", mock.Anything, "u").Return("job-1", errors.New("redis down"))
	jobs.On("Get", mock.Anything, "job-1").Return(failed, nil)

	w := do(newRouter(&APIHandler{Jobs: jobs}), http.MethodPost, "/api/v1/videos", `{"url":"u"}`)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"failed"`)
	assert.Contains(t, w.Body.String(), `"error_kind":"FetchError"`)
}

func TestGetVideoHandler(t *testing.T) {
	jobs := new(mockJobService)
	jobs.On("Get", mock.Anything, "job-1").Return(queuedJob, nil)
	jobs.On("Get", mock.Anything, "nope").Return(nil, store.ErrNotFound)
	r := newRouter(&APIHandler{Jobs: jobs})

	w := do(r, http.MethodGet, "/api/v1/videos/job-1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"job_id":"job-1"`)

	w = do(r, http.MethodGet, "/api/v1/videos/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"not_found"`)
}

func TestListVideosHandler(t *testing.T) {
	jobs := new(mockJobService)
	jobs.On("List", mock.Anything, 20, 0).Return([]*models.Job{queuedJob}, nil).Once()
	jobs.On("List", mock.Anything, 5, 10).Return([]*models.Job{}, nil).Once()
	r := newRouter(&APIHandler{Jobs: jobs})

	w := do(r, http.MethodGet, "/api/v1/videos", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"job_id":"job-1"`)

	w = do(r, http.MethodGet, "/api/v1/videos?limit=5&offset=10", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/v1/videos?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	jobs.AssertExpectations(t)
}

func TestHealthHandler(t *testing.T) {
	ok := newRouter(&APIHandler{Store: pingFunc(func(context.Context) error { return nil })})
	assert.Equal(t, http.StatusOK, do(ok, http.MethodGet, "/health", "").Code)

	down := newRouter(&APIHandler{Store: pingFunc(func(context.Context) error { return errors.New("closed") })})
	assert.Equal(t, http.StatusServiceUnavailable, do(down, http.MethodGet, "/health", "").Code)
}

func TestJobError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{"validation", fmt.Errorf("%w: source url is required", models.ErrValidation), http.StatusBadRequest, CodeBadRequest, "source url is required"},
		{"not found", fmt.Errorf("job x: %w", store.ErrNotFound), http.StatusNotFound, CodeNotFound, "job not found"},
		{"other", errors.New("disk full"), http.StatusInternalServerError, CodeInternal, "failed to read job"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			jobError(c, "read job", tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.JSONEq(t, `{"error":{"code":"`+tt.wantCode+`","message":"`+tt.wantMessage+`"}}`, w.Body.String())
		})
	}
}
