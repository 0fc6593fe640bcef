package apihandlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"tubesum/internal/app"
	"tubesum/internal/models"
)

// JobService is the part of the pipeline the HTTP layer drives.
type JobService interface {
	Submit(ctx context.Context, sourceURL string) (string, error)
	Get(ctx context.Context, jobID string) (*models.Job, error)
	List(ctx context.Context, limit, offset int) ([]*models.Job, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type APIHandler struct {
	Jobs  JobService
	Store Pinger
}

func NewAPIHandler(a *app.App) *APIHandler {
	return &APIHandler{Jobs: a.Pipeline, Store: a.JobStore}
}

// RegisterRoutes mounts the intake API and health check on r.
func (h *APIHandler) RegisterRoutes(r gin.IRouter) {
	v1 := r.Group("/api/v1")
	{
		videos := v1.Group("/videos")
		{
			videos.POST("", h.SubmitVideoHandler)
			videos.GET("", h.ListVideosHandler)
			videos.GET("/:id", h.GetVideoHandler)
		}
	}
	r.GET("/health", h.HealthHandler)
}

// SubmitVideoRequest is the intake body.
type SubmitVideoRequest struct {
	URL string `json:"url"`
}

// JobView is the externally visible snapshot of a job.
type JobView struct {
	JobID       string     `json:"job_id"`
	SourceURL   string     `json:"source_url"`
	VideoID     string     `json:"video_id"`
	Title       string     `json:"title"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
	SummaryText string     `json:"summary_text"`
	Error       string     `json:"error"`
	ErrorKind   string     `json:"error_kind,omitempty"`
	FailedStage string     `json:"failed_stage,omitempty"`
}

func NewJobView(j *models.Job) JobView {
	return JobView{
		JobID:       j.ID,
		SourceURL:   j.SourceURL,
		VideoID:     j.VideoID,
		Title:       j.Title,
		Status:      string(j.Status),
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
		SummaryText: j.SummaryText,
		Error:       j.Error,
		ErrorKind:   string(j.ErrorKind),
		FailedStage: string(j.FailedStage),
	}
}

func (h *APIHandler) SubmitVideoHandler(c *gin.Context) {
	var req SubmitVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	id, err := h.Jobs.Submit(c.Request.Context(), req.URL)
	if err != nil && id == "" {
		jobError(c, "create job", err)
		return
	}
	if err != nil {
		// The job exists and already records the dispatch failure.
		log.WithField("job_id", id).Warnf("SubmitVideoHandler: %v", err)
	}

	job, err := h.Jobs.Get(c.Request.Context(), id)
	if err != nil {
		jobError(c, "read job", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"data": NewJobView(job)})
}

func (h *APIHandler) GetVideoHandler(c *gin.Context) {
	job, err := h.Jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		jobError(c, "read job", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": NewJobView(job)})
}

func (h *APIHandler) ListVideosHandler(c *gin.Context) {
	limit, err := queryInt(c, "limit", 20)
	if err != nil || limit <= 0 {
		BadRequest(c, "limit must be a positive integer")
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		BadRequest(c, "offset must be a non-negative integer")
		return
	}

	jobs, err := h.Jobs.List(c.Request.Context(), limit, offset)
	if err != nil {
		jobError(c, "list jobs", err)
		return
	}
	views := make([]JobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, NewJobView(j))
	}
	c.JSON(http.StatusOK, gin.H{"data": views})
}

func (h *APIHandler) HealthHandler(c *gin.Context) {
	if h.Store != nil {
		if err := h.Store.Ping(c.Request.Context()); err != nil {
			JSONError(c, http.StatusServiceUnavailable, CodeUnavailable, "job store unreachable")
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
