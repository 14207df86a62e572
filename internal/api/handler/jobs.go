package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kiranshivaraju/partscout/internal/ai"
	"github.com/kiranshivaraju/partscout/internal/api/response"
	"github.com/kiranshivaraju/partscout/internal/store"
	"github.com/kiranshivaraju/partscout/pkg/models"
)

const defaultMaxUploadBytes = 10 << 20

// JobService is the slice of ai.AnalysisService the handlers depend on.
type JobService interface {
	Submit(ctx context.Context, req ai.SubmitRequest) (*models.Job, error)
	Job(ctx context.Context, id string) (*models.Job, error)
	JobStatus(ctx context.Context, id string) (string, error)
	Forget(ctx context.Context, id string) error
}

// JobReader is the read side of the job store.
type JobReader interface {
	List(ctx context.Context, filter store.ListFilter) ([]*models.Job, error)
	Stats(ctx context.Context) (*models.JobStats, error)
}

// Jobs serves the /api/v1/analyze and /api/v1/jobs endpoints.
type Jobs struct {
	svc            JobService
	jobs           JobReader
	validate       *validator.Validate
	maxUploadBytes int64
}

// NewJobs creates the job handlers. maxUploadBytes caps the request body of a
// submission; zero selects 10 MiB.
func NewJobs(svc JobService, jobs JobReader, maxUploadBytes int64) *Jobs {
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Jobs{
		svc:            svc,
		jobs:           jobs,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		maxUploadBytes: maxUploadBytes,
	}
}

type submitResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Mode      string `json:"mode"`
	StatusURL string `json:"status_url"`
}

// Analyze handles POST /api/v1/analyze.
func (h *Jobs) Analyze(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeSubmit(w, r)
	if !ok {
		return
	}

	job, err := h.svc.Submit(r.Context(), req)
	if err != nil {
		writeJobError(w, err)
		return
	}

	response.Accepted(w, submitResponse{
		ID:        job.ID,
		Status:    job.Status,
		Mode:      job.Mode,
		StatusURL: "/api/v1/jobs/" + job.ID,
	})
}

// List handles GET /api/v1/jobs.
func (h *Jobs) List(w http.ResponseWriter, r *http.Request) {
	filter, details := parseListFilter(r)
	if len(details) > 0 {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid query parameters", details)
		return
	}

	jobs, err := h.jobs.List(r.Context(), filter)
	if err != nil {
		writeJobError(w, err)
		return
	}

	filters := map[string]any{}
	if filter.Status != "" {
		filters["status"] = filter.Status
	}
	if filter.Mode != "" {
		filters["mode"] = filter.Mode
	}
	if filter.Success != nil {
		filters["success"] = *filter.Success
	}
	response.List(w, jobs, response.ListMeta{Count: len(jobs), Limit: filter.EffectiveLimit(), Filters: filters})
}

// Stats handles GET /api/v1/jobs/stats.
func (h *Jobs) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.jobs.Stats(r.Context())
	if err != nil {
		writeJobError(w, err)
		return
	}
	response.JSON(w, stats)
}

// Get handles GET /api/v1/jobs/{jobID}.
func (h *Jobs) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Job(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeJobError(w, err)
		return
	}
	response.JSON(w, job)
}

// Status handles GET /api/v1/jobs/{jobID}/status.
func (h *Jobs) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	status, err := h.svc.JobStatus(r.Context(), id)
	if err != nil {
		writeJobError(w, err)
		return
	}
	response.JSON(w, map[string]any{
		"id":       id,
		"status":   status,
		"terminal": models.IsTerminalStatus(status),
	})
}

// Delete handles DELETE /api/v1/jobs/{jobID}. Deleting a missing job is not an error.
func (h *Jobs) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "jobID")
	if err := h.svc.Forget(r.Context(), id); err != nil {
		writeJobError(w, err)
		return
	}
	slog.Info("job deleted", "job_id", id)
	response.NoContent(w)
}

func parseListFilter(r *http.Request) (store.ListFilter, map[string]string) {
	q := r.URL.Query()
	var filter store.ListFilter
	details := map[string]string{}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > store.MaxListLimit {
			details["limit"] = "must be an integer between 1 and " + strconv.Itoa(store.MaxListLimit)
		}
		filter.Limit = n
	}
	if v := strings.ToLower(q.Get("status")); v != "" {
		if !models.IsValidStatus(v) {
			details["status"] = "must be one of pending, processing, completed, failed"
		}
		filter.Status = v
	}
	if v := q.Get("success"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			details["success"] = "must be true or false"
		}
		filter.Success = &b
	}
	if v := strings.ToLower(q.Get("mode")); v != "" {
		if v != models.ModeImageAnalysis && v != models.ModeKeywordsOnly {
			details["mode"] = "must be image_analysis or keywords_only"
		}
		filter.Mode = v
	}
	return filter, details
}

// writeJobError maps service and store errors onto HTTP statuses.
func writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found", nil)
	case errors.Is(err, store.ErrDuplicateID):
		response.Error(w, http.StatusConflict, "DUPLICATE_JOB_ID", "A job with this id already exists", nil)
	case errors.Is(err, store.ErrInvalidTransition):
		response.Error(w, http.StatusUnprocessableEntity, "INVALID_TRANSITION", err.Error(), nil)
	case errors.Is(err, store.ErrInvalidID):
		response.Error(w, http.StatusBadRequest, "INVALID_JOB_ID",
			"Job ids are 1-128 characters of letters, digits, '.', '_' or '-'", nil)
	case errors.Is(err, ai.ErrInvalidInput):
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
	case errors.Is(err, ai.ErrShuttingDown):
		response.Error(w, http.StatusServiceUnavailable, "SHUTTING_DOWN", "Server is shutting down", nil)
	case errors.Is(err, context.Canceled):
		response.Error(w, http.StatusRequestTimeout, "REQUEST_CANCELLED", "Request cancelled", nil)
	default:
		slog.Error("job request failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred", nil)
	}
}
