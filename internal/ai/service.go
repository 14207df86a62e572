package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kiranshivaraju/partscout/internal/cache"
	"github.com/kiranshivaraju/partscout/internal/config"
	"github.com/kiranshivaraju/partscout/internal/enrich"
	"github.com/kiranshivaraju/partscout/internal/metrics"
	"github.com/kiranshivaraju/partscout/internal/report"
	"github.com/kiranshivaraju/partscout/internal/store"
	"github.com/kiranshivaraju/partscout/pkg/models"
)

// ErrShuttingDown is returned by Submit once Shutdown has been called.
var ErrShuttingDown = errors.New("analysis service is shutting down")

const (
	DefaultInferenceTimeout = 60 * time.Second
	DefaultMaxJobDuration   = 3 * time.Minute
	DefaultWriteTimeout     = 10 * time.Second
	DefaultMinConfidence    = 20
)

// Enricher scrapes supplier pages. *enrich.Enricher satisfies it.
type Enricher interface {
	Enrich(ctx context.Context, urls []string) []models.EnrichmentResult
}

// SubmitRequest is one identification request. At least one of Image and Keywords
// must be set; an empty ID is replaced by a random UUID.
type SubmitRequest struct {
	ID        string
	Image     []byte
	MIMEType  string
	ImageName string
	Keywords  []string
}

// AnalysisService runs identification jobs. Each submitted job gets its own goroutine
// that owns the job until it reaches a terminal status.
type AnalysisService struct {
	provider models.AIProvider
	store    store.Store
	cache    cache.Cache
	enricher Enricher
	metrics  *metrics.Pipeline

	inferenceTimeout time.Duration
	maxJobDuration   time.Duration
	writeTimeout     time.Duration
	minConfidence    int

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// ServiceOption configures an AnalysisService.
type ServiceOption func(*AnalysisService)

// WithPipelineConfig applies the job duration, write timeout and success threshold.
func WithPipelineConfig(cfg config.PipelineConfig) ServiceOption {
	return func(s *AnalysisService) {
		if cfg.MaxJobDuration > 0 {
			s.maxJobDuration = cfg.MaxJobDuration
		}
		if cfg.WriteTimeout > 0 {
			s.writeTimeout = cfg.WriteTimeout
		}
		s.minConfidence = cfg.MinConfidence
	}
}

// WithInferenceTimeout bounds each AI provider call.
func WithInferenceTimeout(d time.Duration) ServiceOption {
	return func(s *AnalysisService) {
		if d > 0 {
			s.inferenceTimeout = d
		}
	}
}

func WithMetrics(m *metrics.Pipeline) ServiceOption {
	return func(s *AnalysisService) { s.metrics = m }
}

// NewAnalysisService creates a new AnalysisService. A nil cache disables status
// mirroring; a nil enricher skips supplier enrichment.
func NewAnalysisService(provider models.AIProvider, st store.Store, ca cache.Cache, en Enricher, opts ...ServiceOption) *AnalysisService {
	if ca == nil {
		ca = cache.Nop{}
	}
	s := &AnalysisService{
		provider:         provider,
		store:            st,
		cache:            ca,
		enricher:         en,
		inferenceTimeout: DefaultInferenceTimeout,
		maxJobDuration:   DefaultMaxJobDuration,
		writeTimeout:     DefaultWriteTimeout,
		minConfidence:    DefaultMinConfidence,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit creates a pending job and dispatches it to a background goroutine.
// Returns the job immediately without waiting for the analysis.
func (s *AnalysisService) Submit(ctx context.Context, req SubmitRequest) (*models.Job, error) {
	in, mode, err := buildInput(req)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrShuttingDown
	}
	s.wg.Add(1)
	s.mu.Unlock()

	job, err := s.store.Create(ctx, &models.Job{
		ID:        id,
		Mode:      mode,
		Status:    models.JobStatusPending,
		Keywords:  in.Keywords,
		ImageName: req.ImageName,
		Provider:  s.provider.Name(),
	})
	if err != nil {
		s.wg.Done()
		return nil, fmt.Errorf("creating job: %w", err)
	}

	s.mirrorStatus(ctx, job.ID, models.JobStatusPending)
	slog.Info("job submitted", "job_id", job.ID, "mode", job.Mode, "provider", s.provider.Name())

	go s.run(job.ID, job.Mode, in)

	return job, nil
}

// JobStatus returns the job's status from the cache, falling back to the store.
func (s *AnalysisService) JobStatus(ctx context.Context, id string) (string, error) {
	if status, ok, err := s.cache.GetJobStatus(ctx, id); err == nil && ok {
		return status, nil
	} else if err != nil {
		slog.Debug("status cache lookup failed", "job_id", id, "error", err)
	}
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	// Live statuses are mirrored by the worker that owns the job.
	if job.IsTerminal() {
		s.mirrorStatus(ctx, job.ID, job.Status)
	}
	return job.Status, nil
}

// Job returns one job. Finished jobs never change, so once read they are served from
// the cache until JobTTL runs out or the job is forgotten.
func (s *AnalysisService) Job(ctx context.Context, id string) (*models.Job, error) {
	key := cache.JobKey(id)
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.Debug("job cache lookup failed", "job_id", id, "error", err)
	}
	if ok {
		var job models.Job
		if err := json.Unmarshal(data, &job); err == nil {
			return &job, nil
		}
		slog.Warn("dropping undecodable cached job", "job_id", id)
		_ = s.cache.Delete(ctx, key)
	}

	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.IsTerminal() {
		if data, err := json.Marshal(job); err == nil {
			if err := s.cache.Set(ctx, key, data, cache.JobTTL); err != nil {
				slog.Debug("failed to cache job", "job_id", id, "error", err)
			}
		}
	}
	return job, nil
}

// Forget removes a job from the store and the cache.
func (s *AnalysisService) Forget(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.evict(ctx, id)
	return nil
}

func (s *AnalysisService) evict(ctx context.Context, id string) {
	if err := s.cache.DeleteJobStatus(ctx, id); err != nil {
		slog.Warn("failed to evict cached job status", "job_id", id, "error", err)
	}
	if err := s.cache.Delete(ctx, cache.JobKey(id)); err != nil {
		slog.Warn("failed to evict cached job", "job_id", id, "error", err)
	}
}

// Shutdown stops accepting jobs and waits for in-flight jobs to finish or ctx to end.
func (s *AnalysisService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for in-flight jobs: %w", ctx.Err())
	}
}

// run performs one job. It recovers from panics and always leaves the job completed
// or failed.
func (s *AnalysisService) run(id, mode string, in models.AnalysisInput) {
	defer s.wg.Done()
	s.metrics.JobStarted()
	defer s.metrics.JobFinished()

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), s.maxJobDuration)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in job worker", "job_id", id, "panic", r, "stack", string(debug.Stack()))
			s.finish(id, mode, start, s.failurePatch(mode, in.Keywords, start,
				fmt.Sprintf("internal error: %v", r), models.RemediationRetryLater))
		}
	}()

	if _, err := s.update(ctx, id, models.StatusPatch(models.JobStatusProcessing)); err != nil {
		slog.Error("failed to mark job processing", "job_id", id, "error", err)
	} else {
		s.mirrorStatus(ctx, id, models.JobStatusProcessing)
	}

	raw, err := s.analyze(ctx, in)
	if err == nil && strings.TrimSpace(raw) == "" {
		err = fmt.Errorf("%w: empty report", ErrInvalidResponse)
	}
	if err != nil {
		slog.Warn("analysis failed", "job_id", id, "provider", s.provider.Name(), "error", err)
		s.finish(id, mode, start, s.failurePatch(mode, in.Keywords, start, failureMessage(err), remediationFor(mode)))
		return
	}

	var patch models.JobPatch
	if mode == models.ModeKeywordsOnly {
		patch = s.keywordPatch(raw, in.Keywords)
	} else {
		patch = s.imagePatch(ctx, raw)
	}
	patch.Provider = models.Ptr(s.provider.Name())
	patch.ProcessingTimeSeconds = models.Ptr(elapsedSeconds(start))

	if err := ctx.Err(); err != nil {
		slog.Warn("job exceeded maximum duration", "job_id", id, "limit", s.maxJobDuration)
		patch.Status = models.Ptr(models.JobStatusFailed)
		patch.Success = models.Ptr(false)
		patch.ConfidenceScore = nil
		patch.ClearConfidence = true
		patch.Error = models.Ptr(fmt.Sprintf("job exceeded maximum duration of %s", s.maxJobDuration))
		patch.Remediation = models.Ptr(models.RemediationRetryLater)
	}
	s.finish(id, mode, start, patch)
}

// analyze calls the provider with a per-call timeout, retrying once on transient errors.
func (s *AnalysisService) analyze(ctx context.Context, in models.AnalysisInput) (string, error) {
	raw, err := s.callProvider(ctx, in)
	if err == nil || !IsTransient(err) || ctx.Err() != nil {
		return raw, err
	}
	slog.Info("retrying AI call", "provider", s.provider.Name(), "error", err)
	return s.callProvider(ctx, in)
}

func (s *AnalysisService) callProvider(ctx context.Context, in models.AnalysisInput) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.inferenceTimeout)
	defer cancel()

	start := time.Now()
	raw, err := s.provider.Analyze(callCtx, in)
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrInferenceTimeout) {
		err = fmt.Errorf("%w: %v", ErrInferenceTimeout, err)
	}

	outcome := "ok"
	switch {
	case errors.Is(err, ErrInferenceTimeout):
		outcome = "timeout"
	case err != nil:
		outcome = "error"
	}
	s.metrics.ObserveAICall(s.provider.Name(), outcome, time.Since(start))
	return raw, err
}

// imagePatch parses an image report and enriches its suppliers.
func (s *AnalysisService) imagePatch(ctx context.Context, raw string) models.JobPatch {
	res := report.Parse(raw)
	analysis := res.Analysis
	warnings := res.WarningStrings()

	if urls := analysis.SupplierURLs(); len(urls) > 0 && s.enricher != nil {
		results := s.enricher.Enrich(ctx, urls)
		analysis.Suppliers = enrich.Apply(analysis.Suppliers, results)
		for _, r := range results {
			if !r.Success {
				warnings = append(warnings, fmt.Sprintf("enrichment: %s: %s", r.URL, r.Error))
			}
		}
	}

	return models.JobPatch{
		Status:          models.Ptr(models.JobStatusCompleted),
		Success:         models.Ptr(analysis.Identified(s.minConfidence)),
		ConfidenceScore: models.Ptr(analysis.ConfidenceScore),
		Result:          &models.JobResult{PartAnalysis: &analysis},
		RawReport:       models.Ptr(raw),
		Warnings:        warnings,
	}
}

// keywordPatch parses a keyword search report. Suppliers are not enriched.
func (s *AnalysisService) keywordPatch(raw string, keywords []string) models.JobPatch {
	kr, warnings := report.ParseKeywords(raw, keywords)
	ws := make([]string, 0, len(warnings))
	for _, w := range warnings {
		ws = append(ws, w.String())
	}
	return models.JobPatch{
		Status:          models.Ptr(models.JobStatusCompleted),
		Success:         models.Ptr(len(kr.CandidateParts) > 0),
		ConfidenceScore: models.Ptr(kr.Analysis.ConfidenceScore),
		Result:          &models.JobResult{KeywordResults: &kr},
		RawReport:       models.Ptr(raw),
		Warnings:        ws,
	}
}

// failurePatch builds the terminal write for a job whose analysis never produced a report.
func (s *AnalysisService) failurePatch(mode string, keywords []string, start time.Time, msg, remediation string) models.JobPatch {
	analysis := models.FailedAnalysis()
	result := &models.JobResult{}
	if mode == models.ModeKeywordsOnly {
		kr := models.KeywordResults{
			Keywords:    keywords,
			SearchQuery: strings.Join(keywords, " "),
			Summary:     models.NotSpecified,
			Analysis:    analysis,
		}
		kr.Normalize()
		result.KeywordResults = &kr
	} else {
		result.PartAnalysis = &analysis
	}
	return models.JobPatch{
		Status:                models.Ptr(models.JobStatusFailed),
		Success:               models.Ptr(false),
		ClearConfidence:       true,
		Provider:              models.Ptr(s.provider.Name()),
		ProcessingTimeSeconds: models.Ptr(elapsedSeconds(start)),
		Result:                result,
		Error:                 models.Ptr(msg),
		Remediation:           models.Ptr(remediation),
	}
}

// finish writes the terminal patch. If that write fails, a minimal failed write is
// attempted so the job does not stay processing forever.
func (s *AnalysisService) finish(id, mode string, start time.Time, patch models.JobPatch) {
	job, err := s.update(context.Background(), id, patch)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Error("failed to persist job result", "job_id", id, "error", err)
		job, err = s.update(context.Background(), id, models.JobPatch{
			Status:          models.Ptr(models.JobStatusFailed),
			Success:         models.Ptr(false),
			ClearConfidence: true,
			Error:           models.Ptr(fmt.Sprintf("persisting result: %v", err)),
			Remediation:     models.Ptr(models.RemediationRetryLater),
		})
	}
	if errors.Is(err, store.ErrNotFound) {
		// Forgotten while running. Drop any status mirrored before the delete landed.
		slog.Info("job deleted before it finished", "job_id", id)
		s.evict(context.Background(), id)
		return
	}
	if err != nil {
		slog.Error("failed to persist job failure", "job_id", id, "error", err)
		return
	}

	s.mirrorStatus(context.Background(), id, job.Status)
	s.metrics.ObserveJob(mode, job.Status, job.Success, time.Since(start))
	slog.Info("job finished", "job_id", id, "status", job.Status, "success", job.Success,
		"duration_ms", time.Since(start).Milliseconds())
}

// update applies patch under the write timeout.
func (s *AnalysisService) update(ctx context.Context, id string, patch models.JobPatch) (*models.Job, error) {
	writeCtx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()
	return s.store.Update(writeCtx, id, patch)
}

func (s *AnalysisService) mirrorStatus(ctx context.Context, id, status string) {
	if err := s.cache.SetJobStatus(ctx, id, status, cache.JobStatusTTL); err != nil {
		slog.Debug("failed to cache job status", "job_id", id, "error", err)
	}
}

// --- helpers ---

// buildInput validates a request and returns the provider input and job mode.
func buildInput(req SubmitRequest) (models.AnalysisInput, string, error) {
	keywords := make([]string, 0, len(req.Keywords))
	for _, k := range req.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	in := models.AnalysisInput{Image: req.Image, MIMEType: req.MIMEType, Keywords: keywords}

	switch {
	case in.HasImage():
		if !strings.HasPrefix(in.MIMEType, "image/") {
			return in, "", fmt.Errorf("%w: unsupported image type %q", ErrInvalidInput, in.MIMEType)
		}
		return in, models.ModeImageAnalysis, nil
	case len(keywords) > 0:
		return in, models.ModeKeywordsOnly, nil
	default:
		return in, "", ErrInvalidInput
	}
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, ErrInferenceTimeout):
		return "AI analysis timed out: " + err.Error()
	case errors.Is(err, ErrProviderUnavailable):
		return "AI provider unavailable: " + err.Error()
	default:
		return "AI analysis failed: " + err.Error()
	}
}

func remediationFor(mode string) string {
	if mode == models.ModeKeywordsOnly {
		return models.RemediationRetryKeywords
	}
	return models.RemediationRetryImage
}

// elapsedSeconds is the time since start rounded to milliseconds.
func elapsedSeconds(start time.Time) float64 {
	return math.Round(time.Since(start).Seconds()*1000) / 1000
}
