// Package storetest is a conformance suite that every store.Store implementation must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiranshivaraju/partscout/internal/store"
	"github.com/kiranshivaraju/partscout/pkg/models"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) store.Store

// Run exercises s against the Store contract.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"CreateDefaults", testCreateDefaults},
		{"CreateDuplicate", testCreateDuplicate},
		{"CreateInvalidID", testCreateInvalidID},
		{"GetNotFound", testGetNotFound},
		{"UpdateLifecycle", testUpdateLifecycle},
		{"UpdateRejectsRegression", testUpdateRejectsRegression},
		{"UpdateSuccessRequiresCompleted", testUpdateSuccessRequiresCompleted},
		{"UpdateIdempotentTerminalWrite", testUpdateIdempotent},
		{"UpdateNotFound", testUpdateNotFound},
		{"RoundTripsFullResult", testRoundTripsFullResult},
		{"RoundTripsKeywordResult", testRoundTripsKeywordResult},
		{"ListOrderAndFilters", testListOrderAndFilters},
		{"ListLimit", testListLimit},
		{"DeleteIdempotent", testDeleteIdempotent},
		{"Stats", testStats},
		{"StatsEmpty", testStatsEmpty},
		{"ConcurrentCreateSameID", testConcurrentCreate},
		{"ConcurrentUpdatesSameID", testConcurrentUpdates},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

// --- fixtures ---

var baseTime = time.Date(2025, 3, 14, 9, 26, 53, 589793000, time.UTC)

// NewJob returns a pending image job created at baseTime plus offset seconds.
func NewJob(id string, offset int) *models.Job {
	return &models.Job{
		ID:        id,
		Mode:      models.ModeImageAnalysis,
		Status:    models.JobStatusPending,
		Keywords:  []string{"brake", "caliper"},
		ImageName: id + ".jpg",
		CreatedAt: baseTime.Add(time.Duration(offset) * time.Second),
	}
}

// SampleAnalysis returns a fully populated analysis with one enriched supplier.
func SampleAnalysis() *models.PartAnalysis {
	a := models.NewPartAnalysis()
	a.ClassName = "Brake Caliper"
	a.PrecisePartName = "Front Left Brake Caliper, 2 piston"
	a.Category = "Braking System"
	a.Manufacturer = "Brembo"
	a.MaterialComposition = "Cast iron"
	a.ConfidenceScore = 87
	a.TechnicalDataSheet = map[string]string{"piston_diameter": "54 mm", "bleeder_thread": "M10x1.0"}
	a.CompatibleVehicles = []string{"2015-2019 Ford F-150", "2016 Lincoln Navigator"}
	lo, hi := 95.0, 150.0
	a.EstimatedPrice.New = models.PriceRange{Text: "$95 - $150", Min: &lo, Max: &hi}
	a.Suppliers = []models.SupplierCandidate{{
		Name:           "RockAuto",
		URL:            "https://www.rockauto.example",
		PriceRange:     models.PriceRange{Text: "$95"},
		ShippingRegion: "US",
		ContactChannel: "Website",
		Enrichment: &models.EnrichmentResult{
			URL:         "https://www.rockauto.example",
			Success:     true,
			StatusCode:  200,
			CompanyName: "RockAuto",
			Contact: models.ContactInfo{
				Emails:      []string{"sales@rockauto.example"},
				SocialMedia: map[string]string{"facebook": "https://facebook.com/rockauto"},
			},
			FetchedAt: baseTime,
		},
	}}
	a.Diagnostics.FailureModes = []string{"Seized piston"}
	a.ConfidenceBreakdown = models.ConfidenceBreakdown{Overall: 87, VisualMatch: 90, DimensionalMatch: 80, SupplierData: 70}
	a.Normalize()
	return &a
}

func mustCreate(t *testing.T, s store.Store, j *models.Job) *models.Job {
	t.Helper()
	created, err := s.Create(context.Background(), j)
	require.NoError(t, err)
	return created
}

func mustUpdate(t *testing.T, s store.Store, id string, p models.JobPatch) *models.Job {
	t.Helper()
	j, err := s.Update(context.Background(), id, p)
	require.NoError(t, err)
	return j
}

// Complete drives a job through processing to a terminal state.
func Complete(t *testing.T, s store.Store, id string, success bool, confidence *int, seconds *float64) *models.Job {
	t.Helper()
	mustUpdate(t, s, id, models.StatusPatch(models.JobStatusProcessing))
	status := models.JobStatusCompleted
	if !success && confidence == nil {
		status = models.JobStatusFailed
	}
	return mustUpdate(t, s, id, models.JobPatch{
		Status:                &status,
		Success:               &success,
		ConfidenceScore:       confidence,
		ProcessingTimeSeconds: seconds,
	})
}

// --- cases ---

func testCreateAndGet(t *testing.T, s store.Store) {
	ctx := context.Background()
	created := mustCreate(t, s, NewJob("job-1", 0))

	got, err := s.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, created, got)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, []string{"brake", "caliper"}, got.Keywords)
	assert.Equal(t, []string{}, got.Warnings)
	assert.Nil(t, got.Result)
	assert.Nil(t, got.ConfidenceScore)
	assert.True(t, got.CreatedAt.Equal(models.Timestamp(baseTime)))
}

func testCreateDefaults(t *testing.T, s store.Store) {
	before := models.Now()
	created := mustCreate(t, s, &models.Job{ID: "defaults", Mode: models.ModeKeywordsOnly})

	assert.Equal(t, models.JobStatusPending, created.Status)
	assert.False(t, created.CreatedAt.Before(before))
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)
	assert.Equal(t, []string{}, created.Keywords)
}

func testCreateDuplicate(t *testing.T, s store.Store) {
	mustCreate(t, s, NewJob("dup", 0))

	_, err := s.Create(context.Background(), NewJob("dup", 5))
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrDuplicateID), "got %v", err)

	got, err := s.Get(context.Background(), "dup")
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(baseTime.Truncate(time.Microsecond)), "original job is untouched")
}

func testCreateInvalidID(t *testing.T, s store.Store) {
	for _, id := range []string{"", ".hidden", "../escape", "a/b", string(make([]byte, 200))} {
		_, err := s.Create(context.Background(), NewJob(id, 0))
		assert.True(t, errors.Is(err, store.ErrInvalidID), "id %q: got %v", id, err)
	}
}

func testGetNotFound(t *testing.T, s store.Store) {
	_, err := s.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)
}

func testUpdateLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	created := mustCreate(t, s, NewJob("life", 0))

	processing := mustUpdate(t, s, "life", models.StatusPatch(models.JobStatusProcessing))
	assert.Equal(t, models.JobStatusProcessing, processing.Status)
	assert.True(t, processing.UpdatedAt.After(created.UpdatedAt), "updated_at refreshes")

	a := SampleAnalysis()
	done := mustUpdate(t, s, "life", models.JobPatch{
		Status:                models.Ptr(models.JobStatusCompleted),
		Success:               models.Ptr(true),
		ConfidenceScore:       models.Ptr(a.ConfidenceScore),
		ProcessingTimeSeconds: models.Ptr(4.25),
		Result:                &models.JobResult{PartAnalysis: a},
		RawReport:             models.Ptr("## Identification\n- **Class Name:** Brake Caliper"),
		Provider:              models.Ptr("mock"),
	})
	assert.True(t, done.Success)
	assert.False(t, done.UpdatedAt.Before(processing.UpdatedAt))
	assert.Equal(t, created.CreatedAt, done.CreatedAt, "created_at never changes")

	got, err := s.Get(ctx, "life")
	require.NoError(t, err)
	assert.Equal(t, done, got)
}

func testUpdateRejectsRegression(t *testing.T, s store.Store) {
	mustCreate(t, s, NewJob("regress", 0))
	Complete(t, s, "regress", true, models.Ptr(80), models.Ptr(1.0))

	for _, status := range []string{models.JobStatusPending, models.JobStatusProcessing, models.JobStatusFailed} {
		_, err := s.Update(context.Background(), "regress", models.StatusPatch(status))
		assert.True(t, errors.Is(err, store.ErrInvalidTransition), "completed -> %s: got %v", status, err)
	}

	got, err := s.Get(context.Background(), "regress")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.True(t, got.Success)
}

func testUpdateSuccessRequiresCompleted(t *testing.T, s store.Store) {
	mustCreate(t, s, NewJob("early-success", 0))

	_, err := s.Update(context.Background(), "early-success", models.JobPatch{Success: models.Ptr(true)})
	assert.True(t, errors.Is(err, store.ErrInvalidTransition), "got %v", err)

	got, err := s.Get(context.Background(), "early-success")
	require.NoError(t, err)
	assert.False(t, got.Success)
}

func testUpdateIdempotent(t *testing.T, s store.Store) {
	mustCreate(t, s, NewJob("idem", 0))
	mustUpdate(t, s, "idem", models.StatusPatch(models.JobStatusProcessing))

	patch := models.JobPatch{
		Status:      models.Ptr(models.JobStatusFailed),
		Error:       models.Ptr("AI provider unavailable"),
		Remediation: models.Ptr(models.RemediationRetryImage),
		Result:      &models.JobResult{PartAnalysis: models.Ptr(models.FailedAnalysis())},
	}
	first := mustUpdate(t, s, "idem", patch)
	second := mustUpdate(t, s, "idem", patch)

	first.UpdatedAt, second.UpdatedAt = time.Time{}, time.Time{}
	assert.Equal(t, first, second, "re-applying a terminal patch changes nothing but updated_at")
}

func testUpdateNotFound(t *testing.T, s store.Store) {
	_, err := s.Update(context.Background(), "ghost", models.StatusPatch(models.JobStatusProcessing))
	assert.True(t, errors.Is(err, store.ErrNotFound), "got %v", err)
}

func testRoundTripsFullResult(t *testing.T, s store.Store) {
	mustCreate(t, s, NewJob("full", 0))
	mustUpdate(t, s, "full", models.StatusPatch(models.JobStatusProcessing))
	a := SampleAnalysis()
	a.ConfidenceRaw = "high"
	mustUpdate(t, s, "full", models.JobPatch{
		Status:   models.Ptr(models.JobStatusCompleted),
		Result:   &models.JobResult{PartAnalysis: a},
		Warnings: []string{"manufacturer: not found, using default"},
	})

	got, err := s.Get(context.Background(), "full")
	require.NoError(t, err)
	require.NotNil(t, got.Result)
	require.NotNil(t, got.Result.PartAnalysis)
	assert.Nil(t, got.Result.KeywordResults)
	assert.Equal(t, *a, *got.Result.PartAnalysis)
	assert.Equal(t, []string{"manufacturer: not found, using default"}, got.Warnings)
}

func testRoundTripsKeywordResult(t *testing.T, s store.Store) {
	j := NewJob("kw", 0)
	j.Mode = models.ModeKeywordsOnly
	j.ImageName = ""
	mustCreate(t, s, j)
	mustUpdate(t, s, "kw", models.StatusPatch(models.JobStatusProcessing))

	kr := &models.KeywordResults{
		Keywords:       []string{"alternator", "honda"},
		SearchQuery:    "alternator honda",
		Summary:        "Likely a Denso alternator.",
		CandidateParts: []string{"Denso 210-0535"},
		Analysis:       *SampleAnalysis(),
	}
	kr.Normalize()
	mustUpdate(t, s, "kw", models.JobPatch{
		Status:  models.Ptr(models.JobStatusCompleted),
		Success: models.Ptr(true),
		Result:  &models.JobResult{KeywordResults: kr},
	})

	got, err := s.Get(context.Background(), "kw")
	require.NoError(t, err)
	require.NotNil(t, got.Result)
	assert.Nil(t, got.Result.PartAnalysis)
	require.NotNil(t, got.Result.KeywordResults)
	assert.Equal(t, *kr, *got.Result.KeywordResults)
}

func testListOrderAndFilters(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreate(t, s, NewJob("a", 1))
	mustCreate(t, s, NewJob("b", 3))
	mustCreate(t, s, NewJob("c", 2))
	mustCreate(t, s, NewJob("d", 3)) // same created_at as b; id breaks the tie
	kw := NewJob("e", 0)
	kw.Mode = models.ModeKeywordsOnly
	mustCreate(t, s, kw)
	Complete(t, s, "c", true, models.Ptr(90), models.Ptr(2.0))
	Complete(t, s, "a", false, nil, models.Ptr(1.0))

	all, err := s.List(ctx, store.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "b", "c", "a", "e"}, ids(all))

	pending, err := s.List(ctx, store.ListFilter{Status: models.JobStatusPending})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "b", "e"}, ids(pending))

	succeeded, err := s.List(ctx, store.ListFilter{Success: models.Ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(succeeded))

	notSucceeded, err := s.List(ctx, store.ListFilter{Success: models.Ptr(false), Mode: models.ModeImageAnalysis})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "b", "a"}, ids(notSucceeded))

	none, err := s.List(ctx, store.ListFilter{Status: models.JobStatusProcessing})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func testListLimit(t *testing.T, s store.Store) {
	for i := 0; i < 7; i++ {
		mustCreate(t, s, NewJob(fmt.Sprintf("job-%02d", i), i))
	}

	got, err := s.List(context.Background(), store.ListFilter{Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"job-06", "job-05", "job-04"}, ids(got))

	got, err = s.List(context.Background(), store.ListFilter{Limit: 10_000})
	require.NoError(t, err)
	assert.Len(t, got, 7)
}

func testDeleteIdempotent(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreate(t, s, NewJob("del", 0))

	require.NoError(t, s.Delete(ctx, "del"))
	require.NoError(t, s.Delete(ctx, "del"))
	require.NoError(t, s.Delete(ctx, "never-existed"))

	_, err := s.Get(ctx, "del")
	assert.True(t, errors.Is(err, store.ErrNotFound))

	// The id is free again after deletion.
	mustCreate(t, s, NewJob("del", 1))
}

// testStats seeds 5 successful jobs, 2 failed and 1 pending.
func testStats(t *testing.T, s store.Store) {
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("ok-%d", i)
		mustCreate(t, s, NewJob(id, i))
		Complete(t, s, id, true, models.Ptr(60+10*i), models.Ptr(float64(i+1)))
	}
	for i := 0; i < 2; i++ {
		id := fmt.Sprintf("fail-%d", i)
		mustCreate(t, s, NewJob(id, 10+i))
		Complete(t, s, id, false, nil, models.Ptr(0.5))
	}
	mustCreate(t, s, NewJob("waiting", 20))

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, st.Total)
	assert.Equal(t, 5, st.Successful)
	assert.Equal(t, 2, st.Failed)
	assert.Equal(t, 1, st.Pending)
	assert.Equal(t, 0, st.Processing)
	assert.Equal(t, 5, st.Completed)
	require.NotNil(t, st.AvgConfidence)
	assert.InDelta(t, 80.0, *st.AvgConfidence, 0.001, "failed jobs have no confidence and are excluded")
	require.NotNil(t, st.AvgProcessingTime)
	assert.InDelta(t, 16.0/7.0, *st.AvgProcessingTime, 0.001)
}

func testStatsEmpty(t *testing.T, s store.Store) {
	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &models.JobStats{}, st)
}

func testConcurrentCreate(t *testing.T, s store.Store) {
	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.Create(context.Background(), NewJob("race", i))
		}()
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, store.ErrDuplicateID):
			dup++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dup)
}

func testConcurrentUpdates(t *testing.T, s store.Store) {
	mustCreate(t, s, NewJob("busy", 0))
	mustUpdate(t, s, "busy", models.StatusPatch(models.JobStatusProcessing))

	const n = 10
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Update(context.Background(), "busy", models.JobPatch{
				Warnings: []string{fmt.Sprintf("writer %d", i)},
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	mustUpdate(t, s, "busy", models.JobPatch{Status: models.Ptr(models.JobStatusCompleted), RawReport: models.Ptr("done")})

	got, err := s.Get(context.Background(), "busy")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, "done", got.RawReport)
	require.Len(t, got.Warnings, 1, "each write replaces warnings whole")
}

func ids(jobs []*models.Job) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.ID
	}
	return out
}
