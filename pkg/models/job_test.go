package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateJobID(t *testing.T) {
	valid := []string{"a", "job-1", "JOB_2", "123e4567-e89b-12d3-a456-426614174000", "v1.2", strings.Repeat("x", 128)}
	for _, id := range valid {
		assert.NoError(t, ValidateJobID(id), id)
	}

	invalid := []string{"", ".hidden", "../etc", "a/b", "a b", strings.Repeat("x", 129), "ünicode"}
	for _, id := range invalid {
		assert.Error(t, ValidateJobID(id), id)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{JobStatusPending, JobStatusProcessing, true},
		{JobStatusPending, JobStatusFailed, true},
		{JobStatusPending, JobStatusCompleted, false},
		{JobStatusProcessing, JobStatusCompleted, true},
		{JobStatusProcessing, JobStatusFailed, true},
		{JobStatusProcessing, JobStatusPending, false},
		{JobStatusCompleted, JobStatusProcessing, false},
		{JobStatusFailed, JobStatusCompleted, false},
		{JobStatusCompleted, JobStatusCompleted, true},
		{"bogus", "bogus", false},
	}
	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestJobValidate(t *testing.T) {
	job := &Job{ID: "j1", Mode: ModeKeywordsOnly, Status: JobStatusPending}
	require.NoError(t, job.Validate())

	job.Mode = "video"
	assert.ErrorContains(t, job.Validate(), "invalid job mode")

	job.Mode = ModeImageAnalysis
	job.Status = "done"
	assert.ErrorContains(t, job.Validate(), "invalid job status")

	job.Status = JobStatusPending
	job.Success = true
	assert.ErrorContains(t, job.Validate(), "success requires status")
}

func TestJobNormalize(t *testing.T) {
	created := time.Date(2025, 3, 1, 10, 0, 0, 123456789, time.FixedZone("X", 3600))
	job := &Job{
		CreatedAt: created,
		Result:    &JobResult{},
	}
	job.Normalize()

	assert.NotNil(t, job.Keywords)
	assert.NotNil(t, job.Warnings)
	assert.Nil(t, job.Result, "empty result collapses to nil")
	assert.Equal(t, time.UTC, job.CreatedAt.Location())
	assert.Equal(t, 123456000, job.CreatedAt.Nanosecond())
}

// ============================================================
// JobPatch
// ============================================================

func TestJobPatchApply_FullCompletion(t *testing.T) {
	job := &Job{ID: "j1", Mode: ModeImageAnalysis, Status: JobStatusProcessing}
	analysis := NewPartAnalysis()
	analysis.PrecisePartName = "Alternator"
	now := time.Now()

	err := JobPatch{
		Status:                Ptr(JobStatusCompleted),
		Success:               Ptr(true),
		ConfidenceScore:       Ptr(88),
		ProcessingTimeSeconds: Ptr(1.5),
		Result:                &JobResult{PartAnalysis: &analysis},
		RawReport:             Ptr("# Report"),
		Warnings:              []string{"w1"},
	}.Apply(job, now)

	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.True(t, job.Success)
	assert.Equal(t, 88, *job.ConfidenceScore)
	assert.Equal(t, 1.5, *job.ProcessingTimeSeconds)
	assert.Equal(t, "Alternator", job.Result.PartAnalysis.PrecisePartName)
	assert.Equal(t, "# Report", job.RawReport)
	assert.Equal(t, []string{"w1"}, job.Warnings)
	assert.Equal(t, Timestamp(now), job.UpdatedAt)
}

func TestJobPatchApply_RejectsBackwardsTransition(t *testing.T) {
	job := &Job{Status: JobStatusCompleted}
	err := StatusPatch(JobStatusProcessing).Apply(job, time.Now())

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, JobStatusCompleted, job.Status)
}

func TestJobPatchApply_SuccessRequiresCompleted(t *testing.T) {
	job := &Job{Status: JobStatusProcessing}
	err := JobPatch{Success: Ptr(true)}.Apply(job, time.Now())

	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestJobPatchApply_ClearConfidence(t *testing.T) {
	job := &Job{Status: JobStatusProcessing, ConfidenceScore: Ptr(40)}
	err := JobPatch{Status: Ptr(JobStatusFailed), ClearConfidence: true, Error: Ptr("boom")}.Apply(job, time.Now())

	require.NoError(t, err)
	assert.Nil(t, job.ConfidenceScore)
	assert.Equal(t, "boom", job.Error)
}

func TestJobPatchApply_CopiesPointers(t *testing.T) {
	score := 10
	job := &Job{Status: JobStatusProcessing}
	require.NoError(t, JobPatch{ConfidenceScore: &score}.Apply(job, time.Now()))

	score = 99
	assert.Equal(t, 10, *job.ConfidenceScore)
}

// ============================================================
// ComputeStats
// ============================================================

func TestComputeStats(t *testing.T) {
	jobs := []*Job{
		{Status: JobStatusCompleted, Success: true, ConfidenceScore: Ptr(90), ProcessingTimeSeconds: Ptr(2.0)},
		{Status: JobStatusCompleted, Success: false, ConfidenceScore: Ptr(15), ProcessingTimeSeconds: Ptr(1.0)},
		{Status: JobStatusFailed, ProcessingTimeSeconds: Ptr(0.5)},
		{Status: JobStatusPending},
		{Status: JobStatusProcessing},
	}

	stats := ComputeStats(jobs)

	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 1, stats.Successful)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Processing)
	require.NotNil(t, stats.AvgConfidence)
	assert.Equal(t, 52.5, *stats.AvgConfidence)
	require.NotNil(t, stats.AvgProcessingTime)
	assert.Equal(t, 1.167, *stats.AvgProcessingTime)
}

func TestComputeStats_Empty(t *testing.T) {
	stats := ComputeStats(nil)

	assert.Zero(t, stats.Total)
	assert.Nil(t, stats.AvgConfidence)
	assert.Nil(t, stats.AvgProcessingTime)
}
