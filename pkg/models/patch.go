package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is returned when a patch would move a job's status backwards.
var ErrInvalidTransition = errors.New("invalid job status transition")

// JobPatch is a partial update. Nil fields are left untouched.
type JobPatch struct {
	Status                *string
	Success               *bool
	Provider              *string
	ConfidenceScore       *int
	ClearConfidence       bool
	ProcessingTimeSeconds *float64
	Result                *JobResult
	RawReport             *string
	Warnings              []string
	Error                 *string
	Remediation           *string
}

// Apply mutates job according to the patch and stamps UpdatedAt with now.
// Both store backends go through Apply so they agree on patch semantics.
func (p JobPatch) Apply(job *Job, now time.Time) error {
	if p.Status != nil {
		if !CanTransition(job.Status, *p.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, *p.Status)
		}
		job.Status = *p.Status
	}
	if p.Success != nil {
		job.Success = *p.Success
	}
	if job.Success && job.Status != JobStatusCompleted {
		return fmt.Errorf("%w: success requires status %s, job is %s",
			ErrInvalidTransition, JobStatusCompleted, job.Status)
	}
	if p.Provider != nil {
		job.Provider = *p.Provider
	}
	if p.ClearConfidence {
		job.ConfidenceScore = nil
	}
	if p.ConfidenceScore != nil {
		v := *p.ConfidenceScore
		job.ConfidenceScore = &v
	}
	if p.ProcessingTimeSeconds != nil {
		v := *p.ProcessingTimeSeconds
		job.ProcessingTimeSeconds = &v
	}
	if p.Result != nil {
		job.Result = p.Result
	}
	if p.RawReport != nil {
		job.RawReport = *p.RawReport
	}
	if p.Warnings != nil {
		job.Warnings = append([]string{}, p.Warnings...)
	}
	if p.Error != nil {
		job.Error = *p.Error
	}
	if p.Remediation != nil {
		job.Remediation = *p.Remediation
	}
	job.UpdatedAt = Timestamp(now)
	job.Normalize()
	return nil
}

// StatusPatch is a patch that only moves the job to status.
func StatusPatch(status string) JobPatch {
	return JobPatch{Status: &status}
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T {
	return &v
}
