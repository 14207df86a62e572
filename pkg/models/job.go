package models

import (
	"fmt"
	"regexp"
	"time"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

const (
	ModeImageAnalysis = "image_analysis"
	ModeKeywordsOnly  = "keywords_only"
)

// User-facing hints attached to jobs whose AI call failed.
const (
	RemediationRetryImage    = "Retry with a clearer image"
	RemediationRetryKeywords = "Retry with more specific keywords"
	RemediationRetryLater    = "Retry later"
)

var jobIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]{0,127}$`)

// Job tracks one identification request. The API returns the job id on POST /api/v1/analyze;
// the client polls GET /api/v1/jobs/{id} until status is completed or failed.
//
// Every job has the same shape regardless of outcome: failed jobs carry sentinel values plus
// Error and Remediation instead of populated fields.
type Job struct {
	ID                    string     `json:"id"`
	Mode                  string     `json:"mode"`
	Status                string     `json:"status"`
	Success               bool       `json:"success"`
	Keywords              []string   `json:"keywords"`
	ImageName             string     `json:"image_name,omitempty"`
	Provider              string     `json:"provider,omitempty"`
	ConfidenceScore       *int       `json:"confidence_score"`
	ProcessingTimeSeconds *float64   `json:"processing_time_seconds"`
	Result                *JobResult `json:"result"`
	RawReport             string     `json:"raw_report"`
	Warnings              []string   `json:"warnings"`
	Error                 string     `json:"error,omitempty"`
	Remediation           string     `json:"remediation,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// JobResult holds exactly one of the mode-specific results.
type JobResult struct {
	PartAnalysis   *PartAnalysis   `json:"part_analysis,omitempty"`
	KeywordResults *KeywordResults `json:"keyword_results,omitempty"`
}

// IsTerminal reports whether the job has reached completed or failed.
func (j *Job) IsTerminal() bool {
	return IsTerminalStatus(j.Status)
}

// Normalize replaces nil slices with empty ones and truncates timestamps so a job
// round-trips identically through every store backend.
func (j *Job) Normalize() {
	if j.Keywords == nil {
		j.Keywords = []string{}
	}
	if j.Warnings == nil {
		j.Warnings = []string{}
	}
	j.CreatedAt = Timestamp(j.CreatedAt)
	j.UpdatedAt = Timestamp(j.UpdatedAt)
	if j.Result != nil && j.Result.PartAnalysis == nil && j.Result.KeywordResults == nil {
		j.Result = nil
	}
	if j.Result != nil && j.Result.PartAnalysis != nil {
		j.Result.PartAnalysis.Normalize()
	}
	if j.Result != nil && j.Result.KeywordResults != nil {
		j.Result.KeywordResults.Normalize()
	}
}

// Validate checks the fields a store requires before persisting a new job.
func (j *Job) Validate() error {
	if err := ValidateJobID(j.ID); err != nil {
		return err
	}
	if j.Mode != ModeImageAnalysis && j.Mode != ModeKeywordsOnly {
		return fmt.Errorf("invalid job mode %q", j.Mode)
	}
	if !IsValidStatus(j.Status) {
		return fmt.Errorf("invalid job status %q", j.Status)
	}
	if j.Success && j.Status != JobStatusCompleted {
		return fmt.Errorf("job %s: success requires status %s", j.ID, JobStatusCompleted)
	}
	return nil
}

// ValidateJobID rejects ids that are empty, too long, or unsafe as file names.
func ValidateJobID(id string) error {
	if !jobIDPattern.MatchString(id) {
		return fmt.Errorf("invalid job id %q", id)
	}
	return nil
}

// Timestamp returns t in UTC truncated to microseconds, the precision Postgres keeps.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Now is Timestamp(time.Now()).
func Now() time.Time {
	return Timestamp(time.Now())
}

var statusRank = map[string]int{
	JobStatusPending:    0,
	JobStatusProcessing: 1,
	JobStatusCompleted:  2,
	JobStatusFailed:     2,
}

var validTransitions = map[string][]string{
	JobStatusPending:    {JobStatusProcessing, JobStatusFailed},
	JobStatusProcessing: {JobStatusCompleted, JobStatusFailed},
}

// IsValidStatus reports whether s is one of the four job states.
func IsValidStatus(s string) bool {
	_, ok := statusRank[s]
	return ok
}

// IsTerminalStatus reports whether s is completed or failed.
func IsTerminalStatus(s string) bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether a job may move from one status to another.
// Re-writing the current status is allowed so retried writes stay idempotent.
func CanTransition(from, to string) bool {
	if from == to {
		return IsValidStatus(from)
	}
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
