package store

import (
	"context"
	"errors"
	"sort"

	"github.com/kiranshivaraju/partscout/pkg/models"
)

var (
	ErrNotFound    = errors.New("job not found")
	ErrDuplicateID = errors.New("job id already exists")
	ErrInvalidID   = errors.New("invalid job id")

	// ErrInvalidTransition is returned by Update when a patch would regress the job's status.
	ErrInvalidTransition = models.ErrInvalidTransition
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Store is the job persistence interface. FileStore and PostgresStore implement it with
// identical observable behaviour.
type Store interface {
	Ping(ctx context.Context) error

	// Create persists a new job and returns the stored copy.
	Create(ctx context.Context, job *models.Job) (*models.Job, error)
	Get(ctx context.Context, id string) (*models.Job, error)
	// Update applies patch atomically with respect to other updates of the same id.
	Update(ctx context.Context, id string, patch models.JobPatch) (*models.Job, error)
	List(ctx context.Context, filter ListFilter) ([]*models.Job, error)
	// Delete removes a job. Deleting an absent job is not an error.
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.JobStats, error)

	Close() error
}

// ListFilter narrows List. Zero values mean "no filter".
type ListFilter struct {
	Limit   int
	Status  string
	Success *bool
	Mode    string
}

// EffectiveLimit clamps Limit to [1, MaxListLimit], defaulting to DefaultListLimit.
func (f ListFilter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return f.Limit
	}
}

func (f ListFilter) matches(j *models.Job) bool {
	if f.Status != "" && j.Status != f.Status {
		return false
	}
	if f.Success != nil && j.Success != *f.Success {
		return false
	}
	if f.Mode != "" && j.Mode != f.Mode {
		return false
	}
	return true
}

// sortNewestFirst orders jobs by created_at descending, ties broken by id descending.
func sortNewestFirst(jobs []*models.Job) {
	sort.Slice(jobs, func(a, b int) bool {
		if !jobs[a].CreatedAt.Equal(jobs[b].CreatedAt) {
			return jobs[a].CreatedAt.After(jobs[b].CreatedAt)
		}
		return jobs[a].ID > jobs[b].ID
	})
}

// prepareNew validates a job for Create and fills server-side defaults.
func prepareNew(job *models.Job) (*models.Job, error) {
	if job == nil {
		return nil, errors.New("nil job")
	}
	if err := checkID(job.ID); err != nil {
		return nil, err
	}
	j := *job
	if j.Status == "" {
		j.Status = models.JobStatusPending
	}
	now := models.Now()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	if j.UpdatedAt.IsZero() {
		j.UpdatedAt = j.CreatedAt
	}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	j.Normalize()
	return &j, nil
}

func checkID(id string) error {
	if err := models.ValidateJobID(id); err != nil {
		return errors.Join(ErrInvalidID, err)
	}
	return nil
}
