package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/kiranshivaraju/partscout/pkg/models"
)

const jobFileExt = ".json"

// FileStore keeps one JSON document per job in a directory. Writes to the same id are
// serialised by a per-id mutex; writes to different ids never contend. Every write goes
// to a temporary file that is then renamed into place, so readers never observe a
// partially written job.
type FileStore struct {
	dir string

	mu    sync.Mutex
	locks map[string]*idLock // only ids with an operation in flight
}

type idLock struct {
	mu   sync.Mutex
	refs int
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir, locks: map[string]*idLock{}}, nil
}

// Ping checks that the directory is still there and writable.
func (s *FileStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.CreateTemp(s.dir, ".ping-*")
	if err != nil {
		return fmt.Errorf("store dir not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) Create(ctx context.Context, job *models.Job) (*models.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	j, err := prepareNew(job)
	if err != nil {
		return nil, err
	}

	defer s.lock(j.ID)()

	tmp, err := s.writeTemp(j)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp)

	// Link fails with EEXIST when the id is taken, which makes create exclusive even
	// across processes sharing the directory.
	if err := os.Link(tmp, s.path(j.ID)); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, j.ID)
		}
		return nil, fmt.Errorf("create job %s: %w", j.ID, err)
	}
	return j, nil
}

func (s *FileStore) Get(ctx context.Context, id string) (*models.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkID(id); err != nil {
		return nil, err
	}
	return s.read(id)
}

func (s *FileStore) Update(ctx context.Context, id string, patch models.JobPatch) (*models.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkID(id); err != nil {
		return nil, err
	}

	defer s.lock(id)()

	j, err := s.read(id)
	if err != nil {
		return nil, err
	}
	if err := patch.Apply(j, models.Now()); err != nil {
		return nil, err
	}

	tmp, err := s.writeTemp(j)
	if err != nil {
		return nil, err
	}
	if err := os.Rename(tmp, s.path(id)); err != nil {
		os.Remove(tmp)
		return nil, fmt.Errorf("update job %s: %w", id, err)
	}
	return j, nil
}

func (s *FileStore) List(ctx context.Context, filter ListFilter) ([]*models.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	jobs := make([]*models.Job, 0, len(entries))
	for _, e := range entries {
		id, ok := idFromFile(e)
		if !ok {
			continue
		}
		j, err := s.read(id)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				slog.Warn("skipping unreadable job file", "job_id", id, "error", err)
			}
			continue
		}
		if filter.matches(j) {
			jobs = append(jobs, j)
		}
	}

	sortNewestFirst(jobs)
	if limit := filter.EffectiveLimit(); len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkID(id); err != nil {
		return err
	}

	defer s.lock(id)()

	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	return nil
}

func (s *FileStore) Stats(ctx context.Context) (*models.JobStats, error) {
	jobs, err := s.all(ctx)
	if err != nil {
		return nil, err
	}
	return models.ComputeStats(jobs), nil
}

// --- helpers ---

func (s *FileStore) all(ctx context.Context) ([]*models.Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read store dir: %w", err)
	}
	jobs := make([]*models.Job, 0, len(entries))
	for _, e := range entries {
		id, ok := idFromFile(e)
		if !ok {
			continue
		}
		j, err := s.read(id)
		if err != nil {
			continue
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// lock takes the mutex for id and returns its release. The entry is dropped when the
// last holder or waiter releases it.
func (s *FileStore) lock(id string) (unlock func()) {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &idLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+jobFileExt)
}

func (s *FileStore) read(id string) (*models.Job, error) {
	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read job %s: %w", id, err)
	}
	var j models.Job
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	j.Normalize()
	return &j, nil
}

// writeTemp serialises j into a temp file in the store directory and returns its path.
func (s *FileStore) writeTemp(j *models.Job) (string, error) {
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode job %s: %w", j.ID, err)
	}
	f, err := os.CreateTemp(s.dir, ".tmp-"+j.ID+"-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("write job %s: %w", j.ID, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("sync job %s: %w", j.ID, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("close job %s: %w", j.ID, err)
	}
	return name, nil
}

func idFromFile(e fs.DirEntry) (string, bool) {
	name := e.Name()
	if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, jobFileExt) {
		return "", false
	}
	return strings.TrimSuffix(name, jobFileExt), true
}

var _ Store = (*FileStore)(nil)
