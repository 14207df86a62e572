package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/partscout/internal/store"
	"github.com/kiranshivaraju/partscout/internal/store/storetest"
	"github.com/kiranshivaraju/partscout/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + connection string.
func setupTestDB(t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("partscout_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Run migrations
	err = store.RunMigrations(connStr)
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool, connStr
}

func truncate(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `TRUNCATE jobs`)
	require.NoError(t, err)
}

func TestPostgresStore_Conformance(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool, _ := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	storetest.Run(t, func(t *testing.T) store.Store {
		truncate(t, pool)
		return s
	})
}

func TestPostgresStore_MigrationsAreIdempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	_, connStr := setupTestDB(t)

	require.NoError(t, store.RunMigrations(connStr))
}

func TestPostgresStore_TriggerRefreshesUpdatedAt(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool, _ := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	created, err := s.Create(ctx, storetest.NewJob("touched", 0))
	require.NoError(t, err)

	// A write that leaves updated_at alone still moves it forward.
	_, err = pool.Exec(ctx, `UPDATE jobs SET raw_report = 'manual fix' WHERE id = $1`, "touched")
	require.NoError(t, err)

	got, err := s.Get(ctx, "touched")
	require.NoError(t, err)
	assert.Equal(t, "manual fix", got.RawReport)
	assert.True(t, got.UpdatedAt.After(created.UpdatedAt))
}

func TestPostgresStore_SuccessConstraint(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool, _ := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	_, err := s.Create(ctx, storetest.NewJob("guarded", 0))
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `UPDATE jobs SET success = TRUE WHERE id = $1`, "guarded")
	assert.Error(t, err, "the table rejects success on a pending job")
}

func TestPostgresStore_UpdateThatWritesNothingIsNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool, _ := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	_, err := s.Create(ctx, storetest.NewJob("swallowed", 0))
	require.NoError(t, err)

	// A BEFORE trigger returning NULL makes the UPDATE match the row but write nothing.
	_, err = pool.Exec(ctx, `CREATE FUNCTION skip_job_update() RETURNS trigger AS $$ BEGIN RETURN NULL; END; $$ LANGUAGE plpgsql`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `CREATE TRIGGER skip_job_update BEFORE UPDATE ON jobs FOR EACH ROW EXECUTE FUNCTION skip_job_update()`)
	require.NoError(t, err)

	_, err = s.Update(ctx, "swallowed", models.StatusPatch(models.JobStatusProcessing))
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.Get(ctx, "swallowed")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
}

func TestPostgresStore_Ping(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool, _ := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	assert.NoError(t, s.Ping(context.Background()))
}

// TestBackendEquivalence replays one operation sequence against both backends and
// compares what they report.
func TestBackendEquivalence(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool, _ := setupTestDB(t)
	fileStore, _ := newFileStore(t)
	backends := map[string]store.Store{
		"file":     fileStore,
		"postgres": store.NewPostgresStore(pool),
	}

	for _, s := range backends {
		replay(t, s)
	}

	filters := []store.ListFilter{
		{},
		{Limit: 2},
		{Status: models.JobStatusCompleted},
		{Status: models.JobStatusFailed},
		{Success: models.Ptr(true)},
		{Success: models.Ptr(false)},
		{Mode: models.ModeKeywordsOnly},
	}
	ctx := context.Background()
	for i, f := range filters {
		fileJobs, err := backends["file"].List(ctx, f)
		require.NoError(t, err)
		pgJobs, err := backends["postgres"].List(ctx, f)
		require.NoError(t, err)
		assert.Equal(t, withoutUpdatedAt(fileJobs), withoutUpdatedAt(pgJobs), "filter %d: %+v", i, f)
	}

	fileStats, err := backends["file"].Stats(ctx)
	require.NoError(t, err)
	pgStats, err := backends["postgres"].Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, fileStats, pgStats)
}

func replay(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		j := storetest.NewJob(fmt.Sprintf("eq-%d", i), i%4)
		if i%3 == 0 {
			j.Mode = models.ModeKeywordsOnly
		}
		_, err := s.Create(ctx, j)
		require.NoError(t, err)
	}

	a := storetest.SampleAnalysis()
	storetest.Complete(t, s, "eq-1", true, models.Ptr(a.ConfidenceScore), models.Ptr(3.3))
	_, err := s.Update(ctx, "eq-1", models.JobPatch{Result: &models.JobResult{PartAnalysis: a}})
	require.NoError(t, err)

	storetest.Complete(t, s, "eq-2", false, nil, models.Ptr(0.75))
	_, err = s.Update(ctx, "eq-2", models.JobPatch{
		Result:      &models.JobResult{PartAnalysis: models.Ptr(models.FailedAnalysis())},
		Error:       models.Ptr("AI provider unavailable"),
		Remediation: models.Ptr(models.RemediationRetryImage),
	})
	require.NoError(t, err)

	storetest.Complete(t, s, "eq-4", false, models.Ptr(10), models.Ptr(1.5))
	_, err = s.Update(ctx, "eq-5", models.StatusPatch(models.JobStatusProcessing))
	require.NoError(t, err)

	// Rejected writes must leave both backends unchanged.
	_, err = s.Update(ctx, "eq-1", models.StatusPatch(models.JobStatusPending))
	require.ErrorIs(t, err, store.ErrInvalidTransition)

	require.NoError(t, s.Delete(ctx, "eq-3"))
	require.NoError(t, s.Delete(ctx, "eq-3"))
}

func withoutUpdatedAt(jobs []*models.Job) []models.Job {
	out := make([]models.Job, len(jobs))
	for i, j := range jobs {
		out[i] = *j
		out[i].UpdatedAt = time.Time{}
	}
	return out
}

func TestNew_FileBackend(t *testing.T) {
	cfg := testConfig(t)

	s, err := store.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, ok := s.(*store.FileStore)
	assert.True(t, ok)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestNew_UnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Backend = "sqlite"

	_, err := store.New(context.Background(), cfg)
	assert.Error(t, err)
}
