package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kiranshivaraju/partscout/internal/cache"
)

// startRedis runs a throwaway Redis and returns a cache connected to it.
func startRedis(t *testing.T) *cache.RedisCache {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	endpoint, err := container.PortEndpoint(ctx, "6379/tcp", "redis")
	require.NoError(t, err)

	rc, err := cache.NewRedisCache(endpoint)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })
	return rc
}

// TestRedisCache shares one container across subtests; keys are unique per subtest.
func TestRedisCache(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := startRedis(t)
	ctx := context.Background()

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, rc.Ping(ctx))
	})

	t.Run("status follows job lifecycle", func(t *testing.T) {
		id := uuid.NewString()

		for _, status := range []string{"pending", "processing", "completed"} {
			require.NoError(t, rc.SetJobStatus(ctx, id, status, time.Minute))
			got, found, err := rc.GetJobStatus(ctx, id)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, status, got)
		}

		require.NoError(t, rc.DeleteJobStatus(ctx, id))
		_, found, err := rc.GetJobStatus(ctx, id)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("unknown job status misses", func(t *testing.T) {
		status, found, err := rc.GetJobStatus(ctx, uuid.NewString())
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, status)
	})

	t.Run("status expires", func(t *testing.T) {
		id := uuid.NewString()
		require.NoError(t, rc.SetJobStatus(ctx, id, "processing", time.Second))

		assert.Eventually(t, func() bool {
			_, found, err := rc.GetJobStatus(ctx, id)
			return err == nil && !found
		}, 5*time.Second, 100*time.Millisecond)
	})

	t.Run("raw values", func(t *testing.T) {
		key := "partscout:test:" + uuid.NewString()

		_, found, err := rc.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, rc.Set(ctx, key, []byte(`{"status":"completed"}`), time.Minute))
		val, found, err := rc.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, found)
		assert.JSONEq(t, `{"status":"completed"}`, string(val))

		require.NoError(t, rc.Delete(ctx, key))
		require.NoError(t, rc.Delete(ctx, key), "deleting twice is fine")
	})

	t.Run("rate limit windows count per client", func(t *testing.T) {
		window := time.Now().Unix()
		a := cache.RateLimitKey("198.51.100."+uuid.NewString()[:4], window)
		b := cache.RateLimitKey("198.51.100."+uuid.NewString()[:4], window)

		for want := int64(1); want <= 3; want++ {
			n, err := rc.IncrWithExpiry(ctx, a, time.Minute)
			require.NoError(t, err)
			assert.Equal(t, want, n)
		}
		n, err := rc.IncrWithExpiry(ctx, b, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n, "other clients have their own counter")
	})

	t.Run("rate limit counter resets after expiry", func(t *testing.T) {
		key := cache.RateLimitKey("203.0.113."+uuid.NewString()[:4], time.Now().Unix())

		_, err := rc.IncrWithExpiry(ctx, key, time.Second)
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			_, found, err := rc.Get(ctx, key)
			return err == nil && !found
		}, 5*time.Second, 100*time.Millisecond)

		n, err := rc.IncrWithExpiry(ctx, key, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}

func TestNewRedisCache_InvalidURL(t *testing.T) {
	_, err := cache.NewRedisCache("http://not-redis")
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "partscout:job:job-42:status", cache.JobStatusKey("job-42"))
	assert.Equal(t, "partscout:job:job-42", cache.JobKey("job-42"))
	assert.Equal(t, "partscout:ratelimit:203.0.113.7:1700000040", cache.RateLimitKey("203.0.113.7", 1700000040))

	seen := map[string]bool{
		cache.JobStatusKey("abc"):    true,
		cache.JobStatusKey("abd"):    true,
		cache.JobKey("abc"):          true,
		cache.RateLimitKey("abc", 1): true,
		cache.RateLimitKey("abc", 2): true,
	}
	assert.Len(t, seen, 5)
}

func TestNop(t *testing.T) {
	ctx := context.Background()
	var c cache.Cache = cache.Nop{}

	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.SetJobStatus(ctx, "job-1", "completed", time.Minute))

	_, found, err := c.GetJobStatus(ctx, "job-1")
	require.NoError(t, err)
	assert.False(t, found)

	n, err := c.IncrWithExpiry(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, c.Close())
}
