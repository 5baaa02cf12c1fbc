package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// redisURLForTest starts a throwaway Redis container and returns its URL.
// The test is skipped when no container provider is available.
func redisURLForTest(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
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
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return fmt.Sprintf("redis://%s:%s/0", host, port.Port())
}

func TestRedisStore(t *testing.T) {
	url := redisURLForTest(t)
	ctx := context.Background()

	s, err := NewRedisStore(ctx, WithRedisURL(url), WithNamespace(fmt.Sprintf("test-%d", time.Now().UnixNano())), WithTTL(time.Hour))
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, BackendRedis, s.Backend())

	runStoreContract(t, s)

	ttl, err := s.client.TTL(ctx, s.key("contract-1")).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 59*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour)

	infos, err := s.List(ctx)
	require.NoError(t, err)
	for _, info := range infos {
		assert.Greater(t, info.ExpiresIn, time.Duration(0))
	}
}

func TestRedisStore_KeyExpiry(t *testing.T) {
	url := redisURLForTest(t)
	ctx := context.Background()

	s, err := NewRedisStore(ctx, WithRedisURL(url), WithNamespace("expiry"), WithTTL(time.Second))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(ctx, sampleSession("brief")))
	require.Eventually(t, func() bool {
		got, err := s.Load(ctx, "brief")
		return err == nil && got == nil
	}, 5*time.Second, 100*time.Millisecond)
}

func TestOpen_PrefersRedis(t *testing.T) {
	url := redisURLForTest(t)
	s, err := Open(context.Background(), WithRedisURL(url), WithSQLiteDSN(t.TempDir()+"/unused.db"))
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, BackendRedis, s.Backend())
}
