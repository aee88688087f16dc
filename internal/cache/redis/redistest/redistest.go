// Package redistest starts an in-memory Redis for tests.
package redistest

import (
	"context"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	rediscache "github.com/alanyoungcy/realityarb/internal/cache/redis"
)

// New returns a Client connected to TEST_REDIS_ADDR when set, otherwise to a
// fresh miniredis that is closed with the test. The miniredis handle is nil
// for an external server.
func New(t testing.TB) (*rediscache.Client, *miniredis.Miniredis) {
	t.Helper()

	addr := os.Getenv("TEST_REDIS_ADDR")
	var mr *miniredis.Miniredis
	if addr == "" {
		mr = miniredis.RunT(t)
		addr = mr.Addr()
	}

	client, err := rediscache.New(context.Background(), rediscache.ClientConfig{
		Addr:     addr,
		PoolSize: 4,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}
