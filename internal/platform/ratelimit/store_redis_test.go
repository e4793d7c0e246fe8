//go:build integration

package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycflow/pkg/testutil/containers"
)

func TestRedisStore(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	t.Cleanup(func() {
		_ = rc.Client.Close()
		_ = rc.Container.Terminate(context.Background())
	})
	ctx := context.Background()
	store := NewRedisStore(rc.Client)

	for i := range 2 {
		res, err := store.AllowN(ctx, "kycflow:ratelimit:test:10.0.0.1", 1, 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 1-i, res.Remaining)
	}

	res, err := store.AllowN(ctx, "kycflow:ratelimit:test:10.0.0.1", 1, 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Positive(t, res.RetryAfter)

	ttl, err := rc.Client.PTTL(ctx, "kycflow:ratelimit:test:10.0.0.1").Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)
}
