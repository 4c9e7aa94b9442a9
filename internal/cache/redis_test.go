package cache

import (
	"context"
	"testing"

	"blogapi/internal/observability"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	for _, addr := range []string{mr.Addr(), "redis://" + mr.Addr() + "/0"} {
		c, err := Open(ctx, addr)
		require.NoError(t, err, addr)
		assert.Equal(t, mr.Addr(), c.Options().Addr)
		_ = c.Close()
	}

	_, err := Open(ctx, "")
	assert.Error(t, err)
	_, err = Open(ctx, "redis://:bad port")
	assert.ErrorContains(t, err, "REDIS_URL")
}

func TestInitRedis_UnreachableLeavesClientNil(t *testing.T) {
	prev := client
	t.Cleanup(func() { client = prev })

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	assert.Nil(t, InitRedis(context.Background(), addr))
	assert.Nil(t, GetClient())
}

func TestErrorCounter(t *testing.T) {
	mr := withMiniredis(t)
	ctx := context.Background()
	failures := observability.RedisErrorRate.WithLabelValues("get")
	before := testutil.ToFloat64(failures)

	// A miss is not a failure.
	_, err := GetJSON(ctx, "post:missing", new(string))
	require.NoError(t, err)
	assert.Equal(t, before, testutil.ToFloat64(failures))

	mr.SetError("LOADING dataset in memory")
	_, err = GetJSON(ctx, "post:missing", new(string))
	require.Error(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(failures))
}
