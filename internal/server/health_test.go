package server

import (
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type healthBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func TestHealth_Liveness(t *testing.T) {
	ts := newTestServer(t, nil, "")
	resp := ts.request(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "up", decode[healthBody](t, resp).Status)
}

func TestHealth_Readiness(t *testing.T) {
	t.Run("with redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })

		ts := newTestServer(t, rdb, "")
		resp := ts.request(t, http.MethodGet, "/health/ready", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[healthBody](t, resp)
		assert.Equal(t, "healthy", body.Status)
		assert.Equal(t, map[string]string{"database": "healthy", "redis": "healthy"}, body.Checks)
	})

	t.Run("without redis", func(t *testing.T) {
		ts := newTestServer(t, nil, "")
		resp := ts.request(t, http.MethodGet, "/health/ready", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode[healthBody](t, resp)
		assert.Equal(t, "degraded", body.Status)
		assert.Equal(t, "unavailable", body.Checks["redis"])
	})

	t.Run("database down", func(t *testing.T) {
		ts := newTestServer(t, nil, "")
		sqlDB, err := ts.db.DB()
		require.NoError(t, err)
		require.NoError(t, sqlDB.Close())

		resp := ts.request(t, http.MethodGet, "/health/ready", "", nil)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		body := decode[healthBody](t, resp)
		assert.Equal(t, "unhealthy", body.Status)
		assert.Equal(t, "unhealthy", body.Checks["database"])
	})
}
