package observability

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error {
	return p.err
}

func TestHealthChecker_Check(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		hc := NewHealthChecker(stubPinger{})
		hc.AddCheck("redis", stubPinger{})

		status := hc.Check(context.Background())
		assert.Equal(t, "healthy", status.Status)
		assert.Equal(t, "healthy", status.Checks["database"])
		assert.Equal(t, "healthy", status.Checks["redis"])
	})

	t.Run("lock backend down", func(t *testing.T) {
		hc := NewHealthChecker(stubPinger{})
		hc.AddCheck("redis", stubPinger{err: errors.New("connection refused")})

		status := hc.Check(context.Background())
		assert.Equal(t, "unhealthy", status.Status)
		assert.Equal(t, "unhealthy: connection refused", status.Checks["redis"])
	})

	t.Run("no database", func(t *testing.T) {
		status := NewHealthChecker(nil).Check(context.Background())
		assert.Equal(t, "healthy", status.Status)
		assert.Equal(t, "not configured", status.Checks["database"])
	})
}

func TestMetricsMux(t *testing.T) {
	hc := NewHealthChecker(stubPinger{})
	hc.AddCheck("redis", stubPinger{err: errors.New("timeout")})
	mux := NewMetricsMux(hc)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var status HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	assert.Equal(t, "unhealthy", status.Status)

	// a degraded lock backend does not take the service out of rotation
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsMux_DatabaseDown(t *testing.T) {
	mux := NewMetricsMux(NewHealthChecker(stubPinger{err: errors.New("down")}))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
