package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_NotReadyByDefault(t *testing.T) {
	h := New()
	assert.False(t, h.IsReady())

	h.SetReady(true)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestHealth_FailureThreshold(t *testing.T) {
	h := New()
	h.AddReadinessCheck("db", time.Second, func(context.Context) error {
		return errors.New("connection refused")
	})
	h.SetReady(true)

	h.mu.RLock()
	p := h.readiness[0]
	h.mu.RUnlock()

	// Two failures stay under the threshold of three.
	p.run(context.Background())
	p.run(context.Background())
	assert.True(t, h.IsReady())

	p.run(context.Background())
	assert.False(t, h.IsReady())
}

func TestHealth_RecoversAfterSuccess(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)

	h := New()
	h.AddReadinessCheck("db", time.Second, func(context.Context) error {
		if failing.Load() {
			return errors.New("down")
		}
		return nil
	})
	h.SetReady(true)

	h.mu.RLock()
	p := h.readiness[0]
	h.mu.RUnlock()

	for range 3 {
		p.run(context.Background())
	}
	require.False(t, h.IsReady())

	failing.Store(false)
	p.run(context.Background())
	assert.True(t, h.IsReady())
}

func TestHealth_ReadyEndpoint(t *testing.T) {
	h := New()
	h.AddReadinessCheck("db", time.Second, func(context.Context) error {
		return errors.New("dial tcp: connection refused")
	})
	h.SetReady(true)

	h.mu.RLock()
	p := h.readiness[0]
	h.mu.RUnlock()
	for range 3 {
		p.run(context.Background())
	}

	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Contains(t, resp.Checks["db"], "connection refused")
}

func TestHealth_LiveEndpointOK(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, GoroutineCountCheck(10_000))

	w := httptest.NewRecorder()
	h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealth_StartAndStop(t *testing.T) {
	var runs atomic.Int32

	h := New()
	h.AddLivenessCheck("counter", time.Second, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	h.Start(context.Background(), 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return runs.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	h.Stop()
	stopped := runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, runs.Load(), stopped+1)
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(100_000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}
