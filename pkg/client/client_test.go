package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesplatform/schedopt/pkg/api"
	"github.com/mesplatform/schedopt/pkg/logging"
	"github.com/mesplatform/schedopt/pkg/models"
	"github.com/mesplatform/schedopt/pkg/retry"
	"github.com/mesplatform/schedopt/pkg/scheduler"
	"github.com/mesplatform/schedopt/pkg/store"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()

	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpsertJob(ctx, models.Job{ID: "J1", Quantity: 120, DueDate: due, Priority: models.PriorityHigh}))
	require.NoError(t, s.UpsertJob(ctx, models.Job{ID: "J2", Quantity: 60, DueDate: due.AddDate(0, 0, 1), Priority: models.PriorityMid}))
	require.NoError(t, s.UpsertMachine(ctx, models.Machine{ID: "M1", CapacityPerPeriod: 60, Available: true}))

	cfg := scheduler.DefaultSchedulerConfig()
	cfg.ExactEnabled = false
	opt := scheduler.NewOptimizer(cfg, scheduler.StaticCapability(false, "disabled in tests"),
		scheduler.WithLogger(logging.Discard()))

	srv := httptest.NewServer(api.NewRouter(api.NewHandler(s, opt, nil), api.RouterOptions{}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Optimize(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL + "/")

	resp, runID, err := c.Optimize(context.Background(), []string{"J1", "J2"})
	require.NoError(t, err)
	assert.NotEmpty(t, runID)
	assert.Equal(t, 180, resp.Makespan)
	require.Len(t, resp.Schedule, 2)
	assert.Equal(t, "J1", resp.Schedule[0].JobID)
	assert.Equal(t, 120, resp.Schedule[1].StartMin)
}

func TestClient_OptimizeInputError(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL)

	_, _, err := c.Optimize(context.Background(), nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "expected APIError, got %v", err)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "no job_ids provided", apiErr.Message)
	assert.False(t, apiErr.Temporary())
}

func TestClient_Equipment(t *testing.T) {
	srv := newServer(t)
	c := New(srv.URL)
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	machines, err := c.ListEquipment(ctx)
	require.NoError(t, err)
	require.Len(t, machines, 1)
	assert.True(t, machines[0].Available)

	require.NoError(t, c.SetEquipmentStatus(ctx, "M1", store.MachineStatusDown))
	machines, err = c.ListEquipment(ctx)
	require.NoError(t, err)
	assert.False(t, machines[0].Available)

	err = c.SetEquipmentStatus(ctx, "M9", store.MachineStatusRun)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestClient_RetriesThrottledRequests(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, WithRetry(retry.Config{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		Multiplier:     1,
		Retryable:      isTemporary,
	}))

	require.NoError(t, c.Health(context.Background()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
