package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesplatform/schedopt/pkg/logging"
	"github.com/mesplatform/schedopt/pkg/metrics"
	"github.com/mesplatform/schedopt/pkg/models"
)

// stubStrategy stands in for the exact solver
type stubStrategy struct {
	result *models.ScheduleResult
	err    error
	calls  int
}

func (s *stubStrategy) Name() models.Strategy { return models.StrategyExact }

func (s *stubStrategy) Schedule(ctx context.Context, p *Problem) (*models.ScheduleResult, error) {
	s.calls++
	return s.result, s.err
}

func newTestOptimizer(cfg *SchedulerConfig, opts ...Option) *Optimizer {
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	return NewOptimizer(cfg, StaticCapability(true, ""), opts...)
}

func scenarioTwo() ([]models.Job, []models.Machine) {
	return []models.Job{job("J1", 100), job("J2", 100), job("J3", 50)},
		[]models.Machine{machine("M1", 60), machine("M2", 60)}
}

func TestOptimize_InputErrors(t *testing.T) {
	o := newTestOptimizer(nil)
	down := machine("M1", 60)
	down.Available = false

	tests := []struct {
		name     string
		jobs     []models.Job
		machines []models.Machine
		message  string
	}{
		{"no jobs", nil, []models.Machine{machine("M1", 60)}, "no job_ids provided"},
		{"no machines", []models.Job{job("J1", 10)}, nil, "no machines available"},
		{"all machines down", []models.Job{job("J1", 10)}, []models.Machine{down}, "no machines available"},
		{"duplicate job", []models.Job{job("J1", 10), job("J1", 20)}, []models.Machine{machine("M1", 60)}, "duplicate job id J1"},
		{"zero quantity", []models.Job{job("J1", 0)}, []models.Machine{machine("M1", 60)}, "job J1 has non-positive quantity 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := o.Optimize(context.Background(), tt.jobs, tt.machines)
			require.Error(t, err)
			assert.Nil(t, res)

			var ie *InputError
			require.True(t, errors.As(err, &ie), "expected *InputError, got %T", err)
			assert.Equal(t, tt.message, ie.Error())
		})
	}
}

func TestOptimize_ExactPath(t *testing.T) {
	jobs, machines := scenarioTwo()
	m := metrics.New()
	o := newTestOptimizer(exactConfig(), WithMetrics(m))

	res, err := o.Optimize(context.Background(), jobs, machines)
	require.NoError(t, err)

	assert.Equal(t, models.StrategyExact, res.Strategy)
	assert.Equal(t, models.StatusOptimal, res.Status)
	assert.Equal(t, 150, res.MakespanMin)
	assert.Empty(t, res.FallbackReason)
	assert.NotEmpty(t, res.RunID)
	assert.True(t, res.SolveTime > 0)

	var buf bytes.Buffer
	require.NoError(t, m.WriteText(&buf))
	assert.Contains(t, buf.String(), `schedopt_runs_total{solver="EXACT",status="OPTIMAL"} 1`)
}

func TestOptimize_ExactMatchesGreedyOnOneMachine(t *testing.T) {
	jobs := []models.Job{job("J1", 80), job("J2", 40)}
	machines := []models.Machine{machine("M1", 60)}

	exactRes, err := newTestOptimizer(exactConfig()).Optimize(context.Background(), jobs, machines)
	require.NoError(t, err)

	greedyCfg := exactConfig()
	greedyCfg.ExactEnabled = false
	greedyRes, err := newTestOptimizer(greedyCfg).Optimize(context.Background(), jobs, machines)
	require.NoError(t, err)

	assert.Equal(t, models.StrategyExact, exactRes.Strategy)
	assert.Equal(t, models.StrategyHeuristic, greedyRes.Strategy)
	assert.Equal(t, greedyRes.MakespanMin, exactRes.MakespanMin)
}

func TestOptimize_FallsBackOnRecoverableErrors(t *testing.T) {
	for _, cause := range []error{
		fmt.Errorf("%w: boom", ErrSolverUnavailable),
		ErrSolverTimeout,
		ErrSolverInfeasible,
		errors.New("unexpected solver failure"),
	} {
		t.Run(cause.Error(), func(t *testing.T) {
			jobs, machines := scenarioTwo()
			stub := &stubStrategy{err: cause}
			m := metrics.New()
			o := newTestOptimizer(exactConfig(), WithExact(stub), WithMetrics(m))

			res, err := o.Optimize(context.Background(), jobs, machines)
			require.NoError(t, err)

			assert.Equal(t, 1, stub.calls)
			assert.Equal(t, models.StrategyHeuristic, res.Strategy)
			assert.Equal(t, models.StatusHeuristic, res.Status)
			assert.Equal(t, FallbackReason(cause), res.FallbackReason)
			assert.Equal(t, 150, res.MakespanMin)

			p := mustProblem(t, jobs, machines)
			assert.NoError(t, Verify(res, p))

			var buf bytes.Buffer
			require.NoError(t, m.WriteText(&buf))
			assert.Contains(t, buf.String(), fmt.Sprintf(`schedopt_fallbacks_total{reason=%q} 1`, FallbackReason(cause)))
		})
	}
}

func TestOptimize_InconsistentSolutionIsFatal(t *testing.T) {
	jobs, machines := scenarioTwo()

	t.Run("reported by solver", func(t *testing.T) {
		o := newTestOptimizer(exactConfig(), WithExact(&stubStrategy{err: fmt.Errorf("%w: two machines", ErrInconsistentSolution)}))
		res, err := o.Optimize(context.Background(), jobs, machines)
		assert.Nil(t, res)
		assert.True(t, errors.Is(err, ErrInconsistentSolution))
		assert.False(t, IsInputError(err))
	})

	t.Run("caught by verification", func(t *testing.T) {
		overlapping := Finalize([]models.ScheduleEntry{
			{JobID: "J1", MachineID: "M1", StartMin: 0, EndMin: 100, Sequence: 1},
			{JobID: "J2", MachineID: "M1", StartMin: 50, EndMin: 150, Sequence: 2},
			{JobID: "J3", MachineID: "M2", StartMin: 0, EndMin: 50, Sequence: 3},
		}, machines, models.StrategyExact, models.StatusOptimal)

		o := newTestOptimizer(exactConfig(), WithExact(&stubStrategy{result: overlapping}))
		res, err := o.Optimize(context.Background(), jobs, machines)
		assert.Nil(t, res)
		assert.True(t, errors.Is(err, ErrInconsistentSolution))
	})
}

func TestOptimize_SkipsExact(t *testing.T) {
	jobs, machines := scenarioTwo()

	disabled := exactConfig()
	disabled.ExactEnabled = false

	small := exactConfig()
	small.MaxExactJobs = 2

	tests := []struct {
		name       string
		cfg        *SchedulerConfig
		capability Capability
		reason     string
	}{
		{"disabled", disabled, StaticCapability(true, ""), "disabled"},
		{"unavailable", exactConfig(), StaticCapability(false, "no solver"), "unavailable"},
		{"too many jobs", small, StaticCapability(true, ""), "too_large"},
		{"not enough memory", exactConfig(), Capability{Available: true, FreeMemory: 1024}, "too_large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubStrategy{err: errors.New("must not be called")}
			o := NewOptimizer(tt.cfg, tt.capability, WithLogger(logging.Discard()), WithExact(stub))

			res, err := o.Optimize(context.Background(), jobs, machines)
			require.NoError(t, err)
			assert.Equal(t, 0, stub.calls)
			assert.Equal(t, models.StrategyHeuristic, res.Strategy)
			assert.Equal(t, tt.reason, res.FallbackReason)
		})
	}
}

func TestOptimize_FallbackIsDeterministic(t *testing.T) {
	jobs := []models.Job{job("A", 90), job("B", 30), job("C", 200), job("D", 45), job("E", 120), job("F", 10)}
	machines := []models.Machine{machine("M1", 60), machine("M2", 120), machine("M3", 90)}
	o := newTestOptimizer(exactConfig(), WithExact(&stubStrategy{err: ErrSolverTimeout}))

	var first []byte
	for i := 0; i < 5; i++ {
		res, err := o.Optimize(context.Background(), jobs, machines)
		require.NoError(t, err)
		out, err := json.Marshal(models.NewResponse(res))
		require.NoError(t, err)
		if first == nil {
			first = out
			continue
		}
		assert.Equal(t, string(first), string(out))
	}
}

func TestOptimize_DoesNotReorderJobs(t *testing.T) {
	jobs := []models.Job{job("LATE", 60), job("EARLY", 60)}
	jobs[1].DueDate = jobs[0].DueDate.AddDate(0, 0, -7)
	cfg := exactConfig()
	cfg.ExactEnabled = false

	res, err := newTestOptimizer(cfg).Optimize(context.Background(), jobs, []models.Machine{machine("M1", 60)})
	require.NoError(t, err)
	assert.Equal(t, "LATE", res.Entries[0].JobID)
	assert.Equal(t, "EARLY", res.Entries[1].JobID)
}

func TestOptimize_CancelledContextStillSchedules(t *testing.T) {
	jobs := []models.Job{job("A", 90), job("B", 30), job("C", 200), job("D", 45), job("E", 120), job("F", 10)}
	machines := []models.Machine{machine("M1", 60), machine("M2", 120)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newTestOptimizer(exactConfig()).Optimize(ctx, jobs, machines)
	require.NoError(t, err)
	assert.NoError(t, Verify(res, mustProblem(t, jobs, machines)))
}

func TestOptimize_Concurrent(t *testing.T) {
	jobs, machines := scenarioTwo()
	cfg := exactConfig()
	cfg.TimeBudget = time.Second
	o := newTestOptimizer(cfg, WithMetrics(metrics.New()))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := o.Optimize(context.Background(), jobs, machines)
			if err != nil {
				errs <- err
				return
			}
			if res.MakespanMin != 150 {
				errs <- fmt.Errorf("makespan %d", res.MakespanMin)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestOptimize_LogsRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.INFO, true)
	logger.SetOutput(&buf)
	cfg := exactConfig()
	cfg.ExactEnabled = false

	res, err := NewOptimizer(cfg, StaticCapability(true, ""), WithLogger(logger)).
		Optimize(context.Background(), []models.Job{job("J1", 60)}, []models.Machine{machine("M1", 60)})
	require.NoError(t, err)
	assert.True(t, strings.Contains(buf.String(), res.RunID))
}

func TestOptimize_ZeroCapacityMachineRunsAtOneUnitPerMinute(t *testing.T) {
	o := newTestOptimizer(nil)

	res, err := o.Optimize(context.Background(),
		[]models.Job{job("J1", 10), job("J2", 5)},
		[]models.Machine{machine("M0", 0)},
	)
	require.NoError(t, err)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, 10, entryFor(t, res, "J1").Duration())
	assert.Equal(t, 5, entryFor(t, res, "J2").Duration())
	assert.Equal(t, 15, res.MakespanMin)
}
