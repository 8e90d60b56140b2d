// Package scheduler assigns production jobs to alternative machines. An exact
// constraint model is tried first under a time budget; deterministic list
// scheduling is the fallback and always produces a schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mesplatform/schedopt/pkg/logging"
	"github.com/mesplatform/schedopt/pkg/metrics"
	"github.com/mesplatform/schedopt/pkg/models"
	"github.com/mesplatform/schedopt/pkg/tracing"
)

// Strategy produces a schedule for a validated problem
type Strategy interface {
	Name() models.Strategy
	Schedule(ctx context.Context, p *Problem) (*models.ScheduleResult, error)
}

// Optimizer dispatches between the exact and greedy strategies.
// It holds no per-call state and is safe for concurrent use.
type Optimizer struct {
	config     *SchedulerConfig
	capability Capability
	exact      Strategy
	greedy     Strategy
	logger     *logging.Logger
	metrics    *metrics.Metrics
	tracer     *tracing.Provider
}

// Option configures an Optimizer
type Option func(*Optimizer)

// WithLogger sets the logger
func WithLogger(l *logging.Logger) Option {
	return func(o *Optimizer) { o.logger = l }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Optimizer) { o.metrics = m }
}

// WithTracer sets the trace provider
func WithTracer(p *tracing.Provider) Option {
	return func(o *Optimizer) { o.tracer = p }
}

// WithExact replaces the exact strategy
func WithExact(s Strategy) Option {
	return func(o *Optimizer) { o.exact = s }
}

// NewOptimizer creates an optimizer. capability is the result of
// ProbeCapability at process start.
func NewOptimizer(config *SchedulerConfig, capability Capability, opts ...Option) *Optimizer {
	if config == nil {
		config = DefaultSchedulerConfig()
	}
	o := &Optimizer{
		config:     config,
		capability: capability,
		greedy:     NewGreedyScheduler(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.exact == nil {
		o.exact = NewExactScheduler(config)
	}
	if o.logger == nil {
		o.logger = logging.NewLogger(logging.INFO, false)
	}
	if o.tracer == nil {
		o.tracer = tracing.Disabled("schedopt")
	}
	return o
}

// Optimize schedules jobs, in the order given, on the available machines.
// The only errors a caller should expect are *InputError values; an
// ErrInconsistentSolution means a modelling bug and no schedule is returned.
func (o *Optimizer) Optimize(ctx context.Context, jobs []models.Job, machines []models.Machine) (*models.ScheduleResult, error) {
	started := time.Now()
	runID := uuid.NewString()
	log := o.logger.WithField("run_id", runID)

	ctx, span := o.tracer.StartSpan(ctx, "scheduler.optimize",
		tracing.RunAttributes(runID, len(jobs), len(machines))...)
	defer span.End()

	p, err := NewProblem(jobs, machines)
	if err != nil {
		tracing.SetError(ctx, err)
		log.Warn(fmt.Sprintf("[Optimizer] Rejected input: %v", err))
		return nil, err
	}

	res, fallback, err := o.solve(ctx, p, log)
	if err != nil {
		tracing.SetError(ctx, err)
		log.Error(fmt.Sprintf("[Optimizer] Scheduling failed: %v", err))
		return nil, err
	}

	res.RunID = runID
	res.SolveTime = time.Since(started)
	res.FallbackReason = fallback

	o.metrics.ObserveRun(string(res.Strategy), string(res.Status), res.SolveTime, res.MakespanMin, res.Utilization)
	span.SetAttributes(tracing.ResultAttributes(string(res.Strategy), string(res.Status), res.MakespanMin, res.Utilization)...)
	log.Info(fmt.Sprintf("[Optimizer] Scheduled %d jobs on %d machines", len(p.Jobs), len(p.Machines)), logging.Fields{
		"solver":      res.Strategy,
		"status":      res.Status,
		"makespan":    res.MakespanMin,
		"utilization": res.Utilization,
		"elapsed":     res.SolveTime.String(),
	})
	return res, nil
}

// solve returns the result and, when the greedy path was used after the exact
// path was considered, the reason it was not used
func (o *Optimizer) solve(ctx context.Context, p *Problem, log *logging.Logger) (*models.ScheduleResult, string, error) {
	fallback := o.exactSkipReason(p)
	if fallback == "" {
		res, err := o.run(ctx, o.exact, p)
		switch {
		case err == nil:
			if verr := Verify(res, p); verr != nil {
				return nil, "", verr
			}
			o.metrics.ObserveSolverNodes(res.SolverNodes)
			return res, "", nil
		case errors.Is(err, ErrInconsistentSolution):
			return nil, "", err
		default:
			fallback = FallbackReason(err)
			if !Recoverable(err) {
				log.Error(fmt.Sprintf("[Optimizer] Unexpected exact solver error: %v", err))
			} else {
				log.Warn(fmt.Sprintf("[Optimizer] Exact solver failed, using greedy: %v", err))
			}
			o.metrics.ObserveFallback(fallback)
			tracing.RecordFallback(ctx, fallback)
		}
	} else if fallback != "disabled" {
		log.Info(fmt.Sprintf("[Optimizer] Exact solver skipped (%s), using greedy", fallback))
		o.metrics.ObserveFallback(fallback)
		tracing.RecordFallback(ctx, fallback)
	}

	res, err := o.run(ctx, o.greedy, p)
	if err != nil {
		return nil, "", err
	}
	if err := Verify(res, p); err != nil {
		return nil, "", err
	}
	return res, fallback, nil
}

// exactSkipReason returns why the exact path should not be tried, or ""
func (o *Optimizer) exactSkipReason(p *Problem) string {
	if !o.config.ExactEnabled {
		return "disabled"
	}
	if !o.capability.Available {
		return "unavailable"
	}
	if o.config.MaxExactJobs > 0 && len(p.Jobs) > o.config.MaxExactJobs {
		return "too_large"
	}
	if ok, _ := o.capability.Fits(len(p.Jobs), len(p.Machines)); !ok {
		return "too_large"
	}
	return ""
}

func (o *Optimizer) run(ctx context.Context, s Strategy, p *Problem) (*models.ScheduleResult, error) {
	name := "scheduler.greedy"
	if s.Name() == models.StrategyExact {
		name = "scheduler.exact"
	}
	ctx, span := o.tracer.StartSpan(ctx, name)
	defer span.End()

	res, err := s.Schedule(ctx, p)
	if err != nil {
		tracing.SetError(ctx, err)
		return nil, err
	}
	return res, nil
}
