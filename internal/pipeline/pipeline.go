// Package pipeline provides the stage runner behind stagecopy's load and
// unload flows.
//
// # Overview
//
// A Pipeline is an ordered list of named stages run one after another on the
// calling goroutine. It provides:
//   - first-failure-wins: the first failing stage stops the run and its
//     error, tagged with the stage name, is the one returned
//   - cleanup hooks registered by stages, run in reverse order on every exit
//     path; a cleanup failure is only returned when nothing failed before it
//   - a span, a duration histogram sample and a log line per stage
//
// # Basic Usage
//
//	p := pipeline.New(pipeline.Config{Flow: "load", Warehouse: "redshift", Logger: log})
//	p.AddStage("split", func(ctx context.Context) error {
//	    parts, err := fileutil.Split(path, 4, true)
//	    p.Defer("remove_parts", func(ctx context.Context, _ error) error { return removeAll(parts) })
//	    return err
//	})
//	result, err := p.Run(ctx)
package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/stagecopy/pkg/errors"
	"github.com/ajitpratap0/stagecopy/pkg/logger"
	"github.com/ajitpratap0/stagecopy/pkg/metrics"
	"github.com/ajitpratap0/stagecopy/pkg/observability"
)

// StageCleanup is the stage name carried by errors raised from cleanup hooks.
const StageCleanup = "cleanup"

// StageFunc is the body of a stage.
type StageFunc func(ctx context.Context) error

// CleanupFunc releases something a stage created. runErr is the error the run
// is about to return (nil on success), so a hook can decide whether to act.
type CleanupFunc func(ctx context.Context, runErr error) error

// Config configures a Pipeline.
type Config struct {
	// Flow is the flow label (load, unload)
	Flow string
	// Warehouse is the warehouse kind, used in spans and, unless the run
	// context already names one, in logs
	Warehouse string
	Logger    *zap.Logger
	// Metrics receives stage durations; nil records nothing
	Metrics *metrics.Collector
}

// StageResult is the outcome of one stage.
type StageResult struct {
	Name     string
	Duration time.Duration
	Err      error
}

// Result summarizes a run.
type Result struct {
	Stages []StageResult
	// CleanupErrors holds every cleanup failure, including those not returned
	CleanupErrors []error
	Elapsed       time.Duration
}

// Failed returns the first failed stage, or "".
func (r *Result) Failed() string {
	for _, s := range r.Stages {
		if s.Err != nil {
			return s.Name
		}
	}
	return ""
}

type stage struct {
	name string
	fn   StageFunc
}

type cleanup struct {
	name string
	fn   CleanupFunc
}

// Pipeline runs stages in order. It is single use.
type Pipeline struct {
	flow      string
	warehouse string
	stages    []stage
	logger    *zap.Logger
	metrics   *metrics.Collector
	tracer    *observability.TransferTracer

	mu       sync.Mutex
	cleanups []cleanup
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	return &Pipeline{
		flow:      cfg.Flow,
		warehouse: cfg.Warehouse,
		logger:    logger.OrDefault(cfg.Logger).With(zap.String("flow", cfg.Flow)),
		metrics:   cfg.Metrics,
		tracer:    observability.NewTransferTracer(cfg.Flow, cfg.Warehouse),
	}
}

// AddStage appends a stage.
func (p *Pipeline) AddStage(name string, fn StageFunc) *Pipeline {
	p.stages = append(p.stages, stage{name: name, fn: fn})
	return p
}

// Defer registers a cleanup hook. It may be called from inside a stage.
func (p *Pipeline) Defer(name string, fn CleanupFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleanups = append(p.cleanups, cleanup{name: name, fn: fn})
}

// Run executes the stages, then the cleanup hooks in reverse registration
// order. The first stage error is returned; otherwise the first cleanup
// error. Later errors are logged.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{}
	if p.warehouse != "" && ctx.Value(logger.WarehouseKey) == nil {
		ctx = logger.ContextWith(ctx, logger.WarehouseKey, p.warehouse)
	}

	var runErr error
	for _, s := range p.stages {
		if err := ctx.Err(); err != nil {
			runErr = errors.WithStage(errors.Wrap(err, errors.ErrorTypeInternal, "transfer cancelled"), s.name)
			result.Stages = append(result.Stages, StageResult{Name: s.name, Err: runErr})
			break
		}

		sr := p.runStage(ctx, s)
		result.Stages = append(result.Stages, sr)
		if sr.Err != nil {
			runErr = sr.Err
			break
		}
	}

	cleanupErr := p.runCleanups(ctx, runErr, result)
	result.Elapsed = time.Since(start)

	log := logger.WithContext(ctx, p.logger)
	if runErr != nil {
		log.Error("transfer failed",
			zap.String("stage", errors.Stage(runErr)),
			zap.Duration("elapsed", result.Elapsed),
			zap.Error(runErr))
		return result, runErr
	}
	if cleanupErr != nil {
		return result, cleanupErr
	}
	log.Info("transfer completed", zap.Duration("elapsed", result.Elapsed))
	return result, nil
}

func (p *Pipeline) runStage(ctx context.Context, s stage) StageResult {
	stageCtx := logger.ContextWith(ctx, logger.StageKey, s.name)
	log := logger.WithContext(stageCtx, p.logger)
	log.Debug("stage started")

	timer := metrics.NewTimer(s.name)
	err := p.tracer.Trace(stageCtx, s.name, s.fn)
	d := timer.Stop()
	p.metrics.ObserveStage(s.name, d, err)

	if err != nil {
		err = errors.WithStage(err, s.name)
		log.Warn("stage failed", zap.Duration("duration", d), zap.Error(err))
		return StageResult{Name: s.name, Duration: d, Err: err}
	}
	log.Info("stage completed", zap.Duration("duration", d))
	return StageResult{Name: s.name, Duration: d}
}

// runCleanups runs hooks on a context that survives cancellation of ctx.
func (p *Pipeline) runCleanups(ctx context.Context, runErr error, result *Result) error {
	p.mu.Lock()
	hooks := append([]cleanup(nil), p.cleanups...)
	p.mu.Unlock()

	cctx := context.WithoutCancel(ctx)
	var first error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		err := h.fn(cctx, runErr)
		if err == nil {
			continue
		}
		err = errors.WithStage(err, StageCleanup)
		result.CleanupErrors = append(result.CleanupErrors, err)
		p.metrics.ObserveStage(StageCleanup, 0, err)
		logger.WithContext(cctx, p.logger).Warn("cleanup failed", zap.String("cleanup", h.name), zap.Error(err))
		if first == nil {
			first = err
		}
	}
	return first
}
