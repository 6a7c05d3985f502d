// Package metrics provides Prometheus instrumentation for stagecopy transfers.
//
// # Overview
//
// Every load or unload records:
//   - stage durations, labelled by flow, stage and outcome
//   - files and bytes moved through the object store, by operation
//   - failures, by flow and the stage that failed
//
// # Basic Usage
//
//	c := metrics.NewCollector("load")
//	timer := metrics.NewTimer("upload")
//	err := upload()
//	c.ObserveStage("upload", timer.Stop(), err)
//	c.AddFiles("upload", 3)
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

var (
	// StageDuration tracks how long each orchestrator stage takes.
	// Labels: flow (load/unload), stage, status (success/failure)
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stagecopy_stage_duration_seconds",
			Help:    "Duration of transfer stages in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"flow", "stage", "status"},
	)

	// FilesTotal counts files moved through object storage.
	// Labels: flow, op (upload/download/delete)
	FilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stagecopy_files_total",
			Help: "Files transferred to or from object storage",
		},
		[]string{"flow", "op"},
	)

	// BytesTotal counts bytes moved through object storage.
	BytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stagecopy_bytes_total",
			Help: "Bytes transferred to or from object storage",
		},
		[]string{"flow", "op"},
	)

	// FailuresTotal counts failed transfers by the stage that failed.
	FailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stagecopy_failures_total",
			Help: "Failed transfers by stage",
		},
		[]string{"flow", "stage"},
	)

	// ActiveSessions tracks open warehouse sessions.
	ActiveSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stagecopy_active_sessions",
			Help: "Number of open warehouse sessions",
		},
		[]string{"warehouse"},
	)
)

// Collector records metrics for one flow. A nil *Collector is valid and
// records nothing.
type Collector struct {
	flow      string
	startTime time.Time

	mu     sync.Mutex
	stages map[string]time.Duration
}

// NewCollector creates a collector for flow (load or unload).
func NewCollector(flow string) *Collector {
	return &Collector{
		flow:      flow,
		startTime: time.Now(),
		stages:    make(map[string]time.Duration),
	}
}

// Flow returns the flow label.
func (c *Collector) Flow() string {
	if c == nil {
		return ""
	}
	return c.flow
}

// ObserveStage records the duration and outcome of a stage.
func (c *Collector) ObserveStage(stage string, d time.Duration, err error) {
	if c == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusFailure
		FailuresTotal.WithLabelValues(c.flow, stage).Inc()
	}
	StageDuration.WithLabelValues(c.flow, stage, status).Observe(d.Seconds())

	c.mu.Lock()
	c.stages[stage] += d
	c.mu.Unlock()
}

// AddFiles counts n files for op.
func (c *Collector) AddFiles(op string, n int) {
	if c == nil || n <= 0 {
		return
	}
	FilesTotal.WithLabelValues(c.flow, op).Add(float64(n))
}

// AddBytes counts n bytes for op.
func (c *Collector) AddBytes(op string, n int64) {
	if c == nil || n <= 0 {
		return
	}
	BytesTotal.WithLabelValues(c.flow, op).Add(float64(n))
}

// Stages returns the accumulated duration per stage.
func (c *Collector) Stages() map[string]time.Duration {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]time.Duration, len(c.stages))
	for k, v := range c.stages {
		out[k] = v
	}
	return out
}

// Elapsed returns the time since the collector was created.
func (c *Collector) Elapsed() time.Duration {
	if c == nil {
		return 0
	}
	return time.Since(c.startTime)
}

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer's name.
func (t *Timer) Name() string { return t.name }

// Stop returns the elapsed duration since creation. It may be called
// repeatedly.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
