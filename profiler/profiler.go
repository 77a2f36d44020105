// Package profiler - timing and counters for evaluation runs.
package profiler

import (
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Profiler tracks operation timings and custom metrics. It is safe for concurrent use.
type Profiler struct {
	mu         sync.RWMutex
	maxSamples int
	startTime  time.Time

	customMetrics  map[string]*samples[float64]
	operationTimes map[string]*samples[time.Duration]
}

// samples keeps the most recent values of one series and their running sum. count includes
// values that have since been evicted.
type samples[T float64 | time.Duration] struct {
	values []T
	sum    T
	count  int64
}

func (s *samples[T]) add(v T, limit int) {
	s.values = append(s.values, v)
	s.sum += v
	s.count++

	if len(s.values) > limit {
		s.sum -= s.values[0]
		s.values = s.values[1:]
	}
}

func (s *samples[T]) mean() T {
	return s.sum / T(len(s.values))
}

// OperationStats is a snapshot of one operation's timings. Count includes every call;
// the durations cover the retained samples only.
type OperationStats struct {
	Name  string
	Count int64
	Total time.Duration
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Options configures the profiler.
type Options struct {
	// MaxSamples caps the samples kept per operation or metric (default: 1024).
	MaxSamples int
}

// New creates a profiler.
//
// Arguments:
// - opts: Configuration options for the profiler
//
// Returns:
// - A configured Profiler instance
func New(opts Options) *Profiler {
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 1024
	}

	return &Profiler{
		maxSamples:     opts.MaxSamples,
		startTime:      time.Now(),
		customMetrics:  make(map[string]*samples[float64]),
		operationTimes: make(map[string]*samples[time.Duration]),
	}
}

// RecordMetric records a custom metric value.
//
// Arguments:
// - name: The name of the metric
// - value: The metric value to record
func (p *Profiler) RecordMetric(name string, value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.customMetrics[name]
	if !ok {
		s = &samples[float64]{}
		p.customMetrics[name] = s
	}
	s.add(value, p.maxSamples)
}

// StartOperation begins timing an operation.
//
// Arguments:
// - name: The name of the operation to track
//
// Returns:
// - A function to call when the operation completes
func (p *Profiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		elapsed := time.Since(start)

		p.mu.Lock()
		defer p.mu.Unlock()

		s, ok := p.operationTimes[name]
		if !ok {
			s = &samples[time.Duration]{}
			p.operationTimes[name] = s
		}
		s.add(elapsed, p.maxSamples)
	}
}

// Operations returns a snapshot of every tracked operation, sorted by name.
func (p *Profiler) Operations() []OperationStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := make([]OperationStats, 0, len(p.operationTimes))
	for name, s := range p.operationTimes {
		stats = append(stats, OperationStats{
			Name:  name,
			Count: s.count,
			Total: s.sum,
			Min:   lo.Min(s.values),
			Max:   lo.Max(s.values),
			Avg:   s.mean(),
		})
	}

	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// Metric returns the mean of the retained samples for name and whether it exists.
func (p *Profiler) Metric(name string) (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.customMetrics[name]
	if !ok {
		return 0, false
	}
	return s.mean(), true
}

// Report logs every operation timing and custom metric at debug level.
func (p *Profiler) Report(logger *zap.SugaredLogger) {
	logger.Debugw("profiler report", "uptime", time.Since(p.startTime).Truncate(time.Millisecond))

	for _, op := range p.Operations() {
		logger.Debugw("operation timing",
			"operation", op.Name,
			"count", op.Count,
			"avg", op.Avg.Truncate(time.Microsecond),
			"min", op.Min.Truncate(time.Microsecond),
			"max", op.Max.Truncate(time.Microsecond),
		)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	names := lo.Keys(p.customMetrics)
	sort.Strings(names)

	for _, name := range names {
		s := p.customMetrics[name]
		logger.Debugw("custom metric",
			"metric", name,
			"avg", s.mean(),
			"min", lo.Min(s.values),
			"max", lo.Max(s.values),
			"samples", len(s.values),
		)
	}
}
