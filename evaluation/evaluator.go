package evaluation

import (
	"context"
	"fmt"
	"runtime"
	"slices"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/nvr-ai/go-eval/metrics"
	"github.com/nvr-ai/go-eval/profiler"
)

// Options configures an Evaluator.
type Options struct {
	// Threshold is the overlap a prediction must strictly exceed to match.
	Threshold float64 `json:"threshold" yaml:"threshold"`
	// Workers caps the number of category runs evaluated concurrently.
	Workers int `json:"workers" yaml:"workers"`
}

// DefaultOptions returns the standard AP@0.5 configuration.
func DefaultOptions() Options {
	return Options{
		Threshold: DefaultThreshold,
		Workers:   runtime.NumCPU(),
	}
}

// Validate checks that the options describe a usable evaluation.
func (o Options) Validate() error {
	if o.Threshold < 0 || o.Threshold >= 1 {
		return errors.Errorf("threshold must be in [0, 1), got %v", o.Threshold)
	}
	if o.Workers < 1 {
		return errors.Errorf("workers must be at least 1, got %d", o.Workers)
	}
	return nil
}

// Evaluator computes per-category AP under IoU and IoP and their means.
type Evaluator struct {
	opts     Options
	logger   *zap.SugaredLogger
	profiler *profiler.Profiler
}

// NewEvaluator creates an evaluator.
//
// Arguments:
//   - opts: Threshold and worker settings.
//   - logger: Destination for debug logs; nil disables logging.
//
// Returns:
//   - *Evaluator: The evaluator.
//   - error: If the options are invalid.
//
// @example
// ev, err := NewEvaluator(DefaultOptions(), logger)
//
//	if err != nil {
//	    return err
//	}
//
// summary, err := ev.Evaluate(ctx, gt, preds)
func NewEvaluator(opts Options, logger *zap.SugaredLogger) (*Evaluator, error) {
	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid evaluator options")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Evaluator{
		opts:     opts,
		logger:   logger,
		profiler: profiler.New(profiler.Options{}),
	}, nil
}

// Profiler exposes the timings collected by the evaluator.
func (e *Evaluator) Profiler() *profiler.Profiler {
	return e.profiler
}

// EvaluateCategory runs one matching and integration pass for a single category under a
// single metric.
func (e *Evaluator) EvaluateCategory(gt GroundTruthSet, preds []Prediction, metric metrics.Func) float64 {
	_, outcomes := Matcher{Metric: metric, Threshold: e.opts.Threshold}.Match(gt, preds)
	return AveragePrecision(outcomes, gt.Count())
}

// Curve returns the envelope-adjusted precision-recall curve of a category under the named
// metric, together with the category's AP. The AP is the value Evaluate reports, so a
// category without ground truth gets its special-cased score rather than the area under
// an empty curve.
func (e *Evaluator) Curve(gt GroundTruthSet, preds []Prediction, metricName string) (PRCurve, float64, error) {
	fn, err := metrics.Lookup(metricName)
	if err != nil {
		return PRCurve{}, 0, err
	}

	_, outcomes := Matcher{Metric: fn, Threshold: e.opts.Threshold}.Match(gt, preds)
	return PrecisionRecall(outcomes, gt.Count()).Envelope(), AveragePrecision(outcomes, gt.Count()), nil
}

// Evaluate scores every category present in the ground truth, in ascending ID order.
//
// Every (category, metric) pair is an independent job with its own matching state, so the
// jobs run on a bounded worker pool and only meet when their APs are written to distinct
// result slots. Predictions of categories absent from the ground truth are ignored.
//
// Arguments:
//   - ctx: Cancels the evaluation between jobs.
//   - gt: Ground truth grouped by category and image.
//   - preds: Predictions grouped by category.
//
// Returns:
//   - *Summary: Per-category results and mean AP per metric.
//   - error: The context error if cancelled. No partial summary is returned.
func (e *Evaluator) Evaluate(ctx context.Context, gt GroundTruthCollection, preds PredictionCollection) (*Summary, error) {
	defer e.profiler.StartOperation("evaluate")()

	categories := lo.Keys(gt)
	slices.Sort(categories)

	if ignored := lo.OmitByKeys(preds, categories); len(ignored) > 0 {
		e.logger.Debugw("ignoring predictions for categories without ground truth",
			"categories", len(ignored),
			"predictions", lo.SumBy(lo.Values(ignored), func(p []Prediction) int { return len(p) }),
		)
	}

	runs, err := metricRuns()
	if err != nil {
		return nil, err
	}

	results := make([]CategoryResult, len(categories))
	for i, cat := range categories {
		results[i].CategoryID = cat
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	for i, cat := range categories {
		for _, run := range runs {
			name, fn, slot := run.name, run.fn, run.slot(&results[i])

			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}

				stop := e.profiler.StartOperation(fmt.Sprintf("category/%s", name))
				ap := e.EvaluateCategory(gt[cat], preds[cat], fn)
				stop()

				*slot = ap
				e.profiler.RecordMetric(fmt.Sprintf("ap/%s", name), ap)
				e.logger.Debugw("category evaluated",
					"category", cat,
					"metric", name,
					"ground_truth", gt[cat].Count(),
					"predictions", len(preds[cat]),
					"ap", ap,
				)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "evaluation aborted")
	}

	summary := &Summary{
		Threshold: e.opts.Threshold,
		Results:   results,
	}
	if len(results) > 0 {
		summary.MeanAPIoU = stat.Mean(lo.Map(results, func(r CategoryResult, _ int) float64 { return r.APIoU }), nil)
		summary.MeanAPIoP = stat.Mean(lo.Map(results, func(r CategoryResult, _ int) float64 { return r.APIoP }), nil)
	}

	e.logger.Debugw("evaluation complete",
		"categories", len(results),
		"map_iou", summary.MeanAPIoU,
		"map_iop", summary.MeanAPIoP,
	)

	return summary, nil
}

type metricRun struct {
	name metrics.Name
	fn   metrics.Func
	slot func(*CategoryResult) *float64
}

// metricRuns resolves every reported metric before any job starts, so an unknown metric
// fails the whole call up front.
func metricRuns() ([]metricRun, error) {
	runs := make([]metricRun, 0, len(metrics.Names()))
	for _, name := range metrics.Names() {
		fn, err := metrics.Lookup(string(name))
		if err != nil {
			return nil, err
		}

		var slot func(*CategoryResult) *float64
		switch name {
		case metrics.IoU:
			slot = func(r *CategoryResult) *float64 { return &r.APIoU }
		case metrics.IoP:
			slot = func(r *CategoryResult) *float64 { return &r.APIoP }
		default:
			return nil, errors.Wrapf(metrics.ErrUnknownMetric, "no result slot for %q", name)
		}

		runs = append(runs, metricRun{name: name, fn: fn, slot: slot})
	}
	return runs, nil
}
