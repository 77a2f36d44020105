// Package metrics - overlap metrics between a predicted box and a ground-truth box.
package metrics

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-eval/common"
)

// ErrUnknownMetric is returned when a metric name is not registered.
var ErrUnknownMetric = errors.New("unknown metric")

// Name identifies an overlap metric.
type Name string

const (
	// IoU is Intersection over Union.
	IoU Name = "iou"
	// IoP is Intersection over Prediction.
	IoP Name = "iop"
)

// Func scores the overlap of a prediction against a ground-truth box.
type Func func(pred, gt common.Box) float64

var registry = map[Name]Func{
	IoU: IntersectionOverUnion,
	IoP: IntersectionOverPrediction,
}

// IntersectionOverUnion measures the overlap normalised by the combined area of both boxes.
//
//	IoU = intersection / (area(pred) + area(gt) - intersection + Epsilon)
//
// A value of 1.0 means the boxes are identical, 0.0 means they do not overlap.
//
// Arguments:
//   - pred: The predicted box.
//   - gt: The ground-truth box.
//
// Returns:
//   - float64: A value in [0, 1).
//
// @example
// a := common.Box{X: 0, Y: 0, Width: 10, Height: 10}
// b := common.Box{X: 5, Y: 5, Width: 10, Height: 10}
// iou := IntersectionOverUnion(a, b) // 25 / 175 ≈ 0.142857
func IntersectionOverUnion(pred, gt common.Box) float64 {
	inter := pred.Intersection(gt)
	union := pred.Area() + gt.Area() - inter
	return inter / (union + common.Epsilon)
}

// IntersectionOverPrediction measures the overlap normalised by the predicted box only.
//
//	IoP = intersection / (area(pred) + Epsilon)
//
// A prediction that lies entirely inside its ground truth scores ~1.0 no matter how much
// of the ground truth it misses, so comparing IoP against IoU separates over-sized or
// under-sized boxes from genuine localisation failures.
func IntersectionOverPrediction(pred, gt common.Box) float64 {
	return pred.Intersection(gt) / (pred.Area() + common.Epsilon)
}

// ParseName resolves a case-insensitive metric name.
//
// Returns:
//   - Name: The canonical metric name.
//   - error: Wraps ErrUnknownMetric if the name is not registered.
func ParseName(name string) (Name, error) {
	n := Name(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := registry[n]; !ok {
		return "", errors.Wrapf(ErrUnknownMetric, "%q (supported: %v)", name, Names())
	}
	return n, nil
}

// Lookup returns the overlap function registered under name.
//
// @example
// fn, err := metrics.Lookup("IoP")
//
//	if err != nil {
//	    log.Fatalf("bad metric: %v", err)
//	}
//
// score := fn(pred, gt)
func Lookup(name string) (Func, error) {
	n, err := ParseName(name)
	if err != nil {
		return nil, err
	}
	return registry[n], nil
}

// Names lists the registered metrics in reporting order.
func Names() []Name {
	return []Name{IoU, IoP}
}
