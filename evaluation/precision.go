package evaluation

import (
	"gonum.org/v1/gonum/floats"

	"github.com/nvr-ai/go-eval/common"
)

// PRCurve holds cumulative recall and precision, one point per ranked prediction.
type PRCurve struct {
	Recall    []float64
	Precision []float64
}

// Len returns the number of points on the curve.
func (c PRCurve) Len() int {
	return len(c.Recall)
}

// PrecisionRecall builds the raw precision-recall curve of a ranked outcome sequence.
//
// Point i uses the first i+1 ranked predictions:
//
//	recall[i]    = cumTP[i] / totalGT
//	precision[i] = cumTP[i] / (cumTP[i] + cumFP[i] + Epsilon)
//
// With no ground truth recall is undefined and reported as 0.
func PrecisionRecall(outcomes []Outcome, totalGT int) PRCurve {
	n := len(outcomes)
	tp := make([]float64, n)
	fp := make([]float64, n)
	for i, o := range outcomes {
		if o == TruePositive {
			tp[i] = 1
		} else {
			fp[i] = 1
		}
	}

	cumTP := floats.CumSum(make([]float64, n), tp)
	cumFP := floats.CumSum(make([]float64, n), fp)

	curve := PRCurve{
		Recall:    make([]float64, n),
		Precision: make([]float64, n),
	}
	for i := range n {
		if totalGT > 0 {
			curve.Recall[i] = cumTP[i] / float64(totalGT)
		}
		curve.Precision[i] = cumTP[i] / (cumFP[i] + cumTP[i] + common.Epsilon)
	}

	return curve
}

// Envelope returns a copy of the curve with the (recall 0, precision 1) start point
// prepended and precision replaced by its backward running maximum. The resulting
// precision never increases from one point to the next.
func (c PRCurve) Envelope() PRCurve {
	recall := append([]float64{0}, c.Recall...)
	precision := append([]float64{1}, c.Precision...)

	for i := len(precision) - 2; i >= 0; i-- {
		precision[i] = max(precision[i], precision[i+1])
	}

	return PRCurve{Recall: recall, Precision: precision}
}

// Area integrates the curve as a step function, summing (recall[i]-recall[i-1])*precision[i]
// only where recall actually changes. Apply it to an Envelope.
//
// The steps are added in NumPy's pairwise order.
func (c PRCurve) Area() float64 {
	steps := make([]float64, 0, len(c.Recall))
	for i := 1; i < len(c.Recall); i++ {
		if c.Recall[i] != c.Recall[i-1] {
			steps = append(steps, float64((c.Recall[i]-c.Recall[i-1])*c.Precision[i]))
		}
	}
	return pairwiseSum(steps)
}

// pairwiseBlock is the largest slice pairwiseSum adds without splitting.
const pairwiseBlock = 128

// pairwiseSum adds x the way NumPy reduces a contiguous float64 array: fewer than 8 terms
// left to right, up to pairwiseBlock terms with 8 interleaved partial sums, and larger
// slices split in two at a multiple of 8.
func pairwiseSum(x []float64) float64 {
	n := len(x)
	switch {
	case n < 8:
		var sum float64
		for _, v := range x {
			sum += v
		}
		return sum

	case n <= pairwiseBlock:
		var r [8]float64
		copy(r[:], x[:8])

		i := 8
		for ; i < n-n%8; i += 8 {
			for j := range r {
				r[j] += x[i+j]
			}
		}

		sum := ((r[0] + r[1]) + (r[2] + r[3])) + ((r[4] + r[5]) + (r[6] + r[7]))
		for ; i < n; i++ {
			sum += x[i]
		}
		return sum

	default:
		half := n / 2
		half -= half % 8
		return pairwiseSum(x[:half]) + pairwiseSum(x[half:])
	}
}

// AveragePrecision integrates the ranked outcomes of one category into a single AP value.
//
// A category without ground truth scores 1 when there are also no predictions and 0 when
// there are any.
//
// Arguments:
//   - outcomes: Match outcomes in ranked order, one per prediction.
//   - totalGT: Number of ground-truth boxes in the category.
//
// Returns:
//   - float64: The AP in [0, 1].
func AveragePrecision(outcomes []Outcome, totalGT int) float64 {
	if totalGT == 0 {
		if len(outcomes) > 0 {
			return 0
		}
		return 1
	}

	return PrecisionRecall(outcomes, totalGT).Envelope().Area()
}
