package evaluation

import (
	"slices"
	"sort"

	"github.com/nvr-ai/go-eval/metrics"
)

// DefaultThreshold is the overlap a prediction must exceed to match a ground-truth box.
const DefaultThreshold = 0.5

// Matcher assigns predictions to ground truth greedily, highest score first.
type Matcher struct {
	// Metric scores a prediction against a ground-truth box.
	Metric metrics.Func
	// Threshold must be strictly exceeded for a ground-truth box to be a candidate.
	Threshold float64
}

// Rank returns a copy of preds sorted by descending score.
//
// The sort is stable: predictions with equal scores keep their input order, which makes
// the matching result for tied scores reproducible.
func Rank(preds []Prediction) []Prediction {
	ranked := slices.Clone(preds)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Match labels every prediction of one category as a true or false positive.
//
// Each prediction, in ranked order, is compared with every ground-truth box of its image.
// The best candidate is the first box whose overlap is strictly greater than the running
// best (initially the threshold), so later boxes only win on a strictly higher score. A
// candidate that was already claimed by a higher-ranked prediction makes this prediction
// a duplicate, which counts as a false positive.
//
// The claimed state is allocated per call and never escapes it, so two calls over the same
// inputs are fully independent.
//
// Arguments:
//   - gt: Ground truth of the category, grouped by image.
//   - preds: Predictions of the category in input order.
//
// Returns:
//   - []Prediction: The predictions in ranked order.
//   - []Outcome: One outcome per ranked prediction.
func (m Matcher) Match(gt GroundTruthSet, preds []Prediction) ([]Prediction, []Outcome) {
	ranked := Rank(preds)
	outcomes := make([]Outcome, len(ranked))
	claimed := make(map[ImageID][]bool, len(gt))

	for i, pred := range ranked {
		boxes := gt[pred.ImageID]
		if len(boxes) == 0 {
			outcomes[i] = FalsePositive
			continue
		}

		best := -1
		bestScore := m.Threshold
		for j, box := range boxes {
			if score := m.Metric(pred.Box, box); score > bestScore {
				bestScore = score
				best = j
			}
		}

		if best < 0 {
			outcomes[i] = FalsePositive
			continue
		}

		used, ok := claimed[pred.ImageID]
		if !ok {
			used = make([]bool, len(boxes))
			claimed[pred.ImageID] = used
		}

		if used[best] {
			outcomes[i] = FalsePositive
			continue
		}
		used[best] = true
		outcomes[i] = TruePositive
	}

	return ranked, outcomes
}
