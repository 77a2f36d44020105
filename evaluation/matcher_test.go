package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-eval/common"
	"github.com/nvr-ai/go-eval/metrics"
)

func box(x, y, w, h float64) common.Box {
	return common.Box{X: x, Y: y, Width: w, Height: h}
}

func iouMatcher() Matcher {
	return Matcher{Metric: metrics.IntersectionOverUnion, Threshold: DefaultThreshold}
}

func TestRank_StableOnTies(t *testing.T) {
	preds := []Prediction{
		{ImageID: 1, Score: 0.5},
		{ImageID: 2, Score: 0.9},
		{ImageID: 3, Score: 0.5},
		{ImageID: 4, Score: 0.9},
		{ImageID: 5, Score: 0.1},
	}

	ranked := Rank(preds)

	ids := make([]ImageID, len(ranked))
	for i, p := range ranked {
		ids[i] = p.ImageID
	}
	assert.Equal(t, []ImageID{2, 4, 1, 3, 5}, ids)

	// Input is left untouched.
	assert.Equal(t, ImageID(1), preds[0].ImageID)
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		gt       GroundTruthSet
		preds    []Prediction
		expected []Outcome
	}{
		{
			name:     "perfect match",
			gt:       GroundTruthSet{1: {box(0, 0, 10, 10)}},
			preds:    []Prediction{{ImageID: 1, Box: box(0, 0, 10, 10), Score: 0.9}},
			expected: []Outcome{TruePositive},
		},
		{
			name:     "no overlap",
			gt:       GroundTruthSet{1: {box(0, 0, 10, 10)}},
			preds:    []Prediction{{ImageID: 1, Box: box(20, 20, 5, 5), Score: 0.9}},
			expected: []Outcome{FalsePositive},
		},
		{
			name:     "image without ground truth",
			gt:       GroundTruthSet{1: {box(0, 0, 10, 10)}},
			preds:    []Prediction{{ImageID: 2, Box: box(0, 0, 10, 10), Score: 0.9}},
			expected: []Outcome{FalsePositive},
		},
		{
			name: "duplicate detection",
			gt:   GroundTruthSet{1: {box(0, 0, 10, 10)}},
			preds: []Prediction{
				{ImageID: 1, Box: box(1, 1, 10, 10), Score: 0.6},
				{ImageID: 1, Box: box(0, 0, 10, 10), Score: 0.9},
			},
			expected: []Outcome{TruePositive, FalsePositive},
		},
		{
			name: "ranked order drives the labels",
			gt:   GroundTruthSet{1: {box(0, 0, 10, 10)}, 2: {box(0, 0, 10, 10), box(20, 20, 10, 10)}},
			preds: []Prediction{
				{ImageID: 2, Box: box(0, 0, 10, 10), Score: 0.6},
				{ImageID: 2, Box: box(50, 50, 5, 5), Score: 0.8},
				{ImageID: 1, Box: box(0, 0, 10, 10), Score: 0.9},
				{ImageID: 2, Box: box(20, 20, 10, 10), Score: 0.7},
			},
			expected: []Outcome{TruePositive, FalsePositive, TruePositive, TruePositive},
		},
		{
			name: "claimed best candidate is not skipped",
			gt:   GroundTruthSet{1: {box(0, 0, 10, 10), box(0, 0, 10, 10)}},
			preds: []Prediction{
				{ImageID: 1, Box: box(0, 0, 10, 10), Score: 0.9},
				{ImageID: 1, Box: box(0, 0, 10, 10), Score: 0.8},
			},
			expected: []Outcome{TruePositive, FalsePositive},
		},
		{
			name: "higher overlap wins over earlier candidate",
			gt:   GroundTruthSet{1: {box(2, 0, 10, 10), box(0, 0, 10, 10)}},
			preds: []Prediction{
				{ImageID: 1, Box: box(0, 0, 10, 10), Score: 0.9},
				{ImageID: 1, Box: box(2, 0, 10, 10), Score: 0.8},
			},
			expected: []Outcome{TruePositive, TruePositive},
		},
		{
			name:     "no predictions",
			gt:       GroundTruthSet{1: {box(0, 0, 10, 10)}},
			preds:    nil,
			expected: []Outcome{},
		},
		{
			name: "no ground truth",
			gt:   GroundTruthSet{},
			preds: []Prediction{
				{ImageID: 1, Box: box(0, 0, 10, 10), Score: 0.9},
				{ImageID: 1, Box: box(0, 0, 10, 10), Score: 0.8},
			},
			expected: []Outcome{FalsePositive, FalsePositive},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranked, outcomes := iouMatcher().Match(tt.gt, tt.preds)
			assert.Len(t, ranked, len(tt.preds))
			assert.Equal(t, tt.expected, outcomes)
		})
	}
}

// TestMatch_TiedScoresKeepInputOrder checks that the earlier of two equally scored
// predictions claims the ground truth, even when the later one overlaps it better.
func TestMatch_TiedScoresKeepInputOrder(t *testing.T) {
	gt := GroundTruthSet{1: {box(0, 0, 10, 10)}}
	preds := []Prediction{
		{ImageID: 1, Box: box(1, 0, 10, 10), Score: 0.8},
		{ImageID: 1, Box: box(0, 0, 10, 10), Score: 0.8},
	}

	ranked, outcomes := iouMatcher().Match(gt, preds)

	require.Len(t, ranked, 2)
	assert.Equal(t, box(1, 0, 10, 10), ranked[0].Box)
	assert.Equal(t, []Outcome{TruePositive, FalsePositive}, outcomes)
}

// TestMatch_ThresholdIsExclusive uses a constant metric to pin the comparison to exactly
// the threshold.
func TestMatch_ThresholdIsExclusive(t *testing.T) {
	gt := GroundTruthSet{1: {box(0, 0, 10, 10)}}
	preds := []Prediction{{ImageID: 1, Box: box(0, 0, 10, 10), Score: 0.9}}

	atThreshold := Matcher{Metric: func(_, _ common.Box) float64 { return 0.5 }, Threshold: 0.5}
	_, outcomes := atThreshold.Match(gt, preds)
	assert.Equal(t, []Outcome{FalsePositive}, outcomes)

	above := Matcher{Metric: func(_, _ common.Box) float64 { return 0.5000001 }, Threshold: 0.5}
	_, outcomes = above.Match(gt, preds)
	assert.Equal(t, []Outcome{TruePositive}, outcomes)
}

// TestMatch_EqualCandidatesFirstWins gives every candidate the same score; the first
// ground-truth box in list order must be the one claimed.
func TestMatch_EqualCandidatesFirstWins(t *testing.T) {
	gt := GroundTruthSet{1: {box(0, 0, 10, 10), box(50, 50, 10, 10)}}
	var seen []common.Box
	m := Matcher{
		Metric: func(_, g common.Box) float64 {
			seen = append(seen, g)
			return 0.9
		},
		Threshold: 0.5,
	}

	_, outcomes := m.Match(gt, []Prediction{
		{ImageID: 1, Score: 0.9},
		{ImageID: 1, Score: 0.8},
	})

	// Both predictions pick index 0; the second is a duplicate.
	assert.Equal(t, []Outcome{TruePositive, FalsePositive}, outcomes)
	assert.Equal(t, []common.Box{gt[1][0], gt[1][1], gt[1][0], gt[1][1]}, seen)
}

// TestMatch_RunsAreIndependent matches the same inputs twice and expects identical
// results, so no claimed state leaks between calls.
func TestMatch_RunsAreIndependent(t *testing.T) {
	gt := GroundTruthSet{1: {box(0, 0, 10, 10)}}
	preds := []Prediction{{ImageID: 1, Box: box(0, 0, 10, 10), Score: 0.9}}

	m := iouMatcher()
	_, first := m.Match(gt, preds)
	_, second := m.Match(gt, preds)

	assert.Equal(t, []Outcome{TruePositive}, first)
	assert.Equal(t, first, second)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "TP", TruePositive.String())
	assert.Equal(t, "FP", FalsePositive.String())
}
