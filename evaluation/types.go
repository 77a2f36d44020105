// Package evaluation - greedy detection matching and Average Precision.
package evaluation

import (
	"github.com/nvr-ai/go-eval/common"
)

// ImageID identifies an image.
type ImageID int64

// CategoryID identifies an object category.
type CategoryID int64

// Prediction is a single scored detection.
type Prediction struct {
	ImageID    ImageID
	CategoryID CategoryID
	Box        common.Box
	Score      float64
}

// GroundTruthSet holds one category's ground-truth boxes keyed by image, in annotation order.
type GroundTruthSet map[ImageID][]common.Box

// Count returns the total number of ground-truth boxes in the set.
func (s GroundTruthSet) Count() int {
	n := 0
	for _, boxes := range s {
		n += len(boxes)
	}
	return n
}

// GroundTruthCollection maps each category to its ground truth.
type GroundTruthCollection map[CategoryID]GroundTruthSet

// PredictionCollection maps each category to its predictions, in input order.
type PredictionCollection map[CategoryID][]Prediction

// Outcome labels a ranked prediction.
type Outcome uint8

const (
	// FalsePositive marks a prediction with no unclaimed ground truth above threshold.
	FalsePositive Outcome = iota
	// TruePositive marks a prediction that claimed a ground-truth box.
	TruePositive
)

func (o Outcome) String() string {
	if o == TruePositive {
		return "TP"
	}
	return "FP"
}

// CategoryResult is the AP of one category under both overlap metrics.
type CategoryResult struct {
	CategoryID CategoryID `json:"category_id"`
	APIoU      float64    `json:"ap_iou"`
	APIoP      float64    `json:"ap_iop"`
}

// Delta is APIoP - APIoU. A large positive delta points at boxes that land on the object
// but are badly sized rather than predictions on the wrong object.
func (r CategoryResult) Delta() float64 {
	return r.APIoP - r.APIoU
}

// Summary is the outcome of evaluating every category.
type Summary struct {
	Threshold float64          `json:"threshold"`
	Results   []CategoryResult `json:"categories"`
	MeanAPIoU float64          `json:"map_iou"`
	MeanAPIoP float64          `json:"map_iop"`
}

// Delta is MeanAPIoP - MeanAPIoU.
func (s Summary) Delta() float64 {
	return s.MeanAPIoP - s.MeanAPIoU
}
