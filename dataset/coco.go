// Package dataset - parses COCO-style ground truth and detection results into evaluation input.
package dataset

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/nvr-ai/go-eval/common"
	"github.com/nvr-ai/go-eval/evaluation"
)

// ErrMalformedRecord marks an input record with a missing or invalid field.
var ErrMalformedRecord = errors.New("malformed record")

// crowdFlag accepts both the numeric and boolean spellings of "iscrowd".
type crowdFlag bool

func (c *crowdFlag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "null", "false":
		*c = false
		return nil
	case "true":
		*c = true
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.Wrapf(err, "iscrowd must be a number or boolean, got %s", data)
	}
	*c = n == 1
	return nil
}

type annotation struct {
	ImageID    *int64    `json:"image_id"`
	CategoryID *int64    `json:"category_id"`
	BBox       []float64 `json:"bbox"`
	IsCrowd    crowdFlag `json:"iscrowd"`
}

// Category is an entry of the optional "categories" list of a ground-truth file.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type groundTruthFile struct {
	Annotations []annotation `json:"annotations"`
	Categories  []Category   `json:"categories"`
}

type predictionRecord struct {
	ImageID    *int64    `json:"image_id"`
	CategoryID *int64    `json:"category_id"`
	BBox       []float64 `json:"bbox"`
	Score      *float64  `json:"score"`
}

// GroundTruth is a parsed ground-truth file.
type GroundTruth struct {
	// Collection holds the matchable annotations, grouped by category and image.
	Collection evaluation.GroundTruthCollection
	// Categories lists the declared categories, in file order.
	Categories []Category
	// Annotations counts the kept annotations.
	Annotations int
	// Crowd counts the annotations dropped for being crowd regions.
	Crowd int
}

// WithDeclaredCategories returns a copy of the collection that also holds an empty ground-truth
// set for every declared category without annotations.
func (g *GroundTruth) WithDeclaredCategories() evaluation.GroundTruthCollection {
	out := make(evaluation.GroundTruthCollection, len(g.Collection)+len(g.Categories))
	for id, set := range g.Collection {
		out[id] = set
	}
	for _, c := range g.Categories {
		id := evaluation.CategoryID(c.ID)
		if _, ok := out[id]; !ok {
			out[id] = evaluation.GroundTruthSet{}
		}
	}
	return out
}

// CategoryName returns the declared name of a category, or "" when it is not declared.
func (g *GroundTruth) CategoryName(id evaluation.CategoryID) string {
	c, ok := lo.Find(g.Categories, func(c Category) bool { return evaluation.CategoryID(c.ID) == id })
	if !ok {
		return ""
	}
	return c.Name
}

// LoadGroundTruth reads a COCO-style ground-truth file.
//
// Arguments:
// - path: Path to a JSON file with an "annotations" array.
//
// Returns:
// - *GroundTruth: The parsed ground truth.
// - error: If the file cannot be read or any annotation is malformed.
func LoadGroundTruth(path string) (*GroundTruth, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open ground truth")
	}
	defer f.Close()

	gt, err := ParseGroundTruth(f)
	if err != nil {
		return nil, errors.Wrapf(err, "ground truth %s", path)
	}
	return gt, nil
}

// ParseGroundTruth decodes COCO-style ground truth.
//
// Crowd annotations (iscrowd == 1) are dropped before validation: they are never matchable
// and never counted. Every other annotation must carry image_id, category_id and a
// four-value bbox. All malformed annotations are reported together and nothing is returned
// for a file that has any.
func ParseGroundTruth(r io.Reader) (*GroundTruth, error) {
	var file groundTruthFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, errors.Wrap(err, "decode ground truth")
	}
	if file.Annotations == nil {
		return nil, errors.Wrap(ErrMalformedRecord, "missing annotations")
	}

	gt := &GroundTruth{
		Collection: evaluation.GroundTruthCollection{},
		Categories: file.Categories,
	}

	var errs error
	for i, ann := range file.Annotations {
		if ann.IsCrowd {
			gt.Crowd++
			continue
		}
		box, err := validate(ann.ImageID, ann.CategoryID, ann.BBox)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "annotation %d", i))
			continue
		}

		cat := evaluation.CategoryID(*ann.CategoryID)
		img := evaluation.ImageID(*ann.ImageID)

		set, ok := gt.Collection[cat]
		if !ok {
			set = evaluation.GroundTruthSet{}
			gt.Collection[cat] = set
		}
		set[img] = append(set[img], box)
		gt.Annotations++
	}

	if errs != nil {
		return nil, errs
	}
	return gt, nil
}

// LoadPredictions reads a flat JSON array of detection results.
func LoadPredictions(path string) (evaluation.PredictionCollection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open predictions")
	}
	defer f.Close()

	preds, err := ParsePredictions(f)
	if err != nil {
		return nil, errors.Wrapf(err, "predictions %s", path)
	}
	return preds, nil
}

// ParsePredictions decodes a flat array of {image_id, category_id, bbox, score} records and
// groups them by category, keeping input order within each category.
func ParsePredictions(r io.Reader) (evaluation.PredictionCollection, error) {
	var records []predictionRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, errors.Wrap(err, "decode predictions")
	}

	preds := make([]evaluation.Prediction, 0, len(records))

	var errs error
	for i, rec := range records {
		box, err := validate(rec.ImageID, rec.CategoryID, rec.BBox)
		if err == nil && rec.Score == nil {
			err = errors.Wrap(ErrMalformedRecord, "missing score")
		}
		if err != nil {
			errs = multierr.Append(errs, errors.Wrapf(err, "prediction %d", i))
			continue
		}

		preds = append(preds, evaluation.Prediction{
			ImageID:    evaluation.ImageID(*rec.ImageID),
			CategoryID: evaluation.CategoryID(*rec.CategoryID),
			Box:        box,
			Score:      *rec.Score,
		})
	}

	if errs != nil {
		return nil, errs
	}

	return lo.GroupBy(preds, func(p evaluation.Prediction) evaluation.CategoryID {
		return p.CategoryID
	}), nil
}

func validate(imageID, categoryID *int64, bbox []float64) (common.Box, error) {
	switch {
	case imageID == nil:
		return common.Box{}, errors.Wrap(ErrMalformedRecord, "missing image_id")
	case categoryID == nil:
		return common.Box{}, errors.Wrap(ErrMalformedRecord, "missing category_id")
	case bbox == nil:
		return common.Box{}, errors.Wrap(ErrMalformedRecord, "missing bbox")
	}

	box, err := common.NewBox(bbox)
	if err != nil {
		return common.Box{}, errors.Wrap(ErrMalformedRecord, err.Error())
	}
	return box, nil
}
