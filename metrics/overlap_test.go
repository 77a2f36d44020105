package metrics

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-eval/common"
)

// TestIoU_Correctness validates the IoU implementation against known test cases.
func TestIoU_Correctness(t *testing.T) {
	tests := []struct {
		name     string
		pred     common.Box
		gt       common.Box
		expected float64
	}{
		{"identical boxes", common.Box{X: 0, Y: 0, Width: 10, Height: 10}, common.Box{X: 0, Y: 0, Width: 10, Height: 10}, 1.0},
		{"no overlap", common.Box{X: 20, Y: 20, Width: 5, Height: 5}, common.Box{X: 0, Y: 0, Width: 10, Height: 10}, 0.0},
		{"touching edges", common.Box{X: 0, Y: 0, Width: 100, Height: 100}, common.Box{X: 100, Y: 0, Width: 100, Height: 100}, 0.0},
		{"partial overlap", common.Box{X: 0, Y: 0, Width: 100, Height: 100}, common.Box{X: 50, Y: 50, Width: 100, Height: 100}, 2500.0 / 17500.0},
		{"one inside other", common.Box{X: 25, Y: 25, Width: 50, Height: 50}, common.Box{X: 0, Y: 0, Width: 100, Height: 100}, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IntersectionOverUnion(tt.pred, tt.gt)
			assert.InDelta(t, tt.expected, result, 1e-6)

			// IoU is symmetric.
			assert.Equal(t, result, IntersectionOverUnion(tt.gt, tt.pred))
		})
	}
}

func TestIoU_Epsilon(t *testing.T) {
	box := common.Box{X: 0, Y: 0, Width: 10, Height: 10}
	assert.Equal(t, 100/(100+common.Epsilon), IntersectionOverUnion(box, box))
}

func TestIoP_Correctness(t *testing.T) {
	tests := []struct {
		name     string
		pred     common.Box
		gt       common.Box
		expected float64
	}{
		{"identical boxes", common.Box{X: 0, Y: 0, Width: 10, Height: 10}, common.Box{X: 0, Y: 0, Width: 10, Height: 10}, 1.0},
		{"prediction inside ground truth", common.Box{X: 25, Y: 25, Width: 50, Height: 50}, common.Box{X: 0, Y: 0, Width: 100, Height: 100}, 1.0},
		{"ground truth inside prediction", common.Box{X: 0, Y: 0, Width: 100, Height: 100}, common.Box{X: 25, Y: 25, Width: 50, Height: 50}, 0.25},
		{"half outside", common.Box{X: 5, Y: 0, Width: 10, Height: 10}, common.Box{X: 0, Y: 0, Width: 10, Height: 10}, 0.5},
		{"no overlap", common.Box{X: 20, Y: 20, Width: 5, Height: 5}, common.Box{X: 0, Y: 0, Width: 10, Height: 10}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, IntersectionOverPrediction(tt.pred, tt.gt), 1e-6)
		})
	}
}

// TestIoP_NotBelowIoU checks IoP >= IoU pair by pair over a grid of boxes.
func TestIoP_NotBelowIoU(t *testing.T) {
	var boxes []common.Box
	for x := 0.0; x <= 20; x += 5 {
		for y := 0.0; y <= 20; y += 5 {
			for _, size := range []float64{1, 7.5, 15, 30} {
				boxes = append(boxes, common.Box{X: x, Y: y, Width: size, Height: size * 0.75})
			}
		}
	}

	for _, pred := range boxes {
		for _, gt := range boxes {
			iou := IntersectionOverUnion(pred, gt)
			iop := IntersectionOverPrediction(pred, gt)
			require.GreaterOrEqualf(t, iop, iou, "pred=%v gt=%v", pred, gt)
		}
	}
}

// TestOverlap_DegenerateBoxes makes sure zero-area boxes never produce NaN or Inf.
func TestOverlap_DegenerateBoxes(t *testing.T) {
	tests := []struct {
		name string
		pred common.Box
		gt   common.Box
	}{
		{"zero area prediction", common.Box{X: 0, Y: 0, Width: 0, Height: 0}, common.Box{X: 0, Y: 0, Width: 10, Height: 10}},
		{"zero area ground truth", common.Box{X: 0, Y: 0, Width: 10, Height: 10}, common.Box{X: 5, Y: 5, Width: 0, Height: 0}},
		{"both zero area", common.Box{X: 0, Y: 0, Width: 0, Height: 0}, common.Box{X: 0, Y: 0, Width: 0, Height: 0}},
		{"negative size", common.Box{X: 0, Y: 0, Width: -5, Height: 5}, common.Box{X: 0, Y: 0, Width: 10, Height: 10}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, name := range Names() {
				fn, err := Lookup(string(name))
				require.NoError(t, err)
				v := fn(tt.pred, tt.gt)
				assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
				assert.Equal(t, 0.0, v)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"iou", "IoU", " IOP "} {
		fn, err := Lookup(name)
		require.NoError(t, err, name)
		assert.NotNil(t, fn)
	}

	n, err := ParseName("IoP")
	require.NoError(t, err)
	assert.Equal(t, IoP, n)

	_, err = Lookup("giou")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownMetric))
	assert.Contains(t, err.Error(), "giou")
}
