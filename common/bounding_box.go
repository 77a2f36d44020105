// Package common - shared geometry for detection evaluation.
package common

import (
	"fmt"

	"github.com/pkg/errors"
)

// Epsilon guards every division whose denominator can collapse to zero on degenerate boxes.
// All overlap and precision computations share this value so results stay reproducible.
const Epsilon = 1e-8

// Box is an axis-aligned bounding box in (x, y, width, height) form.
//
// Width and height may be zero or negative. Such a box is degenerate: it has zero area and
// overlaps nothing.
type Box struct {
	X, Y          float64
	Width, Height float64
}

// NewBox builds a Box from a COCO-style [x, y, width, height] slice.
//
// Arguments:
//   - coords: Exactly four values.
//
// Returns:
//   - Box: The parsed box.
//   - error: If coords does not hold four values.
//
// @example
// box, err := NewBox([]float64{10, 20, 30, 40}) // Box{X: 10, Y: 20, Width: 30, Height: 40}
func NewBox(coords []float64) (Box, error) {
	if len(coords) != 4 {
		return Box{}, errors.Errorf("bbox must have 4 values, got %d", len(coords))
	}
	return Box{X: coords[0], Y: coords[1], Width: coords[2], Height: coords[3]}, nil
}

func (b Box) String() string {
	return fmt.Sprintf("[%g, %g, %g, %g]", b.X, b.Y, b.Width, b.Height)
}

// Area returns the area of the box.
//
// If either raw dimension is negative the area is exactly 0. The dimensions are not
// clamped independently, so a box with one negative side never contributes a partial area.
//
// @example
// Box{Width: 10, Height: 10}.Area() // 100
// Box{Width: -1, Height: 10}.Area() // 0
func (b Box) Area() float64 {
	if b.Width < 0 || b.Height < 0 {
		return 0
	}
	return b.Width * b.Height
}

// Corners converts the box to corner form (x1, y1, x2, y2).
func (b Box) Corners() (x1, y1, x2, y2 float64) {
	return b.X, b.Y, b.X + b.Width, b.Y + b.Height
}

// Intersection calculates the intersection area between two boxes.
//
// The overlap rectangle starts at the maximum of the top-left corners and ends at the
// minimum of the bottom-right corners. Each extent is clamped at zero, so disjoint or
// degenerate boxes yield 0.
//
// Arguments:
//   - other: The other box to intersect with.
//
// Returns:
//   - The area of intersection.
//
// @example
// a := Box{X: 0, Y: 0, Width: 100, Height: 100}
// b := Box{X: 50, Y: 50, Width: 100, Height: 100}
// area := a.Intersection(b) // Returns 2500.0 (50x50 overlap)
func (b Box) Intersection(other Box) float64 {
	ax1, ay1, ax2, ay2 := b.Corners()
	bx1, by1, bx2, by2 := other.Corners()

	iw := max(min(ax2, bx2)-max(ax1, bx1), 0)
	ih := max(min(ay2, by2)-max(ay1, by1), 0)

	return iw * ih
}
