// Package geometry provides basic geometric types used throughout the application.
package geometry

import (
	"image"
	"math"
)

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Add returns the sum of two points.
func (p Point2D) Add(other Point2D) Point2D {
	return Point2D{X: p.X + other.X, Y: p.Y + other.Y}
}

// ImagePoint rounds to the nearest integer pixel.
func (p Point2D) ImagePoint() image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}

// Size represents dimensions.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewSize creates a new Size.
func NewSize(width, height float64) Size {
	return Size{Width: width, Height: height}
}

// FitScale returns the uniform scale factor that makes s fit inside bounds.
// Sizes that already fit return 1; the result is never an upscale.
func (s Size) FitScale(bounds Size) float64 {
	if s.Width <= 0 || s.Height <= 0 {
		return 1
	}
	if s.Width <= bounds.Width && s.Height <= bounds.Height {
		return 1
	}
	return math.Min(bounds.Width/s.Width, bounds.Height/s.Height)
}

// Scaled returns the size multiplied by factor, rounded to whole pixels and
// clamped to at least one pixel in each dimension.
func (s Size) Scaled(factor float64) image.Point {
	w := int(math.Round(s.Width * factor))
	h := int(math.Round(s.Height * factor))
	return image.Pt(max(w, 1), max(h, 1))
}
