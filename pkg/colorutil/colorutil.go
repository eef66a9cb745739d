// Package colorutil provides shared color utilities for overlays and diagnostics.
package colorutil

import (
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// Overlay colors. gocv drawing calls take these as RGB and write them into
// BGR Mats themselves.
var (
	Green = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	Red   = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

// Ramp blends from Green at t=0 to Red at t=1 in Lab space.
// t is clamped to [0, 1].
func Ramp(t float64) color.RGBA {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	good, _ := colorful.MakeColor(Green)
	bad, _ := colorful.MakeColor(Red)
	return FromColorful(good.BlendLab(bad, t))
}

// FromColorful converts a go-colorful color to an opaque color.RGBA.
func FromColorful(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
