// Package testutil builds synthetic images for tests.
//
// Box-art fixtures are random overlapping shapes: the corners and blobs give
// any scale-invariant detector hundreds of distinctive features, and a fixed
// seed makes each fixture reproducible.
package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	boximage "boardgame-spotter/internal/image"

	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// Gray is the fixture background color.
var Gray = color.RGBA{128, 128, 128, 255}

// Texture returns a w×h image of random rectangles, discs and rings.
func Texture(seed int64, w, h int) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{Gray}, image.Point{}, draw.Src)

	randColor := func() color.RGBA {
		return color.RGBA{uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256)), 255}
	}

	for i := 0; i < 120; i++ {
		x, y := rng.Intn(w), rng.Intn(h)
		rw, rh := 6+rng.Intn(w/6), 6+rng.Intn(h/6)
		r := image.Rect(x, y, x+rw, y+rh).Intersect(img.Bounds())
		draw.Draw(img, r, &image.Uniform{randColor()}, image.Point{}, draw.Src)
	}
	for i := 0; i < 80; i++ {
		cx, cy := rng.Intn(w), rng.Intn(h)
		outer := 4 + rng.Intn(min(w, h)/10)
		inner := 0
		if rng.Intn(2) == 0 {
			inner = outer / 2
		}
		fillRing(img, cx, cy, inner, outer, randColor())
	}

	return imageToRGBA(blur.Gaussian(img, 0.8))
}

// Uniform returns a w×h image filled with one color.
func Uniform(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

// RotateScale rotates img counter-clockwise by degrees (growing the canvas to
// fit) and then resizes it by factor.
func RotateScale(img image.Image, degrees, factor float64) *image.NRGBA {
	rotated := imaging.Rotate(img, degrees, Gray)
	b := rotated.Bounds()
	w := int(float64(b.Dx()) * factor)
	h := int(float64(b.Dy()) * factor)
	return imaging.Resize(rotated, w, h, imaging.Lanczos)
}

// Mat converts img to a BGR Mat and closes it when the test ends.
func Mat(t *testing.T, img image.Image) gocv.Mat {
	t.Helper()
	m, err := boximage.ToMat(img)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

// WritePNG encodes img into dir/name and returns the full path.
func WritePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func fillRing(img *image.RGBA, cx, cy, inner, outer int, c color.RGBA) {
	b := img.Bounds()
	for y := cy - outer; y <= cy+outer; y++ {
		for x := cx - outer; x <= cx+outer; x++ {
			if !(image.Point{x, y}).In(b) {
				continue
			}
			d := (x-cx)*(x-cx) + (y-cy)*(y-cy)
			if d <= outer*outer && d >= inner*inner {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

func imageToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	return out
}
