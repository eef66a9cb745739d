// Package image loads reference photos and converts between Go images and gocv Mats.
package image

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"

	_ "golang.org/x/image/webp"
)

// ErrEmptyImage is returned for images with no pixels.
var ErrEmptyImage = errors.New("empty image")

// Load decodes the image at path and returns it as an 8-bit BGR Mat.
// EXIF orientation is applied so phone photos come out upright.
// The caller owns the returned Mat.
func Load(path string) (gocv.Mat, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	mat, err := ToMat(img)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("%s: %w", path, err)
	}
	return mat, nil
}

// ToMat converts a Go image.Image to a gocv.Mat in BGR format.
func ToMat(img image.Image) (gocv.Mat, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return gocv.Mat{}, ErrEmptyImage
	}

	buf := make([]byte, 0, w*h*3)
	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+w*4]
			for x := 0; x < w*4; x += 4 {
				buf = append(buf, row[x+2], row[x+1], row[x])
			}
		}
	case *image.RGBA:
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride : y*src.Stride+w*4]
			for x := 0; x < w*4; x += 4 {
				buf = append(buf, row[x+2], row[x+1], row[x])
			}
		}
	default:
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			for x := bounds.Min.X; x < bounds.Max.X; x++ {
				r, g, b, _ := img.At(x, y).RGBA()
				buf = append(buf, uint8(b>>8), uint8(g>>8), uint8(r>>8))
			}
		}
	}

	// NewMatFromBytes may alias buf; clone so the Mat owns its pixels.
	view, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, buf)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to wrap pixels: %w", err)
	}
	defer view.Close()
	return view.Clone(), nil
}

// SupportedFormats returns the list of decodable file extensions.
func SupportedFormats() []string {
	return []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".webp"}
}

// IsSupportedFormat checks if the file extension is one Load can decode.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, f := range SupportedFormats() {
		if ext == f {
			return true
		}
	}
	return false
}
