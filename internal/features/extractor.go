// Package features detects keypoints and computes local descriptors.
package features

import (
	"fmt"
	"image"
	"sort"
	"strings"

	"gocv.io/x/gocv"
)

// Detector names a keypoint detector/descriptor algorithm.
type Detector string

const (
	DetectorSIFT  Detector = "sift"
	DetectorORB   Detector = "orb"
	DetectorAKAZE Detector = "akaze"
	DetectorBRISK Detector = "brisk"
	DetectorKAZE  Detector = "kaze"
)

// ParseDetector converts a configuration string to a Detector.
func ParseDetector(s string) (Detector, error) {
	d := Detector(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case DetectorSIFT, DetectorORB, DetectorAKAZE, DetectorBRISK, DetectorKAZE:
		return d, nil
	}
	return "", fmt.Errorf("unknown detector %q", s)
}

// Binary reports whether the detector produces bit-string descriptors
// compared by Hamming distance rather than float vectors compared by L2.
func (d Detector) Binary() bool {
	switch d {
	case DetectorORB, DetectorAKAZE, DetectorBRISK:
		return true
	}
	return false
}

// Norm returns the distance norm matching the detector's descriptors.
func (d Detector) Norm() gocv.NormType {
	if d.Binary() {
		return gocv.NormHamming
	}
	return gocv.NormL2
}

// Options configures feature extraction. The values are fixed for the
// lifetime of an Extractor so every image is described the same way.
type Options struct {
	Detector    Detector
	MaxFeatures int // Keep only the strongest N keypoints (0 = no limit)

	// Local contrast normalization before detection
	CLAHE          bool
	CLAHEClipLimit float64
	CLAHETileSize  int
}

// DefaultOptions returns default extraction options.
func DefaultOptions() Options {
	return Options{
		Detector:       DetectorSIFT,
		MaxFeatures:    0,
		CLAHE:          false,
		CLAHEClipLimit: 2.0,
		CLAHETileSize:  8,
	}
}

// Features holds index-aligned keypoints and descriptors: row i of
// Descriptors describes Keypoints[i]. Both are empty together.
type Features struct {
	Keypoints   []gocv.KeyPoint
	Descriptors gocv.Mat
}

// Len returns the number of features.
func (f Features) Len() int {
	return len(f.Keypoints)
}

// Empty reports whether no features were found.
func (f Features) Empty() bool {
	return len(f.Keypoints) == 0
}

// Close releases the descriptor matrix.
func (f *Features) Close() error {
	f.Keypoints = nil
	return f.Descriptors.Close()
}

// Extractor converts one image into keypoints and descriptors.
type Extractor interface {
	// Extract never fails: an image without usable texture yields empty Features.
	Extract(img gocv.Mat) Features
	// Detector reports the algorithm in use.
	Detector() Detector
	Close() error
}

// detectComputer is the gocv feature2d surface shared by all detectors.
type detectComputer interface {
	DetectAndCompute(src gocv.Mat, mask gocv.Mat) ([]gocv.KeyPoint, gocv.Mat)
	Close() error
}

// GocvExtractor extracts features with an OpenCV detector.
// It is not safe for concurrent use.
type GocvExtractor struct {
	opts  Options
	dc    detectComputer
	clahe *gocv.CLAHE
}

// NewExtractor creates an extractor for the configured detector.
func NewExtractor(opts Options) (*GocvExtractor, error) {
	if _, err := ParseDetector(string(opts.Detector)); err != nil {
		return nil, err
	}

	var dc detectComputer
	switch opts.Detector {
	case DetectorSIFT:
		d := gocv.NewSIFT()
		dc = &d
	case DetectorORB:
		d := gocv.NewORB()
		dc = &d
	case DetectorAKAZE:
		d := gocv.NewAKAZE()
		dc = &d
	case DetectorBRISK:
		d := gocv.NewBRISK()
		dc = &d
	case DetectorKAZE:
		d := gocv.NewKAZE()
		dc = &d
	}

	e := &GocvExtractor{opts: opts, dc: dc}
	if opts.CLAHE {
		tile := max(opts.CLAHETileSize, 1)
		c := gocv.NewCLAHEWithParams(opts.CLAHEClipLimit, image.Pt(tile, tile))
		e.clahe = &c
	}
	return e, nil
}

// Detector reports the algorithm in use.
func (e *GocvExtractor) Detector() Detector {
	return e.opts.Detector
}

// Extract detects keypoints and computes their descriptors.
func (e *GocvExtractor) Extract(img gocv.Mat) Features {
	if img.Empty() {
		return emptyFeatures()
	}

	gray := toGray(img)
	defer gray.Close()

	if e.clahe != nil {
		enhanced := gocv.NewMat()
		e.clahe.Apply(gray, &enhanced)
		gray.Close()
		gray = enhanced
	}

	mask := gocv.NewMat()
	defer mask.Close()

	kps, desc := e.dc.DetectAndCompute(gray, mask)
	if len(kps) == 0 || desc.Empty() || desc.Rows() != len(kps) {
		desc.Close()
		return emptyFeatures()
	}

	f := Features{Keypoints: kps, Descriptors: desc}
	if e.opts.MaxFeatures > 0 && f.Len() > e.opts.MaxFeatures {
		capped := strongest(f, e.opts.MaxFeatures)
		f.Close()
		f = capped
	}
	return f
}

// Close releases the underlying OpenCV objects.
func (e *GocvExtractor) Close() error {
	if e.clahe != nil {
		e.clahe.Close()
	}
	return e.dc.Close()
}

func emptyFeatures() Features {
	return Features{Descriptors: gocv.NewMat()}
}

// toGray returns a single-channel copy of img.
func toGray(img gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	switch img.Channels() {
	case 1:
		img.CopyTo(&gray)
	case 4:
		gocv.CvtColor(img, &gray, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	}
	return gray
}

// strongest keeps the n keypoints with the highest response. The sort is
// stable so equal responses keep detection order, which keeps the result
// deterministic for a given image.
func strongest(f Features, n int) Features {
	order := make([]int, f.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return f.Keypoints[order[a]].Response > f.Keypoints[order[b]].Response
	})
	order = order[:n]

	kps := make([]gocv.KeyPoint, n)
	desc := gocv.NewMatWithSize(n, f.Descriptors.Cols(), f.Descriptors.Type())
	for dst, src := range order {
		kps[dst] = f.Keypoints[src]
		from := f.Descriptors.RowRange(src, src+1)
		to := desc.RowRange(dst, dst+1)
		from.CopyTo(&to)
		from.Close()
		to.Close()
	}
	return Features{Keypoints: kps, Descriptors: desc}
}
