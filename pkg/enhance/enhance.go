// Package enhance prepares crops for close inspection: gray-world white
// balance in Lab space followed by CLAHE on the luminance channel.
package enhance

import (
	"image"

	"github.com/lucasb-eyer/go-colorful"
	"gocv.io/x/gocv"
)

// Options holds the enhancement constants
type Options struct {
	ClipLimit float64     // CLAHE clip limit
	TileGrid  image.Point // CLAHE tile grid
	CastGain  float64     // strength of the gray-world chroma shift
}

// DefaultOptions returns the constants tuned for jade photography
func DefaultOptions() Options {
	return Options{
		ClipLimit: 2.5,
		TileGrid:  image.Pt(8, 8),
		CastGain:  1.1,
	}
}

// Enhancer applies white balance and local contrast enhancement.
// All operations preserve image dimensions and return a new Mat the caller
// must close.
type Enhancer struct {
	opts Options
}

// New creates an Enhancer with default options
func New() *Enhancer {
	return &Enhancer{opts: DefaultOptions()}
}

// NewWithOptions creates an Enhancer with custom options
func NewWithOptions(opts Options) *Enhancer {
	return &Enhancer{opts: opts}
}

// Enhance applies WhiteBalance then CLAHE
func (e *Enhancer) Enhance(src gocv.Mat) gocv.Mat {
	balanced := e.WhiteBalance(src)
	defer balanced.Close()
	return e.CLAHE(balanced)
}

// WhiteBalance shifts the a/b chroma channels toward neutral by the mean cast,
// weighted by each pixel's luminance.
func (e *Enhancer) WhiteBalance(src gocv.Mat) gocv.Mat {
	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(src, &lab, gocv.ColorBGRToLab)

	rows, cols := lab.Rows(), lab.Cols()
	pix, err := lab.DataPtrUint8()
	if err != nil || len(pix) < rows*cols*3 {
		out := gocv.NewMat()
		src.CopyTo(&out)
		return out
	}
	buf := make([]byte, rows*cols*3)
	copy(buf, pix)

	var sumA, sumB float64
	for i := 0; i < len(buf); i += 3 {
		sumA += float64(buf[i+1])
		sumB += float64(buf[i+2])
	}
	n := float64(rows * cols)
	castA := sumA/n - 128
	castB := sumB/n - 128

	for i := 0; i < len(buf); i += 3 {
		weight := float64(buf[i]) / 255 * e.opts.CastGain
		buf[i+1] = clampByte(float64(buf[i+1]) - castA*weight)
		buf[i+2] = clampByte(float64(buf[i+2]) - castB*weight)
	}

	balanced, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8UC3, buf)
	if err != nil {
		out := gocv.NewMat()
		src.CopyTo(&out)
		return out
	}
	defer balanced.Close()

	out := gocv.NewMat()
	gocv.CvtColor(balanced, &out, gocv.ColorLabToBGR)
	return out
}

// CLAHE equalizes the luminance channel only, leaving chroma untouched
func (e *Enhancer) CLAHE(src gocv.Mat) gocv.Mat {
	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(src, &lab, gocv.ColorBGRToLab)

	channels := gocv.Split(lab)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()

	clahe := gocv.NewCLAHEWithParams(e.opts.ClipLimit, e.opts.TileGrid)
	defer clahe.Close()

	equalized := gocv.NewMat()
	defer equalized.Close()
	clahe.Apply(channels[0], &equalized)

	merged := gocv.NewMat()
	defer merged.Close()
	gocv.Merge([]gocv.Mat{equalized, channels[1], channels[2]}, &merged)

	out := gocv.NewMat()
	gocv.CvtColor(merged, &out, gocv.ColorLabToBGR)
	return out
}

// ChromaCast returns the mean CIE Lab a* and b* of an image, a measure of its
// color cast. Neutral images are close to (0, 0).
func ChromaCast(img image.Image) (a, b float64) {
	bounds := img.Bounds()
	n := bounds.Dx() * bounds.Dy()
	if n == 0 {
		return 0, 0
	}

	// sample at most ~64k pixels
	step := 1
	for n/(step*step) > 1<<16 {
		step++
	}

	var sumA, sumB float64
	count := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			c, ok := colorful.MakeColor(img.At(x, y))
			if !ok {
				continue
			}
			_, la, lb := c.Lab()
			sumA += la
			sumB += lb
			count++
		}
	}
	if count == 0 {
		return 0, 0
	}
	return sumA / float64(count), sumB / float64(count)
}

func clampByte(v float64) byte {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return byte(v + 0.5)
}
