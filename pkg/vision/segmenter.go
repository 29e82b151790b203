// Package vision locates discrete objects in a tray photo.
package vision

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/processing"
	"github.com/jonesdeveloperchung-pixel/JadeScribe/pkg/types"
)

// Segmenter finds bounding regions of objects using adaptive thresholding
// and external contours.
//
// Regions are returned in contour discovery order, which does not follow any
// spatial reading order.
type Segmenter struct {
	config SegmentConfig
}

// SegmentConfig holds the thresholding and filtering parameters
type SegmentConfig struct {
	BlurKernel   int     // Gaussian blur kernel size, odd
	BlockSize    int     // adaptive threshold neighbourhood, odd
	Offset       float32 // constant subtracted from the weighted mean
	MinAreaRatio float64 // contours smaller than this share of the frame are noise
	Padding      int     // margin added on every side of a bounding box
}

// DefaultConfig returns the parameters tuned for pendant trays
func DefaultConfig() SegmentConfig {
	return SegmentConfig{
		BlurKernel:   5,
		BlockSize:    19,
		Offset:       3,
		MinAreaRatio: 0.02,
		Padding:      20,
	}
}

// New creates a new Segmenter with default configuration
func New() *Segmenter {
	return &Segmenter{config: DefaultConfig()}
}

// NewWithConfig creates a new Segmenter with custom configuration
func NewWithConfig(config SegmentConfig) *Segmenter {
	return &Segmenter{config: config}
}

// Config returns the active configuration
func (s *Segmenter) Config() SegmentConfig {
	return s.config
}

// SegmentBytes decodes an encoded image and segments it.
// An undecodable image yields no regions.
func (s *Segmenter) SegmentBytes(data []byte) []types.Region {
	src := processing.DecodeMat(data)
	defer src.Close()
	return s.Segment(src)
}

// Segment returns the padded bounding boxes of every contour large enough to
// be an object. src must be a BGR image; an empty Mat yields no regions.
func (s *Segmenter) Segment(src gocv.Mat) []types.Region {
	if src.Empty() {
		return []types.Region{}
	}
	imgW, imgH := src.Cols(), src.Rows()

	gray := gocv.NewMat()
	defer gray.Close()
	if src.Channels() == 1 {
		src.CopyTo(&gray)
	} else {
		gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	k := s.config.BlurKernel
	gocv.GaussianBlur(gray, &blurred, image.Pt(k, k), 0, 0, gocv.BorderDefault)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.AdaptiveThreshold(blurred, &thresh, 255,
		gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinaryInv,
		s.config.BlockSize, s.config.Offset)

	contours := gocv.FindContours(thresh, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	minArea := float64(imgW*imgH) * s.config.MinAreaRatio
	regions := make([]types.Region, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		area := gocv.ContourArea(contour)
		if area < minArea {
			continue
		}

		region := pad(gocv.BoundingRect(contour), s.config.Padding, imgW, imgH)
		if region.Empty() {
			continue
		}
		region.Area = area
		regions = append(regions, region)
	}
	return regions
}

// pad grows a box by p pixels on every side and clamps it to the frame.
func pad(r image.Rectangle, p, imgW, imgH int) types.Region {
	x := max(0, r.Min.X-p)
	y := max(0, r.Min.Y-p)
	w := min(imgW-x, r.Dx()+2*p)
	h := min(imgH-y, r.Dy()+2*p)
	return types.Region{X: x, Y: y, W: w, H: h}
}
