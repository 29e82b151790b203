package vision

import (
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

// createTrayImage draws dark filled squares on a light background
func createTrayImage(width, height int, boxes ...image.Rectangle) gocv.Mat {
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(235, 235, 235, 0), height, width, gocv.MatTypeCV8UC3)
	for _, b := range boxes {
		gocv.Rectangle(&mat, b, color.RGBA{40, 60, 40, 255}, -1)
	}
	return mat
}

func TestNew(t *testing.T) {
	s := New()
	if s == nil {
		t.Fatal("New() returned nil")
	}
	cfg := s.Config()
	if cfg.BlockSize != 19 || cfg.Offset != 3 || cfg.Padding != 20 || cfg.BlurKernel != 5 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.MinAreaRatio != 0.02 {
		t.Errorf("expected min area ratio 0.02, got %f", cfg.MinAreaRatio)
	}
}

func TestNewWithConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Padding = 5
	if got := NewWithConfig(cfg).Config().Padding; got != 5 {
		t.Errorf("expected padding 5, got %d", got)
	}
}

func TestSegmentFindsObjects(t *testing.T) {
	src := createTrayImage(300, 200,
		image.Rect(30, 40, 100, 120),
		image.Rect(180, 50, 260, 150),
	)
	defer src.Close()

	regions := New().Segment(src)
	if len(regions) != 2 {
		t.Fatalf("expected 2 regions, got %d: %+v", len(regions), regions)
	}

	minArea := 0.02 * 300 * 200
	for _, r := range regions {
		if r.Area < minArea {
			t.Errorf("region %+v below minimum area %f", r, minArea)
		}
	}
}

func TestSegmentDropsSmallContours(t *testing.T) {
	// 6x6 specks are far below 2% of a 300x200 frame
	src := createTrayImage(300, 200,
		image.Rect(20, 20, 26, 26),
		image.Rect(150, 100, 156, 106),
	)
	defer src.Close()

	if regions := New().Segment(src); len(regions) != 0 {
		t.Errorf("expected no regions, got %+v", regions)
	}
}

func TestSegmentUniformImage(t *testing.T) {
	src := createTrayImage(120, 80)
	defer src.Close()

	if regions := New().Segment(src); len(regions) != 0 {
		t.Errorf("expected no regions on a flat image, got %+v", regions)
	}
}

func TestSegmentPaddingStaysInBounds(t *testing.T) {
	// objects close to the corners force the padding to clamp
	src := createTrayImage(200, 160,
		image.Rect(6, 6, 66, 66),
		image.Rect(134, 94, 194, 154),
	)
	defer src.Close()

	regions := New().Segment(src)
	if len(regions) != 2 {
		t.Fatalf("expected 2 regions, got %+v", regions)
	}
	for _, r := range regions {
		if r.X < 0 || r.Y < 0 || r.X+r.W > 200 || r.Y+r.H > 160 {
			t.Errorf("region %+v escapes the 200x160 frame", r)
		}
		if r.Empty() {
			t.Errorf("region %+v is empty", r)
		}
	}
}

func TestSegmentBytesUndecodable(t *testing.T) {
	regions := New().SegmentBytes([]byte("not an image"))
	if regions == nil || len(regions) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", regions)
	}
}

func TestSegmentEmptyMat(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()
	if regions := New().Segment(empty); len(regions) != 0 {
		t.Errorf("expected no regions, got %+v", regions)
	}
}

func TestPad(t *testing.T) {
	tests := []struct {
		name string
		rect image.Rectangle
		want [4]int
	}{
		{"interior", image.Rect(50, 50, 70, 80), [4]int{30, 30, 60, 70}},
		{"top left corner", image.Rect(5, 5, 25, 25), [4]int{0, 0, 60, 60}},
		{"bottom right corner", image.Rect(80, 80, 100, 100), [4]int{60, 60, 40, 40}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := pad(tt.rect, 20, 100, 100)
			got := [4]int{r.X, r.Y, r.W, r.H}
			if got != tt.want {
				t.Errorf("pad(%v) = %v, want %v", tt.rect, got, tt.want)
			}
			if r.X+r.W > 100 || r.Y+r.H > 100 {
				t.Errorf("pad(%v) escapes frame: %+v", tt.rect, r)
			}
		})
	}
}
