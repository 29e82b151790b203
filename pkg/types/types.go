package types

import (
	"image"
)

// UnknownCode marks a crop whose identifier could not be read.
const UnknownCode = "unknown"

// Region is a padded bounding box around one object found in a tray photo
type Region struct {
	X    int     `json:"x"`
	Y    int     `json:"y"`
	W    int     `json:"w"`
	H    int     `json:"h"`
	Area float64 `json:"area"` // area of the originating contour
}

// Rect returns the region as an image rectangle
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// Empty reports whether the region covers no pixels
func (r Region) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// DetectedCrop is an enhanced, persisted sub-image plus its resolved identifier
type DetectedCrop struct {
	Index    int         `json:"index"`
	Region   Region      `json:"region"`
	Enhanced image.Image `json:"-"`
	Path     string      `json:"path"`
	OCRCode  string      `json:"ocr_code"`
}

// HasCode reports whether OCR resolved an identifier for the crop
func (c DetectedCrop) HasCode() bool {
	return c.OCRCode != "" && c.OCRCode != UnknownCode
}

// VisualFeatures holds the free-text visual description of an item
type VisualFeatures struct {
	Color           string `json:"color"`
	Motif           string `json:"motif"`
	Characteristics string `json:"characteristics"`
}

// AnalysisResult is one catalogued item
type AnalysisResult struct {
	ItemCode       string         `json:"item_code"`
	VisualFeatures VisualFeatures `json:"visual_features"`
	CropPath       string         `json:"crop_path,omitempty"`
	Error          string         `json:"error,omitempty"`
	Degraded       bool           `json:"degraded,omitempty"`
	Description    string         `json:"description,omitempty"`
}

// Failed reports whether the result carries an error or was degraded
func (r AnalysisResult) Failed() bool {
	return r.Error != "" || r.Degraded
}

// ErrorResult builds the single global error entry that replaces a result list
func ErrorResult(err error) AnalysisResult {
	return AnalysisResult{
		ItemCode: UnknownCode,
		VisualFeatures: VisualFeatures{
			Color:           UnknownCode,
			Motif:           UnknownCode,
			Characteristics: UnknownCode,
		},
		Error: err.Error(),
	}
}

// DegradedResult builds the entry for a crop whose analysis failed
func DegradedResult(code, reason string) AnalysisResult {
	if code == "" {
		code = UnknownCode
	}
	return AnalysisResult{
		ItemCode: code,
		VisualFeatures: VisualFeatures{
			Color:           UnknownCode,
			Motif:           UnknownCode,
			Characteristics: "analysis failed",
		},
		Error:    reason,
		Degraded: true,
	}
}
