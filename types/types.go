package types

import (
	"image"

	"gocv.io/x/gocv"
)

// DifferenceRegion is a bounding box around a connected cluster of pixels
// that differ beyond the intensity threshold. Area is the number of mask
// pixels inside the cluster, not the bounding-box area.
type DifferenceRegion struct {
	Location image.Point `json:"location"`
	Size     image.Point `json:"size"`
	Area     int         `json:"area"`
}

// ComparisonResult holds the outcome of comparing a current image against a
// baseline. The caller owns DiffImage and must Close it.
type ComparisonResult struct {
	Match       bool
	Similarity  float64
	Differences []DifferenceRegion
	DiffImage   gocv.Mat
}

// VisualDifference is a classified difference region used for reporting.
// Type is one of "added", "removed" or "changed".
type VisualDifference struct {
	Location   image.Point `json:"location"`
	Size       image.Point `json:"size"`
	Percentage float64     `json:"percentage"`
	Type       string      `json:"type"`
}

// TemplateMatch holds one template-matching detection. Location is the
// center of the template footprint in image coordinates.
type TemplateMatch struct {
	Location image.Point
	Score    float64
}

// RunResult holds the outcome of one comparison in a batch run.
type RunResult struct {
	Name       string
	Match      bool
	Similarity float64
	Regions    int
	Error      error
}
