// Package report renders human-readable artifacts from comparison results:
// a static HTML listing of difference regions and a contour-outline overlay
// image.
package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"visualcheck/imaging"
	"visualcheck/types"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Generate writes <outputDir>/<name>_report.html listing every difference.
// Re-running overwrites the previous report.
func Generate(differences []types.VisualDifference, name, outputDir string) error {
	if name == "" {
		return fmt.Errorf("%w: report name cannot be empty", types.ErrInvalidArgument)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("%w: cannot create report directory %s: %v", types.ErrIO, outputDir, err)
	}

	path := filepath.Join(outputDir, name+"_report.html")
	if err := os.WriteFile(path, []byte(render(differences, name)), 0644); err != nil {
		return fmt.Errorf("%w: cannot write report %s: %v", types.ErrIO, path, err)
	}
	return nil
}

func render(differences []types.VisualDifference, name string) string {
	var sb strings.Builder
	sb.WriteString("<html><body>\n")
	fmt.Fprintf(&sb, "<h1>Visual Comparison Report - %s</h1>\n", name)
	sb.WriteString(summary(differences))

	for i, diff := range differences {
		fmt.Fprintf(&sb, "<h2>Difference %d</h2>\n", i+1)
		fmt.Fprintf(&sb, "<p>Type: %s</p>\n", diff.Type)
		fmt.Fprintf(&sb, "<p>Location: (%d, %d)</p>\n", diff.Location.X, diff.Location.Y)
		fmt.Fprintf(&sb, "<p>Size: %dx%d</p>\n", diff.Size.X, diff.Size.Y)
		fmt.Fprintf(&sb, "<p>Difference: %.2f%%</p>\n", diff.Percentage)
	}

	sb.WriteString("</body></html>\n")
	return sb.String()
}

func summary(differences []types.VisualDifference) string {
	if len(differences) == 0 {
		return "<p>No differences detected.</p>\n"
	}

	percentages := make([]float64, len(differences))
	for i, diff := range differences {
		percentages[i] = diff.Percentage
	}
	return fmt.Sprintf("<p>%d differences detected (mean %.2f%%, max %.2f%%)</p>\n",
		len(differences), stat.Mean(percentages, nil), floats.Max(percentages))
}

// Highlight draws the contour outlines of the thresholded difference mask
// between img1 and img2 on a copy of img2. Unlike the comparator's diff
// image, the difference pixels themselves keep their colors; only the
// component boundaries are traced.
func Highlight(img1, img2 gocv.Mat) (gocv.Mat, error) {
	if err := imaging.Validate(img1); err != nil {
		return gocv.NewMat(), err
	}
	if err := imaging.Validate(img2); err != nil {
		return gocv.NewMat(), err
	}
	if !imaging.SameShape(img1, img2) {
		return gocv.NewMat(), fmt.Errorf("%w: %dx%d vs %dx%d",
			types.ErrShapeMismatch, img1.Cols(), img1.Rows(), img2.Cols(), img2.Rows())
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(img1, img2, &diff)

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(diff, &gray, gocv.ColorBGRToGray)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(gray, &mask, 30, 255, gocv.ThresholdBinary)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	out := img2.Clone()
	gocv.DrawContours(&out, contours, -1, color.RGBA{R: 255}, 2)
	return out, nil
}

// SaveOverlay writes the Highlight image for two images to the given path.
func SaveOverlay(img1, img2 gocv.Mat, path string) error {
	overlay, err := Highlight(img1, img2)
	if err != nil {
		return err
	}
	defer overlay.Close()
	return imaging.Save(path, overlay)
}
