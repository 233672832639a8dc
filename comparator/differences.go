package comparator

import (
	"fmt"
	"image"

	"visualcheck/imaging"
	"visualcheck/types"

	"gocv.io/x/gocv"
)

// FindVisualDifferences extracts classified difference regions for
// reporting. Each region carries the percentage of changed sample energy
// inside its bounding box and a coarse type: "added" when the current region
// is brighter than the baseline, "removed" when darker, "changed" otherwise.
func (c *Comparator) FindVisualDifferences(baseline, current gocv.Mat) ([]types.VisualDifference, error) {
	if err := imaging.Validate(baseline); err != nil {
		return nil, fmt.Errorf("baseline image: %w", err)
	}
	if err := imaging.Validate(current); err != nil {
		return nil, fmt.Errorf("current image: %w", err)
	}
	if !imaging.SameShape(baseline, current) {
		return nil, fmt.Errorf("%w: baseline %dx%d vs current %dx%d",
			types.ErrShapeMismatch, baseline.Cols(), baseline.Rows(), current.Cols(), current.Rows())
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(baseline, current, &diff)

	intensity, minArea := c.diffParams()
	regions, err := extractRegions(diff, intensity, minArea)
	if err != nil {
		return nil, err
	}

	differences := make([]types.VisualDifference, 0, len(regions))
	for _, region := range regions {
		rect := image.Rect(
			region.Location.X,
			region.Location.Y,
			region.Location.X+region.Size.X,
			region.Location.Y+region.Size.Y,
		)
		differences = append(differences, types.VisualDifference{
			Location:   region.Location,
			Size:       region.Size,
			Percentage: regionPercentage(diff, rect),
			Type:       classifyRegion(baseline, current, rect),
		})
	}
	return differences, nil
}

// regionPercentage totals the absolute differences inside rect and
// normalizes by the maximum possible difference energy of the box.
func regionPercentage(diff gocv.Mat, rect image.Rectangle) float64 {
	region := diff.Region(rect)
	defer region.Close()
	// Region views are not contiguous; copy before reading raw bytes.
	owned := region.Clone()
	defer owned.Close()

	var sum float64
	for _, d := range owned.ToBytes() {
		sum += float64(d)
	}
	maxEnergy := float64(rect.Dx() * rect.Dy() * 255 * imaging.Channels)
	if maxEnergy == 0 {
		return 0
	}
	return sum / maxEnergy * 100
}

// classifyRegion labels a region by comparing mean intensities of the two
// images inside it.
func classifyRegion(baseline, current gocv.Mat, rect image.Rectangle) string {
	baseRegion := baseline.Region(rect)
	defer baseRegion.Close()
	curRegion := current.Region(rect)
	defer curRegion.Close()

	baseMean := meanIntensity(baseRegion)
	curMean := meanIntensity(curRegion)

	switch {
	case curMean > baseMean:
		return "added"
	case curMean < baseMean:
		return "removed"
	default:
		return "changed"
	}
}

func meanIntensity(m gocv.Mat) float64 {
	mean := m.Mean()
	return (mean.Val1 + mean.Val2 + mean.Val3) / 3
}
