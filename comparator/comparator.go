// Package comparator scores the similarity of two images and extracts the
// regions where they structurally differ.
package comparator

import (
	"fmt"
	"image"
	"math"
	"sync"

	"visualcheck/imaging"
	"visualcheck/types"

	"gocv.io/x/gocv"
)

const (
	// DiffIntensityThreshold is the default grayscale intensity above which
	// a difference pixel counts toward a structural difference.
	DiffIntensityThreshold = 30

	// MinDiffArea is the default smallest component pixel count that still
	// counts as a significant difference region.
	MinDiffArea = 25

	// DefaultSimilarityThreshold is the match threshold used when the
	// caller configures nothing else.
	DefaultSimilarityThreshold = 0.95
)

// Options tunes a single comparison. Threshold overrides the comparator's
// default for this call only, so concurrent comparisons never observe each
// other's threshold changes.
type Options struct {
	Resize    bool
	ROI       *image.Rectangle
	Threshold *float64
}

// Comparator compares images against a configurable similarity threshold.
// Safe for concurrent use.
type Comparator struct {
	mu            sync.RWMutex
	threshold     float64
	diffThreshold int
	minArea       int
}

// New returns a comparator with the given default similarity threshold.
func New(threshold float64) (*Comparator, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold must be in [0,1], got %v", types.ErrInvalidArgument, threshold)
	}
	return &Comparator{
		threshold:     threshold,
		diffThreshold: DiffIntensityThreshold,
		minArea:       MinDiffArea,
	}, nil
}

// SetDiffParams replaces the difference binarization intensity and the
// minimum significant-region pixel count. Takes effect for all subsequent
// comparisons.
func (c *Comparator) SetDiffParams(intensity, minArea int) error {
	if intensity < 0 || intensity > 255 {
		return fmt.Errorf("%w: diff intensity must be in [0,255], got %d", types.ErrInvalidArgument, intensity)
	}
	if minArea < 1 {
		return fmt.Errorf("%w: minimum region area must be positive, got %d", types.ErrInvalidArgument, minArea)
	}
	c.mu.Lock()
	c.diffThreshold = intensity
	c.minArea = minArea
	c.mu.Unlock()
	return nil
}

func (c *Comparator) diffParams() (intensity, minArea int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.diffThreshold, c.minArea
}

// SetSimilarityThreshold replaces the default threshold. Takes effect for
// all subsequent comparisons.
func (c *Comparator) SetSimilarityThreshold(threshold float64) error {
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("%w: threshold must be in [0,1], got %v", types.ErrInvalidArgument, threshold)
	}
	c.mu.Lock()
	c.threshold = threshold
	c.mu.Unlock()
	return nil
}

// SimilarityThreshold returns the current default threshold.
func (c *Comparator) SimilarityThreshold() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.threshold
}

// Compare computes the similarity score, difference regions and highlighted
// diff image for current vs baseline. An ROI is cropped from both images
// before the shape check, so two differently shaped images compare cleanly
// as long as the ROI fits inside both. The caller must Close
// result.DiffImage.
func (c *Comparator) Compare(current, baseline gocv.Mat, opts Options) (types.ComparisonResult, error) {
	var result types.ComparisonResult

	if err := imaging.Validate(current); err != nil {
		return result, fmt.Errorf("current image: %w", err)
	}
	if err := imaging.Validate(baseline); err != nil {
		return result, fmt.Errorf("baseline image: %w", err)
	}

	threshold := c.SimilarityThreshold()
	if opts.Threshold != nil {
		if *opts.Threshold < 0 || *opts.Threshold > 1 {
			return result, fmt.Errorf("%w: threshold must be in [0,1], got %v", types.ErrInvalidArgument, *opts.Threshold)
		}
		threshold = *opts.Threshold
	}

	cur := current
	base := baseline
	var owned []gocv.Mat
	defer func() {
		for i := range owned {
			owned[i].Close()
		}
	}()

	if opts.ROI != nil {
		croppedCur, err := imaging.Crop(cur, *opts.ROI)
		if err != nil {
			return result, err
		}
		owned = append(owned, croppedCur)
		croppedBase, err := imaging.Crop(base, *opts.ROI)
		if err != nil {
			return result, err
		}
		owned = append(owned, croppedBase)
		cur, base = croppedCur, croppedBase
	}

	if !imaging.SameShape(cur, base) {
		if !opts.Resize {
			return result, fmt.Errorf("%w: current %dx%d vs baseline %dx%d",
				types.ErrShapeMismatch, cur.Cols(), cur.Rows(), base.Cols(), base.Rows())
		}
		resized := gocv.NewMat()
		gocv.Resize(base, &resized, image.Point{X: cur.Cols(), Y: cur.Rows()}, 0, 0, gocv.InterpolationLinear)
		owned = append(owned, resized)
		base = resized
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(cur, base, &diff)

	intensity, minArea := c.diffParams()
	diffBytes := diff.ToBytes()
	result.Similarity = similarityFromDiff(diffBytes)
	regions, err := extractRegions(diff, intensity, minArea)
	if err != nil {
		return result, err
	}
	result.Differences = regions
	result.DiffImage = highlightDiff(cur, diffBytes, intensity)
	result.Match = evaluateMatch(result.Similarity, len(regions), threshold)

	return result, nil
}

// similarityFromDiff converts the per-sample absolute differences into a
// [0,1] score: 1 - RMSE/255. RMSE over byte differences never exceeds 255,
// so the score is never negative.
func similarityFromDiff(diffBytes []byte) float64 {
	if len(diffBytes) == 0 {
		return 1.0
	}
	var sum float64
	for _, d := range diffBytes {
		sum += float64(d) * float64(d)
	}
	rmse := math.Sqrt(sum / float64(len(diffBytes)))
	return 1.0 - rmse/255.0
}

// extractRegions thresholds the grayscale difference and collects connected
// components large enough to matter.
func extractRegions(diff gocv.Mat, intensity, minArea int) ([]types.DifferenceRegion, error) {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(diff, &gray, gocv.ColorBGRToGray)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(gray, &mask, float32(intensity), 255, gocv.ThresholdBinary)

	labels := gocv.NewMat()
	stats := gocv.NewMat()
	centroids := gocv.NewMat()
	defer labels.Close()
	defer stats.Close()
	defer centroids.Close()

	// Label 0 is the background.
	count := gocv.ConnectedComponentsWithStats(mask, &labels, &stats, &centroids)

	regions := []types.DifferenceRegion{}
	for i := 1; i < count; i++ {
		area := int(stats.GetIntAt(i, int(gocv.CCStatArea)))
		if area < minArea {
			continue
		}
		regions = append(regions, types.DifferenceRegion{
			Location: image.Point{
				X: int(stats.GetIntAt(i, int(gocv.CCStatLeft))),
				Y: int(stats.GetIntAt(i, int(gocv.CCStatTop))),
			},
			Size: image.Point{
				X: int(stats.GetIntAt(i, int(gocv.CCStatWidth))),
				Y: int(stats.GetIntAt(i, int(gocv.CCStatHeight))),
			},
			Area: area,
		})
	}
	return regions, nil
}

// highlightDiff returns a copy of current with every pixel whose absolute
// difference exceeds the intensity threshold in any channel recolored red.
func highlightDiff(current gocv.Mat, diffBytes []byte, intensity int) gocv.Mat {
	out := current.Clone()
	data, err := out.DataPtrUint8()
	if err != nil {
		return out
	}

	limit := uint8(intensity)
	for p := 0; p+2 < len(diffBytes); p += imaging.Channels {
		if diffBytes[p] > limit ||
			diffBytes[p+1] > limit ||
			diffBytes[p+2] > limit {
			data[p] = 0
			data[p+1] = 0
			data[p+2] = 255
		}
	}
	return out
}

// evaluateMatch applies the tiered match policy. The stricter the threshold,
// the fewer difference regions a match tolerates.
func evaluateMatch(similarity float64, regions int, threshold float64) bool {
	switch {
	case threshold >= 0.9:
		return similarity >= threshold && regions == 0
	case threshold >= 0.7:
		return similarity >= threshold && regions <= 2
	default:
		return similarity >= threshold && regions <= 5
	}
}
