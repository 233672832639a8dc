// Package matcher locates occurrences of a template image inside a larger
// image using normalized cross-correlation, then suppresses near-duplicate
// detections clustered around the same true match.
package matcher

import (
	"fmt"
	"image"
	"math"
	"sort"

	"visualcheck/imaging"
	"visualcheck/types"

	"gocv.io/x/gocv"
)

// DefaultThreshold is the minimum correlation score kept by a search.
const DefaultThreshold = 0.8

// DedupPolicy selects how near-duplicate detections are suppressed.
type DedupPolicy int

const (
	// DedupCallerOverride keeps a candidate when it is far enough from the
	// previously kept point OR when the caller's overlap parameter exceeds
	// 0.5. The second clause disables suppression for high overlap values;
	// it reproduces long-standing behavior that downstream suites depend
	// on, so it is the default.
	DedupCallerOverride DedupPolicy = iota

	// DedupStrictDistance applies the distance clause only.
	DedupStrictDistance
)

// Options tunes a template search. The zero value gets the default
// threshold, an overlap of 0.5 and the caller-override dedup policy.
type Options struct {
	Threshold float64
	Overlap   float64
	Policy    DedupPolicy
}

func (o Options) withDefaults() Options {
	if o.Threshold == 0 {
		o.Threshold = DefaultThreshold
	}
	if o.Overlap == 0 {
		o.Overlap = 0.5
	}
	return o
}

type candidate struct {
	topLeft image.Point
	score   float64
}

// FindAll returns every template occurrence scoring at least the threshold,
// deduplicated and sorted by score descending. Locations are the centers of
// the template footprint.
func FindAll(img, tmpl gocv.Mat, opts Options) ([]types.TemplateMatch, error) {
	opts = opts.withDefaults()

	result, err := correlate(img, tmpl)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	var candidates []candidate
	for y := 0; y < result.Rows(); y++ {
		for x := 0; x < result.Cols(); x++ {
			score := float64(result.GetFloatAt(y, x))
			if score >= opts.Threshold {
				candidates = append(candidates, candidate{topLeft: image.Point{X: x, Y: y}, score: score})
			}
		}
	}
	if len(candidates) == 0 {
		return []types.TemplateMatch{}, nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	kept := suppress(candidates, tmpl.Cols(), opts)

	w, h := tmpl.Cols(), tmpl.Rows()
	matches := make([]types.TemplateMatch, 0, len(kept))
	for _, c := range candidates {
		if _, ok := kept[c.topLeft]; !ok {
			continue
		}
		matches = append(matches, types.TemplateMatch{
			Location: image.Point{X: c.topLeft.X + w/2, Y: c.topLeft.Y + h/2},
			Score:    c.score,
		})
	}
	return matches, nil
}

// FindOne returns the single best occurrence scoring at least the threshold,
// or nil when nothing matches. The location is the template-footprint
// center.
func FindOne(img, tmpl gocv.Mat, opts Options) (*types.TemplateMatch, error) {
	opts = opts.withDefaults()

	result, err := correlate(img, tmpl)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	_, maxVal, _, maxLoc := gocv.MinMaxLoc(result)
	if float64(maxVal) < opts.Threshold {
		return nil, nil
	}
	return &types.TemplateMatch{
		Location: image.Point{X: maxLoc.X + tmpl.Cols()/2, Y: maxLoc.Y + tmpl.Rows()/2},
		Score:    float64(maxVal),
	}, nil
}

// correlate validates both inputs and runs normalized cross-correlation of
// the template over the image, returning the score map.
func correlate(img, tmpl gocv.Mat) (gocv.Mat, error) {
	if err := imaging.Validate(img); err != nil {
		return gocv.NewMat(), fmt.Errorf("search image: %w", err)
	}
	if err := imaging.Validate(tmpl); err != nil {
		return gocv.NewMat(), fmt.Errorf("template image: %w", err)
	}
	if tmpl.Cols() > img.Cols() || tmpl.Rows() > img.Rows() {
		return gocv.NewMat(), fmt.Errorf("%w: template %dx%d larger than image %dx%d",
			types.ErrInvalidArgument, tmpl.Cols(), tmpl.Rows(), img.Cols(), img.Rows())
	}

	grayImg := prepare(img)
	defer grayImg.Close()
	grayTmpl := prepare(tmpl)
	defer grayTmpl.Close()

	result := gocv.NewMat()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.MatchTemplate(grayImg, grayTmpl, &result, gocv.TmCcoeffNormed, mask)
	return result, nil
}

// prepare converts an image to min-max-normalized grayscale, which makes
// correlation scores robust to global brightness offsets.
func prepare(img gocv.Mat) gocv.Mat {
	gray := imaging.ToGray(img)
	defer gray.Close()

	grayF := gocv.NewMat()
	defer grayF.Close()
	gray.ConvertTo(&grayF, gocv.MatTypeCV32F)

	normalized := gocv.NewMat()
	defer normalized.Close()
	gocv.Normalize(grayF, &normalized, 0, 255, gocv.NormMinMax)

	out := gocv.NewMat()
	normalized.ConvertTo(&out, gocv.MatTypeCV8U)
	return out
}

// suppress runs the deduplication pass over candidate top-left points and
// returns the set of points to keep. Candidates are walked in x order; the
// first is always kept, and each later point survives only if it is farther
// than half the template width from the last kept point, or if the
// caller-override policy is active and the overlap parameter exceeds 0.5.
func suppress(candidates []candidate, templateWidth int, opts Options) map[image.Point]struct{} {
	points := make([]image.Point, len(candidates))
	for i, c := range candidates {
		points[i] = c.topLeft
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].X != points[j].X {
			return points[i].X < points[j].X
		}
		return points[i].Y < points[j].Y
	})

	kept := make(map[image.Point]struct{})
	last := points[0]
	kept[last] = struct{}{}

	minDist := float64(templateWidth) * 0.5
	for _, pt := range points[1:] {
		dx := float64(pt.X - last.X)
		dy := float64(pt.Y - last.Y)
		far := math.Sqrt(dx*dx+dy*dy) > minDist

		keep := far
		if opts.Policy == DedupCallerOverride && opts.Overlap > 0.5 {
			keep = true
		}
		if keep {
			kept[pt] = struct{}{}
			last = pt
		}
	}
	return kept
}
