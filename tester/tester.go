// Package tester composes the baseline store, comparator, hasher and
// reporter behind the high-level operations a test suite calls.
package tester

import (
	"fmt"
	"path/filepath"
	"strings"

	"visualcheck/baseline"
	"visualcheck/capture"
	"visualcheck/comparator"
	"visualcheck/hashing"
	"visualcheck/logging"
	"visualcheck/report"
	"visualcheck/types"

	"gocv.io/x/gocv"
)

// VisualTester drives visual regression checks for one baseline directory.
type VisualTester struct {
	store         *baseline.Store
	cmp           *comparator.Comparator
	provider      capture.ScreenProvider
	hashSize      int
	hashTolerance int
}

// New returns a tester. The provider may be nil when live captures are not
// needed (e.g. comparing pre-captured files).
func New(store *baseline.Store, cmp *comparator.Comparator, provider capture.ScreenProvider) *VisualTester {
	return &VisualTester{store: store, cmp: cmp, provider: provider, hashSize: hashing.DefaultHashSize}
}

// SetHashSize sets the fingerprint edge length used by VerifyHash.
func (t *VisualTester) SetHashSize(size int) error {
	if size < 1 {
		return fmt.Errorf("%w: hash size must be positive, got %d", types.ErrInvalidArgument, size)
	}
	t.hashSize = size
	return nil
}

// SetHashTolerance sets the Hamming distance allowed by VerifyHash.
func (t *VisualTester) SetHashTolerance(tolerance int) error {
	if tolerance < 0 {
		return fmt.Errorf("%w: tolerance cannot be negative, got %d", types.ErrInvalidArgument, tolerance)
	}
	t.hashTolerance = tolerance
	return nil
}

// CaptureBaseline grabs the full screen and stores it under name.
func (t *VisualTester) CaptureBaseline(name string) error {
	if t.provider == nil {
		return fmt.Errorf("%w: no screen provider configured", types.ErrInvalidArgument)
	}
	img, err := t.provider.CaptureFullScreen()
	if err != nil {
		return err
	}
	defer img.Close()
	return t.store.Capture(name, img)
}

// CaptureRegionBaseline grabs a screen region and stores it under name.
func (t *VisualTester) CaptureRegionBaseline(name string, x, y, w, h int) error {
	if t.provider == nil {
		return fmt.Errorf("%w: no screen provider configured", types.ErrInvalidArgument)
	}
	img, err := t.provider.CaptureRegion(x, y, w, h)
	if err != nil {
		return err
	}
	defer img.Close()
	return t.store.Capture(name, img)
}

// CompareWithBaseline compares a current image against the named baseline.
func (t *VisualTester) CompareWithBaseline(name string, current gocv.Mat, opts comparator.Options) (types.ComparisonResult, error) {
	base, err := t.store.Read(name)
	if err != nil {
		return types.ComparisonResult{}, err
	}
	defer base.Close()

	result, err := t.cmp.Compare(current, base, opts)
	if err != nil {
		return result, fmt.Errorf("baseline %q: %w", name, err)
	}
	logging.LogComparison(name, result.Match, result.Similarity, len(result.Differences))
	return result, nil
}

// VerifyHash checks the current image's perceptual fingerprint against the
// named baseline's, within the configured Hamming tolerance.
func (t *VisualTester) VerifyHash(name string, current gocv.Mat) (bool, error) {
	return hashing.VerifyWithTolerance(name, current, t.store, t.hashSize, t.hashTolerance)
}

// GenerateReport extracts classified differences between the named baseline
// and current, then writes the HTML report and a contour overlay image into
// outputDir.
func (t *VisualTester) GenerateReport(name string, current gocv.Mat, outputDir string) error {
	base, err := t.store.Read(name)
	if err != nil {
		return err
	}
	defer base.Close()

	differences, err := t.cmp.FindVisualDifferences(base, current)
	if err != nil {
		return fmt.Errorf("baseline %q: %w", name, err)
	}
	if err := report.Generate(differences, reportName(name), outputDir); err != nil {
		return err
	}
	overlayPath := filepath.Join(outputDir, reportName(name)+"_diff.png")
	return report.SaveOverlay(base, current, overlayPath)
}

func reportName(name string) string {
	return strings.TrimSuffix(name, ".png")
}
