package matcher

import (
	"image"
	"math/rand"
	"testing"

	"visualcheck/imaging"
	"visualcheck/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// noiseMat builds a deterministic textured image; flat images have zero
// variance and degenerate correlation scores.
func noiseMat(t *testing.T, w, h int, seed int64) gocv.Mat {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	data := make([]byte, w*h*3)
	for i := range data {
		data[i] = uint8(rng.Intn(256))
	}
	m, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, data)
	require.NoError(t, err)
	return m
}

func TestFindOneLocatesCroppedTemplate(t *testing.T) {
	img := noiseMat(t, 200, 160, 1)
	defer img.Close()

	crop := image.Rect(60, 40, 90, 70)
	tmpl, err := imaging.Crop(img, crop)
	require.NoError(t, err)
	defer tmpl.Close()

	match, err := FindOne(img, tmpl, Options{})
	require.NoError(t, err)
	require.NotNil(t, match)

	assert.GreaterOrEqual(t, match.Score, 0.95)
	assert.True(t, match.Location.In(crop), "center %v outside crop footprint %v", match.Location, crop)
	assert.Equal(t, image.Point{X: 75, Y: 55}, match.Location)
}

func TestFindAllLocatesCroppedTemplate(t *testing.T) {
	img := noiseMat(t, 200, 160, 2)
	defer img.Close()

	crop := image.Rect(100, 80, 130, 110)
	tmpl, err := imaging.Crop(img, crop)
	require.NoError(t, err)
	defer tmpl.Close()

	matches, err := FindAll(img, tmpl, Options{Threshold: 0.95})
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	found := false
	for _, m := range matches {
		if m.Location.In(crop) && m.Score >= 0.95 {
			found = true
		}
	}
	assert.True(t, found, "no match inside the crop footprint")

	// Sorted by score descending.
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}
}

func TestFindAllNoMatches(t *testing.T) {
	img := noiseMat(t, 100, 100, 3)
	defer img.Close()
	tmpl := noiseMat(t, 20, 20, 4)
	defer tmpl.Close()

	matches, err := FindAll(img, tmpl, Options{Threshold: 0.99})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFindOneNoMatch(t *testing.T) {
	img := noiseMat(t, 100, 100, 5)
	defer img.Close()
	tmpl := noiseMat(t, 20, 20, 6)
	defer tmpl.Close()

	match, err := FindOne(img, tmpl, Options{Threshold: 0.99})
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestTemplateLargerThanImage(t *testing.T) {
	img := noiseMat(t, 50, 50, 7)
	defer img.Close()
	tmpl := noiseMat(t, 80, 20, 8)
	defer tmpl.Close()

	_, err := FindAll(img, tmpl, Options{})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
	_, err = FindOne(img, tmpl, Options{})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestInvalidImages(t *testing.T) {
	img := noiseMat(t, 50, 50, 9)
	defer img.Close()
	empty := gocv.NewMat()
	defer empty.Close()

	_, err := FindAll(empty, img, Options{})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
	_, err = FindOne(img, empty, Options{})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestSuppressPolicies(t *testing.T) {
	// A tight cluster of candidates around one true match plus one distant
	// candidate.
	cluster := []candidate{
		{topLeft: image.Point{X: 50, Y: 50}, score: 0.99},
		{topLeft: image.Point{X: 51, Y: 50}, score: 0.97},
		{topLeft: image.Point{X: 52, Y: 51}, score: 0.96},
		{topLeft: image.Point{X: 120, Y: 50}, score: 0.95},
	}
	const templateWidth = 30

	strict := suppress(cluster, templateWidth, Options{Policy: DedupStrictDistance, Overlap: 0.9})
	assert.Len(t, strict, 2, "cluster should collapse to one point plus the distant one")
	assert.Contains(t, strict, image.Point{X: 50, Y: 50})
	assert.Contains(t, strict, image.Point{X: 120, Y: 50})

	// The caller-override policy keeps everything once overlap > 0.5.
	permissive := suppress(cluster, templateWidth, Options{Policy: DedupCallerOverride, Overlap: 0.9})
	assert.Len(t, permissive, 4)

	// At the default overlap of 0.5 both policies behave the same.
	defaults := suppress(cluster, templateWidth, Options{Policy: DedupCallerOverride, Overlap: 0.5})
	assert.Equal(t, strict, defaults)
}
