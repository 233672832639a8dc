package hashing

import (
	"fmt"
	"strings"
	"testing"

	"visualcheck/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// gradientMat builds a horizontal brightness ramp so every dHash bit is set.
func gradientMat(t *testing.T, w, h int) gocv.Mat {
	t.Helper()
	data := make([]byte, w*h*3)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			v := uint8(col * 255 / (w - 1))
			idx := (row*w + col) * 3
			data[idx] = v
			data[idx+1] = v
			data[idx+2] = v
		}
	}
	m, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, data)
	require.NoError(t, err)
	return m
}

func solidMat(t *testing.T, w, h int, value uint8) gocv.Mat {
	t.Helper()
	data := make([]byte, w*h*3)
	for i := range data {
		data[i] = value
	}
	m, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, data)
	require.NoError(t, err)
	return m
}

func TestFingerprintDeterministic(t *testing.T) {
	img := gradientMat(t, 64, 64)
	defer img.Close()

	first, err := CalculateFingerprint(img, DefaultHashSize)
	require.NoError(t, err)
	second, err := CalculateFingerprint(img, DefaultHashSize)
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
	assert.Equal(t, first.String(), second.String())
	assert.Zero(t, first.Distance(second))
}

func TestFingerprintGradientBits(t *testing.T) {
	img := gradientMat(t, 90, 64)
	defer img.Close()

	fp, err := CalculateFingerprint(img, DefaultHashSize)
	require.NoError(t, err)

	// Brightness strictly increases left to right, so every bit is set.
	assert.Equal(t, strings.Repeat("1", 64), fp.String())

	flat := solidMat(t, 90, 64, 128)
	defer flat.Close()
	flatFP, err := CalculateFingerprint(flat, DefaultHashSize)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("0", 64), flatFP.String())

	assert.Equal(t, 64, fp.Distance(flatFP))
	assert.False(t, fp.Equal(flatFP))
}

func TestFingerprintInvalidInputs(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()
	_, err := CalculateFingerprint(empty, DefaultHashSize)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)

	img := gradientMat(t, 32, 32)
	defer img.Close()
	_, err = CalculateFingerprint(img, 0)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

// fakeStore returns a fixed image for any name.
type fakeStore struct {
	img gocv.Mat
	err error
}

func (f *fakeStore) Read(name string) (gocv.Mat, error) {
	if f.err != nil {
		return gocv.NewMat(), f.err
	}
	return f.img.Clone(), nil
}

func TestVerifyExactMatch(t *testing.T) {
	img := gradientMat(t, 64, 64)
	defer img.Close()

	store := &fakeStore{img: img}
	ok, err := Verify("grad", img, store)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyMismatchAndTolerance(t *testing.T) {
	grad := gradientMat(t, 64, 64)
	defer grad.Close()
	flat := solidMat(t, 64, 64, 128)
	defer flat.Close()

	store := &fakeStore{img: flat}
	ok, err := Verify("flat", grad, store)
	require.NoError(t, err)
	assert.False(t, ok)

	// At full tolerance even opposite fingerprints pass.
	ok, err = VerifyWithTolerance("flat", grad, store, DefaultHashSize, 64)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = VerifyWithTolerance("flat", grad, store, DefaultHashSize, -1)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestVerifyCustomHashSize(t *testing.T) {
	grad := gradientMat(t, 64, 64)
	defer grad.Close()
	flat := solidMat(t, 64, 64, 128)
	defer flat.Close()

	store := &fakeStore{img: flat}

	// A 4x4 fingerprint has 16 bits, so the gradient-vs-flat distance is 16
	// and tolerance 16 absorbs it where 15 does not.
	ok, err := VerifyWithTolerance("flat", grad, store, 4, 16)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyWithTolerance("flat", grad, store, 4, 15)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifyWithTolerance("flat", grad, store, 0, 0)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestVerifyPropagatesStoreErrors(t *testing.T) {
	img := gradientMat(t, 64, 64)
	defer img.Close()

	store := &fakeStore{err: fmt.Errorf("%w: missing", types.ErrNotFound)}
	_, err := Verify("absent", img, store)
	assert.ErrorIs(t, err, types.ErrNotFound)
}
