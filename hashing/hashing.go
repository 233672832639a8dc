// Package hashing derives gradient-sign fingerprints from images and checks
// them against stored baselines. The fingerprint is a difference hash: each
// bit records whether a pixel's right neighbor is brighter than the pixel
// itself in a reduced-resolution grayscale rendering.
package hashing

import (
	"fmt"
	"image"
	"strings"

	"visualcheck/imaging"
	"visualcheck/types"

	"gocv.io/x/gocv"
)

// DefaultHashSize is the fingerprint edge length: 8 gives 64 bits.
const DefaultHashSize = 8

// Fingerprint is a hashSize x hashSize bit matrix.
type Fingerprint struct {
	size int
	bits []bool
}

// Size returns the fingerprint edge length.
func (f Fingerprint) Size() int {
	return f.size
}

// Bit returns the bit at the given row and column.
func (f Fingerprint) Bit(row, col int) bool {
	return f.bits[row*f.size+col]
}

// Equal reports bit-for-bit equality.
func (f Fingerprint) Equal(other Fingerprint) bool {
	if f.size != other.size {
		return false
	}
	for i := range f.bits {
		if f.bits[i] != other.bits[i] {
			return false
		}
	}
	return true
}

// Distance returns the Hamming distance between two fingerprints. Size
// mismatches count every bit of the larger fingerprint as differing.
func (f Fingerprint) Distance(other Fingerprint) int {
	if f.size != other.size {
		if len(f.bits) > len(other.bits) {
			return len(f.bits)
		}
		return len(other.bits)
	}
	distance := 0
	for i := range f.bits {
		if f.bits[i] != other.bits[i] {
			distance++
		}
	}
	return distance
}

// String renders the fingerprint as a row-major string of '0' and '1'
// digits, suitable for storing in the baseline index.
func (f Fingerprint) String() string {
	var sb strings.Builder
	for _, b := range f.bits {
		if b {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// CalculateFingerprint computes the difference hash of an image. The image
// is converted to grayscale and downscaled to (hashSize+1) x hashSize
// samples, then bit [row][col] is set iff the sample to the right of
// [row][col] is brighter.
func CalculateFingerprint(img gocv.Mat, hashSize int) (Fingerprint, error) {
	if err := imaging.Validate(img); err != nil {
		return Fingerprint{}, err
	}
	if hashSize < 1 {
		return Fingerprint{}, fmt.Errorf("%w: hash size must be positive, got %d", types.ErrInvalidArgument, hashSize)
	}

	gray := imaging.ToGray(img)
	defer gray.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(gray, &resized, image.Point{X: hashSize + 1, Y: hashSize}, 0, 0, gocv.InterpolationArea)

	fp := Fingerprint{size: hashSize, bits: make([]bool, hashSize*hashSize)}
	for row := 0; row < hashSize; row++ {
		for col := 0; col < hashSize; col++ {
			fp.bits[row*hashSize+col] = resized.GetUCharAt(row, col+1) > resized.GetUCharAt(row, col)
		}
	}
	return fp, nil
}

// Reader supplies baseline images by name. Satisfied by *baseline.Store.
type Reader interface {
	Read(name string) (gocv.Mat, error)
}

// Verify reads the named baseline and reports whether its fingerprint is
// bit-for-bit identical to the current image's. Store errors propagate.
func Verify(name string, current gocv.Mat, store Reader) (bool, error) {
	return VerifyWithTolerance(name, current, store, DefaultHashSize, 0)
}

// VerifyWithTolerance is Verify with an explicit fingerprint edge length and
// an allowed Hamming distance. Zero tolerance preserves the exact-equality
// behavior; small positive values absorb rendering noise such as
// anti-aliasing.
func VerifyWithTolerance(name string, current gocv.Mat, store Reader, hashSize, maxDistance int) (bool, error) {
	if err := imaging.Validate(current); err != nil {
		return false, err
	}
	if maxDistance < 0 {
		return false, fmt.Errorf("%w: tolerance cannot be negative, got %d", types.ErrInvalidArgument, maxDistance)
	}

	base, err := store.Read(name)
	if err != nil {
		return false, err
	}
	defer base.Close()

	currentFP, err := CalculateFingerprint(current, hashSize)
	if err != nil {
		return false, err
	}
	baseFP, err := CalculateFingerprint(base, hashSize)
	if err != nil {
		return false, err
	}
	return currentFP.Distance(baseFP) <= maxDistance, nil
}
