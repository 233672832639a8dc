// Package imaging holds shared helpers for validating, loading, saving and
// cropping the BGR matrices the engine works on.
package imaging

import (
	"fmt"
	"image"
	"os"

	"visualcheck/types"

	"gocv.io/x/gocv"
)

// Channels is the only sample layout the engine accepts: 3-channel BGR.
const Channels = 3

// Validate checks that a matrix is a usable 3-channel image.
func Validate(img gocv.Mat) error {
	if img.Empty() || img.Rows() == 0 || img.Cols() == 0 {
		return fmt.Errorf("%w: empty or zero-size image", types.ErrInvalidArgument)
	}
	if img.Channels() != Channels {
		return fmt.Errorf("%w: expected %d channels, got %d", types.ErrInvalidArgument, Channels, img.Channels())
	}
	return nil
}

// SameShape reports whether two images agree in width, height and channels.
func SameShape(a, b gocv.Mat) bool {
	return a.Rows() == b.Rows() && a.Cols() == b.Cols() && a.Channels() == b.Channels()
}

// Crop returns an owned copy of the given rectangle of img.
func Crop(img gocv.Mat, rect image.Rectangle) (gocv.Mat, error) {
	bounds := image.Rect(0, 0, img.Cols(), img.Rows())
	if rect.Empty() || !rect.In(bounds) {
		return gocv.NewMat(), fmt.Errorf("%w: roi %v outside image bounds %v", types.ErrInvalidArgument, rect, bounds)
	}

	region := img.Region(rect)
	defer region.Close()
	return region.Clone(), nil
}

// ToGray converts a BGR image to single-channel grayscale.
func ToGray(img gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	return gray
}

// Load reads an image from disk in color mode.
func Load(path string) (gocv.Mat, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return gocv.NewMat(), fmt.Errorf("%w: %s", types.ErrNotFound, path)
		}
		return gocv.NewMat(), fmt.Errorf("%w: cannot stat %s: %v", types.ErrIO, path, err)
	}

	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		return img, fmt.Errorf("%w: %s", types.ErrDecode, path)
	}
	return img, nil
}

// Save writes an image to disk. The encoded bytes go to a temporary file in
// the same directory first and are renamed into place, so readers never see
// a partially written file.
func Save(path string, img gocv.Mat) error {
	if err := Validate(img); err != nil {
		return err
	}

	tmp := fmt.Sprintf("%s.tmp-%d.png", path, os.Getpid())
	if ok := gocv.IMWrite(tmp, img); !ok {
		os.Remove(tmp)
		return fmt.Errorf("%w: cannot encode %s", types.ErrIO, path)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: cannot rename %s into place: %v", types.ErrIO, path, err)
	}
	return nil
}
