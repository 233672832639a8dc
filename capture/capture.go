// Package capture defines the screenshot-provider capability the engine
// consumes and ships a default implementation backed by the screenshot
// library. Core packages never call OS APIs themselves; they only accept a
// ScreenProvider.
package capture

import (
	"fmt"
	"image"

	"visualcheck/types"

	"github.com/vova616/screenshot"
	"gocv.io/x/gocv"
	xdraw "golang.org/x/image/draw"
)

// ScreenProvider supplies freshly captured screen content as BGR matrices.
type ScreenProvider interface {
	CaptureFullScreen() (gocv.Mat, error)
	CaptureRegion(x, y, w, h int) (gocv.Mat, error)
}

type screenshotProvider struct{}

// NewScreenProvider returns a provider that captures the active display.
func NewScreenProvider() ScreenProvider {
	return &screenshotProvider{}
}

func (p *screenshotProvider) CaptureFullScreen() (gocv.Mat, error) {
	img, err := screenshot.CaptureScreen()
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: screen capture failed: %v", types.ErrIO, err)
	}
	return FromRGBA(img)
}

func (p *screenshotProvider) CaptureRegion(x, y, w, h int) (gocv.Mat, error) {
	if w <= 0 || h <= 0 {
		return gocv.NewMat(), fmt.Errorf("%w: capture region must have positive size, got %dx%d", types.ErrInvalidArgument, w, h)
	}
	img, err := screenshot.CaptureRect(image.Rect(x, y, x+w, y+h))
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: region capture failed: %v", types.ErrIO, err)
	}
	return FromRGBA(img)
}

// FromRGBA converts a captured RGBA frame to the 3-channel BGR layout the
// engine works on.
func FromRGBA(img *image.RGBA) (gocv.Mat, error) {
	if img == nil {
		return gocv.NewMat(), fmt.Errorf("%w: nil capture frame", types.ErrInvalidArgument)
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return gocv.NewMat(), fmt.Errorf("%w: empty capture frame", types.ErrInvalidArgument)
	}

	// Captures can arrive as sub-images with a nonzero origin or padded
	// stride; redraw into a tightly packed frame first.
	if bounds.Min != (image.Point{}) || img.Stride != 4*w {
		packed := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.Draw(packed, packed.Bounds(), img, bounds.Min, xdraw.Src)
		img = packed
	}

	data := make([]byte, w*h*3)
	for i, j := 0, 0; i < len(img.Pix); i, j = i+4, j+3 {
		data[j] = img.Pix[i+2]
		data[j+1] = img.Pix[i+1]
		data[j+2] = img.Pix[i]
	}

	mat, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, data)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: cannot build matrix from capture: %v", types.ErrInvalidArgument, err)
	}
	return mat, nil
}
