package capture

import (
	"image"
	"image/color"
	"testing"

	"visualcheck/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRGBANil(t *testing.T) {
	_, err := FromRGBA(nil)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestFromRGBAEmpty(t *testing.T) {
	_, err := FromRGBA(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestFromRGBAChannelOrder(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 2, 1))
	frame.SetRGBA(0, 0, color.RGBA{R: 255, G: 0, B: 0, A: 255})
	frame.SetRGBA(1, 0, color.RGBA{R: 0, G: 128, B: 64, A: 255})

	mat, err := FromRGBA(frame)
	require.NoError(t, err)
	defer mat.Close()

	assert.Equal(t, 1, mat.Rows())
	assert.Equal(t, 2, mat.Cols())

	// Output layout is BGR.
	data := mat.ToBytes()
	assert.Equal(t, []byte{0, 0, 255, 64, 128, 0}, data)
}

func TestFromRGBASubImage(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			frame.SetRGBA(x, y, color.RGBA{R: uint8(x * 20), G: uint8(y * 20), B: 7, A: 255})
		}
	}

	sub := frame.SubImage(image.Rect(3, 4, 8, 9)).(*image.RGBA)
	mat, err := FromRGBA(sub)
	require.NoError(t, err)
	defer mat.Close()

	assert.Equal(t, 5, mat.Rows())
	assert.Equal(t, 5, mat.Cols())

	// First pixel of the sub-image is frame (3,4): B=7, G=80, R=60.
	data := mat.ToBytes()
	assert.Equal(t, []byte{7, 80, 60}, data[:3])
}

func TestCaptureRegionRejectsBadSize(t *testing.T) {
	p := NewScreenProvider()
	_, err := p.CaptureRegion(0, 0, -5, 10)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
	_, err = p.CaptureRegion(0, 0, 10, 0)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}
