package baseline

import (
	"os"
	"path/filepath"
	"testing"

	"visualcheck/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func solidMat(t *testing.T, w, h int, b, g, r uint8) gocv.Mat {
	t.Helper()
	data := make([]byte, w*h*3)
	for i := 0; i < len(data); i += 3 {
		data[i] = b
		data[i+1] = g
		data[i+2] = r
	}
	m, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC3, data)
	require.NoError(t, err)
	return m
}

func TestCaptureReadRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	img := solidMat(t, 100, 100, 0, 0, 0)
	defer img.Close()
	require.NoError(t, store.Capture("test.png", img))

	got, err := store.Read("test.png")
	require.NoError(t, err)
	defer got.Close()
	assert.Equal(t, img.ToBytes(), got.ToBytes())
}

func TestNameNormalizationSymmetric(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	img := solidMat(t, 10, 10, 1, 2, 3)
	defer img.Close()

	// Captured without suffix, readable with and without it.
	require.NoError(t, store.Capture("button", img))
	assert.FileExists(t, filepath.Join(store.Dir(), "button.png"))

	bare, err := store.Read("button")
	require.NoError(t, err)
	bare.Close()

	suffixed, err := store.Read("button.png")
	require.NoError(t, err)
	suffixed.Close()
}

func TestCaptureInvalidInputs(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	img := solidMat(t, 10, 10, 0, 0, 0)
	defer img.Close()
	assert.ErrorIs(t, store.Capture("", img), types.ErrInvalidArgument)

	empty := gocv.NewMat()
	defer empty.Close()
	assert.ErrorIs(t, store.Capture("x", empty), types.ErrInvalidArgument)
}

func TestReadMissingBaseline(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Read("absent")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestReadUndecodableBaseline(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.png"), []byte("garbage"), 0644))
	_, err = store.Read("bad")
	assert.ErrorIs(t, err, types.ErrDecode)
}

func TestCacheServesUntilInvalidated(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	img := solidMat(t, 10, 10, 0, 0, 0)
	defer img.Close()
	require.NoError(t, store.Capture("cached", img))

	// Removing the file does not disturb cached reads.
	require.NoError(t, os.Remove(filepath.Join(dir, "cached.png")))
	got, err := store.Read("cached")
	require.NoError(t, err)
	got.Close()

	// Invalidation forces the next read back to disk.
	store.Invalidate("cached")
	_, err = store.Read("cached")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestCaptureOverwritesSilently(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	first := solidMat(t, 10, 10, 0, 0, 0)
	defer first.Close()
	second := solidMat(t, 10, 10, 255, 255, 255)
	defer second.Close()

	require.NoError(t, store.Capture("same", first))
	require.NoError(t, store.Capture("same", second))

	got, err := store.Read("same")
	require.NoError(t, err)
	defer got.Close()
	assert.Equal(t, second.ToBytes(), got.ToBytes())
}

type recordingIndex struct {
	names        []string
	fingerprints []string
}

func (r *recordingIndex) RecordBaseline(name string, width, height int, fingerprint string) error {
	r.names = append(r.names, name)
	r.fingerprints = append(r.fingerprints, fingerprint)
	return nil
}

func TestCaptureRecordsIndex(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	index := &recordingIndex{}
	store.AttachIndex(index)

	img := solidMat(t, 10, 10, 4, 5, 6)
	defer img.Close()
	require.NoError(t, store.Capture("indexed", img))
	assert.Equal(t, []string{"indexed.png"}, index.names)
}

func TestCaptureIndexHonorsHashSize(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	index := &recordingIndex{}
	store.AttachIndex(index)

	assert.ErrorIs(t, store.SetHashSize(0), types.ErrInvalidArgument)
	require.NoError(t, store.SetHashSize(4))

	img := solidMat(t, 32, 32, 9, 9, 9)
	defer img.Close()
	require.NoError(t, store.Capture("small-hash", img))

	// A 4x4 fingerprint renders as 16 bit digits.
	require.Len(t, index.fingerprints, 1)
	assert.Len(t, index.fingerprints[0], 16)
}
