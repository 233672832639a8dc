// Package baseline persists and retrieves named reference images under a
// baseline directory, with a read-through in-memory cache.
package baseline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"visualcheck/hashing"
	"visualcheck/imaging"
	"visualcheck/logging"
	"visualcheck/types"

	"gocv.io/x/gocv"
)

// suffix is the canonical extension for stored baselines. Baselines are kept
// in a lossless format so a capture/read round trip is pixel-identical.
const suffix = ".png"

// Recorder receives baseline metadata for indexing. Implemented by the
// database package; a nil Recorder disables indexing.
type Recorder interface {
	RecordBaseline(name string, width, height int, fingerprint string) error
}

// Store owns the baseline directory and its cache. Safe for concurrent use.
type Store struct {
	dir      string
	cache    Cache
	index    Recorder
	hashSize int
}

// NewStore creates the baseline directory if needed and returns a store with
// the default unbounded cache.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithCache(dir, NewMapCache())
}

// NewStoreWithCache is like NewStore but lets callers supply a bounded or
// no-op Cache implementation.
func NewStoreWithCache(dir string, cache Cache) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: baseline directory not set", types.ErrInvalidArgument)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: cannot create baseline directory %s: %v", types.ErrIO, dir, err)
	}
	return &Store{dir: dir, cache: cache, hashSize: hashing.DefaultHashSize}, nil
}

// AttachIndex enables metadata indexing for subsequent captures.
func (s *Store) AttachIndex(index Recorder) {
	s.index = index
}

// SetHashSize sets the fingerprint edge length used when indexing captures.
func (s *Store) SetHashSize(size int) error {
	if size < 1 {
		return fmt.Errorf("%w: hash size must be positive, got %d", types.ErrInvalidArgument, size)
	}
	s.hashSize = size
	return nil
}

// Dir returns the baseline directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the on-disk location for a baseline name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, canonicalName(name))
}

// canonicalName appends the image suffix when missing. The same rule is
// applied on both capture and read, so "button" and "button.png" always
// address the same baseline.
func canonicalName(name string) string {
	if !strings.HasSuffix(name, suffix) {
		return name + suffix
	}
	return name
}

// Capture writes a baseline image to disk and caches it. An existing
// baseline of the same name is overwritten without warning.
func (s *Store) Capture(name string, img gocv.Mat) error {
	if name == "" {
		return fmt.Errorf("%w: baseline name cannot be empty", types.ErrInvalidArgument)
	}
	if err := imaging.Validate(img); err != nil {
		return fmt.Errorf("baseline %q: %w", name, err)
	}

	canonical := canonicalName(name)
	if err := imaging.Save(filepath.Join(s.dir, canonical), img); err != nil {
		return fmt.Errorf("baseline %q: %w", name, err)
	}
	s.cache.Put(canonical, img)
	logging.LogInfo("baseline %q stored (%dx%d)", canonical, img.Cols(), img.Rows())

	if s.index != nil {
		fp, err := hashing.CalculateFingerprint(img, s.hashSize)
		if err == nil {
			err = s.index.RecordBaseline(canonical, img.Cols(), img.Rows(), fp.String())
		}
		if err != nil {
			// Indexing is best effort; the baseline itself is already on disk.
			logging.LogWarning("failed to index baseline %q: %v", canonical, err)
		}
	}
	return nil
}

// Read returns the named baseline, loading it from disk on a cache miss.
// The returned image is an owned copy; the caller must Close it.
func (s *Store) Read(name string) (gocv.Mat, error) {
	canonical := canonicalName(name)

	if img, ok := s.cache.Get(canonical); ok {
		return img, nil
	}

	path := filepath.Join(s.dir, canonical)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return gocv.NewMat(), fmt.Errorf("%w: %s", types.ErrNotFound, canonical)
		}
		return gocv.NewMat(), fmt.Errorf("%w: cannot stat %s: %v", types.ErrIO, path, err)
	}

	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		return img, fmt.Errorf("%w: %s", types.ErrDecode, canonical)
	}

	s.cache.Put(canonical, img)
	return img, nil
}

// Invalidate drops one cached baseline so the next Read hits the disk.
func (s *Store) Invalidate(name string) {
	s.cache.Invalidate(canonicalName(name))
}

// ClearCache drops every cached baseline.
func (s *Store) ClearCache() {
	s.cache.Clear()
}
