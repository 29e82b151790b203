package cropper

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"

	"github.com/jonesdeveloperchung-pixel/JadeScribe/internal/utils"
)

// maxNameAttempts bounds the search for a free file name
const maxNameAttempts = 64

// Store persists an enhanced crop and returns a reference to it.
type Store interface {
	Persist(img image.Image) (string, error)
}

// FileStore writes crops into a directory. Each file is created exclusively
// and never overwritten.
type FileStore struct {
	Dir     string
	Format  string
	Quality int

	counter atomic.Uint64
	now     func() time.Time
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates dir if needed. Format is jpg, png or webp.
func NewFileStore(dir, format string, quality int) (*FileStore, error) {
	format = normalizeFormat(format)
	switch format {
	case "jpg", "png", "webp":
	default:
		return nil, fmt.Errorf("unsupported crop format %q", format)
	}
	quality = normalizeQuality(quality)
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create crop directory: %w", err)
	}
	return &FileStore{
		Dir:     dir,
		Format:  format,
		Quality: quality,
		now:     time.Now,
	}, nil
}

// Persist encodes img into a new uniquely named file.
func (s *FileStore) Persist(img image.Image) (string, error) {
	f, path, err := s.create()
	if err != nil {
		return "", err
	}

	if err := s.encode(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to encode crop: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write crop: %w", err)
	}
	return path, nil
}

func (s *FileStore) create() (*os.File, string, error) {
	for range maxNameAttempts {
		name := utils.CropFilename(s.clock().Unix(), s.counter.Add(1), normalizeFormat(s.Format))
		path := filepath.Join(s.Dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("failed to create crop file: %w", err)
		}
		return f, path, nil
	}
	return nil, "", fmt.Errorf("no free crop file name in %s", s.Dir)
}

func (s *FileStore) encode(w io.Writer, img image.Image) error {
	quality := normalizeQuality(s.Quality)
	switch normalizeFormat(s.Format) {
	case "webp":
		return webp.Encode(w, img, &webp.Options{Quality: float32(quality)})
	case "png":
		return imaging.Encode(w, img, imaging.PNG)
	default:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
	}
}

// clock lets a zero FileStore literal work without NewFileStore
func (s *FileStore) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

func normalizeFormat(format string) string {
	format = strings.ToLower(format)
	if format == "" || format == "jpeg" {
		return "jpg"
	}
	return format
}

func normalizeQuality(quality int) int {
	if quality <= 0 || quality > 100 {
		return 90
	}
	return quality
}
