// Package utils holds filesystem helpers shared by the CLI, the server and
// the crop store.
package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var imageExts = []string{"jpg", "jpeg", "png", "bmp", "tif", "tiff", "webp"}

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("empty directory path")
	}
	return os.MkdirAll(dir, 0o755)
}

// Ext returns the lower-case file extension without the dot
func Ext(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// IsImageFile reports whether the name has a supported image extension
func IsImageFile(filename string) bool {
	return slices.Contains(imageExts, Ext(filename))
}

// CropFilename names a persisted crop: crop_<unix>_<n>.<ext>
func CropFilename(unix int64, n uint64, ext string) string {
	return fmt.Sprintf("crop_%d_%d.%s", unix, n, strings.TrimPrefix(ext, "."))
}

// ResultFilename returns <outputDir>/<base>.json for an input image
func ResultFilename(inputFile, outputDir string) string {
	base := filepath.Base(inputFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outputDir, SanitizeFilename(name)+".json")
}

// ListImageFiles returns the image files under dir, sorted by path
func ListImageFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsImageFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	return files, nil
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	return err == nil && info.IsDir()
}

// SanitizeFilename replaces path separators and reserved characters
func SanitizeFilename(filename string) string {
	result := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`/\:*?"<>|`, r) {
			return '_'
		}
		return r
	}, filename)
	return strings.Trim(result, " .")
}
