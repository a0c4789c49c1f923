// Package export writes finished cards as PNG files
package export

import (
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"
)

var whitespace = regexp.MustCompile(`\s+`)

// Filename derives the download name for a card, e.g.
// "karcash-honda-civic-touring.png"
func Filename(brand, model string) string {
	name := fmt.Sprintf("karcash-%s-%s.png", brand, model)
	return whitespace.ReplaceAllString(strings.ToLower(name), "-")
}

// WritePNG encodes img as PNG
func WritePNG(w io.Writer, img image.Image) error {
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

// Save writes img into dir under name and returns the full path
func Save(dir, name string, img image.Image) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(dir, filepath.Base(name))
	if err := imaging.Save(img, path); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", path, err)
	}

	return path, nil
}
