package ocr

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// minOCRWidth is the width narrower photos are upscaled to before tesseract.
const minOCRWidth = 1200

// preprocessImage writes a grayscale, contrast-boosted copy of the image to
// a temp PNG, upscaling narrow photos. Call cleanup when done with it.
func preprocessImage(path string) (string, func(), error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", nil, fmt.Errorf("open image: %w", err)
	}
	if img.Bounds().Dx() < minOCRWidth {
		img = imaging.Resize(img, minOCRWidth, 0, imaging.Lanczos)
	}
	img = imaging.AdjustContrast(imaging.Grayscale(img), 20)

	tmpDir, err := os.MkdirTemp("", "rt-prep-*")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }
	out := filepath.Join(tmpDir, "prep.png")
	if err := imaging.Save(img, out); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("save preprocessed image: %w", err)
	}
	return out, cleanup, nil
}
