package previews

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// GenerateScanPreview writes a resized thumbnail of the scan image next to
// the source file and returns its path. The caller owns cleanup.
func GenerateScanPreview(srcPath string, width int) (string, error) {
	img, err := imaging.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("failed to open image: %w", err)
	}

	// Resize while preserving aspect ratio
	preview := imaging.Resize(img, width, 0, imaging.Lanczos)

	base := strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))
	previewPath := filepath.Join(os.TempDir(), base+"_preview.jpg")
	if err := imaging.Save(preview, previewPath); err != nil {
		return "", fmt.Errorf("failed to save preview: %w", err)
	}

	return previewPath, nil
}
