package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/relief-tracker/constants"
)

// AllowedExt checks if a file extension can be ingested.
func AllowedExt(ext string) bool {
	return constants.IsAllowedExt(constants.NormalizeExt(ext))
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
