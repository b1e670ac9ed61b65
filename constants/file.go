package constants

import "strings"

// Source formats understood by the OCR extractor.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
	TXT   = "TXT"
)

// AllowedExtensions holds the default allowed file extensions for receipts ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"heic": {},
	"heif": {},
	"txt":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedExt reports whether a normalized extension can be ingested.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[ext]
	return ok
}

// MapExtToFormat maps a normalized extension to PDF, IMAGE or TXT. Unknown
// extensions return "".
func MapExtToFormat(ext string) string {
	switch ext {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png", "heic", "heif", "tif", "tiff", "bmp", "webp":
		return IMAGE
	case "txt":
		return TXT
	}
	return ""
}

func IsHEICExt(ext string) bool {
	return ext == "heic" || ext == "heif"
}
