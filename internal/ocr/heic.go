package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

type ctxKey string

const ctxKeyContentHash ctxKey = "ocr.content_hash_hex"

// WithContentHash stores the hex-encoded SHA256 of the source file so that
// converted artifacts can be cached under it.
func WithContentHash(ctx context.Context, hex string) context.Context {
	return context.WithValue(ctx, ctxKeyContentHash, hex)
}

func contentHashFromCtx(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyContentHash).(string)
	return v, ok && v != ""
}

// convertHEICtoPNG converts a HEIC/HEIF file to PNG with an external converter.
// With both cacheDir and hashHex set the PNG is kept at {cacheDir}/{hashHex}.png
// and reused. Returns (outPath, warnings, cleanup, err); cleanup may be nil.
func convertHEICtoPNG(ctx context.Context, r Runner, logger *slog.Logger, converter, in, cacheDir, hashHex string) (string, []string, func(), error) {
	var cached string
	if cacheDir != "" && hashHex != "" {
		cached = filepath.Join(cacheDir, hashHex+".png")
		if st, err := os.Stat(cached); err == nil && !st.IsDir() {
			logger.Debug("using cached heic->png", "cache", cached)
			return cached, nil, nil, nil
		}
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return "", nil, nil, err
		}
	}

	tmpDir, err := os.MkdirTemp("", "rt-heic-*")
	if err != nil {
		return "", nil, nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }
	out := filepath.Join(tmpDir, "page.png")

	var args []string
	switch converter {
	case "heif-convert", "magick":
		args = []string{in, out}
	case "sips":
		args = []string{"-s", "format", "png", in, "--out", out}
	default:
		return "", nil, cleanup, fmt.Errorf("HEIC not supported: set HEIC_CONVERTER to one of: heif-convert | magick | sips")
	}
	if _, errb, err := r.Run(ctx, converter, logger, args...); err != nil {
		return "", []string{string(errb)}, cleanup, fmt.Errorf("%s convert failed: %w", converter, err)
	}
	if _, err := os.Stat(out); err != nil {
		return "", nil, cleanup, fmt.Errorf("HEIC conversion produced no output: %w", err)
	}

	if cached == "" {
		return out, nil, cleanup, nil
	}
	if err := os.Rename(out, cached); err != nil {
		// cross-device rename; keep the temp file
		logger.Warn("failed to cache heic->png", "cache", cached, "error", err)
		return out, []string{"heic cache: " + err.Error()}, cleanup, nil
	}
	cleanup()
	logger.Debug("cached heic->png", "cache", cached)
	return cached, nil, nil, nil
}
