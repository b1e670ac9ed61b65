package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/relief-tracker/internal/common"
)

// Local stores receipts under a root directory. References are absolute paths.
type Local struct {
	root string
}

func NewLocal(root string) (*Local, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Local{root: abs}, nil
}

func (l *Local) Root() string { return l.root }

func (l *Local) Put(_ context.Context, key string, data []byte) (string, error) {
	clean := filepath.Clean("/" + key)
	p := filepath.Join(l.root, clean)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("create dir for %s: %w", key, err)
	}
	tmp := p + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("commit %s: %w", key, err)
	}
	return p, nil
}

// Fetch accepts plain paths and file:// references. Files outside the root
// are allowed so that directory ingestion can point at files in place.
func (l *Local) Fetch(_ context.Context, ref string) (string, func(), error) {
	p := strings.TrimPrefix(ref, fileScheme)
	st, err := os.Stat(p)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", noop, fmt.Errorf("file %s: %w", p, common.ErrNotFound)
	case err != nil:
		return "", noop, fmt.Errorf("stat %s: %w", p, err)
	case st.IsDir():
		return "", noop, fmt.Errorf("%w: %s is a directory", common.ErrInvalidInput, p)
	}
	return p, noop, nil
}
