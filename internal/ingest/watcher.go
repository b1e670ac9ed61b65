package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/relief-tracker/constants"
)

type WatchConfig struct {
	Root          string        // inbox directory, watched recursively
	DefaultUserID string        // owner of files dropped directly in Root; empty skips them
	InitialScan   bool          // ingest files already present at start
	Debounce      time.Duration // coalesce rapid create/write bursts
}

// Watcher ingests files dropped into an inbox laid out as Root/<userID>/...
type Watcher struct {
	svc    *Service
	cfg    WatchConfig
	logger *slog.Logger
}

func NewWatcher(svc *Service, cfg WatchConfig, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	return &Watcher{svc: svc, cfg: cfg, logger: logger}
}

// Run blocks until ctx is done or the watcher cannot start.
func (w *Watcher) Run(ctx context.Context) error {
	paths, errs, err := StartWatcher(ctx, w.cfg.Root, w.cfg.InitialScan, w.cfg.Debounce, w.logger)
	if err != nil {
		return err
	}
	w.logger.Info("inbox watcher started", "root", w.cfg.Root)
	for {
		select {
		case p, ok := <-paths:
			if !ok {
				w.logger.Info("inbox watcher stopped")
				return nil
			}
			w.handle(ctx, p)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Warn("inbox watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, path string) {
	userID := w.UserFor(path)
	if userID == "" {
		w.logger.Warn("ingest.watch.no_user", "path", path)
		return
	}
	res, err := w.svc.IngestPath(ctx, userID, path)
	if err != nil {
		w.logger.Error("ingest.watch.failed", "path", path, "user_id", userID, "error", err)
		return
	}
	w.logger.Info("ingest.watch.ok", "path", path, "user_id", userID, "receipt_id", res.ReceiptID, "deduplicated", res.Deduplicated)
}

// UserFor maps an inbox path to its owner: the first directory below Root.
func (w *Watcher) UserFor(path string) string {
	rel, err := filepath.Rel(w.cfg.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	first, _, nested := strings.Cut(filepath.ToSlash(rel), "/")
	if !nested {
		return w.cfg.DefaultUserID
	}
	return first
}

// StartWatcher emits allowed files created or written under root. Paths are
// emitted once their burst of events has been quiet for debounce.
func StartWatcher(ctx context.Context, root string, initialScan bool, debounce time.Duration, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if root == "" {
		return nil, nil, errors.New("no root provided")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}

	var existing []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != root && IsHidden(path) {
				return filepath.SkipDir
			}
			return fw.Add(path)
		}
		if initialScan && watchable(path) {
			existing = append(existing, path)
		}
		return nil
	})
	if err != nil {
		logger.Error("failed to add root directory", "root", root, "error", err)
		_ = fw.Close()
		return nil, nil, err
	}

	evCh := make(chan string, 256)
	errCh := make(chan error, 1)
	go func() {
		defer close(evCh)
		defer close(errCh)
		defer func() {
			if err := fw.Close(); err != nil {
				logger.Warn("failed to close fsnotify watcher", "error", err)
			}
		}()

		emit := func(p string) bool {
			select {
			case evCh <- p:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, p := range existing {
			if !emit(p) {
				return
			}
		}

		pending := map[string]time.Time{}
		ticker := time.NewTicker(debounce / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-fw.Events:
				if !ok {
					return
				}
				if e.Has(fsnotify.Create) {
					if st, err := os.Stat(e.Name); err == nil && st.IsDir() && !IsHidden(e.Name) {
						if err := fw.Add(e.Name); err != nil {
							logger.Warn("failed to add new directory to watcher", "path", e.Name, "error", err)
						}
						continue
					}
				}
				if watchable(e.Name) && e.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					pending[e.Name] = time.Now()
				}
			case <-ticker.C:
				for p, last := range pending {
					if time.Since(last) < debounce {
						continue
					}
					delete(pending, p)
					if !emit(p) {
						return
					}
				}
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

// watchable skips hidden files and in-progress downloads.
func watchable(path string) bool {
	if IsHidden(path) {
		return false
	}
	return AllowedExt(constants.NormalizeExt(filepath.Ext(path)))
}
