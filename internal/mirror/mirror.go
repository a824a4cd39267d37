// Package mirror replays a directory on disk into the in-memory project
// tree, so the workbench can be driven by an external editor as well as
// by the API and tool layers.
package mirror

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/sunna/internal/workbench"
)

// sourceExts are the file extensions mirrored into the tree. Everything
// else on disk (node_modules, lockfiles, editor droppings) is ignored.
var sourceExts = map[string]struct{}{
	".tsx": {}, ".ts": {}, ".jsx": {}, ".js": {},
	".json": {}, ".css": {}, ".html": {}, ".md": {}, ".svg": {},
}

func mirrored(path string) bool {
	_, ok := sourceExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// treePath converts an absolute disk path under root to a project path.
func treePath(root, abs string) (string, bool) {
	rel, err := filepath.Rel(root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return "/" + filepath.ToSlash(rel), true
}

// Seed loads every mirrored file under root into the tree as one snapshot
// import. It returns the number of files loaded.
func Seed(ctx context.Context, svc *workbench.Service, root string) (int, error) {
	snapshot := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "node_modules" || strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !mirrored(path) {
			return nil
		}
		tp, ok := treePath(root, path)
		if !ok {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		snapshot[tp] = string(data)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if len(snapshot) == 0 {
		return 0, nil
	}
	if err := svc.Import(ctx, snapshot); err != nil {
		return 0, err
	}
	return len(snapshot), nil
}

// Watch starts an fsnotify watcher on root and replays file change events
// into the tree until ctx is cancelled.
//
// New directories created at runtime are automatically added to the watch
// list. Rename events trigger a debounced reconciliation pass, since
// fsnotify reports only the old path of a rename.
func Watch(ctx context.Context, svc *workbench.Service, root string, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("mirror: started", slog.String("root", root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(200 * time.Millisecond)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(200 * time.Millisecond)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			logger.Info("mirror: stopped")
			return nil

		case <-reconcileCh:
			reconcile(ctx, svc, root, logger)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, absPath); addErr != nil {
						logger.Warn("mirror: add new dir failed",
							slog.String("path", absPath),
							slog.String("error", addErr.Error()))
					}
					// Pick up any source files already inside it.
					scheduleReconcile()
					continue
				}
			}

			if !mirrored(absPath) {
				continue
			}
			tp, ok := treePath(root, absPath)
			if !ok {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := os.ReadFile(absPath)
				if readErr != nil {
					logger.Warn("mirror: read failed", slog.String("path", tp), slog.String("error", readErr.Error()))
					continue
				}
				op := workbench.FileOp{Op: workbench.OpEdit, Path: tp, Content: string(data)}
				if applyErr := svc.Apply(ctx, op); applyErr != nil {
					logger.Warn("mirror: write failed", slog.String("path", tp), slog.String("error", applyErr.Error()))
					continue
				}
				logger.Debug("mirror: wrote", slog.String("path", tp))

			case ev.Op&fsnotify.Remove != 0:
				op := workbench.FileOp{Op: workbench.OpDelete, Path: tp}
				if applyErr := svc.Apply(ctx, op); applyErr != nil {
					logger.Warn("mirror: delete failed", slog.String("path", tp), slog.String("error", applyErr.Error()))
					continue
				}
				logger.Debug("mirror: deleted", slog.String("path", tp))

			case ev.Op&fsnotify.Rename != 0:
				// fsnotify fires Rename on the OLD path only; the new
				// path arrives as a separate Create event when it stays
				// under a watched dir. Drop the old entry now and let
				// reconciliation catch stragglers.
				op := workbench.FileOp{Op: workbench.OpDelete, Path: tp}
				if applyErr := svc.Apply(ctx, op); applyErr == nil {
					logger.Debug("mirror: rename old deleted", slog.String("path", tp))
				}
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("mirror: error", slog.String("error", watchErr.Error()))
		}
	}
}

// reconcile diffs the tree against disk: tree files with no disk
// counterpart are deleted, disk files that are missing or stale in the
// tree are rewritten.
func reconcile(ctx context.Context, svc *workbench.Service, root string, logger *slog.Logger) {
	disk := map[string]string{}
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !mirrored(path) {
			return nil
		}
		tp, ok := treePath(root, path)
		if !ok {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		disk[tp] = string(data)
		return nil
	})
	if walkErr != nil {
		logger.Warn("mirror: reconcile walk failed", slog.String("error", walkErr.Error()))
		return
	}

	for tp := range svc.Snapshot() {
		if _, ok := disk[tp]; ok {
			continue
		}
		op := workbench.FileOp{Op: workbench.OpDelete, Path: tp}
		if err := svc.Apply(ctx, op); err == nil {
			logger.Debug("mirror: reconcile removed", slog.String("path", tp))
		}
	}

	current := svc.Snapshot()
	for tp, content := range disk {
		if current[tp] == content {
			continue
		}
		op := workbench.FileOp{Op: workbench.OpEdit, Path: tp, Content: content}
		if err := svc.Apply(ctx, op); err == nil {
			logger.Debug("mirror: reconcile wrote", slog.String("path", tp))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return w.Add(path)
		}
		return nil
	})
}
