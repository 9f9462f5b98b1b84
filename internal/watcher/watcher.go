// Package watcher reloads the task collection when the data file changes
// on disk outside of the service (manual edits, restores from backup).
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/novatask/novatask/internal/checksum"
	"github.com/novatask/novatask/internal/taskservice"
)

// debounce coalesces the burst of events an atomic replace produces
// (create temp, write, rename) into a single reload check.
const debounce = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the data file's directory and
// processes change events until ctx is cancelled. Writes performed by the
// service itself are skipped via a checksum gate, so only external
// modifications trigger a reload.
func Watch(ctx context.Context, svc *taskservice.Service, dataPath string, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// fsnotify delivers rename-based replaces reliably only on the
	// parent directory, not on the file itself.
	dir := filepath.Dir(dataPath)
	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("file", dataPath))

	var reloadTimer *time.Timer
	var reloadCh <-chan time.Time

	scheduleReload := func() {
		if reloadTimer == nil {
			reloadTimer = time.NewTimer(debounce)
			reloadCh = reloadTimer.C
		} else {
			reloadTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reloadTimer != nil {
				reloadTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-reloadCh:
			checkAndReload(ctx, svc, dataPath, logger)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != dataPath {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0 {
				scheduleReload()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// checkAndReload compares the on-disk digest with the service's record of
// its own last write and reloads only on a real external change.
func checkAndReload(ctx context.Context, svc *taskservice.Service, dataPath string, logger *slog.Logger) {
	digest, err := checksum.File(dataPath)
	if err != nil {
		logger.Warn("watcher: checksum failed", slog.String("error", err.Error()))
		return
	}
	if digest == svc.DataChecksum() {
		logger.Debug("watcher: no content change, skipping reload")
		return
	}
	if err := svc.Reload(ctx); err != nil {
		logger.Warn("watcher: reload failed", slog.String("error", err.Error()))
		return
	}
	logger.Info("watcher: external change reloaded", slog.String("file", dataPath))
}
