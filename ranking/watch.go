package ranking

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 100 * time.Millisecond

// WeightsWatcher reloads a weights file when it changes and hands the new
// weights to a callback. Invalid files are logged and skipped, leaving the
// previous weights in effect.
type WeightsWatcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func(*Weights)
	debounce time.Duration
	logger   *slog.Logger
	done     chan struct{}
	stopOnce sync.Once
}

// NewWeightsWatcher creates a watcher for path. Call Start to begin watching.
func NewWeightsWatcher(path string, onChange func(*Weights), logger *slog.Logger) (*WeightsWatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	// Watch the directory: editors often replace the file on save.
	path = filepath.Clean(path)
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}

	return &WeightsWatcher{
		watcher:  watcher,
		path:     path,
		onChange: onChange,
		debounce: defaultDebounce,
		logger:   logger.With("component", "weights-watcher"),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching in a background goroutine.
func (ww *WeightsWatcher) Start() {
	go ww.watch()
}

// Stop stops watching. It is safe to call more than once.
func (ww *WeightsWatcher) Stop() {
	ww.stopOnce.Do(func() {
		close(ww.done)
		ww.watcher.Close()
	})
}

func (ww *WeightsWatcher) watch() {
	var debounceTimer *time.Timer

	for {
		select {
		case event, ok := <-ww.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != ww.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounceTimer != nil {
					debounceTimer.Stop()
				}
				debounceTimer = time.AfterFunc(ww.debounce, ww.reload)
			}

		case err, ok := <-ww.watcher.Errors:
			if !ok {
				return
			}
			ww.logger.Warn("watcher error", "path", ww.path, "err", err)

		case <-ww.done:
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return
		}
	}
}

func (ww *WeightsWatcher) reload() {
	weights, err := LoadWeights(ww.path)
	if err != nil {
		ww.logger.Error("failed to reload weights, keeping previous", "path", ww.path, "err", err)
		return
	}
	ww.logger.Info("reloaded ranking weights", "path", ww.path)
	ww.onChange(weights)
}
