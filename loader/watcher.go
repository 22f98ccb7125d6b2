package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const eventChannelBuffer = 64

// Watcher watches document files for changes and emits a debounced
// change notification, so callers can re-run validation once per burst
// of edits rather than once per write syscall.
type Watcher struct {
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration

	// Hash-based change detection: editors often rewrite files with
	// identical content on save.
	hashMu sync.Mutex
	hashes map[string]string

	pendingMu sync.Mutex
	pending   map[string]bool

	changes chan []string
}

// NewWatcher creates a watcher over the given document files. The
// containing directories are watched so newly created documents are
// picked up too.
func NewWatcher(files []string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	w := &Watcher{
		watcher:  fsw,
		logger:   logger,
		debounce: debounce,
		hashes:   make(map[string]string),
		pending:  make(map[string]bool),
		changes:  make(chan []string, eventChannelBuffer),
	}

	dirs := make(map[string]bool)
	for _, f := range files {
		dirs[filepath.Dir(f)] = true
		if content, err := os.ReadFile(f); err == nil {
			w.hashes[f] = contentHash(content)
		}
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			w.logger.Warn("Failed to watch directory", "dir", dir, "error", err)
		}
	}

	return w, nil
}

// Changes returns the channel of debounced change notifications. Each
// notification carries the sorted paths that changed since the last one.
func (w *Watcher) Changes() <-chan []string {
	return w.changes
}

// Start begins processing file events until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	go w.processEvents(ctx)
}

// Stop closes the underlying filesystem watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.changes)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			w.flushPending()
		}
	}
}

func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	if !isYAML(event.Name) {
		return
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		w.hashMu.Lock()
		delete(w.hashes, event.Name)
		w.hashMu.Unlock()
		w.markPending(event.Name)
		return
	}

	content, err := os.ReadFile(event.Name)
	if err != nil {
		return
	}
	hash := contentHash(content)

	w.hashMu.Lock()
	unchanged := w.hashes[event.Name] == hash
	w.hashes[event.Name] = hash
	w.hashMu.Unlock()
	if unchanged {
		return
	}

	w.markPending(event.Name)
}

func (w *Watcher) markPending(path string) {
	w.pendingMu.Lock()
	w.pending[path] = true
	w.pendingMu.Unlock()
	w.logger.Debug("Document change detected", "path", path)
}

func (w *Watcher) flushPending() {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return
	}
	changed := make([]string, 0, len(w.pending))
	for path := range w.pending {
		changed = append(changed, path)
	}
	w.pending = make(map[string]bool)
	w.pendingMu.Unlock()

	sort.Strings(changed)

	select {
	case w.changes <- changed:
	default:
		w.logger.Warn("Change channel full, dropping notification", "paths", len(changed))
	}
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
