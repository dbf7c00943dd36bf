package snapshot

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher reports settled changes of one snapshot file. It watches the
// parent directory since Save replaces the file by rename.
type Watcher struct {
	Path    string
	Changes <-chan string // Read-only external channel

	changes chan string // Internal write channel
	done    chan struct{}
	watcher *fsnotify.Watcher

	debounce time.Duration
}

// NewWatcher creates a watcher for the given snapshot path.
func NewWatcher(path string, debounce time.Duration) (*Watcher, error) {
	absolute, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	ch := make(chan string, 1)

	return &Watcher{
			Path:     absolute,
			Changes:  ch,
			changes:  ch,
			done:     make(chan struct{}),
			watcher:  fw,
			debounce: debounce,
		},
		nil
}

// Start begins watching the snapshot directory.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(filepath.Dir(w.Path)); err != nil {
		return err
	}

	go w.loop()

	return nil
}

// Stop closes the watcher and the change channel.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done // Wait for loop to exit
	close(w.changes)
}

func (w *Watcher) loop() {
	defer close(w.done)

	var (
		pending   bool
		lastEvent time.Time
	)

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != w.Path {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				pending = true
				lastEvent = time.Now()
			}

		case <-ticker.C:
			if pending && time.Since(lastEvent) >= w.debounce {
				pending = false
				w.emit()
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Ignore watch errors; they're non-fatal.
		}
	}
}

// emit coalesces with a change the reader has not taken yet.
func (w *Watcher) emit() {
	select {
	case w.changes <- w.Path:
	default:
	}
}
