package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// KeysWatcher watches the operator keys file and invokes a callback with
// the freshly-read spec whenever the file changes. Events are debounced
// because editors and orchestrators tend to emit bursts of writes.
type KeysWatcher struct {
	path     string
	onChange func(spec string)
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	debounce time.Duration
	mu       sync.Mutex
	timer    *time.Timer

	stopOnce sync.Once
	stop     chan struct{}
}

// NewKeysWatcher starts watching path. The callback runs on the watcher
// goroutine; it must not block.
func NewKeysWatcher(path string, onChange func(spec string)) (*KeysWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory: editors replace files by rename, which drops
	// a direct file watch.
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %q: %w", dir, err)
	}

	kw := &KeysWatcher{
		path:     path,
		onChange: onChange,
		watcher:  fsw,
		logger:   slog.Default().With("component", "keyswatcher"),
		debounce: 500 * time.Millisecond,
		stop:     make(chan struct{}),
	}
	go kw.run()
	return kw, nil
}

func (kw *KeysWatcher) run() {
	for {
		select {
		case <-kw.stop:
			return
		case event, ok := <-kw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(kw.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			kw.scheduleReload()
		case err, ok := <-kw.watcher.Errors:
			if !ok {
				return
			}
			kw.logger.Warn("keys file watcher error", "error", err)
		}
	}
}

func (kw *KeysWatcher) scheduleReload() {
	kw.mu.Lock()
	defer kw.mu.Unlock()
	if kw.timer != nil {
		kw.timer.Stop()
	}
	kw.timer = time.AfterFunc(kw.debounce, kw.reload)
}

func (kw *KeysWatcher) reload() {
	spec, err := ReadOperatorSpec(&Config{Keys: KeysConfig{OperatorFile: kw.path}})
	if err != nil {
		kw.logger.Error("failed to reload keys file", "error", err)
		return
	}
	kw.logger.Info("keys file changed, reloading operator pool")
	kw.onChange(spec)
}

// Close stops the watcher.
func (kw *KeysWatcher) Close() error {
	var err error
	kw.stopOnce.Do(func() {
		close(kw.stop)
		err = kw.watcher.Close()
	})
	return err
}
