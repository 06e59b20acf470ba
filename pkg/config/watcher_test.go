package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestKeysWatcherDetectsChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.txt")
	if err := os.WriteFile(path, []byte("old-key:1\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	got := make(chan string, 1)
	kw, err := NewKeysWatcher(path, func(spec string) {
		select {
		case got <- spec:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewKeysWatcher() error = %v", err)
	}
	defer kw.Close()
	kw.debounce = 10 * time.Millisecond

	if err := os.WriteFile(path, []byte("new-key:5\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case spec := <-got:
		if spec != "new-key:5" {
			t.Errorf("spec = %q, want new-key:5", spec)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never fired")
	}
}

func TestKeysWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.txt")
	if err := os.WriteFile(path, []byte("key:1\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	fired := make(chan struct{}, 1)
	kw, err := NewKeysWatcher(path, func(string) {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewKeysWatcher() error = %v", err)
	}
	defer kw.Close()
	kw.debounce = 10 * time.Millisecond

	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
		t.Error("watcher fired for an unrelated file")
	case <-time.After(300 * time.Millisecond):
	}
}
