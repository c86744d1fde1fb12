package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestNew_NothingToWatch(t *testing.T) {
	_, err := New(Config{}, nil)
	assert.Error(t, err)
}

func TestHandleEvent(t *testing.T) {
	dir := t.TempDir()
	ontology := filepath.Join(dir, "ontologies", "wf.ttl")
	rulesDir := filepath.Join(dir, "rules")
	writeFile(t, ontology, "")
	writeFile(t, filepath.Join(rulesDir, "enrich_costpath_in.ru"), "")

	w, err := New(Config{
		Files:      []string{ontology},
		Dirs:       []string{rulesDir},
		Extensions: []string{"ru", ".rq"},
	}, nil)
	require.NoError(t, err)
	defer w.Close()

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"watched file", fsnotify.Event{Name: ontology, Op: fsnotify.Write}, true},
		{"sibling of watched file", fsnotify.Event{Name: filepath.Join(dir, "ontologies", "other.ttl"), Op: fsnotify.Write}, false},
		{"rule file", fsnotify.Event{Name: filepath.Join(rulesDir, "enrich_costpath_out.ru"), Op: fsnotify.Create}, true},
		{"nested rule file", fsnotify.Event{Name: filepath.Join(rulesDir, "lcp", "propagate_path.RQ"), Op: fsnotify.Write}, true},
		{"rule removed", fsnotify.Event{Name: filepath.Join(rulesDir, "enrich_costpath_in.ru"), Op: fsnotify.Remove}, true},
		{"other extension", fsnotify.Event{Name: filepath.Join(rulesDir, "notes.md"), Op: fsnotify.Write}, false},
		{"hidden file", fsnotify.Event{Name: filepath.Join(rulesDir, ".enrich_x_in.ru"), Op: fsnotify.Write}, false},
		{"editor temp", fsnotify.Event{Name: filepath.Join(rulesDir, "enrich_x_in.ru~"), Op: fsnotify.Write}, false},
		{"chmod only", fsnotify.Event{Name: ontology, Op: fsnotify.Chmod}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.handleEvent(tt.event))
		})
	}
}

func TestRun_DebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	instance := filepath.Join(dir, "instances", "lcp.ttl")
	rulesDir := filepath.Join(dir, "rules")
	writeFile(t, instance, "")
	require.NoError(t, os.MkdirAll(rulesDir, 0755))

	w, err := New(Config{
		Files:    []string{instance},
		Dirs:     []string{rulesDir},
		Debounce: 100 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	changes := make(chan Change, 4)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(ctx context.Context, change Change) error {
			changes <- change
			return nil
		})
	}()

	// Let the watcher settle before touching files.
	time.Sleep(50 * time.Millisecond)
	writeFile(t, instance, "<a> <b> <c> .")
	writeFile(t, filepath.Join(rulesDir, "enrich_costpath_in.ru"), "INSERT DATA {}")

	var seen []string
	deadline := time.After(5 * time.Second)
	for len(seen) < 2 {
		select {
		case change := <-changes:
			seen = append(seen, change.Paths...)
		case <-deadline:
			t.Fatalf("timed out, saw %v", seen)
		}
	}
	assert.Contains(t, seen, instance)
	assert.Contains(t, seen, filepath.Join(rulesDir, "enrich_costpath_in.ru"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRun_HandlerErrorStops(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "wf.ttl")
	writeFile(t, file, "")

	w, err := New(Config{Files: []string{file}, Debounce: 20 * time.Millisecond}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stop := errors.New("stop")
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context, Change) error { return stop })
	}()

	time.Sleep(50 * time.Millisecond)
	writeFile(t, file, "changed")

	select {
	case err := <-done:
		assert.ErrorIs(t, err, stop)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return the handler error")
	}
}
