package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/semgeo/semgeo/pkg/graph"
	"github.com/semgeo/semgeo/pkg/store"
)

// ResultWriter serializes the final graph to a single file.
type ResultWriter struct {
	path   string
	format store.Format
	logger *slog.Logger
}

// NewResultWriter creates a writer for path in the given format.
func NewResultWriter(path string, format store.Format, logger *slog.Logger) *ResultWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultWriter{path: path, format: format, logger: logger}
}

// Path returns the destination file.
func (w *ResultWriter) Path() string {
	return w.path
}

// Write replaces the destination with the serialized graph. The content is
// written to a temporary file in the same directory and renamed over the
// destination, so readers never see a partial file.
func (w *ResultWriter) Write(g graph.Store) (Step, error) {
	start := time.Now()

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Step{}, fmt.Errorf("%w: %s: %w", ErrWrite, w.path, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(w.path)+".*")
	if err != nil {
		return Step{}, fmt.Errorf("%w: %s: %w", ErrWrite, w.path, err)
	}
	tmpPath := tmp.Name()

	if err := g.Serialize(tmp, w.format); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return Step{}, fmt.Errorf("%w: %s: %w", ErrWrite, w.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return Step{}, fmt.Errorf("%w: %s: %w", ErrWrite, w.path, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return Step{}, fmt.Errorf("%w: %s: %w", ErrWrite, w.path, err)
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		os.Remove(tmpPath)
		return Step{}, fmt.Errorf("%w: %s: %w", ErrWrite, w.path, err)
	}

	size := g.Size()
	w.logger.Info("Written triples", "path", w.path, "format", w.format, "triples", size)
	return Step{
		Kind:     StepWrite,
		Source:   w.path,
		Before:   size,
		After:    size,
		Duration: time.Since(start),
	}, nil
}
