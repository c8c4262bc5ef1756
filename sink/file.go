package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes backup files beneath a local directory. Used for
// single-node deployments and tests; production deployments typically use
// GCSSink instead.
type FileSink struct {
	dir string
}

// NewFileSink returns a Sink rooted at dir. dir is created on first write
// if it does not already exist.
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

func (s *FileSink) Create(_ context.Context, name string) (Writer, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("creating sink directory %q: %w", s.dir, err)
	}

	var path = filepath.Join(s.dir, name)
	var tmp = path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("creating %q: %w", tmp, err)
	}
	return &fileWriter{f: f, tmpPath: tmp, finalPath: path}, nil
}

type fileWriter struct {
	f         *os.File
	tmpPath   string
	finalPath string
	done      bool
}

func (w *fileWriter) Write(p []byte) (int, error) { return w.f.Write(p) }

func (w *fileWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("closing %q: %w", w.tmpPath, err)
	}
	// Rename is the atomicity boundary: readers never observe a partial
	// file under its final name.
	if err := os.Rename(w.tmpPath, w.finalPath); err != nil {
		return fmt.Errorf("finalizing %q: %w", w.finalPath, err)
	}
	return nil
}

func (w *fileWriter) Abort() {
	if w.done {
		return
	}
	w.done = true
	_ = w.f.Close()
	_ = os.Remove(w.tmpPath)
}
