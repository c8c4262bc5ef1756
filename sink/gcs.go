package sink

import (
	"context"
	"fmt"
	"path"
	"sync"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSSink writes backup files as objects in a Google Cloud Storage
// bucket, building the client lazily the way a single build-service
// client is shared across a process.
type GCSSink struct {
	mu     sync.Mutex
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSSink returns a Sink writing objects into bucket under prefix
// (path, with any leading slash stripped). The storage client is built on
// first Create; building it fails if application default credentials are
// not available.
func NewGCSSink(_ context.Context, bucket, prefix string) (*GCSSink, error) {
	if len(prefix) > 0 && prefix[0] == '/' {
		prefix = prefix[1:]
	}
	return &GCSSink{bucket: bucket, prefix: prefix}, nil
}

func (s *GCSSink) Create(ctx context.Context, name string) (Writer, error) {
	s.mu.Lock()
	if s.client == nil {
		var err error
		s.client, err = storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
		if err != nil {
			s.mu.Unlock()
			return nil, fmt.Errorf("building google storage client: %w", err)
		}
	}
	var client = s.client
	s.mu.Unlock()

	var object = path.Join(s.prefix, name)
	var writeCtx, cancel = context.WithCancel(ctx)
	var w = client.Bucket(s.bucket).Object(object).NewWriter(writeCtx)
	return &gcsWriter{w: w, cancel: cancel}, nil
}

type gcsWriter struct {
	w      *storage.Writer
	cancel context.CancelFunc
	done   bool
}

func (w *gcsWriter) Write(p []byte) (int, error) { return w.w.Write(p) }

func (w *gcsWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	if err := w.w.Close(); err != nil {
		return fmt.Errorf("finalizing gcs object: %w", err)
	}
	return nil
}

func (w *gcsWriter) Abort() {
	if w.done {
		return
	}
	w.done = true
	// Cancelling the writer's context aborts the resumable upload without
	// committing; storage.Writer has no separate abort call.
	w.cancel()
}
