// Package sink implements the Sink collaborator: durable upload of a
// finished backup file to object storage, selected by URL scheme.
package sink

import (
	"context"
	"fmt"
	"io"
	"net/url"
)

// Writer is an open upload stream for one file. Abort must discard any
// partial object if Close is never reached, so a unit's failure never
// publishes a truncated file.
type Writer interface {
	io.Writer
	// Close finalizes the upload. Only after Close returns nil is the
	// object visible to readers.
	Close() error
	// Abort discards the upload. Safe to call after Close; a no-op then.
	Abort()
}

// Sink opens upload streams for a base URL's scheme (file:// or gs://).
type Sink interface {
	// Create opens a Writer for name, resolved relative to the sink's base
	// location.
	Create(ctx context.Context, name string) (Writer, error)
}

// Open resolves base to a concrete Sink by URL scheme.
func Open(ctx context.Context, base string) (Sink, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parsing sink location %q: %w", base, err)
	}

	switch u.Scheme {
	case "file", "":
		return NewFileSink(u.Path), nil
	case "gs":
		return NewGCSSink(ctx, u.Host, u.Path)
	default:
		return nil, fmt.Errorf("unsupported sink scheme: %q", u.Scheme)
	}
}
