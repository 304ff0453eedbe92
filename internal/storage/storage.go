// Package storage puts uploaded media bytes somewhere durable and
// hands back a path plus a URL the extension can fetch.
package storage

import (
	"context"
	"io"
)

type ObjectStore interface {
	// Put streams an object and returns the stored path and a public URL.
	Put(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) (path string, url string, err error)
}
