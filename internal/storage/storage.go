// Package storage persists uploaded documents (payment proofs, rendered
// invoices) and hands out time-limited signed URLs for retrieval.
package storage

import (
	"context"
	"io"
	"time"
)

type Object struct {
	Key         string
	ContentType string
	Size        int64
	UploadedAt  time.Time
}

type Service interface {
	// Upload streams the file into the store and returns its storage key.
	Upload(ctx context.Context, r io.Reader, filename, contentType, folder string) (Object, error)

	// Open returns the stored object's contents. Callers close the reader.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// GenerateSignedURL returns a URL that grants read access to the object
	// until the expiry elapses.
	GenerateSignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)

	// VerifySignedURL checks a signature produced by GenerateSignedURL.
	VerifySignedURL(key, expires, signature string) error
}
