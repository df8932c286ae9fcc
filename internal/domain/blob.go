package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes a stored object in the archive bucket.
type BlobInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
	ContentType  string
}

// BlobWriter uploads objects to the archive bucket. PutMultipart is for
// payloads large enough to benefit from concurrent part uploads; partSize is
// in bytes and implementations may clamp it to a backend minimum.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader retrieves and enumerates archived objects.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver moves aged intent records to cold storage. Records are copied,
// never deleted here; pruning the primary store is a separate explicit step.
type Archiver interface {
	ArchiveOrders(ctx context.Context, before time.Time) (int64, error)
	ArchiveCommitments(ctx context.Context, before time.Time) (int64, error)
}
