package storage

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNotFound         = errors.New("evidence not found")
	ErrTooLarge         = errors.New("evidence exceeds size limit")
	ErrInvalidKey       = errors.New("invalid evidence key")
	ErrUnsupportedMedia = errors.New("unsupported evidence content type")
)

// EvidenceStore keeps photos attached to pickup, return and after-sales
// records. Keys are opaque to callers and are stored on those records.
type EvidenceStore interface {
	// Save stores the content and returns its key. The key embeds ownerID so
	// reads can be authorised without a lookup.
	Save(ctx context.Context, ownerID int64, contentType string, r io.Reader) (string, error)

	// Open returns the stored content and its content type
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)

	// Owner extracts the uploader id from a key
	Owner(key string) (int64, error)
}
