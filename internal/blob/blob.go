// Package blob provides object storage for file contents. The service never
// proxies file bytes on upload or download; clients talk to the store
// directly via presigned URLs. The only server-side read is the one needed to
// extract text for indexing.
package blob

import (
	"context"
	"io"
	"time"
)

// Store is presigned-URL object storage.
type Store interface {
	// PresignPut returns a URL a client can PUT the object to.
	PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
	// PresignGet returns a URL a client can GET the object from.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	// Download reads the object for server-side processing.
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
