package blob

import (
	"context"
	"time"
)

// Store is durable object storage for uploaded sources and produced results.
type Store interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
	// ContentType returns the type recorded at upload time.
	ContentType(ctx context.Context, key string) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	// PresignedURL returns a time-limited GET link. A non-empty filename is
	// suggested to the client through Content-Disposition.
	PresignedURL(ctx context.Context, key string, ttl time.Duration, filename string) (string, error)
}
