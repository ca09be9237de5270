package ports

import (
	"context"
	"io"
)

// PhotoStore persists proof-of-delivery photos and returns a retrievable reference.
type PhotoStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}
