// Package blob stores uploaded file contents outside the database.
package blob

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// Store is a blob backend. Put returns the path later passed to Delete
// and PresignGet.
type Store interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, path string) error
	PresignGet(ctx context.Context, path string) (string, error)
}

// NewKey returns a fresh object key under the user's dated prefix.
func NewKey(userID string, now time.Time) string {
	now = now.UTC()
	return fmt.Sprintf("users/%s/%04d/%02d/%02d/%s", userID, now.Year(), int(now.Month()), now.Day(), uuid.New())
}
