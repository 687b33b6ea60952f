// internal/storage/storage.go
package storage

import (
	"context"
	"io"
)

// ObjectStorage abstracts the dataset bucket that holds input CSV exports
// (products, supplier terms, freight tariffs).
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]string, error)
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
	DownloadObject(ctx context.Context, key, localPath string) error
}
