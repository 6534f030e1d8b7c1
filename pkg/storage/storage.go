// Package storage keeps item images and dispatch files on the local disk or
// in a Google Cloud Storage bucket behind one interface.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/noah-isme/merch-batch-api/pkg/config"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// Storage persists opaque objects addressed by slash separated keys.
type Storage interface {
	Save(ctx context.Context, key, contentType string, data []byte) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// New selects the driver named by cfg.
func New(ctx context.Context, cfg config.StorageConfig) (Storage, error) {
	switch cfg.Driver {
	case "", config.StorageDriverLocal:
		return NewLocalStorage(cfg.Dir)
	case config.StorageDriverGCS:
		return NewGCSStorage(ctx, cfg.GCSBucket, cfg.GCSCredentialsJSON)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// CleanKey normalises a key and rejects ones escaping the storage root.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" {
		return "", fmt.Errorf("storage key is required")
	}
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return cleaned, nil
}

// ThumbnailKey places the thumbnail of key in a sibling thumbnails folder.
func ThumbnailKey(key string) string {
	dir := path.Dir(key)
	name := strings.TrimSuffix(path.Base(key), path.Ext(key)) + ".jpg"
	return path.Join(dir, "thumbnails", name)
}
