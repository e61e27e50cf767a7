package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
)

type Storage interface {
	// Put stores data with the given key and returns the storage URL
	Put(ctx context.Context, key string, data []byte) (string, error)
	// Get retrieves data from the given storage URL
	Get(ctx context.Context, url string) ([]byte, error)
}

// ErrOutsideStorage is returned by Get for URLs that Put could not have produced.
var ErrOutsideStorage = errors.New("outside of storage")

type Config struct {
	// Backend is "file" or "s3".
	Backend string
	File    FileConfig
	S3      S3Config
}

func New(ctx context.Context, c Config) (Storage, error) {
	switch c.Backend {
	case "", "file":
		return NewFileStorage(ctx, c.File)
	case "s3":
		if c.S3.Bucket == "" {
			return nil, fmt.Errorf("s3 storage requires a bucket")
		}
		return NewS3Storage(ctx, c.S3)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", c.Backend)
	}
}

var contentTypes = map[string]string{
	".avif": "image/avif",
	".jpeg": "image/jpeg",
	".jpg":  "image/jpeg",
	".png":  "image/png",
	".json": "application/json",
}

// ContentType resolves the MIME type from the key's extension, then by sniffing data.
// Sniffing alone does not recognize AVIF.
func ContentType(key string, data []byte) string {
	if t, ok := contentTypes[path.Ext(key)]; ok {
		return t
	}
	return http.DetectContentType(data)
}
