// Package storage puts binary artifacts such as recorded videos into an
// object store and resolves public references to them.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stemsi/courseware-backend/internal/config"
)

// BlobStore writes objects and resolves their public URLs.
type BlobStore interface {
	Put(ctx context.Context, bucket, key string, r io.Reader, contentType string) error
	PublicURL(bucket, key string) string
}

// New returns the backend selected by BLOB_BACKEND.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (BlobStore, error) {
	switch cfg.BlobBackend {
	case config.BlobGCS:
		return NewGCSStore(ctx, cfg.GCSBucketPrefix, cfg.GCSEmulatorHost, cfg.PublicBaseURL, log)
	case config.BlobLocal, "":
		return NewLocalStore(cfg.UploadDir, cfg.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("unsupported blob backend: %s", cfg.BlobBackend)
	}
}

// CleanKey normalises an object key and rejects keys that escape their
// bucket.
func CleanKey(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	cleaned := path.Clean(key)
	if key == "" || cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return cleaned, nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// ContentTypeFor guesses a content type from the key's extension.
func ContentTypeFor(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.HasSuffix(s, ".mp4"), strings.HasSuffix(s, ".m4v"):
		return "video/mp4"
	case strings.HasSuffix(s, ".webm"):
		return "video/webm"
	case strings.HasSuffix(s, ".mov"):
		return "video/quicktime"
	case strings.HasSuffix(s, ".ogv"), strings.HasSuffix(s, ".ogg"):
		return "video/ogg"
	case strings.HasSuffix(s, ".mkv"):
		return "video/x-matroska"
	default:
		return "application/octet-stream"
	}
}
