package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

// GCSStore keeps objects in Google Cloud Storage. Logical buckets map to
// GCS buckets named Prefix + bucket.
type GCSStore struct {
	client        *storage.Client
	prefix        string
	emulatorHost  string
	publicBaseURL string
}

// NewGCSStore creates a GCS client. A non-empty emulatorHost targets a
// local emulator without authentication.
func NewGCSStore(ctx context.Context, prefix, emulatorHost, publicBaseURL string, log zerolog.Logger) (*GCSStore, error) {
	emulatorHost = strings.TrimRight(strings.TrimSpace(emulatorHost), "/")

	var opts []option.ClientOption
	if emulatorHost != "" {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", emulatorHost)
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	log.Info().
		Str("prefix", prefix).
		Str("emulator_host", emulatorHost).
		Str("public_base_url", publicBaseURL).
		Msg("Object storage initialized")

	return &GCSStore{
		client:        client,
		prefix:        prefix,
		emulatorHost:  emulatorHost,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

func (s *GCSStore) bucketName(bucket string) string { return s.prefix + bucket }

// Put streams r into the object. The object is only visible once the
// writer closes successfully.
func (s *GCSStore) Put(ctx context.Context, bucket, key string, r io.Reader, contentType string) error {
	key, err := CleanKey(key)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	w := s.client.Bucket(s.bucketName(bucket)).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if w.ContentType == "" {
		w.ContentType = ContentTypeFor(key)
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close object writer: %w", err)
	}
	return nil
}

// PublicURL resolves the object URL, preferring an explicit public base,
// then the emulator's media endpoint, then the public GCS host.
func (s *GCSStore) PublicURL(bucket, key string) string {
	name := s.bucketName(bucket)
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	switch {
	case s.publicBaseURL != "":
		return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, name, escapeKey(key))
	case s.emulatorHost != "":
		return fmt.Sprintf("%s/download/storage/v1/b/%s/o/%s?alt=media",
			s.emulatorHost, name, strings.ReplaceAll(escapeKey(key), "/", "%2F"))
	default:
		return fmt.Sprintf("https://storage.googleapis.com/%s/%s", name, escapeKey(key))
	}
}

// Close releases the client.
func (s *GCSStore) Close() error { return s.client.Close() }
