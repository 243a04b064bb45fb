package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore keeps objects on the local filesystem under Dir/<bucket>/<key>.
// The HTTP server exposes Dir at /uploads.
type LocalStore struct {
	Dir     string
	BaseURL string
}

// NewLocalStore creates a LocalStore. An empty baseURL yields
// host-relative URLs.
func NewLocalStore(dir, baseURL string) *LocalStore {
	return &LocalStore{Dir: dir, BaseURL: baseURL}
}

// Put writes r to Dir/bucket/key. A partially written file is removed.
func (s *LocalStore) Put(ctx context.Context, bucket, key string, r io.Reader, _ string) error {
	bucket, err := CleanKey(bucket)
	if err != nil {
		return err
	}
	key, err = CleanKey(key)
	if err != nil {
		return err
	}

	dest := filepath.Join(s.Dir, filepath.FromSlash(bucket), filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, readerWithContext(ctx, r)); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dest)
		return fmt.Errorf("close file: %w", err)
	}
	return nil
}

// PublicURL returns the URL under which the server serves the object.
func (s *LocalStore) PublicURL(bucket, key string) string {
	return s.BaseURL + "/uploads/" + escapeKey(bucket) + "/" + escapeKey(key)
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}
