package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/releasedesk/backend/internal/config"
)

// StoredObject describes bytes written to an ObjectStore.
type StoredObject struct {
	Key      string
	Size     int64
	Checksum string
}

// ObjectStore is where release asset bytes live.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (*StoredObject, error)
	Delete(ctx context.Context, key string) error
	// DownloadURL returns a URL the client can fetch the object from until the returned time.
	DownloadURL(ctx context.Context, key, downloadName string, ttl time.Duration) (string, time.Time, error)
}

// BuildObjectKey creates a namespaced storage key for a release asset.
func BuildObjectKey(releaseID uuid.UUID, category, originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return fmt.Sprintf("releases/%s/%s/%s%s", releaseID, category, uuid.New().String(), ext)
}

// LocalStore keeps assets on the local filesystem. Downloads go through the API,
// which checks ownership and streams the file.
type LocalStore struct {
	root string
}

func NewLocalStore(cfg *config.Config) *LocalStore {
	// ensure local path exists
	_ = os.MkdirAll(cfg.LocalAssetsPath, 0o755)
	return &LocalStore{root: cfg.LocalAssetsPath}
}

// Path resolves a key to its absolute location, refusing keys that escape the root.
func (s *LocalStore) Path(key string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	abs := filepath.Join(s.root, clean)
	if !strings.HasPrefix(abs, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return abs, nil
}

// Put saves an incoming stream under key and returns its size and sha256 checksum.
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, _ string) (*StoredObject, error) {
	absPath, err := s.Path(key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, err
	}

	tmp := absPath + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, hasher), readerWithContext(ctx, r))
	if err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}

	if err := f.Sync(); err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}

	if err := os.Rename(tmp, absPath); err != nil {
		_ = os.Remove(tmp)
		return nil, err
	}

	return &StoredObject{Key: key, Size: n, Checksum: hex.EncodeToString(hasher.Sum(nil))}, nil
}

func (s *LocalStore) Delete(_ context.Context, key string) error {
	absPath, err := s.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(absPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// DownloadURL is not used for local storage: downloads are streamed by the API
// after the ownership check, so the URL is empty.
func (s *LocalStore) DownloadURL(_ context.Context, _, _ string, ttl time.Duration) (string, time.Time, error) {
	return "", time.Now().Add(ttl), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}
