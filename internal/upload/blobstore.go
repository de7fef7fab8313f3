package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrMissingBlobRoot indicates the uploads directory was not configured.
	ErrMissingBlobRoot = errors.New("upload: missing blob root")
	// ErrInvalidBlobName rejects names that would escape the store root.
	ErrInvalidBlobName = errors.New("upload: invalid blob name")
	// ErrBlobNotFound indicates Open found nothing under the name.
	ErrBlobNotFound = errors.New("upload: blob not found")
)

// BlobStore keeps uploaded files by name.
type BlobStore interface {
	Put(ctx context.Context, name string, data io.Reader) (int64, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Stat(ctx context.Context, name string) (BlobInfo, error)
	// Delete removes the blob. A missing blob is not an error.
	Delete(ctx context.Context, name string) error
}

// BlobInfo describes a stored blob.
type BlobInfo struct {
	Name       string    `json:"filename"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified"`
}

// LocalBlobStore stores blobs as flat files under a root directory.
type LocalBlobStore struct {
	root string
}

// NewLocalBlobStore creates root when needed.
func NewLocalBlobStore(root string) (*LocalBlobStore, error) {
	trimmed := strings.TrimSpace(root)
	if trimmed == "" {
		return nil, ErrMissingBlobRoot
	}
	cleaned := filepath.Clean(trimmed)
	if err := os.MkdirAll(cleaned, 0o755); err != nil {
		return nil, fmt.Errorf("upload: mkdir: %w", err)
	}
	return &LocalBlobStore{root: cleaned}, nil
}

// Root is the directory served as the public uploads path.
func (store *LocalBlobStore) Root() string {
	return store.root
}

func (store *LocalBlobStore) Put(_ context.Context, name string, data io.Reader) (int64, error) {
	destination, err := store.resolve(name)
	if err != nil {
		return 0, err
	}
	file, err := os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("upload: create: %w", err)
	}
	written, copyErr := io.Copy(file, data)
	closeErr := file.Close()
	if copyErr != nil {
		_ = os.Remove(destination)
		return 0, fmt.Errorf("upload: write: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(destination)
		return 0, fmt.Errorf("upload: close: %w", closeErr)
	}
	return written, nil
}

func (store *LocalBlobStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	destination, err := store.resolve(name)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(destination)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("upload: open: %w", err)
	}
	return file, nil
}

func (store *LocalBlobStore) Stat(_ context.Context, name string) (BlobInfo, error) {
	destination, err := store.resolve(name)
	if err != nil {
		return BlobInfo{}, err
	}
	info, err := os.Stat(destination)
	if errors.Is(err, fs.ErrNotExist) {
		return BlobInfo{}, ErrBlobNotFound
	}
	if err != nil {
		return BlobInfo{}, fmt.Errorf("upload: stat: %w", err)
	}
	return BlobInfo{Name: name, Size: info.Size(), ModifiedAt: info.ModTime()}, nil
}

func (store *LocalBlobStore) Delete(_ context.Context, name string) error {
	destination, err := store.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(destination); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("upload: remove: %w", err)
	}
	return nil
}

func (store *LocalBlobStore) resolve(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidBlobName, name)
	}
	return filepath.Join(store.root, name), nil
}
