package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/solentra/account-service/internal/core/port"
)

// DirStore writes profile images to a local directory. Used in development
// and in tests; production deployments use S3Store.
type DirStore struct {
	root string
}

// NewDirStore ensures the directory exists and returns a store rooted there.
func NewDirStore(root string) (*DirStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &DirStore{root: root}, nil
}

// Put writes the image under root/key and returns the stored key.
func (s *DirStore) Put(ctx context.Context, key, _ string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(s.root, filepath.Clean("/"+key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}

	return key, nil
}

var _ port.ProfileImageStore = (*DirStore)(nil)
