package filesystem

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type fsStorage struct {
	basePath     string
	publicPrefix string
}

// NewStorage creates a filesystem-backed asset storage rooted at basePath.
// publicPrefix is the URL prefix under which basePath is served; signed
// URLs degrade to plain local URLs since there is nothing to sign.
func NewStorage(basePath, publicPrefix string) *fsStorage {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Fatalf("failed to create asset base directory: %v", err)
	}
	if publicPrefix == "" {
		publicPrefix = "/assets"
	}
	return &fsStorage{basePath: basePath, publicPrefix: strings.TrimRight(publicPrefix, "/")}
}

func (s *fsStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string) error {
	filePath, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create asset directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filePath)
}

func (s *fsStorage) SignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	filePath, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(filePath); err != nil {
		return "", fmt.Errorf("asset %s not found", key)
	}
	return s.publicPrefix + "/" + key, nil
}

// resolve maps a storage key onto the base directory and rejects keys
// that would escape it.
func (s *fsStorage) resolve(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid asset key %q", key)
	}
	return filepath.Join(s.basePath, cleaned), nil
}
