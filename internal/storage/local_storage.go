package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"carrental-backend/internal/logger"

	"github.com/google/uuid"
)

const defaultMaxSize = 10 << 20

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// LocalStorageService stores evidence on the local filesystem under
// <dir>/evidence/<owner>/<uuid>.<ext>
type LocalStorageService struct {
	rootDir string
	maxSize int64
}

// NewLocalStorageService creates the evidence directory if needed
func NewLocalStorageService(cfg Config) (*LocalStorageService, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	rootDir := filepath.Join(cfg.Dir, "evidence")
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create evidence directory: %w", err)
	}
	maxSize := cfg.MaxSizeBytes
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	return &LocalStorageService{rootDir: rootDir, maxSize: maxSize}, nil
}

func (s *LocalStorageService) Save(ctx context.Context, ownerID int64, contentType string, r io.Reader) (string, error) {
	ext, ok := extensions[contentType]
	if !ok {
		return "", ErrUnsupportedMedia
	}
	if ownerID < 0 {
		return "", ErrInvalidKey
	}

	key := fmt.Sprintf("evidence/%d/%s%s", ownerID, uuid.NewString(), ext)
	fullPath := s.path(key)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directories: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	// Read one byte past the limit to detect oversized uploads
	n, err := io.Copy(file, io.LimitReader(r, s.maxSize+1))
	closeErr := file.Close()
	if err == nil && n > s.maxSize {
		err = ErrTooLarge
	}
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(fullPath)
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	logger.Debug("Evidence stored", "key", key, "bytes", n)
	return key, nil
}

func (s *LocalStorageService) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if _, err := s.Owner(key); err != nil {
		return nil, "", err
	}
	file, err := os.Open(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to open file: %w", err)
	}

	contentType := "application/octet-stream"
	for ct, ext := range extensions {
		if filepath.Ext(key) == ext {
			contentType = ct
		}
	}
	return file, contentType, nil
}

func (s *LocalStorageService) Owner(key string) (int64, error) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != "evidence" || parts[2] == "" || strings.Contains(parts[2], "..") {
		return 0, ErrInvalidKey
	}
	owner, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || owner < 0 {
		return 0, ErrInvalidKey
	}
	return owner, nil
}

func (s *LocalStorageService) path(key string) string {
	return filepath.Join(s.rootDir, strings.TrimPrefix(key, "evidence/"))
}
