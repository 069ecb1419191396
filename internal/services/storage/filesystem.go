package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemStore keeps objects under a base directory. Locators are
// file:// URLs with absolute paths.
type FilesystemStore struct {
	basePath string
}

// NewFilesystemStore creates the base directory if needed
func NewFilesystemStore(basePath string) (*FilesystemStore, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolving storage directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &FilesystemStore{basePath: abs}, nil
}

func (fs *FilesystemStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	fullPath := filepath.Join(fs.basePath, filepath.FromSlash(key))
	if !fs.within(fullPath) {
		return "", fmt.Errorf("storage: key %q escapes base directory", key)
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return fs.locator(fullPath), nil
}

func (fs *FilesystemStore) Get(ctx context.Context, locator string) ([]byte, error) {
	path, err := fs.path(locator)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoObject
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

func (fs *FilesystemStore) Delete(ctx context.Context, locator string) error {
	path, err := fs.path(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (fs *FilesystemStore) Exists(ctx context.Context, locator string) (bool, error) {
	path, err := fs.path(locator)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat file: %w", err)
	}
	return true, nil
}

func (fs *FilesystemStore) locator(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

func (fs *FilesystemStore) path(locator string) (string, error) {
	u, err := url.Parse(locator)
	if err != nil || u.Scheme != "file" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedLocator, locator)
	}
	path := filepath.Clean(filepath.FromSlash(u.Path))
	if !fs.within(path) {
		return "", fmt.Errorf("storage: locator %q outside base directory", locator)
	}
	return path, nil
}

func (fs *FilesystemStore) within(path string) bool {
	rel, err := filepath.Rel(fs.basePath, filepath.Clean(path))
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
