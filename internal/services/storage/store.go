package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ErrNoObject is returned when a locator points at nothing
var ErrNoObject = errors.New("storage: no object")

// ErrUnsupportedLocator is returned when no store handles a locator's scheme
var ErrUnsupportedLocator = errors.New("storage: unsupported locator")

// Store persists audio objects. Put returns an opaque locator which the
// other methods accept.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, locator string) ([]byte, error)
	Delete(ctx context.Context, locator string) error
	Exists(ctx context.Context, locator string) (bool, error)
}

// Scheme returns the URL scheme of a locator, lowercased
func Scheme(locator string) string {
	u, err := url.Parse(locator)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeFileName reduces a user supplied name to something safe to embed
// in an object key.
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" || name == "/" {
		return "audio"
	}
	if len(name) > 100 {
		ext := filepath.Ext(name)
		if len(ext) > 10 {
			ext = ""
		}
		name = name[:100-len(ext)] + ext
	}
	return name
}

// ObjectKey builds a unique key under prefix for an uploaded file
func ObjectKey(prefix, fileName string) string {
	key := uuid.NewString() + "-" + SanitizeFileName(fileName)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// StageToTemp copies the object behind locator into a fresh file in tempDir
// so that tools needing a path (ffmpeg, multipart uploads) can read it. The
// returned cleanup func removes the file and is safe to call more than once.
func StageToTemp(ctx context.Context, store Store, locator, tempDir string) (string, func(), error) {
	data, err := store.Get(ctx, locator)
	if err != nil {
		return "", func() {}, err
	}
	return WriteTemp(tempDir, filepath.Ext(locatorPath(locator)), data)
}

// WriteTemp writes data to a uniquely named file in tempDir
func WriteTemp(tempDir, ext string, data []byte) (string, func(), error) {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return "", func() {}, fmt.Errorf("creating temp dir: %w", err)
	}

	path := filepath.Join(tempDir, "staged_"+uuid.NewString()+ext)
	if err := os.WriteFile(path, data, 0600); err != nil {
		os.Remove(path)
		return "", func() {}, fmt.Errorf("writing staged file: %w", err)
	}

	cleanup := func() {
		os.Remove(path)
	}
	return path, cleanup, nil
}

func locatorPath(locator string) string {
	u, err := url.Parse(locator)
	if err != nil {
		return locator
	}
	return u.Path
}
