package storage

import (
	"fmt"

	"github.com/killallgit/testimony-api/pkg/config"
)

const (
	BackendFilesystem = "filesystem"
	BackendS3         = "s3"
)

// FromConfig builds the deployment's store. Writes go to the configured
// backend; http(s) and file locators stay readable regardless.
func FromConfig(cfg config.StorageConfig) (*Mux, error) {
	fs, err := NewFilesystemStore(cfg.BaseDir)
	if err != nil {
		return nil, err
	}

	var mux *Mux
	switch cfg.Backend {
	case "", BackendFilesystem:
		mux = NewMux("file", fs)
	case BackendS3:
		s3Store, err := NewS3Store(cfg.S3Region, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			return nil, err
		}
		mux = NewMux("s3", s3Store).Handle(fs, "file")
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	return mux.Handle(NewHTTPStore(DefaultHTTPOptions()), "http", "https"), nil
}
