package uploader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalUploader writes media files under a directory on disk. It backs dev
// runs and tests the same way the in-memory stores back the database stores.
type LocalUploader struct {
	rootDir       string
	publicBaseURL string
}

// NewLocalUploader creates the media root if needed.
func NewLocalUploader(rootDir string, publicBaseURL string) (*LocalUploader, error) {
	if strings.TrimSpace(rootDir) == "" {
		return nil, fmt.Errorf("uploader.local.config: media root must be provided")
	}
	if mkdirErr := os.MkdirAll(rootDir, 0o755); mkdirErr != nil {
		return nil, fmt.Errorf("uploader.local.mkdir: %w", mkdirErr)
	}
	return &LocalUploader{
		rootDir:       rootDir,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}, nil
}

// Upload copies the stream to disk and returns its served URL.
func (store *LocalUploader) Upload(ctx context.Context, filename string, contentType string, reader io.Reader) (Asset, error) {
	key := objectKey(filename)
	destination := filepath.Join(store.rootDir, key)
	output, createErr := os.Create(destination)
	if createErr != nil {
		return Asset{}, fmt.Errorf("uploader.local.create: %w", createErr)
	}
	defer func() { _ = output.Close() }()
	if _, copyErr := io.Copy(output, reader); copyErr != nil {
		_ = os.Remove(destination)
		return Asset{}, fmt.Errorf("uploader.local.write: %w", copyErr)
	}
	return Asset{URL: store.publicBaseURL + "/" + key}, nil
}
