// Package modelstore fetches model files from a directory, an HTTP server
// or a GCS bucket into a local cache directory.
package modelstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"k8s.io/klog/v2"
)

// Store reads models by name. A missing model is reported with an error
// for which errors.Is(err, os.ErrNotExist) holds.
type Store interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// ErrInvalidName is returned for names that are absolute or escape the
// store root.
var ErrInvalidName = errors.New("invalid model name")

// cleanName validates name and returns it in slash form.
func cleanName(name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, `\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	clean := path.Clean(name)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return clean, nil
}

// FileStore reads models below Dir.
type FileStore struct {
	Dir string
}

var _ Store = (*FileStore)(nil)

// Open opens Dir/name.
func (s *FileStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.Dir, filepath.FromSlash(clean)))
	if err != nil {
		return nil, fmt.Errorf("opening model %q: %w", name, err)
	}
	return f, nil
}

// Fetch copies name from store into dir and returns the local path. A file
// already present in dir is reused without contacting the store.
func Fetch(ctx context.Context, store Store, name, dir string) (string, error) {
	log := klog.FromContext(ctx)

	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(dir, filepath.FromSlash(clean))
	if _, err := os.Stat(dest); err == nil {
		log.V(2).Info("model already cached", "name", clean, "path", dest)
		return dest, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}

	startedAt := time.Now()
	src, err := store.Open(ctx, clean)
	if err != nil {
		return "", err
	}
	defer src.Close()

	n, err := writeToFile(ctx, src, dest)
	if err != nil {
		return "", fmt.Errorf("fetching model %q: %w", clean, err)
	}
	log.Info("fetched model", "name", clean, "path", dest, "bytes", n, "duration", time.Since(startedAt))
	return dest, nil
}

// writeToFile writes src to a temp file next to destinationPath and renames
// it into place, so readers never see a partial model.
func writeToFile(ctx context.Context, src io.Reader, destinationPath string) (int64, error) {
	log := klog.FromContext(ctx)

	tempFile, err := os.CreateTemp(filepath.Dir(destinationPath), "model")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}

	shouldDeleteTempFile := true
	defer func() {
		if shouldDeleteTempFile {
			if err := os.Remove(tempFile.Name()); err != nil {
				log.Error(err, "removing temp file", "path", tempFile.Name())
			}
		}
	}()

	shouldCloseTempFile := true
	defer func() {
		if shouldCloseTempFile {
			if err := tempFile.Close(); err != nil {
				log.Error(err, "closing temp file", "path", tempFile.Name())
			}
		}
	}()

	n, err := io.Copy(tempFile, src)
	if err != nil {
		return n, fmt.Errorf("copying from store: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return n, fmt.Errorf("closing temp file: %w", err)
	}
	shouldCloseTempFile = false

	if err := os.Rename(tempFile.Name(), destinationPath); err != nil {
		return n, fmt.Errorf("renaming temp file: %w", err)
	}
	shouldDeleteTempFile = false

	return n, nil
}
