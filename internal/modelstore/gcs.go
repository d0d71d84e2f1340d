package modelstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
	"k8s.io/klog/v2"
)

// GCSStore reads models from gs://Bucket/Prefix/name.
type GCSStore struct {
	Bucket string
	Prefix string
	// Options are passed to storage.NewClient.
	Options []option.ClientOption
}

var _ Store = (*GCSStore)(nil)

// objectKey returns the object name for a model.
func (s *GCSStore) objectKey(name string) string {
	if s.Prefix == "" {
		return name
	}
	return path.Join(s.Prefix, name)
}

// Open opens a reader on the object. Closing it also closes the client
// created for the read.
func (s *GCSStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	log := klog.FromContext(ctx)

	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	key := s.objectKey(clean)
	gcsURL := "gs://" + s.Bucket + "/" + key

	client, err := storage.NewClient(ctx, s.Options...)
	if err != nil {
		return nil, fmt.Errorf("creating GCS storage client: %w", err)
	}

	log.V(2).Info("downloading model from GCS", "url", gcsURL)
	r, err := client.Bucket(s.Bucket).Object(key).NewReader(ctx)
	if err != nil {
		client.Close()
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("model %q not found at %s: %w", clean, gcsURL, os.ErrNotExist)
		}
		return nil, fmt.Errorf("opening object from GCS %q: %w", gcsURL, err)
	}
	return &gcsReader{Reader: r, client: client}, nil
}

type gcsReader struct {
	*storage.Reader
	client *storage.Client
}

func (r *gcsReader) Close() error {
	return errors.Join(r.Reader.Close(), r.client.Close())
}
