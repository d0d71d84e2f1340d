package modelstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"k8s.io/klog/v2"
)

// HTTPStore reads models from BaseURL/name.
type HTTPStore struct {
	BaseURL *url.URL
	// Client defaults to http.DefaultClient.
	Client *http.Client
}

var _ Store = (*HTTPStore)(nil)

// Open issues a GET for name. The body is returned unread.
func (s *HTTPStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	log := klog.FromContext(ctx)

	clean, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	u := s.BaseURL.JoinPath(clean).String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	log.V(2).Info("downloading model", "url", u)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("doing request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("model %q not found at %s: %w", clean, u, os.ErrNotExist)
		}
		return nil, fmt.Errorf("unexpected status downloading %s: %v", u, resp.Status)
	}
	return resp.Body, nil
}
