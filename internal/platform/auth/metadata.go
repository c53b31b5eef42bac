package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultMetadataURL is the token endpoint of the GCE metadata server, which
// serves the runtime service account on Cloud Functions and Cloud Run.
const DefaultMetadataURL = "http://metadata.google.internal/computeMetadata/v1/instance/service-accounts/default/token"

// NewMetadataTokenSource returns a cached token source backed by the
// metadata server.
func NewMetadataTokenSource(url string, timeout time.Duration) TokenSource {
	if url == "" {
		url = DefaultMetadataURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Metadata-Flavor", "Google")

	src := newCachingSource(nil)
	src.fetch = func(ctx context.Context) (*Token, error) {
		var tr tokenResponse
		resp, err := client.R().
			SetContext(ctx).
			SetResult(&tr).
			Get(url)
		if err != nil {
			return nil, fmt.Errorf("metadata token request: %w", err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("metadata token request failed status %d: %s", resp.StatusCode(), resp.String())
		}
		return tr.token(src.now())
	}
	return src
}
