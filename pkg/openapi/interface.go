package openapi

import (
	"context"
	"time"
)

// Transport performs the HTTP calls. Implementations must fail on non-2xx
// responses, surfacing the server body where available.
// *github.com/natserract/baiduapi/pkg/http.Client is the default.
type Transport interface {
	Get(ctx context.Context, url string, params map[string]string) (string, error)
	Post(ctx context.Context, url string, params map[string]string, connectTimeout, readTimeout time.Duration) (string, error)
	Upload(ctx context.Context, url string, params map[string]string, files map[string]FileItem, connectTimeout, readTimeout time.Duration) (string, error)
}

// APIClient defines the OpenAPI operations
type APIClient interface {
	// Call issues one API call and returns the raw response body.
	Call(ctx context.Context, apiPath string, category Category, params map[string]string, method string) (string, error)

	// BatchCall sends up to MaxBatchItems calls in one batch/run request and
	// fills each item's response slot by position.
	BatchCall(ctx context.Context, items []*BatchItem, serialOnly int) error

	// Upload posts params and files as multipart/form-data.
	Upload(ctx context.Context, apiPath string, category Category, params map[string]string, files map[string]FileItem) (string, error)
}

var _ APIClient = (*Client)(nil)
