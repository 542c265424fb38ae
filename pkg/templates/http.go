package templates

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-formfield/pkg/dom"
)

// HTTPOption configures an HTTPResolver.
type HTTPOption func(*HTTPResolver)

// WithHTTPClient overrides the client used for fetches.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(r *HTTPResolver) {
		if client != nil {
			r.client = client
		}
	}
}

// WithTimeout bounds each fetch.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(r *HTTPResolver) {
		r.timeout = timeout
	}
}

// WithHTTPExtension overrides the extension appended to bare names.
func WithHTTPExtension(ext string) HTTPOption {
	return func(r *HTTPResolver) {
		ext = strings.TrimSpace(ext)
		if ext == "" {
			return
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		r.extension = ext
	}
}

// HTTPResolver fetches raw template markup relative to a base URL. A
// non-success status is a configuration error; fetches are never retried.
type HTTPResolver struct {
	baseURL   string
	client    *http.Client
	timeout   time.Duration
	extension string
}

var _ Resolver = (*HTTPResolver)(nil)

// NewHTTPResolver builds a resolver for templates served under baseURL.
func NewHTTPResolver(baseURL string, options ...HTTPOption) *HTTPResolver {
	r := &HTTPResolver{
		baseURL:   strings.TrimSpace(baseURL),
		client:    http.DefaultClient,
		extension: DefaultExtension,
	}
	for _, opt := range options {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Resolve GETs the template and parses the body.
func (r *HTTPResolver) Resolve(ctx context.Context, name string) (Fragment, error) {
	path := NormalizeName(name, r.extension)
	data, status, err := r.fetch(ctx, r.url(path))
	if err != nil {
		return Fragment{}, &ResolutionError{Name: path, Status: status, Err: err}
	}
	if status < 200 || status >= 300 {
		return Fragment{}, &ResolutionError{Name: path, Status: status}
	}
	nodes, err := dom.ParseFragment(string(data))
	if err != nil {
		return Fragment{}, &ResolutionError{Name: path, Err: err}
	}
	return Fragment{Name: BaseName(path), Path: path, Nodes: nodes}, nil
}

func (r *HTTPResolver) url(path string) string {
	if r.baseURL == "" {
		return path
	}
	return strings.TrimSuffix(r.baseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

func (r *HTTPResolver) fetch(ctx context.Context, url string) ([]byte, int, error) {
	reqCtx := ctx
	var cancel context.CancelFunc
	if r.timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}
