package openapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

// SourceKind enumerates where a document can be loaded from.
type SourceKind string

const (
	SourceKindFile SourceKind = "file"
	SourceKindFS   SourceKind = "fs"
	SourceKindURL  SourceKind = "url"
)

// Source identifies an OpenAPI document.
type Source struct {
	Kind     SourceKind
	Location string
}

// SourceFromFile points at a file on disk.
func SourceFromFile(path string) Source {
	return Source{Kind: SourceKindFile, Location: filepath.Clean(path)}
}

// SourceFromFS points at a file inside the loader's fs.FS.
func SourceFromFS(name string) Source {
	return Source{Kind: SourceKindFS, Location: name}
}

// SourceFromURL points at a remote document.
func SourceFromURL(raw string) (Source, error) {
	u, err := url.ParseRequestURI(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Source{}, fmt.Errorf("openapi: invalid document URL %q", raw)
	}
	return Source{Kind: SourceKindURL, Location: raw}, nil
}

// LoaderOption configures Load.
type LoaderOption func(*loaderConfig)

type loaderConfig struct {
	files   fs.FS
	client  *http.Client
	timeout time.Duration
}

// WithFileSystem sets the fs.FS used by SourceKindFS sources.
func WithFileSystem(files fs.FS) LoaderOption {
	return func(cfg *loaderConfig) {
		cfg.files = files
	}
}

// WithHTTPClient sets the client used by SourceKindURL sources.
func WithHTTPClient(client *http.Client) LoaderOption {
	return func(cfg *loaderConfig) {
		if client != nil {
			cfg.client = client
		}
	}
}

// WithRequestTimeout caps remote fetches.
func WithRequestTimeout(timeout time.Duration) LoaderOption {
	return func(cfg *loaderConfig) {
		cfg.timeout = timeout
	}
}

// Load reads the raw document behind src.
func Load(ctx context.Context, src Source, options ...LoaderOption) ([]byte, error) {
	cfg := loaderConfig{client: http.DefaultClient}
	for _, opt := range options {
		if opt != nil {
			opt(&cfg)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		data []byte
		err  error
	)
	switch src.Kind {
	case SourceKindFile:
		data, err = os.ReadFile(src.Location)
	case SourceKindFS:
		if cfg.files == nil {
			return nil, errors.New("openapi: filesystem is not configured")
		}
		data, err = fs.ReadFile(cfg.files, src.Location)
	case SourceKindURL:
		data, err = fetch(ctx, cfg, src.Location)
	default:
		err = fmt.Errorf("unsupported source kind %q", src.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("openapi: load %s: %w", src.Location, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("openapi: load %s: document is empty", src.Location)
	}
	return data, nil
}

func fetch(ctx context.Context, cfg loaderConfig, location string) ([]byte, error) {
	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := cfg.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
