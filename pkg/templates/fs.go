package templates

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"strings"

	theme "github.com/goliatone/go-theme"

	"github.com/goliatone/go-formfield/pkg/dom"
)

// Option configures an FSResolver.
type Option func(*config)

type config struct {
	extension    string
	data         map[string]any
	selector     theme.ThemeSelector
	themeName    string
	themeVariant string
}

// WithExtension overrides the extension appended to bare names.
func WithExtension(ext string) Option {
	return func(cfg *config) {
		trimmed := strings.TrimSpace(ext)
		if trimmed == "" {
			return
		}
		if !strings.HasPrefix(trimmed, ".") {
			trimmed = "." + trimmed
		}
		cfg.extension = trimmed
	}
}

// WithData seeds values every template renders with.
func WithData(data map[string]any) Option {
	return func(cfg *config) {
		if len(data) == 0 {
			return
		}
		if cfg.data == nil {
			cfg.data = make(map[string]any, len(data))
		}
		for key, value := range data {
			cfg.data[key] = value
		}
	}
}

// WithTheme consults a go-theme selection on each resolve. Manifest templates
// keyed "forms.<base>" replace the template path and tokens are exposed to
// templates as `tokens`; variant entries win over manifest entries.
func WithTheme(selector theme.ThemeSelector, name, variant string) Option {
	return func(cfg *config) {
		cfg.selector = selector
		cfg.themeName = strings.TrimSpace(name)
		cfg.themeVariant = strings.TrimSpace(variant)
	}
}

// FSResolver renders template files from an fs.FS.
type FSResolver struct {
	engine *Engine
	cfg    config
}

var _ Resolver = (*FSResolver)(nil)

// NewFSResolver builds a resolver over files.
func NewFSResolver(files fs.FS, options ...Option) (*FSResolver, error) {
	cfg := config{extension: DefaultExtension}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}
	engine, err := NewEngine(files, "formfield-templates")
	if err != nil {
		return nil, err
	}
	return &FSResolver{engine: engine, cfg: cfg}, nil
}

// NewDirResolver builds a resolver over a directory on disk.
func NewDirResolver(dir string, options ...Option) (*FSResolver, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("templates: directory is required")
	}
	return NewFSResolver(os.DirFS(dir), options...)
}

// Default returns a resolver over the embedded input, select and textarea
// templates.
func Default(options ...Option) *FSResolver {
	resolver, err := NewFSResolver(FS(), options...)
	if err != nil {
		panic(err)
	}
	return resolver
}

// Resolve renders the named template and parses it into a fragment.
func (r *FSResolver) Resolve(ctx context.Context, name string) (Fragment, error) {
	path := NormalizeName(name, r.cfg.extension)
	if err := ctx.Err(); err != nil {
		return Fragment{}, &ResolutionError{Name: path, Err: err}
	}

	data := map[string]any{"name": BaseName(path)}
	for key, value := range r.cfg.data {
		data[key] = value
	}

	if r.cfg.selector != nil {
		override, tokens, err := r.themeLookup(BaseName(path))
		if err != nil {
			return Fragment{}, &ResolutionError{Name: path, Err: err}
		}
		if override != "" {
			path = override
		}
		if len(tokens) > 0 {
			data["tokens"] = tokens
		}
	}

	if !r.engine.Exists(path) {
		return Fragment{}, &ResolutionError{Name: path, Err: fs.ErrNotExist}
	}
	markup, err := r.engine.Render(path, data)
	if err != nil {
		return Fragment{}, &ResolutionError{Name: path, Err: err}
	}
	nodes, err := dom.ParseFragment(markup)
	if err != nil {
		return Fragment{}, &ResolutionError{Name: path, Err: err}
	}
	return Fragment{Name: BaseName(path), Path: path, Nodes: nodes}, nil
}

func (r *FSResolver) themeLookup(base string) (string, map[string]string, error) {
	selection, err := r.cfg.selector.Select(r.cfg.themeName, r.cfg.themeVariant)
	if err != nil {
		return "", nil, fmt.Errorf("select theme %q: %w", r.cfg.themeName, err)
	}
	if selection == nil || selection.Manifest == nil {
		return "", nil, nil
	}
	manifest := selection.Manifest
	key := "forms." + base

	override := manifest.Templates[key]
	tokens := make(map[string]string, len(manifest.Tokens))
	for k, v := range manifest.Tokens {
		tokens[k] = v
	}
	if variant, ok := manifest.Variants[selection.Variant]; ok {
		if path := variant.Templates[key]; path != "" {
			override = path
		}
		for k, v := range variant.Tokens {
			tokens[k] = v
		}
	}
	return strings.TrimSpace(override), tokens, nil
}
