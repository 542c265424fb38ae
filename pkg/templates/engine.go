package templates

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
)

// Engine renders named templates from an fs.FS through a pongo2 template set,
// caching compiled templates by path.
type Engine struct {
	mu        sync.RWMutex
	files     fs.FS
	set       *pongo2.TemplateSet
	templates map[string]*pongo2.Template
}

// NewEngine builds an engine over files. An optional name labels the pongo2
// set for error messages.
func NewEngine(files fs.FS, name string) (*Engine, error) {
	if files == nil {
		return nil, errors.New("templates: engine requires an fs.FS")
	}
	if strings.TrimSpace(name) == "" {
		name = "formfield"
	}
	return &Engine{
		files:     files,
		set:       pongo2.NewSet(name, pongo2.NewFSLoader(files)),
		templates: make(map[string]*pongo2.Template),
	}, nil
}

// Exists reports whether path names a regular file in the engine's FS.
func (e *Engine) Exists(path string) bool {
	info, err := fs.Stat(e.files, path)
	return err == nil && !info.IsDir()
}

// Render executes the template at path with data.
func (e *Engine) Render(path string, data map[string]any) (string, error) {
	tmpl, err := e.template(path)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteWriter(toContext(data), &buf); err != nil {
		return "", fmt.Errorf("templates: execute %q: %w", path, err)
	}
	return buf.String(), nil
}

func (e *Engine) template(path string) (*pongo2.Template, error) {
	e.mu.RLock()
	if tmpl, ok := e.templates[path]; ok {
		e.mu.RUnlock()
		return tmpl, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if tmpl, ok := e.templates[path]; ok {
		return tmpl, nil
	}
	tmpl, err := e.set.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("templates: load %q: %w", path, err)
	}
	e.templates[path] = tmpl
	return tmpl, nil
}

func toContext(data map[string]any) pongo2.Context {
	out := make(pongo2.Context, len(data))
	for key, value := range data {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		out[key] = value
	}
	return out
}
