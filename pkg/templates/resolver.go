// Package templates resolves template names to markup fragments. The field
// binder consumes the Resolver interface; FSResolver renders fragments from an
// fs.FS through pongo2 and HTTPResolver fetches them from a remote base URL.
package templates

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"golang.org/x/net/html"
)

// DefaultName is used when a host element declares no template.
const DefaultName = "input"

// DefaultExtension is appended to names that carry none.
const DefaultExtension = ".html"

// ErrResolution matches every *ResolutionError through errors.Is.
var ErrResolution = errors.New("templates: template resolution failed")

// Fragment is resolved template markup, independent of any field instance.
type Fragment struct {
	Name  string
	Path  string
	Nodes []*html.Node
}

// Resolver maps a template name to a fragment. Resolve blocks until the
// fragment is available, the lookup fails, or ctx is done.
type Resolver interface {
	Resolve(ctx context.Context, name string) (Fragment, error)
}

// ResolverFunc adapts a function into a Resolver.
type ResolverFunc func(ctx context.Context, name string) (Fragment, error)

// Resolve delegates to the underlying function.
func (fn ResolverFunc) Resolve(ctx context.Context, name string) (Fragment, error) {
	return fn(ctx, name)
}

// ResolutionError reports a template name with no resolvable fragment. Status
// carries the HTTP status when the backend was remote.
type ResolutionError struct {
	Name   string
	Status int
	Err    error
}

func (e *ResolutionError) Error() string {
	var b strings.Builder
	b.WriteString("templates: resolve ")
	b.WriteString(fmt.Sprintf("%q", e.Name))
	if e.Status != 0 {
		b.WriteString(fmt.Sprintf(": status %d %s", e.Status, http.StatusText(e.Status)))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrResolution) match.
func (e *ResolutionError) Is(target error) bool {
	return target == ErrResolution
}

// NormalizeName applies the default name and extension.
func NormalizeName(name, extension string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	if extension == "" {
		extension = DefaultExtension
	}
	if path.Ext(name) == "" {
		name += extension
	}
	return name
}

// BaseName strips directories and extension: "forms/select.html" -> "select".
func BaseName(name string) string {
	base := path.Base(strings.TrimSpace(name))
	return strings.TrimSuffix(base, path.Ext(base))
}
