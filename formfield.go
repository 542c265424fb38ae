// Package formfield is the entry point for binding declarative <field>
// elements in server-rendered HTML. The heavy lifting lives in pkg/field;
// this package wires parsing, binding, materialisation and sanitising
// together for callers that start from markup.
package formfield

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"

	"github.com/goliatone/go-formfield/pkg/dom"
	"github.com/goliatone/go-formfield/pkg/field"
	"github.com/goliatone/go-formfield/pkg/scope"
	"github.com/goliatone/go-formfield/pkg/templates"
)

// ErrNoField is returned by Bind when the markup holds no <field> element.
var ErrNoField = errors.New("formfield: markup contains no <field> element")

// Re-exported taxonomy so callers do not need to import pkg/field.
type (
	TemplateResolutionError = field.TemplateResolutionError
	StructuralConflictError = field.StructuralConflictError
	MessageTemplateError    = field.MessageTemplateError
)

// Option configures Bind and the Render helpers.
type Option func(*options)

type options struct {
	binder []field.Option
	policy *bluemonday.Policy
}

// WithBinderOptions forwards options to the underlying field.Binder.
func WithBinderOptions(opts ...field.Option) Option {
	return func(o *options) {
		o.binder = append(o.binder, opts...)
	}
}

// WithResolver sets the template resolver.
func WithResolver(resolver templates.Resolver) Option {
	return WithBinderOptions(field.WithResolver(resolver))
}

// WithSanitizer runs rendered output through policy. A nil policy uses
// dom.FormPolicy.
func WithSanitizer(policy *bluemonday.Policy) Option {
	return func(o *options) {
		if policy == nil {
			policy = dom.FormPolicy()
		}
		o.policy = policy
	}
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// EmbeddedTemplates exposes the built-in field templates so callers can reuse
// or extend them.
func EmbeddedTemplates() fs.FS {
	return templates.FS()
}

// Bind parses markup and binds its first <field> element. The returned field
// keeps the parsed tree alive through Host.
func Bind(ctx context.Context, markup string, s *scope.Scope, opts ...Option) (*field.Field, error) {
	o := newOptions(opts)
	nodes, err := dom.ParseFragment(markup)
	if err != nil {
		return nil, err
	}
	host := dom.Find(nodes, dom.ByTag(field.TagField))
	if host == nil {
		return nil, ErrNoField
	}
	return field.NewBinder(o.binder...).Bind(ctx, host, s)
}

// RenderDocument binds every <field> in a full HTML document, replaces each
// host with its materialised form and returns the serialised document.
func RenderDocument(ctx context.Context, markup string, s *scope.Scope, opts ...Option) (string, error) {
	o := newOptions(opts)
	doc, err := dom.ParseDocument(markup)
	if err != nil {
		return "", err
	}
	if err := materialise(ctx, doc, s, o, nil); err != nil {
		return "", err
	}
	return o.serialise(doc)
}

// RenderSubmission is RenderDocument for a posted form: each field whose
// input name appears in values receives it as user input before rendering,
// so rules run and messages show. Accepted model values are written back into
// s. Unchecked checkboxes, which browsers omit, read as false, so a required
// checkbox fails until it is checked.
func RenderSubmission(ctx context.Context, markup string, s *scope.Scope, values url.Values, opts ...Option) (string, error) {
	o := newOptions(opts)
	doc, err := dom.ParseDocument(markup)
	if err != nil {
		return "", err
	}
	apply := func(f *field.Field) error {
		value, ok := submitted(f, values)
		if !ok {
			return nil
		}
		return f.SetViewValue(value)
	}
	if err := materialise(ctx, doc, s, o, apply); err != nil {
		return "", err
	}
	return o.serialise(doc)
}

func submitted(f *field.Field, values url.Values) (string, bool) {
	name := f.Composed().Identifier
	if input := f.Composed().Input; input != nil {
		if n, ok := dom.Attr(input, "name"); ok && n != "" {
			name = n
		}
		if typ, _ := dom.Attr(input, "type"); strings.EqualFold(typ, "checkbox") {
			_, on := values[name]
			return strconv.FormatBool(on), true
		}
	}
	if _, ok := values[name]; !ok {
		return "", false
	}
	return values.Get(name), true
}

// RenderFragment is RenderDocument for markup snippets.
func RenderFragment(ctx context.Context, markup string, s *scope.Scope, opts ...Option) (string, error) {
	o := newOptions(opts)
	nodes, err := dom.ParseFragment(markup)
	if err != nil {
		return "", err
	}
	root := &html.Node{Type: html.DocumentNode}
	for _, n := range nodes {
		root.AppendChild(n)
	}
	if err := materialise(ctx, root, s, o, nil); err != nil {
		return "", err
	}
	var children []*html.Node
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, c)
	}
	return o.serialise(children...)
}

// materialise binds the fields under root, runs apply on each and swaps each
// host for its rendered copy. Fields are one-shot here and destroyed
// afterwards.
func materialise(ctx context.Context, root *html.Node, s *scope.Scope, o *options, apply func(*field.Field) error) error {
	fields, err := field.NewBinder(o.binder...).BindAll(ctx, root, s)
	if err != nil {
		return err
	}
	defer func() {
		for _, f := range fields {
			f.Destroy()
		}
	}()

	for _, f := range fields {
		if apply != nil {
			if err := apply(f); err != nil {
				return fmt.Errorf("formfield: apply %s: %w", f.Binding().ModelPath, err)
			}
		}
		nodes, err := f.Render()
		if err != nil {
			return fmt.Errorf("formfield: render %s: %w", f.Binding().ModelPath, err)
		}
		host := f.Host()
		for _, n := range nodes {
			host.Parent.InsertBefore(n, host)
		}
		host.Parent.RemoveChild(host)
	}
	return nil
}

func (o *options) serialise(nodes ...*html.Node) (string, error) {
	out, err := dom.Render(nodes...)
	if err != nil {
		return "", err
	}
	if o.policy != nil {
		out = dom.Sanitize(out, o.policy)
	}
	return out, nil
}
