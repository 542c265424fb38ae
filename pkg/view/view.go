// Package view materialises composed field markup against a scope. It is the
// composition mechanism the field engine hands its composed tree to: the
// source tree is never mutated, each Render produces a fresh copy with
// directives expanded.
//
// Directives:
//
//	repeat="item in source"  one copy per element of source (a scope path or
//	                         a JSON array literal); item and $index are set
//	if="condition"           element kept only when the condition holds
//	switch="path"            keeps children whose when="value" matches, or the
//	                         when-default children when none does
//
// Text nodes containing {{ expr }} placeholders are interpolated. Elements
// carrying a registered slot attribute get their content from the slot.
package view

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"github.com/goliatone/go-formfield/pkg/dom"
	"github.com/goliatone/go-formfield/pkg/interpolate"
	"github.com/goliatone/go-formfield/pkg/scope"
	"github.com/goliatone/go-formfield/pkg/view/expr"
)

// Directive attribute names.
const (
	AttrRepeat      = "repeat"
	AttrIf          = "if"
	AttrSwitch      = "switch"
	AttrWhen        = "when"
	AttrWhenDefault = "when-default"
)

var directiveAttrs = []string{AttrRepeat, AttrIf, AttrSwitch, AttrWhen, AttrWhenDefault}

// SlotFunc produces the content of an element carrying a slot attribute.
type SlotFunc func(s *scope.Scope) ([]*html.Node, error)

// Option configures a Renderer.
type Option func(*Renderer)

// WithSlot fills elements carrying attr with the output of fn.
func WithSlot(attr string, fn SlotFunc) Option {
	return func(r *Renderer) {
		attr = strings.ToLower(strings.TrimSpace(attr))
		if attr == "" || fn == nil {
			return
		}
		r.slots[attr] = fn
	}
}

// Renderer expands directives. Compiled conditions and interpolations are
// cached by source text.
type Renderer struct {
	slots map[string]SlotFunc

	mu    sync.Mutex
	texts map[string]*interpolate.Template
	conds map[string]*expr.Expr
}

// New builds a Renderer.
func New(options ...Option) *Renderer {
	r := &Renderer{
		slots: make(map[string]SlotFunc),
		texts: make(map[string]*interpolate.Template),
		conds: make(map[string]*expr.Expr),
	}
	for _, opt := range options {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Render materialises nodes against s.
func (r *Renderer) Render(nodes []*html.Node, s *scope.Scope) ([]*html.Node, error) {
	var out []*html.Node
	for _, n := range nodes {
		rendered, err := r.node(n, s)
		if err != nil {
			return nil, err
		}
		out = append(out, rendered...)
	}
	return out, nil
}

// RenderString materialises nodes and serialises the result.
func (r *Renderer) RenderString(nodes []*html.Node, s *scope.Scope) (string, error) {
	rendered, err := r.Render(nodes, s)
	if err != nil {
		return "", err
	}
	return dom.Render(rendered...)
}

func (r *Renderer) node(n *html.Node, s *scope.Scope) ([]*html.Node, error) {
	switch n.Type {
	case html.TextNode:
		text, err := r.text(n.Data, s)
		if err != nil {
			return nil, err
		}
		return []*html.Node{{Type: html.TextNode, Data: text}}, nil
	case html.ElementNode:
		return r.element(n, s)
	case html.DocumentNode:
		out := &html.Node{Type: html.DocumentNode}
		if err := r.children(out, n, s); err != nil {
			return nil, err
		}
		return []*html.Node{out}, nil
	default:
		return []*html.Node{dom.Clone(n)}, nil
	}
}

func (r *Renderer) element(n *html.Node, s *scope.Scope) ([]*html.Node, error) {
	if source, ok := dom.Attr(n, AttrRepeat); ok {
		return r.repeat(n, source, s)
	}
	return r.single(n, s)
}

func (r *Renderer) single(n *html.Node, s *scope.Scope) ([]*html.Node, error) {
	if rule, ok := dom.Attr(n, AttrIf); ok {
		cond, err := r.condition(rule)
		if err != nil {
			return nil, err
		}
		if !cond.Eval(s.Lookup) {
			return nil, nil
		}
	}

	out := shallowClone(n)
	for attr, slot := range r.slots {
		if !dom.HasAttr(n, attr) {
			continue
		}
		content, err := slot(s)
		if err != nil {
			return nil, fmt.Errorf("view: slot %q: %w", attr, err)
		}
		for _, child := range content {
			out.AppendChild(child)
		}
		return []*html.Node{out}, nil
	}

	if path, ok := dom.Attr(n, AttrSwitch); ok {
		if err := r.switchChildren(out, n, path, s); err != nil {
			return nil, err
		}
		return []*html.Node{out}, nil
	}

	if err := r.children(out, n, s); err != nil {
		return nil, err
	}
	return []*html.Node{out}, nil
}

func (r *Renderer) children(dst, src *html.Node, s *scope.Scope) error {
	for c := src.FirstChild; c != nil; c = c.NextSibling {
		rendered, err := r.node(c, s)
		if err != nil {
			return err
		}
		for _, child := range rendered {
			dst.AppendChild(child)
		}
	}
	return nil
}

func (r *Renderer) repeat(n *html.Node, source string, s *scope.Scope) ([]*html.Node, error) {
	name, from, ok := strings.Cut(source, " in ")
	name, from = strings.TrimSpace(name), strings.TrimSpace(from)
	if !ok || name == "" || from == "" {
		return nil, fmt.Errorf("view: repeat %q: expected \"item in source\"", source)
	}
	items, err := repeatItems(from, s)
	if err != nil {
		return nil, fmt.Errorf("view: repeat %q: %w", source, err)
	}

	template := dom.Clone(n)
	dom.RemoveAttr(template, AttrRepeat)

	var out []*html.Node
	for i, item := range items {
		iteration := s.Fork()
		iteration.Set(name, item)
		iteration.Set("$index", i)
		rendered, err := r.single(template, iteration)
		if err != nil {
			return nil, err
		}
		out = append(out, rendered...)
	}
	return out, nil
}

func (r *Renderer) switchChildren(dst, src *html.Node, path string, s *scope.Scope) error {
	value, _ := s.Lookup(strings.TrimSpace(path))
	matched := false
	for c := src.FirstChild; c != nil; c = c.NextSibling {
		if when, ok := dom.Attr(c, AttrWhen); ok && c.Type == html.ElementNode && expr.Equal(value, when) {
			matched = true
			break
		}
	}
	for c := src.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			when, isCase := dom.Attr(c, AttrWhen)
			isDefault := dom.HasAttr(c, AttrWhenDefault)
			switch {
			case isCase && !(matched && expr.Equal(value, when)):
				continue
			case isDefault && matched:
				continue
			}
		}
		rendered, err := r.node(c, s)
		if err != nil {
			return err
		}
		for _, child := range rendered {
			dst.AppendChild(child)
		}
	}
	return nil
}

func (r *Renderer) text(data string, s *scope.Scope) (string, error) {
	if !interpolate.HasPlaceholders(data) {
		return data, nil
	}
	r.mu.Lock()
	tpl, ok := r.texts[data]
	if !ok {
		compiled, err := interpolate.Compile(data)
		if err != nil {
			r.mu.Unlock()
			return "", fmt.Errorf("view: %w", err)
		}
		r.texts[data] = compiled
		tpl = compiled
	}
	r.mu.Unlock()

	out, err := tpl.Execute(s.Values())
	if err != nil {
		return "", fmt.Errorf("view: %w", err)
	}
	return out, nil
}

func (r *Renderer) condition(rule string) (*expr.Expr, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cond, ok := r.conds[rule]; ok {
		return cond, nil
	}
	cond, err := expr.Compile(rule)
	if err != nil {
		return nil, fmt.Errorf("view: if %q: %w", rule, err)
	}
	r.conds[rule] = cond
	return cond, nil
}

func shallowClone(n *html.Node) *html.Node {
	out := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	for _, attr := range n.Attr {
		if attr.Namespace == "" && isDirective(attr.Key) {
			continue
		}
		out.Attr = append(out.Attr, attr)
	}
	return out
}

func isDirective(key string) bool {
	for _, name := range directiveAttrs {
		if strings.EqualFold(key, name) {
			return true
		}
	}
	return false
}

func repeatItems(from string, s *scope.Scope) ([]any, error) {
	if strings.HasPrefix(from, "[") {
		dec := json.NewDecoder(strings.NewReader(from))
		dec.UseNumber()
		var items []any
		if err := dec.Decode(&items); err != nil {
			return nil, fmt.Errorf("decode literal: %w", err)
		}
		return items, nil
	}
	value, ok := s.Lookup(from)
	if !ok || value == nil {
		return nil, nil
	}
	if items, ok := value.([]any); ok {
		return items, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%q is %T, not a list", from, value)
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, nil
}
