package field

import (
	"errors"
	"strings"

	"golang.org/x/net/html"

	"github.com/goliatone/go-formfield/pkg/dom"
	"github.com/goliatone/go-formfield/pkg/templates"
)

// DefaultForbiddenDirectives are the host attributes that make a binding
// ambiguous: a repeated or conditional host has no single identity.
var DefaultForbiddenDirectives = []string{"repeat", "switch", "if"}

// InputTags are the input-like elements a template must provide one of.
var InputTags = []string{"input", "select", "textarea"}

var errNoInput = errors.New("template has no input, select or textarea element")

// Composed is a fragment wired to its binding and attached to the host.
type Composed struct {
	Host       *html.Node
	Nodes      []*html.Node
	Input      *html.Node
	Label      *html.Node
	Identifier string
}

// CheckStructure rejects hosts carrying any of the forbidden directives. A nil
// list means DefaultForbiddenDirectives.
func CheckStructure(host *html.Node, forbidden []string) error {
	if forbidden == nil {
		forbidden = DefaultForbiddenDirectives
	}
	for _, directive := range forbidden {
		directive = strings.TrimSpace(directive)
		if directive != "" && dom.HasAttr(host, directive) {
			return &StructuralConflictError{Directive: directive}
		}
	}
	return nil
}

// Compose wires a copy of frag to b and appends it to the binding's host. The
// host is only modified once every check has passed.
func Compose(b *Binding, frag templates.Fragment, forbidden []string) (*Composed, error) {
	composed, err := prepare(b, frag, forbidden)
	if err != nil {
		return nil, err
	}
	composed.attach(b)
	return composed, nil
}

// prepare wires a copy of the fragment without touching the host.
func prepare(b *Binding, frag templates.Fragment, forbidden []string) (*Composed, error) {
	if err := CheckStructure(b.Host(), forbidden); err != nil {
		return nil, err
	}

	nodes := dom.CloneAll(frag.Nodes)
	input := dom.Find(nodes, dom.ByTag(InputTags...))
	if input == nil {
		return nil, &TemplateResolutionError{Name: frag.Path, Err: errNoInput}
	}
	label := dom.Find(nodes, dom.ByTag(TagLabel))

	dom.SetAttr(input, "name", b.Identifier)
	dom.SetAttr(input, "id", b.Identifier)
	if label != nil {
		dom.SetAttr(label, "for", b.Identifier)
	}
	for _, attr := range b.Attributes {
		dom.SetAttr(input, attr.Key, attr.Val)
	}

	return &Composed{
		Host:       b.Host(),
		Nodes:      nodes,
		Input:      input,
		Label:      label,
		Identifier: b.Identifier,
	}, nil
}

// attach transplants the host label content, drops the declaration children
// and appends the composed nodes to the host.
func (c *Composed) attach(b *Binding) {
	if b.Label != nil && c.Label != nil {
		dom.RemoveChildren(c.Label)
		dom.MoveChildren(c.Label, b.Label)
		dom.Detach(b.Label)
	}
	for _, validator := range b.Validators {
		dom.Detach(validator)
	}
	for _, n := range c.Nodes {
		c.Host.AppendChild(n)
	}
}
