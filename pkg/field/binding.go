package field

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/goliatone/go-formfield/pkg/dom"
	"github.com/goliatone/go-formfield/pkg/templates"
)

// Markup vocabulary.
const (
	TagField     = "field"
	TagLabel     = "label"
	TagValidator = "validator"

	AttrModel    = "model"
	AttrTemplate = "template"
	AttrKey      = "key"
)

// Binding is the parsed description of one host element. It is a snapshot:
// later changes to the host are not reflected.
type Binding struct {
	ModelPath    string
	TemplateName string
	Identifier   string
	// Attributes is every host attribute except model and template, in
	// document order.
	Attributes []html.Attribute
	Label      *html.Node
	Validators []*html.Node

	host *html.Node
}

// NewBinding reads host.
func NewBinding(host *html.Node) (*Binding, error) {
	if !dom.IsElement(host) {
		return nil, fmt.Errorf("field: host must be an element")
	}
	path, _ := dom.Attr(host, AttrModel)
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("field: <%s>: %w", host.Data, ErrModelRequired)
	}

	name, _ := dom.Attr(host, AttrTemplate)
	name = strings.TrimSpace(name)
	if name == "" {
		name = templates.DefaultName
	}

	b := &Binding{
		ModelPath:    path,
		TemplateName: name,
		Identifier:   DeriveIdentifier(path),
		host:         host,
	}
	for _, attr := range host.Attr {
		if attr.Namespace == "" && isReserved(attr.Key) {
			continue
		}
		b.Attributes = append(b.Attributes, attr)
	}
	if labels := dom.Children(host, TagLabel); len(labels) > 0 {
		b.Label = labels[0]
	}
	b.Validators = dom.Children(host, TagValidator)
	return b, nil
}

// Host returns the element the binding was read from.
func (b *Binding) Host() *html.Node { return b.host }

func isReserved(key string) bool {
	return strings.EqualFold(key, AttrModel) || strings.EqualFold(key, AttrTemplate)
}
