package field

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/goliatone/go-formfield/pkg/controller"
	"github.com/goliatone/go-formfield/pkg/dom"
	"github.com/goliatone/go-formfield/pkg/scope"
	"github.com/goliatone/go-formfield/pkg/view"
)

// Field is a bound host element. Its scope is a child of the scope it was
// bound in and carries $field, $fieldErrors, $messageMap and $fieldLabel.
type Field struct {
	binding  *Binding
	composed *Composed
	parent   *scope.Scope
	scope    *scope.Scope
	ctrl     *controller.Model
	messages MessageMap
	renderer *view.Renderer
	agg      *aggregator

	unwatch  []func()
	labelErr error
}

func newField(b *Binding, composed *Composed, parent *scope.Scope, ctrl *controller.Model, messages MessageMap) *Field {
	f := &Field{
		binding:  b,
		composed: composed,
		parent:   parent,
		scope:    parent.Child(),
		ctrl:     ctrl,
		messages: messages,
	}
	f.renderer = view.New(view.WithSlot(AttrMessage, f.messageSlot))

	f.scope.Set(KeyField, ctrl)
	f.scope.Set(KeyMessageMap, messages)
	f.scope.Set(KeyFieldLabel, "")
	f.agg = attachAggregator(f.scope, ctrl)

	f.unwatch = append(f.unwatch,
		f.scope.Watch(f.renderLabel, func(value any) {
			f.scope.Set(KeyFieldLabel, value)
		}),
		f.scope.Watch(func() any {
			value, _ := parent.Lookup(b.ModelPath)
			return value
		}, func(value any) {
			if !reflect.DeepEqual(value, ctrl.ModelValue()) {
				ctrl.SetModelValue(value)
			}
		}),
	)
	return f
}

// Binding returns the parsed host description.
func (f *Field) Binding() *Binding { return f.binding }

// Composed returns the fragment attached to the host.
func (f *Field) Composed() *Composed { return f.composed }

// Host returns the bound host element.
func (f *Field) Host() *html.Node { return f.composed.Host }

// Scope returns the field's local scope.
func (f *Field) Scope() *scope.Scope { return f.scope }

// Controller returns the controller published as $field.
func (f *Field) Controller() *controller.Model { return f.ctrl }

// Messages returns the compiled validator messages.
func (f *Field) Messages() MessageMap { return f.messages }

// Errors returns the settled $fieldErrors list.
func (f *Field) Errors() []string {
	keys, _ := lookupAs[[]string](f.scope, KeyFieldErrors)
	if keys == nil {
		return []string{}
	}
	return keys
}

// Label returns the settled $fieldLabel.
func (f *Field) Label() string {
	label, _ := lookupAs[string](f.scope, KeyFieldLabel)
	return label
}

// Digest settles derived state.
func (f *Field) Digest() error {
	f.labelErr = nil
	if err := f.scope.Digest(); err != nil {
		return fmt.Errorf("field: %s: %w", f.binding.ModelPath, err)
	}
	if f.labelErr != nil {
		return fmt.Errorf("field: %s: label: %w", f.binding.ModelPath, f.labelErr)
	}
	return nil
}

// SetViewValue records user input, writes the resulting model value back to
// the bound path and digests.
func (f *Field) SetViewValue(value string) error {
	f.ctrl.SetViewValue(value)
	if err := f.parent.Assign(f.binding.ModelPath, f.ctrl.ModelValue()); err != nil {
		return fmt.Errorf("field: %w", err)
	}
	return f.Digest()
}

// Message renders the current validation message.
func (f *Field) Message() (string, error) {
	return RenderMessage(f.scope)
}

// Render materialises the host element with its composed content. The
// input-like element carries the controller's current view value.
func (f *Field) Render() ([]*html.Node, error) {
	nodes, err := f.renderer.Render([]*html.Node{f.composed.Host}, f.scope)
	if err != nil {
		return nil, err
	}
	input := dom.Find(nodes, func(n *html.Node) bool {
		id, _ := dom.Attr(n, "id")
		return dom.IsElement(n, InputTags...) && id == f.composed.Identifier
	})
	writeValue(input, f.ctrl.ViewValue())
	return nodes, nil
}

// RenderString materialises and serialises the host element.
func (f *Field) RenderString() (string, error) {
	nodes, err := f.Render()
	if err != nil {
		return "", err
	}
	return dom.Render(nodes...)
}

// Destroy detaches the field from its controller and parent scope. The DOM is
// left as is.
func (f *Field) Destroy() {
	f.agg.detach()
	for _, unwatch := range f.unwatch {
		unwatch()
	}
	f.unwatch = nil
	f.scope.Destroy()
}

func (f *Field) renderLabel() any {
	if f.composed.Label == nil {
		return ""
	}
	var children []*html.Node
	for c := f.composed.Label.FirstChild; c != nil; c = c.NextSibling {
		children = append(children, c)
	}
	nodes, err := f.renderer.Render(children, f.scope)
	if err != nil {
		f.labelErr = err
		return ""
	}
	return labelText(dom.Text(nodes...))
}

func (f *Field) messageSlot(s *scope.Scope) ([]*html.Node, error) {
	message, err := RenderMessage(s)
	if err != nil || message == "" {
		return nil, err
	}
	return []*html.Node{{Type: html.TextNode, Data: message}}, nil
}

func writeValue(input *html.Node, value string) {
	if input == nil {
		return
	}
	switch input.Data {
	case "textarea":
		dom.RemoveChildren(input)
		input.AppendChild(&html.Node{Type: html.TextNode, Data: value})
	case "input":
		typ, _ := dom.Attr(input, "type")
		switch strings.ToLower(typ) {
		case "checkbox", "radio":
			if on, err := strconv.ParseBool(value); err == nil && on {
				dom.SetAttr(input, "checked", "")
			} else {
				dom.RemoveAttr(input, "checked")
			}
		case "password", "file":
		default:
			if value != "" {
				dom.SetAttr(input, "value", value)
			}
		}
	}
}
