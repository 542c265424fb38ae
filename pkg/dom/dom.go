// Package dom wraps golang.org/x/net/html with the handful of tree operations
// the field engine needs: fragment parsing, element lookup, attribute editing,
// deep cloning, child migration and serialisation.
package dom

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseFragment parses markup as body content and returns the detached
// top-level nodes in document order.
func ParseFragment(markup string) ([]*html.Node, error) {
	context := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(markup), context)
	if err != nil {
		return nil, fmt.Errorf("dom: parse fragment: %w", err)
	}
	return nodes, nil
}

// ParseDocument parses a complete HTML document.
func ParseDocument(markup string) (*html.Node, error) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("dom: parse document: %w", err)
	}
	return doc, nil
}

// IsElement reports whether n is an element with one of the given tag names.
// With no names it matches any element.
func IsElement(n *html.Node, names ...string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	if len(names) == 0 {
		return true
	}
	for _, name := range names {
		if strings.EqualFold(n.Data, name) {
			return true
		}
	}
	return false
}

// Find returns the first node (depth first, document order) among roots and
// their descendants that satisfies match.
func Find(roots []*html.Node, match func(*html.Node) bool) *html.Node {
	for _, root := range roots {
		if found := find(root, match); found != nil {
			return found
		}
	}
	return nil
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n == nil {
		return nil
	}
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

// FindAll collects every node among roots and their descendants that
// satisfies match.
func FindAll(roots []*html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, root := range roots {
		if root != nil {
			walk(root)
		}
	}
	return out
}

// ByTag returns a matcher for elements with one of the given tag names.
func ByTag(names ...string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return IsElement(n, names...)
	}
}

// ByAttr returns a matcher for elements carrying the named attribute.
func ByAttr(name string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return IsElement(n) && HasAttr(n, name)
	}
}

// Children returns the direct element children of n with one of the given tag
// names.
func Children(n *html.Node, names ...string) []*html.Node {
	if n == nil {
		return nil
	}
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if IsElement(c, names...) {
			out = append(out, c)
		}
	}
	return out
}

// Attr returns the value of the named attribute.
func Attr(n *html.Node, name string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, attr := range n.Attr {
		if attr.Namespace == "" && strings.EqualFold(attr.Key, name) {
			return attr.Val, true
		}
	}
	return "", false
}

// HasAttr reports whether the named attribute is present.
func HasAttr(n *html.Node, name string) bool {
	_, ok := Attr(n, name)
	return ok
}

// SetAttr overwrites the named attribute in place or appends it.
func SetAttr(n *html.Node, name, value string) {
	if n == nil {
		return
	}
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && strings.EqualFold(n.Attr[i].Key, name) {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

// RemoveAttr deletes every occurrence of the named attribute.
func RemoveAttr(n *html.Node, name string) {
	if n == nil || len(n.Attr) == 0 {
		return
	}
	kept := n.Attr[:0]
	for _, attr := range n.Attr {
		if attr.Namespace == "" && strings.EqualFold(attr.Key, name) {
			continue
		}
		kept = append(kept, attr)
	}
	n.Attr = kept
}

// Clone deep-copies n. The copy is detached from any parent or siblings.
func Clone(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	out := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		out.Attr = append([]html.Attribute(nil), n.Attr...)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out.AppendChild(Clone(c))
	}
	return out
}

// CloneAll deep-copies each node.
func CloneAll(nodes []*html.Node) []*html.Node {
	out := make([]*html.Node, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, Clone(n))
	}
	return out
}

// Detach removes n from its parent, if any.
func Detach(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// RemoveChildren detaches every child of n.
func RemoveChildren(n *html.Node) {
	for n.FirstChild != nil {
		n.RemoveChild(n.FirstChild)
	}
}

// MoveChildren relocates the children of src (not src itself) to the end of
// dst, preserving order and the nodes' own attributes.
func MoveChildren(dst, src *html.Node) {
	if dst == nil || src == nil {
		return
	}
	for src.FirstChild != nil {
		child := src.FirstChild
		src.RemoveChild(child)
		dst.AppendChild(child)
	}
}

// Text concatenates the text nodes under n in document order.
func Text(nodes ...*html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		if n != nil {
			walk(n)
		}
	}
	return b.String()
}

// Render serialises nodes (outer HTML) in order.
func Render(nodes ...*html.Node) (string, error) {
	var buf bytes.Buffer
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if err := html.Render(&buf, n); err != nil {
			return "", fmt.Errorf("dom: render: %w", err)
		}
	}
	return buf.String(), nil
}
