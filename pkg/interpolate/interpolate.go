// Package interpolate compiles text containing {{ expr }} placeholders into
// reusable templates evaluated against an explicit context on every call.
//
// Literal text is kept verbatim. Each placeholder expression is compiled by
// pongo2, so filters such as {{ name|upper }} work. Identifiers may start
// with `$` ({{ $fieldLabel }}); they are resolved from context keys with the
// same spelling.
package interpolate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flosch/pongo2/v6"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"

	// dollarAlias stands in for a leading `$`, which pongo2 identifiers
	// cannot carry.
	dollarAlias = "dollar_"
)

// ErrSyntax marks malformed placeholder syntax.
var ErrSyntax = errors.New("interpolate: syntax error")

// Template is a compiled interpolation. It is immutable and safe to reuse.
type Template struct {
	source string
	parts  []part
}

type part struct {
	literal string
	expr    string
	tpl     *pongo2.Template
}

// Compile parses source. Unterminated or empty placeholders and expressions
// pongo2 rejects fail here rather than at evaluation time. A closing
// delimiter outside a placeholder is literal text.
func Compile(source string) (*Template, error) {
	t := &Template{source: source}
	rest := source
	offset := 0
	for {
		start := strings.Index(rest, openDelim)
		if start < 0 {
			if rest != "" {
				t.parts = append(t.parts, part{literal: rest})
			}
			return t, nil
		}
		if start > 0 {
			t.parts = append(t.parts, part{literal: rest[:start]})
		}

		body := rest[start+len(openDelim):]
		end := strings.Index(body, closeDelim)
		if end < 0 {
			return nil, fmt.Errorf("%w: unterminated %q at offset %d", ErrSyntax, openDelim, offset+start)
		}
		expr := strings.TrimSpace(body[:end])
		if expr == "" {
			return nil, fmt.Errorf("%w: empty expression at offset %d", ErrSyntax, offset+start)
		}
		if strings.Contains(expr, openDelim) {
			return nil, fmt.Errorf("%w: nested %q at offset %d", ErrSyntax, openDelim, offset+start)
		}

		tpl, err := pongo2.FromString("{% autoescape off %}{{ " + rewriteDollars(expr) + " }}{% endautoescape %}")
		if err != nil {
			return nil, fmt.Errorf("%w: expression %q: %v", ErrSyntax, expr, err)
		}
		t.parts = append(t.parts, part{expr: expr, tpl: tpl})

		consumed := start + len(openDelim) + end + len(closeDelim)
		rest = rest[consumed:]
		offset += consumed
	}
}

// MustCompile is Compile that panics on error. Useful for static templates.
func MustCompile(source string) *Template {
	t, err := Compile(source)
	if err != nil {
		panic(err)
	}
	return t
}

// HasPlaceholders reports whether s contains an opening delimiter.
func HasPlaceholders(s string) bool {
	return strings.Contains(s, openDelim)
}

// Source returns the text the template was compiled from.
func (t *Template) Source() string {
	return t.source
}

// Expressions lists placeholder expressions in order of appearance.
func (t *Template) Expressions() []string {
	var out []string
	for _, p := range t.parts {
		if p.tpl != nil {
			out = append(out, p.expr)
		}
	}
	return out
}

// Execute evaluates the template as plain text. Nothing is escaped; callers
// rendering into markup insert the result as text.
func (t *Template) Execute(ctx map[string]any) (string, error) {
	var pctx pongo2.Context
	var b strings.Builder
	for _, p := range t.parts {
		if p.tpl == nil {
			b.WriteString(p.literal)
			continue
		}
		if pctx == nil {
			pctx = toContext(ctx)
		}
		value, err := p.tpl.Execute(pctx)
		if err != nil {
			return "", fmt.Errorf("interpolate: evaluate %q: %w", p.expr, err)
		}
		b.WriteString(value)
	}
	return b.String(), nil
}

func toContext(ctx map[string]any) pongo2.Context {
	out := make(pongo2.Context, len(ctx))
	for key, value := range ctx {
		if strings.HasPrefix(key, "$") {
			out[dollarAlias+key[1:]] = value
			continue
		}
		out[key] = value
	}
	return out
}

// rewriteDollars maps `$ident` to the pongo2-safe alias outside string
// literals.
func rewriteDollars(expr string) string {
	var b strings.Builder
	b.Grow(len(expr) + 8)
	var quote byte
	for i := 0; i < len(expr); i++ {
		ch := expr[i]
		switch {
		case quote != 0:
			b.WriteByte(ch)
			if ch == '\\' && i+1 < len(expr) {
				i++
				b.WriteByte(expr[i])
				continue
			}
			if ch == quote {
				quote = 0
			}
		case ch == '"' || ch == '\'':
			quote = ch
			b.WriteByte(ch)
		case ch == '$' && i+1 < len(expr) && isIdentStart(expr[i+1]):
			b.WriteString(dollarAlias)
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}
