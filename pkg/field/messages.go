package field

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/goliatone/go-formfield/pkg/dom"
	"github.com/goliatone/go-formfield/pkg/interpolate"
)

// MessageFunc renders a validator message against ctx. The result is plain
// text; it is escaped when written into markup.
type MessageFunc func(ctx map[string]any) string

// MessageMap holds one compiled message per validator key.
type MessageMap map[string]MessageFunc

// Render evaluates the message for key.
func (m MessageMap) Render(key string, ctx map[string]any) (string, bool) {
	fn, ok := m[key]
	if !ok || fn == nil {
		return "", false
	}
	return fn(ctx), true
}

// Keys returns the validator keys with a message.
func (m MessageMap) Keys() []string {
	out := make([]string, 0, len(m))
	for key := range m {
		out = append(out, key)
	}
	return out
}

// BuildMessageMap compiles the direct <validator key="..."> children of host.
// Validators without a key are ignored. The message source is the
// validator's decoded text, so &lt;b&gt; stays literal.
func BuildMessageMap(host *html.Node) (MessageMap, error) {
	out := make(MessageMap)
	for _, validator := range dom.Children(host, TagValidator) {
		key, ok := dom.Attr(validator, AttrKey)
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		tpl, err := interpolate.Compile(dom.Text(validator))
		if err != nil {
			return nil, &MessageTemplateError{Key: key, Err: err}
		}
		// Last declaration wins, so a later validator can refine an earlier one.
		out[key] = messageFunc(tpl)
	}
	return out, nil
}

func messageFunc(tpl *interpolate.Template) MessageFunc {
	return func(ctx map[string]any) string {
		out, err := tpl.Execute(ctx)
		if err != nil {
			return ""
		}
		return out
	}
}
