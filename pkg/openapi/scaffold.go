package openapi

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"fortio.org/safecast"
	"github.com/getkin/kin-openapi/openapi3"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/goliatone/go-formfield/pkg/controller"
	"github.com/goliatone/go-formfield/pkg/dom"
)

// Errors returned while locating the request schema.
var (
	ErrOperationNotFound = errors.New("openapi: operation not found")
	ErrNoRequestBody     = errors.New("openapi: operation has no request body schema")
)

// WidgetExtension lets a schema property pick its template explicitly, e.g.
// x-formgen-widget: textarea.
const WidgetExtension = "x-formgen-widget"

const maxDepth = 8

// DefaultMessages are the validator messages emitted per rule key. {limit}
// is replaced with the schema constraint.
var DefaultMessages = map[string]string{
	"required":  "{{ $fieldLabel }} is required",
	"maxlength": "{{ $fieldLabel }} must be at most {limit} characters",
	"minlength": "{{ $fieldLabel }} must be at least {limit} characters",
	"pattern":   "{{ $fieldLabel }} has an invalid format",
}

// Field describes one scaffolded host element.
type Field struct {
	Model      string
	Template   string
	Label      string
	Attributes []html.Attribute
	Messages   []Message
}

// Message is one <validator> declaration.
type Message struct {
	Key  string
	Text string
}

// Option configures scaffolding.
type Option func(*config)

type config struct {
	prefix       string
	textareaAt   uint64
	messages     map[string]string
	externalRefs bool
}

// WithPrefix prepends prefix to every model path: "user" gives "user.email".
func WithPrefix(prefix string) Option {
	return func(cfg *config) {
		cfg.prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	}
}

// WithTextareaThreshold switches strings whose maxLength exceeds n to the
// textarea template. Zero disables the switch.
func WithTextareaThreshold(n uint64) Option {
	return func(cfg *config) {
		cfg.textareaAt = n
	}
}

// WithMessage overrides the message emitted for a rule key.
func WithMessage(key, text string) Option {
	return func(cfg *config) {
		cfg.messages[key] = text
	}
}

// WithExternalRefs lets the loader follow references outside the document.
func WithExternalRefs() Option {
	return func(cfg *config) {
		cfg.externalRefs = true
	}
}

func newConfig(options []Option) *config {
	cfg := &config{textareaAt: 255, messages: make(map[string]string, len(DefaultMessages))}
	for key, text := range DefaultMessages {
		cfg.messages[key] = text
	}
	for _, opt := range options {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// Operations lists the operation ids in data. Operations without an id are
// reported as "method:path".
func Operations(ctx context.Context, data []byte) ([]string, error) {
	doc, err := load(ctx, data, false)
	if err != nil {
		return nil, err
	}
	var out []string
	for path, item := range doc.Paths.Map() {
		if item == nil {
			continue
		}
		for method, op := range item.Operations() {
			out = append(out, operationID(method, path, op))
		}
	}
	slices.Sort(out)
	return out, nil
}

// Fields derives host descriptions from the request body of operationID.
// Nested objects flatten into dotted model paths; arrays are skipped.
func Fields(ctx context.Context, data []byte, operationID string, options ...Option) ([]Field, error) {
	cfg := newConfig(options)
	doc, err := load(ctx, data, cfg.externalRefs)
	if err != nil {
		return nil, err
	}
	op := findOperation(doc, operationID)
	if op == nil {
		return nil, fmt.Errorf("%w: %q", ErrOperationNotFound, operationID)
	}
	schema := requestSchema(op)
	if schema == nil || schema.Value == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoRequestBody, operationID)
	}

	var out []Field
	cfg.collect(&out, schema.Value, cfg.prefix, 0)
	return out, nil
}

// Scaffold renders the host markup for operationID.
func Scaffold(ctx context.Context, data []byte, operationID string, options ...Option) (string, error) {
	fields, err := Fields(ctx, data, operationID, options...)
	if err != nil {
		return "", err
	}
	return Markup(fields)
}

// Markup renders fields as <field> elements, one per line.
func Markup(fields []Field) (string, error) {
	var nodes []*html.Node
	for i, f := range fields {
		if i > 0 {
			nodes = append(nodes, text("\n"))
		}
		nodes = append(nodes, f.Node())
	}
	return dom.Render(nodes...)
}

// Node builds the host element for f.
func (f Field) Node() *html.Node {
	host := element("field")
	host.Attr = append(host.Attr,
		html.Attribute{Key: "model", Val: f.Model},
		html.Attribute{Key: "template", Val: f.Template},
	)
	host.Attr = append(host.Attr, f.Attributes...)

	label := element("label")
	label.AppendChild(text(f.Label))
	host.AppendChild(text("\n  "))
	host.AppendChild(label)
	for _, msg := range f.Messages {
		validator := element("validator")
		validator.Attr = []html.Attribute{{Key: "key", Val: msg.Key}}
		validator.AppendChild(text(msg.Text))
		host.AppendChild(text("\n  "))
		host.AppendChild(validator)
	}
	host.AppendChild(text("\n"))
	return host
}

func load(ctx context.Context, data []byte, externalRefs bool) (*openapi3.T, error) {
	if len(data) == 0 {
		return nil, errors.New("openapi: document is empty")
	}
	loader := &openapi3.Loader{Context: ctx, IsExternalRefsAllowed: externalRefs}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("openapi: load document: %w", err)
	}
	if doc.Paths == nil || doc.Paths.Len() == 0 {
		return nil, errors.New("openapi: document does not contain any paths")
	}
	return doc, nil
}

func operationID(method, path string, op *openapi3.Operation) string {
	if op != nil && op.OperationID != "" {
		return op.OperationID
	}
	return strings.ToLower(method) + ":" + path
}

func findOperation(doc *openapi3.T, id string) *openapi3.Operation {
	for path, item := range doc.Paths.Map() {
		if item == nil {
			continue
		}
		for method, op := range item.Operations() {
			if op != nil && operationID(method, path, op) == id {
				return op
			}
		}
	}
	return nil
}

func requestSchema(op *openapi3.Operation) *openapi3.SchemaRef {
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	content := op.RequestBody.Value.Content
	for _, mediaType := range []string{"application/x-www-form-urlencoded", "multipart/form-data", "application/json"} {
		if mt, ok := content[mediaType]; ok && mt != nil {
			return mt.Schema
		}
	}
	for _, mt := range content {
		if mt != nil {
			return mt.Schema
		}
	}
	return nil
}

func (cfg *config) collect(out *[]Field, schema *openapi3.Schema, prefix string, depth int) {
	if depth > maxDepth {
		return
	}
	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		ref := schema.Properties[name]
		if ref == nil || ref.Value == nil || ref.Value.ReadOnly {
			continue
		}
		prop := ref.Value
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		switch schemaType(prop.Type) {
		case "object":
			cfg.collect(out, prop, path, depth+1)
			continue
		case "array":
			continue
		}
		if schemaType(prop.Type) == "" && len(prop.Properties) > 0 {
			cfg.collect(out, prop, path, depth+1)
			continue
		}
		*out = append(*out, cfg.field(path, name, prop, required[name]))
	}
}

func (cfg *config) field(path, name string, prop *openapi3.Schema, required bool) Field {
	f := Field{Model: path, Template: "input.html", Label: humanize(name)}
	if prop.Title != "" {
		f.Label = prop.Title
	}
	attr := func(key, value string) {
		f.Attributes = append(f.Attributes, html.Attribute{Key: key, Val: value})
	}
	message := func(key string, limit int) {
		text, ok := cfg.messages[key]
		if !ok || text == "" {
			return
		}
		text = strings.ReplaceAll(text, "{limit}", strconv.Itoa(limit))
		f.Messages = append(f.Messages, Message{Key: key, Text: text})
	}

	pattern := prop.Pattern
	switch typ := schemaType(prop.Type); {
	case len(prop.Enum) > 0:
		f.Template = "select.html"
		if pattern == "" {
			pattern = enumPattern(prop.Enum)
		}
	case typ == "boolean":
		attr("type", "checkbox")
	case typ == "integer" || typ == "number":
		attr("type", "number")
		if typ == "integer" {
			attr("step", "1")
		}
		if prop.Min != nil {
			attr("min", strconv.FormatFloat(*prop.Min, 'f', -1, 64))
		}
		if prop.Max != nil {
			attr("max", strconv.FormatFloat(*prop.Max, 'f', -1, 64))
		}
	default:
		if widget, _ := prop.Extensions[WidgetExtension].(string); widget != "" {
			f.Template = widget + ".html"
		} else if cfg.textareaAt > 0 && prop.MaxLength != nil && *prop.MaxLength > cfg.textareaAt {
			f.Template = "textarea.html"
		}
		if inputType := formatInputType(prop.Format); inputType != "" && f.Template == "input.html" {
			attr("type", inputType)
		}
	}

	if prop.Description != "" {
		attr("title", prop.Description)
	}
	if prop.Default != nil && f.Template == "input.html" {
		attr("value", fmt.Sprint(prop.Default))
	}

	if required {
		attr(controller.AttrRequired, "")
		message("required", 0)
	}
	if prop.MaxLength != nil {
		if n, ok := length(*prop.MaxLength); ok {
			attr(controller.AttrMaxLength, strconv.Itoa(n))
			message("maxlength", n)
		}
	}
	if prop.MinLength > 0 {
		if n, ok := length(prop.MinLength); ok {
			attr(controller.AttrMinLength, strconv.Itoa(n))
			message("minlength", n)
		}
	}
	if pattern != "" {
		attr(controller.AttrPattern, pattern)
		message("pattern", 0)
	}
	return f
}

// length converts a schema length to the int the controller rules parse.
// Lengths beyond int range carry no usable limit and are dropped.
func length(v uint64) (int, bool) {
	n, err := safecast.Convert[int](v)
	return n, err == nil
}

func schemaType(types *openapi3.Types) string {
	if types == nil {
		return ""
	}
	for _, typ := range types.Slice() {
		if typ != "null" {
			return typ
		}
	}
	return ""
}

func formatInputType(format string) string {
	switch format {
	case "email":
		return "email"
	case "date":
		return "date"
	case "date-time":
		return "datetime-local"
	case "uri", "url":
		return "url"
	case "password":
		return "password"
	default:
		return ""
	}
}

func enumPattern(values []any) string {
	parts := make([]string, 0, len(values))
	for _, value := range values {
		parts = append(parts, regexp.QuoteMeta(fmt.Sprint(value)))
	}
	return strings.Join(parts, "|")
}

// humanize turns property names into labels: "firstName" and "first_name"
// both give "First name".
func humanize(name string) string {
	var words []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			words = append(words, strings.ToLower(string(current)))
			current = current[:0]
		}
	}
	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == '.' || unicode.IsSpace(r):
			flush()
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			flush()
			current = append(current, r)
		default:
			current = append(current, r)
		}
	}
	flush()
	if len(words) == 0 {
		return name
	}
	first := []rune(words[0])
	first[0] = unicode.ToUpper(first[0])
	words[0] = string(first)
	return strings.Join(words, " ")
}

func element(tag string) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

func text(data string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: data}
}
