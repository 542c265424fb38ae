package field

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/net/html"

	"github.com/goliatone/go-formfield/pkg/controller"
	"github.com/goliatone/go-formfield/pkg/dom"
	"github.com/goliatone/go-formfield/pkg/scope"
	"github.com/goliatone/go-formfield/pkg/templates"
)

// Option configures a Binder.
type Option func(*Binder)

// WithResolver sets the template resolver. The default serves the embedded
// input, select and textarea templates.
func WithResolver(resolver templates.Resolver) Option {
	return func(b *Binder) {
		if resolver != nil {
			b.resolver = resolver
		}
	}
}

// WithForbiddenDirectives replaces the host directives rejected as structural
// conflicts.
func WithForbiddenDirectives(names ...string) Option {
	return func(b *Binder) {
		b.forbidden = append([]string{}, names...)
	}
}

// WithRules adds rules to every controller, after the attribute rules.
func WithRules(rules ...controller.Rule) Option {
	return func(b *Binder) {
		b.rules = append(b.rules, rules...)
	}
}

// Binder binds host elements. It is safe to share between goroutines; each
// binding's composition runs on the goroutine that waits for it.
type Binder struct {
	resolver  templates.Resolver
	forbidden []string
	rules     []controller.Rule
}

// NewBinder builds a Binder.
func NewBinder(options ...Option) *Binder {
	b := &Binder{forbidden: DefaultForbiddenDirectives}
	for _, opt := range options {
		if opt != nil {
			opt(b)
		}
	}
	if b.resolver == nil {
		b.resolver = templates.Default()
	}
	return b
}

// Bind binds host in one step. A nil parent gets a fresh root scope.
func (b *Binder) Bind(ctx context.Context, host *html.Node, parent *scope.Scope) (*Field, error) {
	pending, err := b.Start(ctx, host, parent)
	if err != nil {
		return nil, err
	}
	return pending.Wait()
}

// Start validates host and begins resolving its template in the background.
// Structural conflicts are reported here, before any resolution starts.
func (b *Binder) Start(ctx context.Context, host *html.Node, parent *scope.Scope) (*Pending, error) {
	binding, err := NewBinding(host)
	if err != nil {
		return nil, err
	}
	if err := CheckStructure(host, b.forbidden); err != nil {
		return nil, err
	}
	if parent == nil {
		parent = scope.New(nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &Pending{
		binder:  b,
		binding: binding,
		parent:  parent,
		cancel:  cancel,
		result:  make(chan resolution, 1),
	}
	go func() {
		frag, err := b.resolver.Resolve(ctx, binding.TemplateName)
		p.result <- resolution{frag: frag, err: err}
	}()
	return p, nil
}

// BindAll binds every <field> element under root. Templates are resolved
// concurrently; composition happens in document order. Fields nested inside
// another field's declarations are left to that field.
func (b *Binder) BindAll(ctx context.Context, root *html.Node, parent *scope.Scope) ([]*Field, error) {
	if parent == nil {
		parent = scope.New(nil)
	}
	var pending []*Pending
	for _, host := range dom.FindAll([]*html.Node{root}, dom.ByTag(TagField)) {
		if insideField(host) {
			continue
		}
		p, err := b.Start(ctx, host, parent)
		if err != nil {
			destroyAll(pending)
			return nil, err
		}
		pending = append(pending, p)
	}

	fields := make([]*Field, 0, len(pending))
	for i, p := range pending {
		f, err := p.Wait()
		if err != nil {
			destroyAll(pending[i+1:])
			for _, bound := range fields {
				bound.Destroy()
			}
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func (b *Binder) attach(binding *Binding, frag templates.Fragment, parent *scope.Scope) (*Field, error) {
	messages, err := BuildMessageMap(binding.Host())
	if err != nil {
		return nil, err
	}
	composed, err := prepare(binding, frag, b.forbidden)
	if err != nil {
		return nil, err
	}
	rules, err := controller.RulesFromAttributes(composed.Input)
	if err != nil {
		return nil, fmt.Errorf("field: %s: %w", binding.ModelPath, err)
	}
	composed.attach(binding)

	initial, _ := parent.Lookup(binding.ModelPath)
	ctrl := controller.New(binding.ModelPath, initial, append(rules, b.rules...)...)
	f := newField(binding, composed, parent, ctrl, messages)
	if err := f.Digest(); err != nil {
		f.Destroy()
		return nil, err
	}
	return f, nil
}

type resolution struct {
	frag templates.Fragment
	err  error
}

// Pending is a binding whose template is still resolving.
type Pending struct {
	binder  *Binder
	binding *Binding
	parent  *scope.Scope
	cancel  context.CancelFunc
	result  chan resolution

	once      sync.Once
	mu        sync.Mutex
	destroyed atomic.Bool
	field     *Field
	err       error
}

// Binding returns the parsed host description.
func (p *Pending) Binding() *Binding { return p.binding }

// Wait blocks until the template resolves, then composes and attaches the
// field on the calling goroutine. Later calls return the same result.
func (p *Pending) Wait() (*Field, error) {
	p.once.Do(func() {
		res := <-p.result
		p.cancel()

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.destroyed.Load() {
			p.err = ErrHostDestroyed
			return
		}
		if res.err != nil {
			p.err = fmt.Errorf("field: %s: %w", p.binding.ModelPath, res.err)
			return
		}
		p.field, p.err = p.binder.attach(p.binding, res.frag, p.parent)
	})
	return p.field, p.err
}

// Destroy tears the binding down. An in-flight resolution is cancelled and
// its result discarded without touching the host.
func (p *Pending) Destroy() {
	p.destroyed.Store(true)
	p.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.field != nil {
		p.field.Destroy()
	}
}

func destroyAll(pending []*Pending) {
	for _, p := range pending {
		p.Destroy()
	}
}

func insideField(n *html.Node) bool {
	for parent := n.Parent; parent != nil; parent = parent.Parent {
		if dom.IsElement(parent, TagField) {
			return true
		}
	}
	return false
}
