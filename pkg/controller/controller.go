// Package controller provides the binding controller a composed field attaches
// to its input-like element: it tracks the model and view values, the dirty
// flag and a keyed validity set, and notifies subscribers on every change.
package controller

import (
	"fmt"
	"slices"
	"sync"
)

// Controller is the capability set field consumers observe. Implementations
// vary per input kind; the engine only reads through this interface.
type Controller interface {
	ModelValue() any
	ViewValue() string
	// Keys lists every validator key the controller knows, in declaration
	// order.
	Keys() []string
	// Valid reports the state of key; known is false for undeclared keys.
	Valid(key string) (valid bool, known bool)
	Dirty() bool
	Subscribe(fn func()) (unsubscribe func())
}

// Model is the default Controller. Rules run against the view value whenever
// it changes; keys set through SetValidity are kept until changed again.
type Model struct {
	path  string
	rules []Rule

	modelValue any
	viewValue  string
	dirty      bool

	keys     []string
	validity map[string]bool

	mu          sync.Mutex
	seq         int
	subscribers map[int]func()
}

var _ Controller = (*Model)(nil)

// New creates a pristine controller for the model at path seeded with the
// current model value. Rule keys are declared up front, all valid.
func New(path string, initial any, rules ...Rule) *Model {
	m := &Model{
		path:        path,
		validity:    make(map[string]bool),
		subscribers: make(map[int]func()),
	}
	for _, rule := range rules {
		if rule == nil {
			continue
		}
		m.rules = append(m.rules, rule)
		m.declare(rule.Key(), true)
	}
	m.modelValue = initial
	m.viewValue = formatValue(initial)
	return m
}

// Path returns the model path the controller is bound to.
func (m *Model) Path() string { return m.path }

func (m *Model) ModelValue() any { return m.modelValue }

func (m *Model) ViewValue() string { return m.viewValue }

func (m *Model) Dirty() bool { return m.dirty }

// Pristine is the inverse of Dirty.
func (m *Model) Pristine() bool { return !m.dirty }

// Keys returns a copy of the declared validator keys.
func (m *Model) Keys() []string {
	return append([]string(nil), m.keys...)
}

func (m *Model) Valid(key string) (bool, bool) {
	valid, ok := m.validity[key]
	return valid, ok
}

// Invalid reports whether any known key is failing.
func (m *Model) Invalid() bool {
	for _, key := range m.keys {
		if !m.validity[key] {
			return true
		}
	}
	return false
}

// SetViewValue records user input: the field becomes dirty, rules are re-run
// and the model value becomes the view value when every rule passes, nil
// otherwise.
func (m *Model) SetViewValue(value string) {
	m.viewValue = value
	m.dirty = true
	if m.applyRules(value) {
		m.modelValue = value
	} else {
		m.modelValue = nil
	}
	m.notify()
}

// SetModelValue pushes a programmatic model change into the view without
// touching the dirty flag or re-running rules.
func (m *Model) SetModelValue(value any) {
	m.modelValue = value
	m.viewValue = formatValue(value)
	m.notify()
}

// SetValidity sets key explicitly, declaring it when new.
func (m *Model) SetValidity(key string, valid bool) {
	if key == "" {
		return
	}
	if current, ok := m.validity[key]; ok && current == valid {
		return
	}
	m.declare(key, valid)
	m.notify()
}

// SetPristine clears the dirty flag.
func (m *Model) SetPristine() {
	if !m.dirty {
		return
	}
	m.dirty = false
	m.notify()
}

// Subscribe registers fn to run after every value or validity change.
func (m *Model) Subscribe(fn func()) func() {
	if fn == nil {
		return func() {}
	}
	m.mu.Lock()
	m.seq++
	id := m.seq
	m.subscribers[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
}

// Lookup exposes controller state to scope path lookups ($field.dirty).
func (m *Model) Lookup(key string) (any, bool) {
	switch key {
	case "modelValue":
		return m.modelValue, true
	case "viewValue":
		return m.viewValue, true
	case "dirty":
		return m.dirty, true
	case "pristine":
		return !m.dirty, true
	case "valid":
		return !m.Invalid(), true
	case "invalid":
		return m.Invalid(), true
	case "error":
		failing := make(map[string]any)
		for _, key := range m.keys {
			if !m.validity[key] {
				failing[key] = true
			}
		}
		return failing, true
	default:
		return nil, false
	}
}

func (m *Model) applyRules(value string) bool {
	ok := true
	for _, rule := range m.rules {
		valid := rule.Validate(value)
		m.declare(rule.Key(), valid)
		if !valid {
			ok = false
		}
	}
	return ok
}

func (m *Model) declare(key string, valid bool) {
	if _, ok := m.validity[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.validity[key] = valid
}

func (m *Model) notify() {
	m.mu.Lock()
	ids := make([]int, 0, len(m.subscribers))
	for id := range m.subscribers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.subscribers[id])
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
