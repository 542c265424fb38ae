// Package scope provides the evaluation context fields publish into and the
// cooperative update cycle that settles derived state.
//
// A Scope holds named values and an optional parent. Lookups walk the parent
// chain; writes stay local unless Assign finds an owning ancestor. Watchers
// registered with Watch are evaluated by Digest, which loops until no watched
// value changes.
package scope

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// MaxDigestPasses bounds the number of dirty passes a single Digest may run.
const MaxDigestPasses = 10

// ErrDigestLimit is returned when watchers keep changing each other's inputs.
var ErrDigestLimit = errors.New("scope: digest did not settle")

// Scope is a node in the evaluation context tree. It is not safe for
// concurrent use; the update cycle is single threaded.
type Scope struct {
	parent   *Scope
	children []*Scope
	values   map[string]any
	watchers []*watcher
	seq      int
}

type watcher struct {
	id       int
	get      func() any
	listener func(value any)
	last     any
	primed   bool
}

// New returns a root scope seeded with values.
func New(values map[string]any) *Scope {
	s := &Scope{values: make(map[string]any, len(values))}
	for key, value := range values {
		s.values[key] = value
	}
	return s
}

// Child returns a scope whose lookups fall back to s. Digesting s also
// digests the child.
func (s *Scope) Child() *Scope {
	child := &Scope{parent: s, values: make(map[string]any)}
	s.children = append(s.children, child)
	return child
}

// Fork returns a transient child: lookups fall back to s but the child is not
// registered for digests. Used for per-render values such as repeat items.
func (s *Scope) Fork() *Scope {
	return &Scope{parent: s, values: make(map[string]any)}
}

// Parent returns the enclosing scope or nil for a root.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Destroy detaches s from its parent and drops its watchers.
func (s *Scope) Destroy() {
	if s.parent != nil {
		siblings := s.parent.children
		for i, child := range siblings {
			if child == s {
				s.parent.children = append(siblings[:i], siblings[i+1:]...)
				break
			}
		}
		s.parent = nil
	}
	s.watchers = nil
	s.children = nil
}

// Set stores value under key on s.
func (s *Scope) Set(key string, value any) {
	s.values[key] = value
}

// Get looks key up on s and then on its ancestors.
func (s *Scope) Get(key string) (any, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if value, ok := cur.values[key]; ok {
			return value, true
		}
	}
	return nil, false
}

// Lookup resolves a dotted path. The first segment is found through Get and
// the remaining segments descend through nested maps.
func (s *Scope) Lookup(path string) (any, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, false
	}
	if value, ok := s.Get(path); ok {
		return value, true
	}
	parts := strings.Split(path, ".")
	current, ok := s.Get(parts[0])
	if !ok {
		return nil, false
	}
	for _, part := range parts[1:] {
		current, ok = descend(current, part)
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Assign writes value at a dotted path. The root segment is written on the
// nearest scope that already defines it, or on s when none does. Missing
// intermediate maps are created.
func (s *Scope) Assign(path string, value any) error {
	parts := strings.Split(strings.TrimSpace(path), ".")
	if len(parts) == 0 || parts[0] == "" {
		return fmt.Errorf("scope: empty assignment path")
	}
	owner := s
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.values[parts[0]]; ok {
			owner = cur
			break
		}
	}
	if len(parts) == 1 {
		owner.values[parts[0]] = value
		return nil
	}

	root, _ := owner.values[parts[0]].(map[string]any)
	if root == nil {
		if existing, ok := owner.values[parts[0]]; ok && existing != nil {
			return fmt.Errorf("scope: cannot assign %q: %q is %T", path, parts[0], existing)
		}
		root = make(map[string]any)
		owner.values[parts[0]] = root
	}
	current := root
	for i, part := range parts[1 : len(parts)-1] {
		next, ok := current[part]
		if !ok || next == nil {
			created := make(map[string]any)
			current[part] = created
			current = created
			continue
		}
		nested, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("scope: cannot assign %q: %q is %T", path, strings.Join(parts[:i+2], "."), next)
		}
		current = nested
	}
	current[parts[len(parts)-1]] = value
	return nil
}

// Values flattens the chain into one map; nearer scopes shadow ancestors.
func (s *Scope) Values() map[string]any {
	var chain []*Scope
	for cur := s; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	out := make(map[string]any)
	for i := len(chain) - 1; i >= 0; i-- {
		for key, value := range chain[i].values {
			out[key] = value
		}
	}
	return out
}

// Watch registers get to be evaluated on every digest pass. listener runs on
// the first evaluation and whenever the value changes (deep equality). The
// returned function removes the watcher.
func (s *Scope) Watch(get func() any, listener func(value any)) func() {
	s.seq++
	w := &watcher{id: s.seq, get: get, listener: listener}
	s.watchers = append(s.watchers, w)
	return func() {
		for i, existing := range s.watchers {
			if existing.id == w.id {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				return
			}
		}
	}
}

// Digest runs dirty-checking passes over s and its descendants until a pass
// observes no change.
func (s *Scope) Digest() error {
	for pass := 0; pass < MaxDigestPasses; pass++ {
		if !s.digestOnce() {
			return nil
		}
	}
	return ErrDigestLimit
}

func (s *Scope) digestOnce() bool {
	dirty := false
	for _, w := range append([]*watcher(nil), s.watchers...) {
		value := w.get()
		if w.primed && reflect.DeepEqual(value, w.last) {
			continue
		}
		w.primed = true
		w.last = value
		if w.listener != nil {
			w.listener(value)
		}
		dirty = true
	}
	for _, child := range append([]*Scope(nil), s.children...) {
		if child.digestOnce() {
			dirty = true
		}
	}
	return dirty
}

func descend(value any, key string) (any, bool) {
	switch typed := value.(type) {
	case map[string]any:
		next, ok := typed[key]
		return next, ok
	case map[string]string:
		next, ok := typed[key]
		return next, ok
	case Getter:
		return typed.Lookup(key)
	default:
		return nil, false
	}
}

// Getter lets values expose named properties to path lookups.
type Getter interface {
	Lookup(key string) (any, bool)
}
