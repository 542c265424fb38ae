package field

import (
	"sync/atomic"

	"github.com/goliatone/go-formfield/pkg/controller"
	"github.com/goliatone/go-formfield/pkg/scope"
)

// ErrorKeys lists the keys c reports as failing, in declaration order. The
// result is never nil.
func ErrorKeys(c controller.Controller) []string {
	out := []string{}
	if c == nil {
		return out
	}
	seen := make(map[string]struct{})
	for _, key := range c.Keys() {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if valid, known := c.Valid(key); known && !valid {
			out = append(out, key)
		}
	}
	return out
}

// aggregator republishes ErrorKeys as $fieldErrors. Controller notifications
// only mark it stale; the list is rebuilt on the next digest.
type aggregator struct {
	stale       atomic.Bool
	keys        []string
	unsubscribe func()
	unwatch     func()
}

func attachAggregator(s *scope.Scope, c controller.Controller) *aggregator {
	a := &aggregator{keys: []string{}}
	s.Set(KeyFieldErrors, a.keys)
	a.stale.Store(true)
	a.unsubscribe = c.Subscribe(func() { a.stale.Store(true) })
	a.unwatch = s.Watch(func() any {
		if a.stale.Swap(false) {
			a.keys = ErrorKeys(c)
		}
		return a.keys
	}, func(value any) {
		s.Set(KeyFieldErrors, value)
	})
	return a
}

func (a *aggregator) detach() {
	a.unsubscribe()
	a.unwatch()
}
