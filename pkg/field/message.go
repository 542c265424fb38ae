package field

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-formfield/pkg/controller"
	"github.com/goliatone/go-formfield/pkg/scope"
)

// Scope keys published for each field.
const (
	KeyField       = "$field"
	KeyFieldErrors = "$fieldErrors"
	KeyMessageMap  = "$messageMap"
	KeyFieldLabel  = "$fieldLabel"
)

// AttrMessage marks the element that receives the rendered message.
const AttrMessage = "field-message"

// RenderMessage returns the message for the first failing key that has one.
// It is empty while the field is pristine.
func RenderMessage(s *scope.Scope) (string, error) {
	value, ok := s.Get(KeyField)
	if !ok {
		return "", fmt.Errorf("field: %s is not published", KeyField)
	}
	c, ok := value.(controller.Controller)
	if !ok {
		return "", fmt.Errorf("field: %s is %T, not a controller", KeyField, value)
	}
	if !c.Dirty() {
		return "", nil
	}

	failing, _ := lookupAs[[]string](s, KeyFieldErrors)
	messages, _ := lookupAs[MessageMap](s, KeyMessageMap)
	if len(failing) == 0 || len(messages) == 0 {
		return "", nil
	}
	ctx := s.Values()
	for _, key := range failing {
		if out, ok := messages.Render(key, ctx); ok {
			return out, nil
		}
	}
	return "", nil
}

// labelText collapses whitespace the way a browser shows label text.
func labelText(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

func lookupAs[T any](s *scope.Scope, key string) (T, bool) {
	var zero T
	value, ok := s.Get(key)
	if !ok {
		return zero, false
	}
	typed, ok := value.(T)
	return typed, ok
}
