package field

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-formfield/pkg/templates"
)

// Sentinel errors for errors.Is checks.
var (
	ErrStructuralConflict = errors.New("field: structural conflict")
	ErrMessageTemplate    = errors.New("field: malformed message template")
	ErrModelRequired      = errors.New("field: model attribute is required")
	ErrHostDestroyed      = errors.New("field: host destroyed before binding completed")
)

// TemplateResolutionError reports a template name with no usable fragment.
type TemplateResolutionError = templates.ResolutionError

// StructuralConflictError reports a host element that also carries a
// repetition or conditional directive.
type StructuralConflictError struct {
	Directive string
}

func (e *StructuralConflictError) Error() string {
	return fmt.Sprintf("field: %q directive cannot be combined with a field binding", e.Directive)
}

// Is lets errors.Is(err, ErrStructuralConflict) match.
func (e *StructuralConflictError) Is(target error) bool {
	return target == ErrStructuralConflict
}

// MessageTemplateError reports a validator message that does not compile.
type MessageTemplateError struct {
	Key string
	Err error
}

func (e *MessageTemplateError) Error() string {
	return fmt.Sprintf("field: validator %q: %v", e.Key, e.Err)
}

func (e *MessageTemplateError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrMessageTemplate) match.
func (e *MessageTemplateError) Is(target error) bool {
	return target == ErrMessageTemplate
}

// IsTemplateResolution reports whether err is a template resolution failure.
func IsTemplateResolution(err error) bool {
	return errors.Is(err, templates.ErrResolution)
}

// IsStructuralConflict reports whether err is a structural conflict.
func IsStructuralConflict(err error) bool {
	return errors.Is(err, ErrStructuralConflict)
}

// IsMessageTemplate reports whether err is a message template failure.
func IsMessageTemplate(err error) bool {
	return errors.Is(err, ErrMessageTemplate)
}
