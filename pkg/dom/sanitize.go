package dom

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	formPolicyOnce sync.Once
	formPolicy     *bluemonday.Policy
)

// Sanitize runs markup through policy. A nil policy falls back to FormPolicy.
func Sanitize(markup string, policy *bluemonday.Policy) string {
	if strings.TrimSpace(markup) == "" {
		return ""
	}
	if policy == nil {
		policy = FormPolicy()
	}
	return policy.Sanitize(markup)
}

// FormPolicy allows the user generated content baseline plus the form controls
// and wiring attributes a composed field renders with.
func FormPolicy() *bluemonday.Policy {
	formPolicyOnce.Do(func() {
		policy := bluemonday.UGCPolicy()
		policy.AllowElements("form", "fieldset", "legend", "label", "input", "select", "option", "optgroup", "textarea", "field")
		policy.AllowAttrs("id", "class", "title").Globally()
		policy.AllowAttrs("for").OnElements("label")
		policy.AllowAttrs(
			"name", "type", "value", "placeholder", "required", "disabled",
			"readonly", "maxlength", "minlength", "min", "max", "step", "pattern",
			"autocomplete", "multiple", "size", "checked",
		).OnElements("input", "select", "textarea")
		policy.AllowAttrs("rows", "cols", "wrap").OnElements("textarea")
		policy.AllowAttrs("value", "selected", "label", "disabled").OnElements("option", "optgroup")
		policy.AllowAttrs("model", "template").OnElements("field")
		policy.AllowAttrs("aria-live", "aria-describedby", "role").Globally()
		policy.AllowDataAttributes()
		formPolicy = policy
	})
	return formPolicy
}
