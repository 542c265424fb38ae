package controller

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Rule validates a view value under a stable key.
type Rule interface {
	Key() string
	Validate(view string) bool
}

// RuleFunc adapts a function into a Rule.
type RuleFunc struct {
	Name string
	Fn   func(view string) bool
}

func (r RuleFunc) Key() string { return r.Name }

func (r RuleFunc) Validate(view string) bool { return r.Fn(view) }

// Required fails on blank input.
func Required() Rule {
	return RuleFunc{Name: "required", Fn: func(view string) bool {
		return strings.TrimSpace(view) != ""
	}}
}

// RequiredChecked is the required rule for checkboxes, whose view value is
// "true" or "false". Anything but a true value fails.
func RequiredChecked() Rule {
	return RuleFunc{Name: "required", Fn: func(view string) bool {
		checked, err := strconv.ParseBool(strings.TrimSpace(view))
		return err == nil && checked
	}}
}

// MaxLength fails when non-empty input exceeds n runes.
func MaxLength(n int) Rule {
	return RuleFunc{Name: "maxlength", Fn: func(view string) bool {
		return view == "" || utf8.RuneCountInString(view) <= n
	}}
}

// MinLength fails when non-empty input is shorter than n runes.
func MinLength(n int) Rule {
	return RuleFunc{Name: "minlength", Fn: func(view string) bool {
		return view == "" || utf8.RuneCountInString(view) >= n
	}}
}

// Pattern fails when non-empty input does not match re.
func Pattern(re *regexp.Regexp) Rule {
	return RuleFunc{Name: "pattern", Fn: func(view string) bool {
		return view == "" || re.MatchString(view)
	}}
}

// Rule attributes recognised on input-like elements.
const (
	AttrRequired  = "required"
	AttrMaxLength = "maxlength-rule"
	AttrMinLength = "minlength-rule"
	AttrPattern   = "pattern-rule"
)

// RulesFromAttributes derives rules from an input element's attributes in
// the order they are written, so error keys follow declaration order.
// A required checkbox must be checked.
func RulesFromAttributes(el *html.Node) ([]Rule, error) {
	if el == nil {
		return nil, nil
	}
	required := Required
	if isCheckbox(el) {
		required = RequiredChecked
	}
	var rules []Rule
	for _, attr := range el.Attr {
		if attr.Namespace != "" {
			continue
		}
		switch strings.ToLower(attr.Key) {
		case AttrRequired:
			rules = append(rules, required())
		case AttrMaxLength:
			n, err := parseLength(attr)
			if err != nil {
				return nil, err
			}
			rules = append(rules, MaxLength(n))
		case AttrMinLength:
			n, err := parseLength(attr)
			if err != nil {
				return nil, err
			}
			rules = append(rules, MinLength(n))
		case AttrPattern:
			re, err := regexp.Compile(`^(?:` + attr.Val + `)$`)
			if err != nil {
				return nil, fmt.Errorf("controller: %s: %w", attr.Key, err)
			}
			rules = append(rules, Pattern(re))
		}
	}
	return rules, nil
}

func parseLength(attr html.Attribute) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(attr.Val))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("controller: %s must be a non-negative integer, got %q", attr.Key, attr.Val)
	}
	return n, nil
}

func isCheckbox(el *html.Node) bool {
	if el.Data != "input" {
		return false
	}
	for _, attr := range el.Attr {
		if attr.Namespace == "" && strings.EqualFold(attr.Key, "type") {
			return strings.EqualFold(strings.TrimSpace(attr.Val), "checkbox")
		}
	}
	return false
}
