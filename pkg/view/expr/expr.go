// Package expr evaluates the boolean conditions used by `if` directives in
// composed field markup.
//
// Supported forms:
//   - truthiness: `$field.dirty`
//   - comparisons: `kind == "email"`, `count != 3`, `x == null`, `a == b`
//   - composition: `a && !b`, `(a || b) && c`
//
// Identifiers are dotted paths resolved through a Lookup, typically a scope.
package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Lookup resolves a dotted identifier path.
type Lookup func(path string) (any, bool)

// Expr is a parsed condition. An empty rule is always true.
type Expr struct {
	source string
	root   node
}

// Compile parses rule.
func Compile(rule string) (*Expr, error) {
	trimmed := strings.TrimSpace(rule)
	out := &Expr{source: trimmed}
	if trimmed == "" {
		return out, nil
	}
	toks, err := lex(trimmed)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.or()
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.toks) {
		return nil, fmt.Errorf("expr: unexpected %q in %q", p.toks[p.pos].text, trimmed)
	}
	out.root = root
	return out, nil
}

// Eval compiles and evaluates rule in one step.
func Eval(rule string, lookup Lookup) (bool, error) {
	compiled, err := Compile(rule)
	if err != nil {
		return false, err
	}
	return compiled.Eval(lookup), nil
}

// Source returns the trimmed rule text.
func (e *Expr) Source() string { return e.source }

// Eval evaluates the condition. A nil lookup resolves nothing.
func (e *Expr) Eval(lookup Lookup) bool {
	if e == nil || e.root == nil {
		return true
	}
	if lookup == nil {
		lookup = func(string) (any, bool) { return nil, false }
	}
	return Truthy(e.root.value(lookup))
}

type kind int

const (
	kIdent kind = iota
	kLiteral
	kEq
	kNeq
	kAnd
	kOr
	kNot
	kOpen
	kClose
)

type tok struct {
	kind  kind
	text  string
	value any
}

type operator struct {
	text string
	kind kind
}

var operators = []operator{
	{"==", kEq}, {"!=", kNeq}, {"&&", kAnd}, {"||", kOr},
	{"!", kNot}, {"(", kOpen}, {")", kClose},
}

func lex(input string) ([]tok, error) {
	var out []tok
	for i := 0; i < len(input); {
		ch := input[i]
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' {
			i++
			continue
		}

		if op, ok := matchOperator(input[i:]); ok {
			out = append(out, tok{kind: op.kind, text: op.text})
			i += len(op.text)
			continue
		}
		if ch == '=' || ch == '&' || ch == '|' {
			return nil, fmt.Errorf("expr: stray %q at offset %d", ch, i)
		}

		if ch == '"' || ch == '\'' {
			end := closingQuote(input, i)
			if end < 0 {
				return nil, fmt.Errorf("expr: unterminated string at offset %d", i)
			}
			raw := input[i : end+1]
			if ch == '\'' {
				inner := strings.ReplaceAll(raw[1:len(raw)-1], `\'`, `'`)
				raw = `"` + strings.ReplaceAll(inner, `"`, `\"`) + `"`
			}
			value, err := strconv.Unquote(raw)
			if err != nil {
				return nil, fmt.Errorf("expr: invalid string at offset %d: %w", i, err)
			}
			out = append(out, tok{kind: kLiteral, text: input[i : end+1], value: value})
			i = end + 1
			continue
		}

		start := i
		for i < len(input) && !strings.ContainsRune(" \t\n\r()!=&|\"'", rune(input[i])) {
			i++
		}
		word := input[start:i]
		out = append(out, wordToken(word))
	}
	return out, nil
}

func matchOperator(rest string) (operator, bool) {
	for _, op := range operators {
		if strings.HasPrefix(rest, op.text) {
			return op, true
		}
	}
	return operator{}, false
}

func closingQuote(input string, open int) int {
	quote := input[open]
	for i := open + 1; i < len(input); i++ {
		switch input[i] {
		case '\\':
			i++
		case quote:
			return i
		}
	}
	return -1
}

func wordToken(word string) tok {
	switch strings.ToLower(word) {
	case "true":
		return tok{kind: kLiteral, text: word, value: true}
	case "false":
		return tok{kind: kLiteral, text: word, value: false}
	case "null", "nil":
		return tok{kind: kLiteral, text: word, value: nil}
	}
	if strings.ContainsRune("0123456789+-.", rune(word[0])) {
		if f, err := strconv.ParseFloat(word, 64); err == nil {
			return tok{kind: kLiteral, text: word, value: f}
		}
	}
	return tok{kind: kIdent, text: word}
}

type parser struct {
	toks []tok
	pos  int
}

func (p *parser) accept(k kind) bool {
	if p.pos < len(p.toks) && p.toks[p.pos].kind == k {
		p.pos++
		return true
	}
	return false
}

func (p *parser) or() (node, error) {
	left, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.accept(kOr) {
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		left = logical{or: true, left: left, right: right}
	}
	return left, nil
}

func (p *parser) and() (node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.accept(kAnd) {
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = logical{left: left, right: right}
	}
	return left, nil
}

func (p *parser) unary() (node, error) {
	if p.accept(kNot) {
		inner, err := p.unary()
		if err != nil {
			return nil, err
		}
		return not{inner: inner}, nil
	}
	return p.comparison()
}

func (p *parser) comparison() (node, error) {
	left, err := p.operand()
	if err != nil {
		return nil, err
	}
	switch {
	case p.accept(kEq):
		right, err := p.operand()
		if err != nil {
			return nil, err
		}
		return compare{left: left, right: right}, nil
	case p.accept(kNeq):
		right, err := p.operand()
		if err != nil {
			return nil, err
		}
		return compare{negate: true, left: left, right: right}, nil
	}
	return left, nil
}

func (p *parser) operand() (node, error) {
	if p.pos >= len(p.toks) {
		return nil, fmt.Errorf("expr: unexpected end of expression")
	}
	if p.accept(kOpen) {
		inner, err := p.or()
		if err != nil {
			return nil, err
		}
		if !p.accept(kClose) {
			return nil, fmt.Errorf("expr: missing closing ')'")
		}
		return inner, nil
	}
	t := p.toks[p.pos]
	switch t.kind {
	case kIdent:
		p.pos++
		return ident(t.text), nil
	case kLiteral:
		p.pos++
		return literal{v: t.value}, nil
	default:
		return nil, fmt.Errorf("expr: expected operand, got %q", t.text)
	}
}

type node interface {
	value(lookup Lookup) any
}

type ident string

func (n ident) value(lookup Lookup) any {
	v, _ := lookup(string(n))
	return v
}

type literal struct{ v any }

func (n literal) value(Lookup) any { return n.v }

type not struct{ inner node }

func (n not) value(lookup Lookup) any { return !Truthy(n.inner.value(lookup)) }

type logical struct {
	or          bool
	left, right node
}

func (n logical) value(lookup Lookup) any {
	left := Truthy(n.left.value(lookup))
	if n.or && left {
		return true
	}
	if !n.or && !left {
		return false
	}
	return Truthy(n.right.value(lookup))
}

type compare struct {
	negate      bool
	left, right node
}

func (n compare) value(lookup Lookup) any {
	eq := Equal(n.left.value(lookup), n.right.value(lookup))
	return eq != n.negate
}

// Equal compares two values loosely: nil only equals nil, booleans and
// numbers compare after coercion, and everything else compares as strings.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ab, ok := a.(bool); ok {
		return ab == Truthy(b)
	}
	if bb, ok := b.(bool); ok {
		return bb == Truthy(a)
	}
	if af, ok := number(a); ok {
		if bf, ok := number(b); ok {
			return af == bf
		}
	}
	return String(a) == String(b)
}

// Truthy reports whether a value counts as true in a condition.
func Truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		s := strings.TrimSpace(v)
		if parsed, err := strconv.ParseBool(s); err == nil {
			return parsed
		}
		return s != ""
	case []any:
		return len(v) > 0
	case []string:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	}
	if f, ok := number(value); ok {
		return f != 0
	}
	return true
}

// String renders value the way string comparisons see it.
func String(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func number(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case interface{ Float64() (float64, error) }:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
