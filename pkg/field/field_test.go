package field

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"

	"github.com/goliatone/go-formfield/pkg/controller"
	"github.com/goliatone/go-formfield/pkg/dom"
	"github.com/goliatone/go-formfield/pkg/scope"
	"github.com/goliatone/go-formfield/pkg/templates"
)

func parseHost(t *testing.T, markup string) *html.Node {
	t.Helper()
	nodes, err := dom.ParseFragment(markup)
	if err != nil {
		t.Fatalf("parse host: %v", err)
	}
	host := dom.Find(nodes, dom.ByTag(TagField))
	if host == nil {
		t.Fatalf("no <field> in %q", markup)
	}
	return host
}

func bind(t *testing.T, markup string, parent *scope.Scope, options ...Option) (*Field, *html.Node) {
	t.Helper()
	host := parseHost(t, markup)
	f, err := NewBinder(options...).Bind(context.Background(), host, parent)
	if err != nil {
		t.Fatalf("bind %q: %v", markup, err)
	}
	t.Cleanup(f.Destroy)
	return f, host
}

func composedInput(host *html.Node) *html.Node {
	return dom.Find([]*html.Node{host}, dom.ByTag(InputTags...))
}

func renderedText(t *testing.T, f *Field, attr string) string {
	t.Helper()
	nodes, err := f.Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	el := dom.Find(nodes, dom.ByAttr(attr))
	if el == nil {
		t.Fatalf("rendered output has no [%s]", attr)
	}
	return strings.TrimSpace(dom.Text(el))
}

func TestDeriveIdentifier(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"x":          "x",
		"x.y":        "x_y",
		"user.a.b.c": "user_a_b_c",
		" x.y ":      "x_y",
		"a_b":        "a_b",
		"a.b":        "a_b",
	}
	for in, want := range tests {
		if got := DeriveIdentifier(in); got != want {
			t.Errorf("DeriveIdentifier(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBindWiresIdentifier(t *testing.T) {
	t.Parallel()

	f, host := bind(t, `<field model="x.y"></field>`, nil)

	input := composedInput(host)
	if input == nil {
		t.Fatalf("no input composed into host")
	}
	for _, attr := range []string{"name", "id"} {
		if got, _ := dom.Attr(input, attr); !strings.Contains(got, "x_y") {
			t.Errorf("input %s = %q, want it to contain x_y", attr, got)
		}
	}
	label := f.Composed().Label
	if got, _ := dom.Attr(label, "for"); !strings.Contains(got, "x_y") {
		t.Errorf("label for = %q, want it to contain x_y", got)
	}
	if f.Host() != host {
		t.Fatalf("host element should be kept, not replaced")
	}
}

func TestBindTemplateSelection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		markup string
		tag    string
	}{
		{markup: `<field model="x"></field>`, tag: "input"},
		{markup: `<field model="x" template="select.html"></field>`, tag: "select"},
		{markup: `<field model="x" template="textarea"></field>`, tag: "textarea"},
	}
	for _, tt := range tests {
		_, host := bind(t, tt.markup, nil)
		if input := composedInput(host); input == nil || input.Data != tt.tag {
			t.Errorf("%s: composed %v, want <%s>", tt.markup, input, tt.tag)
		}
	}
}

func TestBindMissingTemplateLeavesHostUnbound(t *testing.T) {
	t.Parallel()

	host := parseHost(t, `<field model="x" template="missing.html"><label>Name</label></field>`)
	before, _ := dom.Render(host)

	_, err := NewBinder().Bind(context.Background(), host, nil)
	if !IsTemplateResolution(err) {
		t.Fatalf("expected template resolution error, got %v", err)
	}
	var resolution *TemplateResolutionError
	if !errors.As(err, &resolution) || resolution.Name != "missing.html" {
		t.Fatalf("expected *TemplateResolutionError for missing.html, got %#v", err)
	}
	if composedInput(host) != nil {
		t.Fatalf("host should not carry a composed fragment")
	}
	after, _ := dom.Render(host)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("host modified (-before +after):\n%s", diff)
	}
}

func TestBindRemoteNotFound(t *testing.T) {
	t.Parallel()

	notFound := templates.ResolverFunc(func(_ context.Context, name string) (templates.Fragment, error) {
		return templates.Fragment{}, &templates.ResolutionError{Name: name, Status: 404}
	})
	host := parseHost(t, `<field model="x"></field>`)
	_, err := NewBinder(WithResolver(notFound)).Bind(context.Background(), host, nil)

	var resolution *TemplateResolutionError
	if !errors.As(err, &resolution) || resolution.Status != 404 {
		t.Fatalf("expected 404 resolution error, got %v", err)
	}
	if host.FirstChild != nil {
		t.Fatalf("host should stay empty")
	}
}

func TestStructuralConflicts(t *testing.T) {
	t.Parallel()

	for _, directive := range DefaultForbiddenDirectives {
		directive := directive
		t.Run(directive, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			resolver := templates.ResolverFunc(func(context.Context, string) (templates.Fragment, error) {
				calls.Add(1)
				return templates.Fragment{}, nil
			})
			host := parseHost(t, fmt.Sprintf(`<field model="x" %s="cond"></field>`, directive))

			_, err := NewBinder(WithResolver(resolver)).Start(context.Background(), host, nil)
			if !IsStructuralConflict(err) {
				t.Fatalf("expected structural conflict, got %v", err)
			}
			var conflict *StructuralConflictError
			if !errors.As(err, &conflict) || conflict.Directive != directive {
				t.Fatalf("expected conflict on %q, got %#v", directive, err)
			}
			if calls.Load() != 0 {
				t.Fatalf("resolution must not start on a structural conflict")
			}
			if host.FirstChild != nil {
				t.Fatalf("host should stay empty")
			}
		})
	}
}

func TestForbiddenDirectivesAreConfigurable(t *testing.T) {
	t.Parallel()

	host := parseHost(t, `<field model="x" if="cond"></field>`)
	if _, err := NewBinder(WithForbiddenDirectives("repeat")).Bind(context.Background(), host, nil); err != nil {
		t.Fatalf("bind: %v", err)
	}
	host = parseHost(t, `<field model="x" hidden-when="cond"></field>`)
	_, err := NewBinder(WithForbiddenDirectives("hidden-when")).Bind(context.Background(), host, nil)
	if !IsStructuralConflict(err) {
		t.Fatalf("expected structural conflict, got %v", err)
	}
}

func TestAttributePropagation(t *testing.T) {
	t.Parallel()

	_, host := bind(t, `<field model="x" template="input" maxlength-rule="3" x-y-z type="email"></field>`, nil)
	input := composedInput(host)

	if got, ok := dom.Attr(input, "maxlength-rule"); !ok || got != "3" {
		t.Errorf("maxlength-rule = %q (%v), want 3", got, ok)
	}
	if !dom.HasAttr(input, "x-y-z") {
		t.Errorf("custom attribute x-y-z not propagated")
	}
	if got, _ := dom.Attr(input, "type"); got != "email" {
		t.Errorf("type = %q, host attribute should overwrite the template's", got)
	}
	for _, reserved := range []string{AttrModel, AttrTemplate} {
		if dom.HasAttr(input, reserved) {
			t.Errorf("reserved attribute %q copied onto input", reserved)
		}
	}
}

func TestLabelTransplant(t *testing.T) {
	t.Parallel()

	f, host := bind(t, `<field model="x"><label>X<span repeat="y in [1,2]">Y</span>Z</label></field>`, nil)

	if got := f.Label(); got != "XYYZ" {
		t.Fatalf("$fieldLabel = %q, want XYYZ", got)
	}
	nodes, err := f.Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	label := dom.Find(nodes, dom.ByTag(TagLabel))
	if got := dom.Text(label); got != "XYYZ" {
		t.Fatalf("rendered label text = %q, want XYYZ", got)
	}
	if labels := dom.Children(host, TagLabel); len(labels) != 0 {
		t.Fatalf("host label declaration should be detached, found %d", len(labels))
	}
}

func TestLabelFollowsFieldState(t *testing.T) {
	t.Parallel()

	f, _ := bind(t, `<field model="x"><label>Email<span if="$field.dirty"> (edited)</span></label></field>`, nil)
	if got := f.Label(); got != "Email" {
		t.Fatalf("pristine label = %q", got)
	}
	if err := f.SetViewValue("a"); err != nil {
		t.Fatalf("set view value: %v", err)
	}
	if got := f.Label(); got != "Email (edited)" {
		t.Fatalf("dirty label = %q", got)
	}
}

func TestFieldErrorsFollowValidity(t *testing.T) {
	t.Parallel()

	f, _ := bind(t, `<field model="x" required maxlength-rule="3"></field>`, nil)

	published := func() []string {
		value, _ := f.Scope().Get(KeyFieldErrors)
		return value.([]string)
	}
	if diff := cmp.Diff([]string{}, published()); diff != "" {
		t.Fatalf("initial $fieldErrors (-want +got):\n%s", diff)
	}

	steps := []struct {
		view string
		want []string
	}{
		{view: "", want: []string{"required"}},
		{view: "abcd", want: []string{"maxlength"}},
		{view: "abc", want: []string{}},
	}
	for _, step := range steps {
		if err := f.SetViewValue(step.view); err != nil {
			t.Fatalf("set %q: %v", step.view, err)
		}
		if diff := cmp.Diff(step.want, published()); diff != "" {
			t.Fatalf("after %q $fieldErrors (-want +got):\n%s", step.view, diff)
		}
	}
}

func TestFieldErrorsSettleOnDigest(t *testing.T) {
	t.Parallel()

	f, _ := bind(t, `<field model="x"></field>`, nil)
	f.Controller().SetValidity("custom", false)
	if diff := cmp.Diff([]string{}, f.Errors()); diff != "" {
		t.Fatalf("errors before digest (-want +got):\n%s", diff)
	}
	if err := f.Digest(); err != nil {
		t.Fatalf("digest: %v", err)
	}
	if diff := cmp.Diff([]string{"custom"}, f.Errors()); diff != "" {
		t.Fatalf("errors after digest (-want +got):\n%s", diff)
	}
}

func TestErrorKeys(t *testing.T) {
	t.Parallel()

	if got := ErrorKeys(nil); got == nil || len(got) != 0 {
		t.Fatalf("ErrorKeys(nil) = %#v", got)
	}
	c := controller.New("x", nil)
	c.SetValidity("a", false)
	c.SetValidity("b", true)
	c.SetValidity("c", false)
	if diff := cmp.Diff([]string{"a", "c"}, ErrorKeys(c)); diff != "" {
		t.Fatalf("ErrorKeys (-want +got):\n%s", diff)
	}
}

func TestFieldPublishesController(t *testing.T) {
	t.Parallel()

	parent := scope.New(map[string]any{"x": 10})
	f, _ := bind(t, `<field model="x"></field>`, parent)

	value, ok := f.Scope().Get(KeyField)
	if !ok {
		t.Fatalf("$field not published")
	}
	c, ok := value.(controller.Controller)
	if !ok {
		t.Fatalf("$field is %T", value)
	}
	if c.ModelValue() != 10 {
		t.Fatalf("$field model value = %v, want 10", c.ModelValue())
	}
	if _, ok := parent.Get(KeyField); ok {
		t.Fatalf("$field must stay local to the field scope")
	}
}

func TestModelSync(t *testing.T) {
	t.Parallel()

	parent := scope.New(map[string]any{"user": map[string]any{"name": "Ada"}})
	f, _ := bind(t, `<field model="user.name"></field>`, parent)
	c := f.Controller()
	if c.ViewValue() != "Ada" {
		t.Fatalf("initial view value = %q", c.ViewValue())
	}

	if err := parent.Assign("user.name", "Bob"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := f.Digest(); err != nil {
		t.Fatalf("digest: %v", err)
	}
	if c.ViewValue() != "Bob" || c.Dirty() {
		t.Fatalf("model change not pushed to view: view=%q dirty=%v", c.ViewValue(), c.Dirty())
	}

	if err := f.SetViewValue("Cy"); err != nil {
		t.Fatalf("set view value: %v", err)
	}
	if got, _ := parent.Lookup("user.name"); got != "Cy" {
		t.Fatalf("view change not written back, got %v", got)
	}
}

func TestBuildMessageMap(t *testing.T) {
	t.Parallel()

	host := parseHost(t, `<field model="x">`+
		`<validator key="a">X{{x}}Y</validator>`+
		`<validator key="b">Y{{ $v }}Z</validator>`+
		`<validator key="dup">first</validator>`+
		`<validator key="dup">second</validator>`+
		`<validator>ignored</validator>`+
		`<div><validator key="nested">ignored</validator></div>`+
		`</field>`)

	messages, err := BuildMessageMap(host)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 entries, got %v", messages.Keys())
	}

	tests := []struct {
		key  string
		ctx  map[string]any
		want string
	}{
		{key: "a", ctx: map[string]any{"x": 10}, want: "X10Y"},
		{key: "b", ctx: map[string]any{"$v": "xxx"}, want: "YxxxZ"},
		{key: "a", ctx: map[string]any{"x": "a & b"}, want: "Xa & bY"},
		{key: "a", ctx: map[string]any{"x": "<b>"}, want: "X<b>Y"},
		{key: "dup", want: "second"},
	}
	for _, tt := range tests {
		got, ok := messages.Render(tt.key, tt.ctx)
		if !ok || got != tt.want {
			t.Errorf("%s with %v = %q (%v), want %q", tt.key, tt.ctx, got, ok, tt.want)
		}
	}
}

func TestBuildMessageMapRejectsMalformed(t *testing.T) {
	t.Parallel()

	host := parseHost(t, `<field model="x"><validator key="bad">oops {{ x</validator></field>`)
	_, err := BuildMessageMap(host)
	if !IsMessageTemplate(err) {
		t.Fatalf("expected message template error, got %v", err)
	}
	var msgErr *MessageTemplateError
	if !errors.As(err, &msgErr) || msgErr.Key != "bad" {
		t.Fatalf("expected error for key bad, got %#v", err)
	}

	_, err = NewBinder().Bind(context.Background(), host, nil)
	if !IsMessageTemplate(err) {
		t.Fatalf("bind: expected message template error, got %v", err)
	}
	if composedInput(host) != nil {
		t.Fatalf("host should not be composed when messages fail")
	}
}

func TestMessageRendering(t *testing.T) {
	t.Parallel()

	f, _ := bind(t, `<field model="x"><label>Label 1</label><validator key="xx">Error {{$fieldLabel}}</validator></field>`, nil)

	if msg, err := f.Message(); err != nil || msg != "" {
		t.Fatalf("initial message = %q, %v", msg, err)
	}
	if got := renderedText(t, f, AttrMessage); got != "" {
		t.Fatalf("initial rendered message = %q", got)
	}

	f.Controller().SetValidity("xx", false)
	if err := f.Digest(); err != nil {
		t.Fatalf("digest: %v", err)
	}
	if got := renderedText(t, f, AttrMessage); got != "" {
		t.Fatalf("pristine field should show no message, got %q", got)
	}

	if err := f.SetViewValue("edited"); err != nil {
		t.Fatalf("set view value: %v", err)
	}
	if got := renderedText(t, f, AttrMessage); got != "Error Label 1" {
		t.Fatalf("rendered message = %q, want %q", got, "Error Label 1")
	}
}

func TestMessageKeepsReservedCharactersAsText(t *testing.T) {
	t.Parallel()

	f, _ := bind(t, `<field model="x"><label>Terms &amp; Conditions</label>`+
		`<validator key="xx">Error {{ $fieldLabel }}</validator></field>`, nil)
	f.Controller().SetValidity("xx", false)
	if err := f.SetViewValue("edited"); err != nil {
		t.Fatalf("set view value: %v", err)
	}

	if msg, err := f.Message(); err != nil || msg != "Error Terms & Conditions" {
		t.Fatalf("message = %q, %v", msg, err)
	}
	if got := renderedText(t, f, AttrMessage); got != "Error Terms & Conditions" {
		t.Fatalf("rendered message = %q", got)
	}
	nodes, err := f.Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	out, _ := dom.Render(nodes...)
	if !strings.Contains(out, "Error Terms &amp; Conditions") {
		t.Fatalf("message not escaped in markup: %s", out)
	}
}

func TestMessageEntitiesStayLiteral(t *testing.T) {
	t.Parallel()

	f, _ := bind(t, `<field model="x"><validator key="xx">Use &lt;b&gt;bold&lt;/b&gt; text</validator></field>`, nil)
	f.Controller().SetValidity("xx", false)
	if err := f.SetViewValue("edited"); err != nil {
		t.Fatalf("set view value: %v", err)
	}

	nodes, err := f.Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	slot := dom.Find(nodes, dom.ByAttr(AttrMessage))
	if slot == nil {
		t.Fatalf("rendered output has no [%s]", AttrMessage)
	}
	if b := dom.Find([]*html.Node{slot}, dom.ByTag("b")); b != nil {
		t.Fatalf("escaped markup became an element")
	}
	if got := strings.TrimSpace(dom.Text(slot)); got != "Use <b>bold</b> text" {
		t.Fatalf("rendered message = %q", got)
	}
	out, _ := dom.Render(slot)
	if !strings.Contains(out, "Use &lt;b&gt;bold&lt;/b&gt; text") {
		t.Fatalf("unexpected slot markup: %s", out)
	}
}

func TestBuildMessageMapAllowsStrayCloseDelimiter(t *testing.T) {
	t.Parallel()

	host := parseHost(t, `<field model="x"><validator key="k">use }} to close {{ n }}</validator></field>`)
	messages, err := BuildMessageMap(host)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if got, _ := messages.Render("k", map[string]any{"n": 2}); got != "use }} to close 2" {
		t.Fatalf("message = %q", got)
	}
}

func TestMessageUsesFirstKeyWithMessage(t *testing.T) {
	t.Parallel()

	f, _ := bind(t, `<field model="x" required maxlength-rule="1"><validator key="maxlength">too long</validator></field>`, nil)
	f.Controller().SetValidity("custom", false)
	if err := f.SetViewValue("ab"); err != nil {
		t.Fatalf("set view value: %v", err)
	}
	if diff := cmp.Diff([]string{"maxlength", "custom"}, f.Errors()); diff != "" {
		t.Fatalf("errors (-want +got):\n%s", diff)
	}
	if msg, _ := f.Message(); msg != "too long" {
		t.Fatalf("message = %q", msg)
	}
}

func TestModelRequired(t *testing.T) {
	t.Parallel()

	host := parseHost(t, `<field template="input"></field>`)
	_, err := NewBinder().Start(context.Background(), host, nil)
	if !errors.Is(err, ErrModelRequired) {
		t.Fatalf("expected ErrModelRequired, got %v", err)
	}
}

func TestDestroyDiscardsInFlightResolution(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	resolver := templates.ResolverFunc(func(ctx context.Context, name string) (templates.Fragment, error) {
		close(started)
		<-ctx.Done()
		return templates.Fragment{}, &templates.ResolutionError{Name: name, Err: ctx.Err()}
	})
	host := parseHost(t, `<field model="x"><label>L</label></field>`)

	pending, err := NewBinder(WithResolver(resolver)).Start(context.Background(), host, nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	<-started
	pending.Destroy()

	if _, err := pending.Wait(); !errors.Is(err, ErrHostDestroyed) {
		t.Fatalf("expected ErrHostDestroyed, got %v", err)
	}
	if composedInput(host) != nil || len(dom.Children(host, TagLabel)) != 1 {
		t.Fatalf("destroyed host must not be touched")
	}
}

func TestDestroyDiscardsLateSuccess(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	resolver := templates.ResolverFunc(func(ctx context.Context, name string) (templates.Fragment, error) {
		<-release
		return templates.Default().Resolve(context.Background(), name)
	})
	host := parseHost(t, `<field model="x"></field>`)

	pending, err := NewBinder(WithResolver(resolver)).Start(context.Background(), host, nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	pending.Destroy()
	close(release)

	if _, err := pending.Wait(); !errors.Is(err, ErrHostDestroyed) {
		t.Fatalf("expected ErrHostDestroyed, got %v", err)
	}
	if host.FirstChild != nil {
		t.Fatalf("destroyed host must not be touched")
	}
}

func TestBindAll(t *testing.T) {
	t.Parallel()

	doc, err := dom.ParseDocument(`<form>` +
		`<field model="user.name"><label>Name</label></field>` +
		`<field model="user.role" template="select"></field>` +
		`</form>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	parent := scope.New(map[string]any{"user": map[string]any{"name": "Ada"}})
	fields, err := NewBinder().BindAll(context.Background(), doc, parent)
	if err != nil {
		t.Fatalf("bind all: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	if fields[0].Label() != "Name" || fields[1].Composed().Input.Data != "select" {
		t.Fatalf("unexpected bindings: %q %q", fields[0].Label(), fields[1].Composed().Input.Data)
	}
	if fields[0].Controller().ModelValue() != "Ada" {
		t.Fatalf("model value = %v", fields[0].Controller().ModelValue())
	}
}

func TestRenderReflectsViewValue(t *testing.T) {
	t.Parallel()

	parent := scope.New(map[string]any{"user": map[string]any{"name": "Ada", "bio": "Hello", "active": true}})
	name, _ := bind(t, `<field model="user.name"></field>`, parent)
	bio, _ := bind(t, `<field model="user.bio" template="textarea"></field>`, parent)
	active, _ := bind(t, `<field model="user.active" type="checkbox"></field>`, parent)

	out, err := name.RenderString()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, `value="Ada"`) {
		t.Errorf("input should carry the view value:\n%s", out)
	}

	out, _ = bio.RenderString()
	if !strings.Contains(out, `>Hello</textarea>`) {
		t.Errorf("textarea should carry the view value:\n%s", out)
	}

	out, _ = active.RenderString()
	if !strings.Contains(out, `checked=""`) || strings.Contains(out, `value="true"`) {
		t.Errorf("checkbox should be checked:\n%s", out)
	}

	if composedInput(name.Host()) != nil && dom.HasAttr(composedInput(name.Host()), "value") {
		t.Errorf("rendering must not write into the composed tree")
	}
}
