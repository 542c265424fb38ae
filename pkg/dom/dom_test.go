package dom

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseFragmentKeepsCustomElements(t *testing.T) {
	t.Parallel()

	nodes, err := ParseFragment(`<field model="x.y" x-y-z><label>X<span>Y</span>Z</label></field>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(nodes) != 1 || !IsElement(nodes[0], "field") {
		t.Fatalf("expected a single field element, got %d nodes", len(nodes))
	}
	if got, _ := Attr(nodes[0], "model"); got != "x.y" {
		t.Fatalf("model attribute: want x.y, got %q", got)
	}
	if got, ok := Attr(nodes[0], "x-y-z"); !ok || got != "" {
		t.Fatalf("expected empty boolean attribute, got %q (present=%v)", got, ok)
	}
	if got := Text(nodes...); got != "XYZ" {
		t.Fatalf("text: want XYZ, got %q", got)
	}
}

func TestSetAttrOverwritesInPlace(t *testing.T) {
	t.Parallel()

	nodes, err := ParseFragment(`<input type="text" name="a">`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	input := nodes[0]
	SetAttr(input, "name", "b")
	SetAttr(input, "id", "c")

	var keys []string
	for _, attr := range input.Attr {
		keys = append(keys, attr.Key+"="+attr.Val)
	}
	want := []string{"type=text", "name=b", "id=c"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Fatalf("attributes mismatch (-want +got):\n%s", diff)
	}

	RemoveAttr(input, "type")
	if HasAttr(input, "type") {
		t.Fatalf("expected type attribute removed")
	}
}

func TestCloneIsDeepAndDetached(t *testing.T) {
	t.Parallel()

	nodes, err := ParseFragment(`<label class="a">one<b>two</b></label>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	clone := Clone(nodes[0])
	SetAttr(clone, "class", "b")
	RemoveChildren(clone)

	if got, _ := Attr(nodes[0], "class"); got != "a" {
		t.Fatalf("original attribute mutated: %q", got)
	}
	if got := Text(nodes[0]); got != "onetwo" {
		t.Fatalf("original children mutated: %q", got)
	}
	if clone.Parent != nil || clone.NextSibling != nil {
		t.Fatalf("expected detached clone")
	}
}

func TestMoveChildrenPreservesOrder(t *testing.T) {
	t.Parallel()

	src, _ := ParseFragment(`<label>X<span if="a">Y</span>Z</label>`)
	dst, _ := ParseFragment(`<label>default</label>`)

	RemoveChildren(dst[0])
	MoveChildren(dst[0], src[0])

	if src[0].FirstChild != nil {
		t.Fatalf("expected source emptied")
	}
	out, err := Render(dst[0])
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if out != `<label>X<span if="a">Y</span>Z</label>` {
		t.Fatalf("unexpected markup: %s", out)
	}
}

func TestTextDecodesEntitiesOnce(t *testing.T) {
	t.Parallel()

	nodes, _ := ParseFragment(`<validator key="k">Use &lt;b&gt;bold&lt;/b&gt; {{ x > 1 }}</validator>`)
	if got := Text(nodes[0]); got != "Use <b>bold</b> {{ x > 1 }}" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestFindAndChildren(t *testing.T) {
	t.Parallel()

	nodes, _ := ParseFragment(`<div><label>L</label><select name="s"></select><input></div><span field-message></span>`)
	if got := Find(nodes, ByTag("input", "select", "textarea")); got == nil || got.Data != "select" {
		t.Fatalf("expected first control to be select, got %+v", got)
	}
	if got := FindAll(nodes, ByAttr("field-message")); len(got) != 1 {
		t.Fatalf("expected one message slot, got %d", len(got))
	}
	if got := Children(nodes[0], "label"); len(got) != 1 {
		t.Fatalf("expected one label child, got %d", len(got))
	}
}

func TestSanitizeKeepsFormControls(t *testing.T) {
	t.Parallel()

	out := Sanitize(`<label for="x_y">Name</label><input id="x_y" name="x_y" required onclick="evil()"><script>alert(1)</script>`, nil)
	for _, want := range []string{`for="x_y"`, `id="x_y"`, `name="x_y"`, "required"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in sanitised output, got %s", want, out)
		}
	}
	for _, banned := range []string{"onclick", "<script"} {
		if strings.Contains(out, banned) {
			t.Fatalf("expected %s stripped, got %s", banned, out)
		}
	}
}
