package formfield

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/goliatone/go-formfield/pkg/field"
	"github.com/goliatone/go-formfield/pkg/scope"
)

func TestEmbeddedTemplatesExposeDefaults(t *testing.T) {
	for _, name := range []string{"input.html", "select.html", "textarea.html"} {
		if _, err := fs.ReadFile(EmbeddedTemplates(), name); err != nil {
			t.Fatalf("expected %s to be embedded: %v", name, err)
		}
	}
}

func TestBindFirstField(t *testing.T) {
	s := scope.New(map[string]any{"user": map[string]any{"email": "ada@example.com"}})
	f, err := Bind(context.Background(), `<p>intro</p><field model="user.email" required></field>`, s)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	defer f.Destroy()

	if got := f.Controller().ViewValue(); got != "ada@example.com" {
		t.Fatalf("view value = %q", got)
	}
	if f.Composed().Identifier != "user_email" {
		t.Fatalf("identifier = %q", f.Composed().Identifier)
	}
}

func TestBindWithoutField(t *testing.T) {
	_, err := Bind(context.Background(), `<p>nothing here</p>`, nil)
	if !errors.Is(err, ErrNoField) {
		t.Fatalf("expected ErrNoField, got %v", err)
	}
}

func TestRenderDocument(t *testing.T) {
	markup := `<!DOCTYPE html><html><body><form>` +
		`<field model="user.name" maxlength-rule="10"><label>Name</label>` +
		`<validator key="maxlength">{{ $fieldLabel }} is too long</validator></field>` +
		`<field model="user.bio" template="textarea"></field>` +
		`</form></body></html>`

	out, err := RenderDocument(context.Background(), markup, nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{
		`id="user_name"`,
		`maxlength-rule="10"`,
		`for="user_name"`,
		`>Name</label>`,
		`<textarea`,
		`id="user_bio"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<validator") {
		t.Errorf("validator declarations should not be rendered:\n%s", out)
	}
}

func TestRenderFragmentSanitized(t *testing.T) {
	out, err := RenderFragment(context.Background(),
		`<field model="x" onclick="alert(1)"></field><script>alert(2)</script>`, nil,
		WithSanitizer(nil))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(out, "onclick") || strings.Contains(out, "<script") {
		t.Fatalf("sanitizer should strip scripts and handlers:\n%s", out)
	}
	if !strings.Contains(out, `name="x"`) {
		t.Fatalf("sanitized output lost the input:\n%s", out)
	}
}

func TestRenderFragmentPropagatesErrors(t *testing.T) {
	_, err := RenderFragment(context.Background(), `<field model="x" repeat="a in b"></field>`, nil)
	if !field.IsStructuralConflict(err) {
		t.Fatalf("expected structural conflict, got %v", err)
	}
}

func TestRenderSubmission(t *testing.T) {
	markup := `<!DOCTYPE html><html><body><form method="post">` +
		`<field model="user.name" required maxlength-rule="3"><label>Name</label>` +
		`<validator key="required">{{ $fieldLabel }} is required</validator>` +
		`<validator key="maxlength">{{ $fieldLabel }} is too long</validator></field>` +
		`<field model="user.subscribe" type="checkbox"><label>Subscribe</label></field>` +
		`<field model="user.bio" template="textarea"></field>` +
		`</form></body></html>`

	tests := []struct {
		name        string
		values      url.Values
		wantName    any
		wantMessage string
	}{
		{
			name:        "invalid input shows the first failing message",
			values:      url.Values{"user_name": {"abcd"}},
			wantName:    nil,
			wantMessage: "Name is too long",
		},
		{
			name:        "blank input is required",
			values:      url.Values{"user_name": {""}},
			wantName:    nil,
			wantMessage: "Name is required",
		},
		{
			name:     "valid input is written back",
			values:   url.Values{"user_name": {"Ada"}, "user_subscribe": {"on"}},
			wantName: "Ada",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := scope.New(nil)
			out, err := RenderSubmission(context.Background(), markup, s, tt.values)
			if err != nil {
				t.Fatalf("render: %v", err)
			}
			got, _ := s.Lookup("user.name")
			if got != tt.wantName {
				t.Fatalf("user.name = %v, want %v", got, tt.wantName)
			}
			if tt.wantMessage != "" && !strings.Contains(out, tt.wantMessage) {
				t.Fatalf("output missing message %q:\n%s", tt.wantMessage, out)
			}
			if tt.wantMessage == "" && strings.Contains(out, "is required") {
				t.Fatalf("valid submission rendered a message:\n%s", out)
			}
			_, subscribed := tt.values["user_subscribe"]
			if got, _ := s.Lookup("user.subscribe"); got != strconv.FormatBool(subscribed) {
				t.Fatalf("user.subscribe = %v, want %v", got, subscribed)
			}
			if _, ok := s.Lookup("user.bio"); ok {
				t.Fatalf("fields absent from the submission should stay untouched")
			}
		})
	}
}

func TestRenderSubmissionRequiresCheckedCheckbox(t *testing.T) {
	markup := `<!DOCTYPE html><html><body><form method="post">` +
		`<field model="agree" type="checkbox" required><label>Agree</label>` +
		`<validator key="required">must agree</validator></field>` +
		`</form></body></html>`

	s := scope.New(nil)
	out, err := RenderSubmission(context.Background(), markup, s, url.Values{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "must agree") {
		t.Fatalf("unchecked required checkbox rendered no message:\n%s", out)
	}
	if got, ok := s.Lookup("agree"); ok && got != nil {
		t.Fatalf("agree = %v, want it unset", got)
	}

	s = scope.New(nil)
	out, err = RenderSubmission(context.Background(), markup, s, url.Values{"agree": {"on"}})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(out, "must agree") {
		t.Fatalf("checked checkbox rendered a message:\n%s", out)
	}
	if got, _ := s.Lookup("agree"); got != "true" {
		t.Fatalf("agree = %v, want true", got)
	}
}
