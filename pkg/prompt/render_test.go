package prompt

import (
	"errors"
	"strings"
	"testing"
)

func managerFrom(t *testing.T, sources map[string]string) *Manager {
	t.Helper()
	store, err := MemoryStoreFrom(sources)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	return NewManager(store)
}

// The canonical fixture: a user prompt with a nested weather partial.
func TestRenderUserPromptWithPartial(t *testing.T) {
	m := managerFrom(t, map[string]string{
		"user/route_request.j2":       "{{ user.name }}\n{% include \"weather_section.j2\" %}",
		"partials/weather_section.j2": "Weather: {{ weather.condition }}",
	})
	out, err := m.Render(TemplateID{Namespace: NamespaceUser, Name: "route_request.j2"}, map[string]any{
		"user":    map[string]any{"name": "Ana"},
		"weather": map[string]any{"condition": "rain"},
	})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != "Ana\nWeather: rain" {
		t.Fatalf("got %q", out)
	}
}

func TestRenderDeterministic(t *testing.T) {
	m := managerFrom(t, map[string]string{
		"user/t": "{% for leg in legs %}{{ leg.mode }} {% endfor %}",
	})
	ctx := map[string]any{"legs": []any{
		map[string]any{"mode": "walk"},
		map[string]any{"mode": "bus"},
	}}
	id := TemplateID{Namespace: NamespaceUser, Name: "t"}
	first, err := m.Render(id, ctx)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	second, err := m.Render(id, ctx)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if first != second {
		t.Fatalf("renders differ: %q vs %q", first, second)
	}
	if first != "walk bus " {
		t.Fatalf("got %q", first)
	}
}

func TestRenderMissingTemplate(t *testing.T) {
	m := managerFrom(t, map[string]string{})
	id := TemplateID{Namespace: NamespaceSystem, Name: "nonexistent"}
	_, err := m.Render(id, nil)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("want NotFoundError, got %v", err)
	}
	if nf.ID != id {
		t.Fatalf("error names %v, want %v", nf.ID, id)
	}
}

func TestRenderUndefinedVariable(t *testing.T) {
	m := managerFrom(t, map[string]string{"user/t": "Hi {{ user.nick }}"})
	_, err := m.Render(TemplateID{Namespace: NamespaceUser, Name: "t"}, map[string]any{
		"user": map[string]any{"name": "Ana"},
	})
	var be *BindingError
	if !errors.As(err, &be) {
		t.Fatalf("want BindingError, got %v", err)
	}
	if be.Subject != "user.nick" {
		t.Fatalf("subject %q, want user.nick", be.Subject)
	}
}

func TestRenderDefaultFilter(t *testing.T) {
	m := managerFrom(t, map[string]string{"user/t": "Hi {{ user.nick|default('traveler') }}"})
	id := TemplateID{Namespace: NamespaceUser, Name: "t"}

	out, err := m.Render(id, map[string]any{"user": map[string]any{}})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != "Hi traveler" {
		t.Fatalf("got %q", out)
	}

	out, err = m.Render(id, map[string]any{"user": map[string]any{"nick": "Ana"}})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != "Hi Ana" {
		t.Fatalf("got %q", out)
	}
}

func TestRenderForLoop(t *testing.T) {
	m := managerFrom(t, map[string]string{
		"user/t": "{% for leg in legs %}{{ loop.index }}.{{ leg }}{% if not loop.last %}, {% endif %}{% endfor %}",
	})
	id := TemplateID{Namespace: NamespaceUser, Name: "t"}

	out, err := m.Render(id, map[string]any{"legs": []any{"walk", "bus", "rail"}})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != "1.walk, 2.bus, 3.rail" {
		t.Fatalf("got %q", out)
	}

	out, err = m.Render(id, map[string]any{"legs": []any{}})
	if err != nil {
		t.Fatalf("empty iterable must not error: %v", err)
	}
	if out != "" {
		t.Fatalf("empty iterable rendered %q", out)
	}
}

func TestRenderForElse(t *testing.T) {
	m := managerFrom(t, map[string]string{
		"user/t": "{% for w in warnings %}! {{ w }}{% else %}no warnings{% endfor %}",
	})
	out, err := m.Render(TemplateID{Namespace: NamespaceUser, Name: "t"}, map[string]any{"warnings": []any{}})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != "no warnings" {
		t.Fatalf("got %q", out)
	}
}

func TestRenderIfElifElse(t *testing.T) {
	m := managerFrom(t, map[string]string{
		"user/t": "{% if a %}A{% elif b %}B{% else %}C{% endif %}",
	})
	id := TemplateID{Namespace: NamespaceUser, Name: "t"}
	for _, tc := range []struct {
		ctx  map[string]any
		want string
	}{
		{map[string]any{"a": true}, "A"},
		{map[string]any{"b": true}, "B"},
		{map[string]any{}, "C"},
	} {
		out, err := m.Render(id, tc.ctx)
		if err != nil {
			t.Fatalf("render error: %v", err)
		}
		if out != tc.want {
			t.Fatalf("ctx %v: got %q, want %q", tc.ctx, out, tc.want)
		}
	}
}

func TestRenderConditionComparison(t *testing.T) {
	m := managerFrom(t, map[string]string{
		"user/t": "{% if weather.condition == 'rain' %}bring an umbrella{% endif %}",
	})
	out, err := m.Render(TemplateID{Namespace: NamespaceUser, Name: "t"}, map[string]any{
		"weather": map[string]any{"condition": "rain"},
	})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != "bring an umbrella" {
		t.Fatalf("got %q", out)
	}
}

func TestIncludeBindingScopedToPartial(t *testing.T) {
	m := managerFrom(t, map[string]string{
		"user/t":     `{% include "p" with city=user.city %}|{{ city }}`,
		"partials/p": "in {{ city }}",
	})
	_, err := m.Render(TemplateID{Namespace: NamespaceUser, Name: "t"}, map[string]any{
		"user": map[string]any{"city": "Helsinki"},
	})
	var be *BindingError
	if !errors.As(err, &be) {
		t.Fatalf("binding must not leak out of the include, got %v", err)
	}
	if be.Subject != "city" {
		t.Fatalf("subject %q", be.Subject)
	}
}

func TestIncludeSeesCallerScope(t *testing.T) {
	m := managerFrom(t, map[string]string{
		"user/t":     `{% include "p" %}`,
		"partials/p": "hello {{ user.name }}",
	})
	out, err := m.Render(TemplateID{Namespace: NamespaceUser, Name: "t"}, map[string]any{
		"user": map[string]any{"name": "Ana"},
	})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != "hello Ana" {
		t.Fatalf("got %q", out)
	}
}

func TestSetStaysInScope(t *testing.T) {
	m := managerFrom(t, map[string]string{
		"user/t":     `{% include "p" %}|{{ mood }}`,
		"partials/p": `{% set mood = 'calm' %}{{ mood }}`,
	})
	_, err := m.Render(TemplateID{Namespace: NamespaceUser, Name: "t"}, nil)
	var be *BindingError
	if !errors.As(err, &be) {
		t.Fatalf("set inside include must not leak, got %v", err)
	}
}

func TestCycleDirect(t *testing.T) {
	m := managerFrom(t, map[string]string{
		"partials/a": `{% include "a" %}`,
	})
	_, err := m.Render(TemplateID{Namespace: NamespacePartial, Name: "a"}, nil)
	var ce *CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("want CycleError, got %v", err)
	}
}

func TestCycleViaChain(t *testing.T) {
	m := managerFrom(t, map[string]string{
		"partials/a": `A{% include "b" %}`,
		"partials/b": `B{% include "a" %}`,
	})
	_, err := m.Render(TemplateID{Namespace: NamespacePartial, Name: "a"}, nil)
	var ce *CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("want CycleError, got %v", err)
	}
	want := []string{"partial/a", "partial/b", "partial/a"}
	if len(ce.Chain) != len(want) {
		t.Fatalf("chain %v", ce.Chain)
	}
	for i := range want {
		if ce.Chain[i] != want[i] {
			t.Fatalf("chain %v, want %v", ce.Chain, want)
		}
	}
}

func TestDepthLimit(t *testing.T) {
	store, err := MemoryStoreFrom(map[string]string{
		"partials/p0": "bottom",
		"partials/p1": `{% include "p0" %}`,
		"partials/p2": `{% include "p1" %}`,
		"partials/p3": `{% include "p2" %}`,
	})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	m := NewManager(store, WithMaxDepth(2))
	_, err = m.Render(TemplateID{Namespace: NamespacePartial, Name: "p3"}, nil)
	if err == nil || !strings.Contains(err.Error(), "depth limit") {
		t.Fatalf("want depth limit error, got %v", err)
	}
}

func TestWhitespaceControl(t *testing.T) {
	m := managerFrom(t, map[string]string{
		"user/trim":  "Hello {{- name }}",
		"user/block": "A\n{% if ok %}\nB\n{% endif %}\nC",
	})
	out, err := m.Render(TemplateID{Namespace: NamespaceUser, Name: "trim"}, map[string]any{"name": "Ana"})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != "HelloAna" {
		t.Fatalf("explicit trim: got %q", out)
	}
	out, err = m.Render(TemplateID{Namespace: NamespaceUser, Name: "block"}, map[string]any{"ok": true})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != "A\nB\nC" {
		t.Fatalf("block lines: got %q", out)
	}
}

func TestRawRendersVerbatim(t *testing.T) {
	m := managerFrom(t, map[string]string{
		"user/t": `Respond with {% raw %}{"insight": "{{ text }}"}{% endraw %}`,
	})
	out, err := m.Render(TemplateID{Namespace: NamespaceUser, Name: "t"}, nil)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != `Respond with {"insight": "{{ text }}"}` {
		t.Fatalf("got %q", out)
	}
}

func TestCustomFilter(t *testing.T) {
	store, err := MemoryStoreFrom(map[string]string{"user/t": "{{ name|shout }}"})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	m := NewManager(store, WithFilter("shout", func(val Value, _ []Value) (Value, error) {
		return StringValue(strings.ToUpper(val.String()) + "!"), nil
	}))
	out, err := m.Render(TemplateID{Namespace: NamespaceUser, Name: "t"}, map[string]any{"name": "ana"})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out != "ANA!" {
		t.Fatalf("got %q", out)
	}
}
