package library

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/Commute-ai/ai-agents/pkg/prompt"
)

func sampleItinerary() map[string]any {
	return map[string]any{
		"duration_minutes":     42,
		"walk_distance_meters": 500,
		"transfers":            1,
		"legs": []any{
			map[string]any{"mode": "walk", "from": "Home", "to": "Central Station", "duration_minutes": 5},
			map[string]any{"mode": "bus", "from": "Central Station", "to": "Harbor", "duration_minutes": 30, "route": "55"},
		},
	}
}

func TestDefaultLoads(t *testing.T) {
	lib, err := Default()
	if err != nil {
		t.Fatalf("loading embedded content: %v", err)
	}
	names := lib.Names()
	if len(names) != 2 || names[0] != "comparison" || names[1] != "insight" {
		t.Fatalf("sets %v", names)
	}
	if errs := lib.Manager().Check(); len(errs) != 0 {
		t.Fatalf("embedded templates do not parse: %v", errs)
	}
}

func TestRenderInsight(t *testing.T) {
	lib, err := Default()
	if err != nil {
		t.Fatalf("loading embedded content: %v", err)
	}
	out, err := lib.Render("insight", map[string]any{"itinerary": sampleItinerary()})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if !strings.HasPrefix(out.System, "You are a travel route analyst") {
		t.Fatalf("system prompt %q", out.System)
	}
	want := "Please analyze the following travel itinerary and provide a helpful insight:\n" +
		"\n" +
		"Journey Duration: 42 minutes\n" +
		"Total Walking: 500 meters\n" +
		"Transfers: 1 transfer\n" +
		"Number of Legs: 2\n" +
		"\n" +
		"Route Details:\n" +
		"  1. WALK from Home to Central Station (5 minutes)\n" +
		"  2. BUS from Central Station to Harbor (30 minutes - Route: 55)\n" +
		"\n" +
		"Generate a concise insight that highlights the key advantages or considerations for this route. Focus on practical travel advice.\n"
	if out.User != want {
		t.Fatalf("user prompt:\n%q\nwant:\n%q", out.User, want)
	}
}

func TestRenderInsightWithOptionalSections(t *testing.T) {
	lib, err := Default()
	if err != nil {
		t.Fatalf("loading embedded content: %v", err)
	}
	out, err := lib.Render("insight", map[string]any{
		"itinerary":   sampleItinerary(),
		"preferences": []any{"avoid stairs", "prefer rail"},
		"weather":     map[string]any{"condition": "rain", "temperature": 18},
	})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	for _, snippet := range []string{
		"Current Weather: rain\nTemperature: 18 C\n",
		"User Preferences:\n  - avoid stairs\n  - prefer rail\n",
	} {
		if !strings.Contains(out.User, snippet) {
			t.Fatalf("user prompt missing %q:\n%s", snippet, out.User)
		}
	}
}

func TestRenderOmitsAbsentOptionalSections(t *testing.T) {
	lib, err := Default()
	if err != nil {
		t.Fatalf("loading embedded content: %v", err)
	}
	out, err := lib.Render("insight", map[string]any{"itinerary": sampleItinerary()})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	for _, snippet := range []string{"User Preferences", "Current Weather"} {
		if strings.Contains(out.User, snippet) {
			t.Fatalf("optional section leaked without context: %q", snippet)
		}
	}
}

func TestRenderMissingRequired(t *testing.T) {
	lib, err := Default()
	if err != nil {
		t.Fatalf("loading embedded content: %v", err)
	}
	_, err = lib.Render("insight", nil)
	if err == nil || !strings.Contains(err.Error(), "itinerary") {
		t.Fatalf("got %v", err)
	}
	_, err = lib.Render("nosuch", nil)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("got %v", err)
	}
}

func TestRenderComparison(t *testing.T) {
	lib, err := Default()
	if err != nil {
		t.Fatalf("loading embedded content: %v", err)
	}
	out, err := lib.Render("comparison", map[string]any{
		"itineraries": []any{sampleItinerary(), sampleItinerary()},
	})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	for _, snippet := range []string{
		"Please compare the following travel route options",
		"Route Option 1:\nJourney Duration: 42 minutes",
		"Route Option 2:\nJourney Duration: 42 minutes",
		"For each route, provide a brief insight",
	} {
		if !strings.Contains(out.User, snippet) {
			t.Fatalf("user prompt missing %q:\n%s", snippet, out.User)
		}
	}
}

func contentRoot(manifest string) fstest.MapFS {
	return fstest.MapFS{
		"system/base.j2":   {Data: []byte("You are a helper.\n")},
		"user/ask.j2":      {Data: []byte("Question: {{ question }}\n")},
		"sets/ask.yaml":    {Data: []byte(manifest)},
		"macros/format.j2": {Data: []byte("")},
	}
}

func TestNewRejectsMissingTemplate(t *testing.T) {
	_, err := New(contentRoot("name: ask\nsystem: system/base\nuser: user/missing\n"))
	var nf *prompt.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("want NotFoundError, got %v", err)
	}
}

func TestNewRejectsUnknownManifestField(t *testing.T) {
	_, err := New(contentRoot("name: ask\nsystem: system/base\nuser: user/ask\nmodel: gpt-4\n"))
	if err == nil || !strings.Contains(err.Error(), "decoding prompt set") {
		t.Fatalf("got %v", err)
	}
}

func TestNewAcceptsMinimalManifest(t *testing.T) {
	lib, err := New(contentRoot("name: ask\nsystem: system/base\nuser: user/ask\ncontext:\n  required: [question]\n"))
	if err != nil {
		t.Fatalf("got %v", err)
	}
	out, err := lib.Render("ask", map[string]any{"question": "how far"})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if out.User != "Question: how far\n" {
		t.Fatalf("user prompt %q", out.User)
	}
}

func TestSetValidate(t *testing.T) {
	base := Set{Name: "x", System: "system/base", User: "user/ask"}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid set rejected: %v", err)
	}
	cases := []struct {
		name string
		set  Set
	}{
		{"empty name", Set{System: "s", User: "u"}},
		{"missing user", Set{Name: "x", System: "s"}},
		{"duplicate required", Set{Name: "x", System: "s", User: "u",
			Context: ContextSpec{Required: []string{"a", "a"}}}},
		{"required and optional overlap", Set{Name: "x", System: "s", User: "u",
			Context: ContextSpec{Required: []string{"a"}, Optional: map[string]any{"a": nil}}}},
		{"bad key", Set{Name: "x", System: "s", User: "u",
			Context: ContextSpec{Required: []string{"not a key"}}}},
		{"template syntax in description", Set{Name: "x", System: "s", User: "u",
			Description: "uses {{ vars }}"}},
	}
	for _, tc := range cases {
		if err := tc.set.Validate(); err == nil {
			t.Fatalf("%s: accepted", tc.name)
		}
	}
}
