package validator

import (
	"errors"
	"strings"
	"testing"
)

func TestAll(t *testing.T) {
	sentinel := errors.New("boom")
	if err := All(nil, nil); err != nil {
		t.Fatalf("got %v", err)
	}
	if err := All(nil, sentinel, errors.New("later")); err != sentinel {
		t.Fatalf("want first error, got %v", err)
	}
}

func TestNotEmpty(t *testing.T) {
	if err := NotEmpty("x", "name"); err != nil {
		t.Fatalf("got %v", err)
	}
	if err := NotEmpty("", "name"); err == nil || !strings.Contains(err.Error(), "name") {
		t.Fatalf("got %v", err)
	}
}

func TestNoDuplicates(t *testing.T) {
	if err := NoDuplicates([]string{"a", "b"}, "keys"); err != nil {
		t.Fatalf("got %v", err)
	}
	err := NoDuplicates([]string{"a", "b", "a"}, "keys")
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("got %v", err)
	}
}

func TestDisjoint(t *testing.T) {
	if err := Disjoint([]string{"a"}, []string{"b"}, "required", "optional"); err != nil {
		t.Fatalf("got %v", err)
	}
	err := Disjoint([]string{"a", "c"}, []string{"c"}, "required", "optional")
	if err == nil || !strings.Contains(err.Error(), "both required and optional") {
		t.Fatalf("got %v", err)
	}
}

func TestIdent(t *testing.T) {
	for _, ok := range []string{"itinerary", "_x", "leg2", "walk_distance"} {
		if err := Ident(ok, "key"); err != nil {
			t.Fatalf("%q: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "2fast", "a-b", "user.name"} {
		if err := Ident(bad, "key"); err == nil {
			t.Fatalf("%q accepted", bad)
		}
	}
}

func TestNoTemplateSyntax(t *testing.T) {
	if err := NoTemplateSyntax("plain description", "description"); err != nil {
		t.Fatalf("got %v", err)
	}
	for _, bad := range []string{"has {{ var }}", "has {% if %}"} {
		if err := NoTemplateSyntax(bad, "description"); err == nil {
			t.Fatalf("%q accepted", bad)
		}
	}
}
