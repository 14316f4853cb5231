// Package validator holds small composable checks used when loading
// prompt-set manifests. Each check returns a descriptive error naming the
// offending field so manifest authors can fix content without reading code.
package validator

import (
	"fmt"
	"slices"
	"strings"
)

func All(errors ...error) error {
	for _, err := range errors {
		if err != nil {
			return err
		}
	}
	return nil
}

type Validatable interface {
	Validate() error
}

func Each[T Validatable](items []T) error {
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

func MapDict[T any](items map[string]T, f func(string, T) error, description string) error {
	for key, item := range items {
		if err := f(key, item); err != nil {
			return fmt.Errorf("%s: %w", description, err)
		}
	}
	return nil
}

func NotEmpty(field, description string) error {
	if field == "" {
		return fmt.Errorf("%s must not be empty", description)
	}
	return nil
}

func NoDuplicates[T comparable](slice []T, description string) error {
	seen := make(map[T]struct{})
	for _, v := range slice {
		if _, ok := seen[v]; ok {
			return fmt.Errorf("%s contains duplicate value: %v", description, v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

// Disjoint rejects keys that appear in both slices. Manifest context specs
// must not declare the same key as both required and optional.
func Disjoint[T comparable](a, b []T, descA, descB string) error {
	for _, v := range a {
		if slices.Contains(b, v) {
			return fmt.Errorf("%v appears in both %s and %s", v, descA, descB)
		}
	}
	return nil
}

func MatchesAllowed[T comparable](field T, allowed []T, description string) error {
	if !slices.Contains(allowed, field) {
		return fmt.Errorf("%s must be one of %v, got %v", description, allowed, field)
	}
	return nil
}

// Ident accepts names usable as template variables: a letter or underscore
// followed by letters, digits or underscores.
func Ident(field, description string) error {
	if field == "" {
		return fmt.Errorf("%s must not be empty", description)
	}
	for i, r := range field {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return fmt.Errorf("%s must not start with a digit: %q", description, field)
			}
		default:
			return fmt.Errorf("%s contains invalid character %q: %q", description, r, field)
		}
	}
	return nil
}

// NoTemplateSyntax rejects template delimiters in fields that are plain
// metadata, not renderable text.
func NoTemplateSyntax(field string, description string) error {
	if strings.Contains(field, "{{") || strings.Contains(field, "{%") {
		return fmt.Errorf("%s must not contain template syntax", description)
	}
	return nil
}
