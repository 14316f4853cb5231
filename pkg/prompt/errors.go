package prompt

import (
	"fmt"
	"strings"
)

// The engine surfaces four error kinds, all per-render and non-fatal to the
// process: a missing template or macro, a malformed source, a binding
// failure, and a composition cycle. Each carries enough context to fail the
// originating request without ambiguity. They are matched with errors.As.

// NotFoundError reports that no source exists for a TemplateID in its
// namespace, or that a called macro is not defined anywhere in the macro
// namespace.
type NotFoundError struct {
	ID TemplateID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("template %s not found", e.ID)
}

// ParseError reports malformed template source: an unterminated tag, an
// unknown directive, or unbalanced control nesting. Pos is the byte offset
// of the offending construct.
type ParseError struct {
	ID     TemplateID
	Pos    int
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s at offset %d: %s", e.ID, e.Pos, e.Detail)
}

// BindingError reports an undeclared variable without a default, or a macro
// argument mismatch. Subject is the variable path or macro name involved;
// ID is the template whose resolution raised it.
type BindingError struct {
	ID      TemplateID
	Subject string
	Detail  string
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("binding %q in %s: %s", e.Subject, e.ID, e.Detail)
}

// CycleError reports self-referential composition, detected by tracking the
// active expansion chain. Chain lists the frames from the root render down
// to the repeated reference.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return "template composition cycle: " + strings.Join(e.Chain, " -> ")
}
