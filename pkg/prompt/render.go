package prompt

import "strings"

// renderer flattens a resolved walk into final text. Output is strict
// document order; all whitespace-control decisions were already applied to
// the IR at parse time, so rendering is plain concatenation and therefore
// byte-identical for identical (IR, context) pairs.
type renderer struct {
	buf strings.Builder
}

func (r *renderer) writeText(s string) {
	r.buf.WriteString(s)
}

func (r *renderer) writeValue(v Value) {
	r.buf.WriteString(v.String())
}

func (r *renderer) text() string {
	return r.buf.String()
}
