package prompt

// The lexer scans template source and yields tokens for literal text and
// the three delimiter forms: substitutions {{ }}, statements {% %}, and
// comments {# #}. Opening and closing delimiters may carry a '-' trim
// marker ({{-, -}}, {%-, -%}) which the parser applies to adjacent text.

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokText
	tokVarStart  // {{ or {{-
	tokVarEnd    // }} or -}}
	tokStmtStart // {% or {%-
	tokStmtEnd   // %} or -%}
	tokCommStart // {#
	tokCommEnd   // #}
	tokContent   // content inside a tag
)

type token struct {
	kind tokenKind
	val  string
	pos  int  // byte offset in source
	trim bool // '-' marker was present on this delimiter
}

type lexer struct {
	src []byte
	i   int
	n   int
}

func newLexer(src []byte) *lexer {
	return &lexer{src: src, n: len(src)}
}

func (l *lexer) lookingAt(s string) bool {
	if l.i+len(s) > l.n {
		return false
	}
	for j := 0; j < len(s); j++ {
		if l.src[l.i+j] != s[j] {
			return false
		}
	}
	return true
}

// nextOutside scans in text context and emits either a text token up to the
// next opening delimiter, an opening delimiter token, or EOF.
func (l *lexer) nextOutside() token {
	if l.i >= l.n {
		return token{kind: tokEOF, pos: l.i}
	}
	start := l.i
	for l.i < l.n {
		var kind tokenKind
		switch {
		case l.lookingAt("{{"):
			kind = tokVarStart
		case l.lookingAt("{%"):
			kind = tokStmtStart
		case l.lookingAt("{#"):
			kind = tokCommStart
		default:
			l.i++
			continue
		}
		if l.i > start {
			return token{kind: tokText, val: string(l.src[start:l.i]), pos: start}
		}
		pos := l.i
		l.i += 2
		trim := false
		if kind != tokCommStart && l.i < l.n && l.src[l.i] == '-' {
			trim = true
			l.i++
		}
		return token{kind: kind, pos: pos, trim: trim}
	}
	return token{kind: tokText, val: string(l.src[start:l.n]), pos: start}
}

// nextInside scans inside a tag of the given closing kind, returning either
// tokContent chunks or the closing token. An unterminated tag yields the
// remaining content followed by EOF; the parser turns that into an error.
func (l *lexer) nextInside(close tokenKind) token {
	if l.i >= l.n {
		return token{kind: tokEOF, pos: l.i}
	}
	var plain, trimmed string
	switch close {
	case tokVarEnd:
		plain, trimmed = "}}", "-}}"
	case tokStmtEnd:
		plain, trimmed = "%}", "-%}"
	case tokCommEnd:
		plain, trimmed = "#}", ""
	}
	start := l.i
	for l.i < l.n {
		if trimmed != "" && l.lookingAt(trimmed) {
			if l.i > start {
				return token{kind: tokContent, val: string(l.src[start:l.i]), pos: start}
			}
			pos := l.i
			l.i += len(trimmed)
			return token{kind: close, pos: pos, trim: true}
		}
		if l.lookingAt(plain) {
			if l.i > start {
				return token{kind: tokContent, val: string(l.src[start:l.i]), pos: start}
			}
			pos := l.i
			l.i += len(plain)
			return token{kind: close, pos: pos}
		}
		l.i++
	}
	if start < l.n {
		return token{kind: tokContent, val: string(l.src[start:l.n]), pos: start}
	}
	return token{kind: tokEOF, pos: l.i}
}
