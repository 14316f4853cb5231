package prompt

import (
	"fmt"
	"strings"
)

// Parse parses template source into a Document IR. It is a pure function of
// the source text: identical input yields structurally identical IR.
//
// Recognized constructs: literal text, substitutions {{ expr }} (including
// whole-expression macro calls {{ name(args) }}), comments {# #}, and the
// block statements if/elif/else/endif, for/else/endfor, set,
// include [with bindings], macro/endmacro, and raw/endraw.
//
// Whitespace control: '-' markers on delimiters trim adjacent whitespace.
// Independently, a block statement or comment that sits on its own line
// does not contribute that line to the output: trailing spaces before the
// tag and the single newline after it are dropped.
func Parse(id TemplateID, src string) (*Document, error) {
	p := &parser{id: id, l: newLexer([]byte(src))}
	nodes, end, err := p.parseNodes(nil)
	if err != nil {
		return nil, err
	}
	if end.name != "" {
		return nil, p.errf(end.pos, "unexpected %q outside of its block", end.name)
	}
	return &Document{ID: id, Nodes: nodes}, nil
}

type parser struct {
	id TemplateID
	l  *lexer

	// pending trim state applied to the next text token
	stripLeading bool // strip all leading whitespace (explicit '-' marker)
	stripNewline bool // strip one leading newline (block statement rule)
}

type endTag struct {
	name string
	args string
	pos  int
}

func (p *parser) errf(pos int, format string, args ...any) error {
	return &ParseError{ID: p.id, Pos: pos, Detail: fmt.Sprintf(format, args...)}
}

// parseNodes parses until an ending statement with a name in `until` is
// encountered. A nil `until` parses to EOF.
func (p *parser) parseNodes(until map[string]bool) ([]Node, endTag, error) {
	var nodes []Node
	for {
		tok := p.l.nextOutside()
		switch tok.kind {
		case tokEOF:
			return nodes, endTag{}, nil
		case tokText:
			if text := p.applyPendingTrim(tok.val); text != "" {
				nodes = append(nodes, &TextNode{Text: text})
			}
		case tokVarStart:
			if tok.trim {
				trimTrailing(nodes, true)
			}
			expr, closeTrim, err := p.readTag(tokVarEnd, tok.pos)
			if err != nil {
				return nil, endTag{}, err
			}
			p.stripLeading = closeTrim
			expr = strings.TrimSpace(expr)
			if expr == "" {
				return nil, endTag{}, p.errf(tok.pos, "empty substitution tag")
			}
			if name, pos, named, ok := parseCall(expr); ok {
				nodes = append(nodes, &MacroCallNode{Name: name, Positional: pos, Named: named, Pos: tok.pos})
			} else {
				nodes = append(nodes, &OutputNode{Expr: expr, Pos: tok.pos})
			}
		case tokCommStart:
			trimBlockLine(nodes, tok.trim)
			if err := p.skipComment(tok.pos); err != nil {
				return nil, endTag{}, err
			}
			p.stripNewline = true
		case tokStmtStart:
			trimBlockLine(nodes, tok.trim)
			stmt, closeTrim, err := p.readTag(tokStmtEnd, tok.pos)
			if err != nil {
				return nil, endTag{}, err
			}
			p.stripLeading = closeTrim
			p.stripNewline = true
			name, args := splitNameArgs(stmt)
			if until[name] {
				return nodes, endTag{name: name, args: args, pos: tok.pos}, nil
			}
			n, err := p.parseStatement(name, args, tok.pos)
			if err != nil {
				return nil, endTag{}, err
			}
			nodes = append(nodes, n)
		default:
			return nil, endTag{}, p.errf(tok.pos, "unexpected token outside tags")
		}
	}
}

func (p *parser) parseStatement(name, args string, pos int) (Node, error) {
	switch name {
	case "include":
		return p.parseInclude(args, pos)
	case "set":
		return p.parseSet(args, pos)
	case "if":
		return p.parseIf(args, pos)
	case "for":
		return p.parseFor(args, pos)
	case "macro":
		return p.parseMacroDef(args, pos)
	case "raw":
		if args != "" {
			return nil, p.errf(pos, "raw takes no arguments")
		}
		text, err := p.readRaw(pos)
		if err != nil {
			return nil, err
		}
		return &RawNode{Text: text}, nil
	case "elif", "else", "endif", "endfor", "endmacro", "endraw":
		return nil, p.errf(pos, "unexpected %q outside of its block", name)
	case "":
		return nil, p.errf(pos, "empty statement tag")
	default:
		return nil, p.errf(pos, "unknown directive %q", name)
	}
}

// applyPendingTrim consumes the trim state set by the preceding tag.
func (p *parser) applyPendingTrim(text string) string {
	if p.stripLeading {
		text = strings.TrimLeft(text, " \t\r\n")
	} else if p.stripNewline {
		if t, ok := strings.CutPrefix(text, "\r\n"); ok {
			text = t
		} else if t, ok := strings.CutPrefix(text, "\n"); ok {
			text = t
		}
	}
	p.stripLeading = false
	p.stripNewline = false
	return text
}

// trimTrailing strips whitespace from the end of the last text node. With
// all=false only trailing spaces and tabs on the current line are removed,
// and only when the tag starts a line of its own.
func trimTrailing(nodes []Node, all bool) {
	if len(nodes) == 0 {
		return
	}
	tn, ok := nodes[len(nodes)-1].(*TextNode)
	if !ok {
		return
	}
	if all {
		tn.Text = strings.TrimRight(tn.Text, " \t\r\n")
		return
	}
	i := strings.LastIndexByte(tn.Text, '\n')
	if i < 0 {
		return
	}
	if strings.TrimRight(tn.Text[i+1:], " \t") == "" {
		tn.Text = tn.Text[:i+1]
	}
}

// trimBlockLine applies the left-hand whitespace rule for block statements
// and comments: an explicit '-' trims everything, otherwise the line
// indentation before a standalone tag is dropped.
func trimBlockLine(nodes []Node, explicit bool) {
	trimTrailing(nodes, explicit)
}

// readTag reads the raw content of a tag up to its closing delimiter and
// reports whether the closer carried a trim marker.
func (p *parser) readTag(close tokenKind, openPos int) (string, bool, error) {
	var b strings.Builder
	for {
		t := p.l.nextInside(close)
		switch t.kind {
		case tokContent:
			b.WriteString(t.val)
		case close:
			return strings.TrimSpace(b.String()), t.trim, nil
		case tokEOF:
			if close == tokVarEnd {
				return "", false, p.errf(openPos, "unterminated substitution tag")
			}
			return "", false, p.errf(openPos, "unterminated statement tag")
		default:
			return "", false, p.errf(t.pos, "unexpected token inside tag")
		}
	}
}

func (p *parser) skipComment(openPos int) error {
	for {
		t := p.l.nextInside(tokCommEnd)
		switch t.kind {
		case tokCommEnd:
			return nil
		case tokEOF:
			return p.errf(openPos, "unterminated comment tag")
		}
	}
}

func splitNameArgs(stmt string) (name, args string) {
	s := strings.TrimSpace(stmt)
	i := 0
	for i < len(s) && !isSpace(s[i]) {
		i++
	}
	return s[:i], strings.TrimSpace(s[i:])
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func (p *parser) parseInclude(args string, pos int) (*IncludeNode, error) {
	name, rest, ok := cutQuoted(args)
	if !ok {
		return nil, p.errf(pos, "include expects a quoted partial name")
	}
	target, err := ParseTemplateID(name, NamespacePartial)
	if err != nil {
		return nil, p.errf(pos, "include: %v", err)
	}
	node := &IncludeNode{Target: target, Pos: pos}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return node, nil
	}
	after, found := strings.CutPrefix(rest, "with ")
	if !found {
		return nil, p.errf(pos, "malformed include, expected 'with name=expr' after template name")
	}
	for _, part := range splitTop(after, ',') {
		b, err := parseBinding(part)
		if err != nil {
			return nil, p.errf(pos, "include binding: %v", err)
		}
		node.Bindings = append(node.Bindings, b)
	}
	if len(node.Bindings) == 0 {
		return nil, p.errf(pos, "include 'with' clause is empty")
	}
	return node, nil
}

func (p *parser) parseSet(args string, pos int) (*SetNode, error) {
	i := indexAssign(args)
	if i < 0 {
		return nil, p.errf(pos, "invalid set statement, expected 'name = expr'")
	}
	name := strings.TrimSpace(args[:i])
	expr := strings.TrimSpace(args[i+1:])
	if !isIdent(name) || expr == "" {
		return nil, p.errf(pos, "invalid set statement, expected 'name = expr'")
	}
	return &SetNode{Name: name, Expr: expr}, nil
}

func (p *parser) parseIf(cond string, pos int) (*IfNode, error) {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return nil, p.errf(pos, "if requires a condition")
	}
	n := &IfNode{Cond: cond}
	body, end, err := p.parseNodes(map[string]bool{"elif": true, "else": true, "endif": true})
	if err != nil {
		return nil, err
	}
	n.Then = body
	for end.name == "elif" {
		branch := ElifBranch{Cond: strings.TrimSpace(end.args)}
		if branch.Cond == "" {
			return nil, p.errf(end.pos, "elif requires a condition")
		}
		branch.Body, end, err = p.parseNodes(map[string]bool{"elif": true, "else": true, "endif": true})
		if err != nil {
			return nil, err
		}
		n.Elifs = append(n.Elifs, branch)
	}
	if end.name == "else" {
		n.Else, end, err = p.parseNodes(map[string]bool{"endif": true})
		if err != nil {
			return nil, err
		}
	}
	if end.name != "endif" {
		return nil, p.errf(pos, "unterminated if block, missing endif")
	}
	return n, nil
}

func (p *parser) parseFor(args string, pos int) (*ForNode, error) {
	parts := strings.SplitN(args, " in ", 2)
	if len(parts) != 2 {
		return nil, p.errf(pos, "invalid for statement, expected 'target in iterable'")
	}
	target := strings.TrimSpace(parts[0])
	iterable := strings.TrimSpace(parts[1])
	if !isIdent(target) {
		return nil, p.errf(pos, "invalid loop variable %q", target)
	}
	if iterable == "" {
		return nil, p.errf(pos, "for statement has an empty iterable")
	}
	n := &ForNode{Target: target, Iterable: iterable}
	body, end, err := p.parseNodes(map[string]bool{"else": true, "endfor": true})
	if err != nil {
		return nil, err
	}
	n.Body = body
	if end.name == "else" {
		n.Else, end, err = p.parseNodes(map[string]bool{"endfor": true})
		if err != nil {
			return nil, err
		}
	}
	if end.name != "endfor" {
		return nil, p.errf(pos, "unterminated for block, missing endfor")
	}
	return n, nil
}

func (p *parser) parseMacroDef(args string, pos int) (*MacroDefNode, error) {
	open := strings.IndexByte(args, '(')
	if open < 0 || !strings.HasSuffix(args, ")") {
		return nil, p.errf(pos, "macro expects 'name(params)'")
	}
	name := strings.TrimSpace(args[:open])
	if !isIdent(name) {
		return nil, p.errf(pos, "invalid macro name %q", name)
	}
	n := &MacroDefNode{Name: name}
	paramList := strings.TrimSpace(args[open+1 : len(args)-1])
	if paramList != "" {
		seenDefault := false
		for _, part := range splitTop(paramList, ',') {
			part = strings.TrimSpace(part)
			if i := indexAssign(part); i >= 0 {
				pname := strings.TrimSpace(part[:i])
				def := strings.TrimSpace(part[i+1:])
				if !isIdent(pname) || def == "" {
					return nil, p.errf(pos, "invalid macro parameter %q", part)
				}
				n.Params = append(n.Params, Param{Name: pname, Default: def, HasDefault: true})
				seenDefault = true
				continue
			}
			if !isIdent(part) {
				return nil, p.errf(pos, "invalid macro parameter %q", part)
			}
			if seenDefault {
				return nil, p.errf(pos, "required parameter %q follows a defaulted one", part)
			}
			n.Params = append(n.Params, Param{Name: part})
		}
	}
	body, end, err := p.parseNodes(map[string]bool{"endmacro": true})
	if err != nil {
		return nil, err
	}
	if end.name != "endmacro" {
		return nil, p.errf(pos, "unterminated macro %q, missing endmacro", name)
	}
	n.Body = body
	return n, nil
}

// readRaw consumes tokens until endraw, reconstructing everything in
// between as literal text.
func (p *parser) readRaw(openPos int) (string, error) {
	var out strings.Builder
	for {
		t := p.l.nextOutside()
		switch t.kind {
		case tokEOF:
			return "", p.errf(openPos, "unterminated raw block, missing endraw")
		case tokText:
			out.WriteString(t.val)
		case tokVarStart:
			expr, _, err := p.readTag(tokVarEnd, t.pos)
			if err != nil {
				return "", err
			}
			out.WriteString("{{ " + expr + " }}")
		case tokCommStart:
			if err := p.skipComment(t.pos); err != nil {
				return "", err
			}
		case tokStmtStart:
			stmt, _, err := p.readTag(tokStmtEnd, t.pos)
			if err != nil {
				return "", err
			}
			name, args := splitNameArgs(stmt)
			if name == "endraw" {
				if args != "" {
					return "", p.errf(t.pos, "endraw takes no arguments")
				}
				return out.String(), nil
			}
			out.WriteString("{% " + stmt + " %}")
		}
	}
}

// parseCall recognizes a whole-expression macro invocation of the form
// name(arg, ..., key=arg). Anything else, including piped expressions,
// is left to the expression evaluator.
func parseCall(expr string) (name string, positional []string, named []Binding, ok bool) {
	if len(splitTop(expr, '|')) > 1 {
		return "", nil, nil, false
	}
	open := strings.IndexByte(expr, '(')
	if open <= 0 || !strings.HasSuffix(expr, ")") {
		return "", nil, nil, false
	}
	name = expr[:open]
	if !isIdent(name) {
		return "", nil, nil, false
	}
	inner := expr[open+1 : len(expr)-1]
	// the closing paren must match the opening one
	if !balanced(inner) {
		return "", nil, nil, false
	}
	if strings.TrimSpace(inner) != "" {
		for _, part := range splitTop(inner, ',') {
			if i := indexAssign(part); i >= 0 {
				b, err := parseBinding(part)
				if err != nil {
					return "", nil, nil, false
				}
				named = append(named, b)
				continue
			}
			positional = append(positional, strings.TrimSpace(part))
		}
	}
	return name, positional, named, true
}

func parseBinding(part string) (Binding, error) {
	i := indexAssign(part)
	if i < 0 {
		return Binding{}, fmt.Errorf("expected 'name=expr', got %q", strings.TrimSpace(part))
	}
	name := strings.TrimSpace(part[:i])
	expr := strings.TrimSpace(part[i+1:])
	if !isIdent(name) || expr == "" {
		return Binding{}, fmt.Errorf("expected 'name=expr', got %q", strings.TrimSpace(part))
	}
	return Binding{Name: name, Expr: expr}, nil
}

func cutQuoted(s string) (inner, rest string, ok bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return "", "", false
	}
	q := s[0]
	if q != '"' && q != '\'' {
		return "", "", false
	}
	end := strings.IndexByte(s[1:], q)
	if end < 0 {
		return "", "", false
	}
	return s[1 : 1+end], s[2+end:], true
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func balanced(s string) bool {
	depth := 0
	inStr := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr != 0 {
			if c == inStr {
				inStr = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			inStr = c
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0 && inStr == 0
}
