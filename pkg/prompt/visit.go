package prompt

import (
	"bytes"
	"fmt"
)

// Visitor visits IR nodes during a Walk.
type Visitor interface {
	Visit(n Node) error
}

// Walk calls v.Visit on n and every node beneath it, in document order.
func Walk(v Visitor, n Node) error {
	if err := v.Visit(n); err != nil {
		return err
	}
	switch t := n.(type) {
	case *Document:
		return walkAll(v, t.Nodes)
	case *IfNode:
		if err := walkAll(v, t.Then); err != nil {
			return err
		}
		for _, e := range t.Elifs {
			if err := walkAll(v, e.Body); err != nil {
				return err
			}
		}
		return walkAll(v, t.Else)
	case *ForNode:
		if err := walkAll(v, t.Body); err != nil {
			return err
		}
		return walkAll(v, t.Else)
	case *MacroDefNode:
		return walkAll(v, t.Body)
	}
	return nil
}

func walkAll(v Visitor, nodes []Node) error {
	for _, n := range nodes {
		if err := Walk(v, n); err != nil {
			return err
		}
	}
	return nil
}

type visitorFunc func(n Node) error

func (f visitorFunc) Visit(n Node) error { return f(n) }

// References reports every partial and macro a document refers to, in
// document order, without resolving anything. Used by content validation
// to confirm referenced names exist before any render happens.
func References(doc *Document) (includes []TemplateID, macros []string) {
	Walk(visitorFunc(func(n Node) error {
		switch t := n.(type) {
		case *IncludeNode:
			includes = append(includes, t.Target)
		case *MacroCallNode:
			macros = append(macros, t.Name)
		}
		return nil
	}), doc)
	return includes, macros
}

// Pretty returns a line-oriented representation of the IR, one node per
// line with two-space indentation.
func Pretty(doc *Document) string {
	var buf bytes.Buffer
	ppNode(&buf, 0, doc)
	return buf.String()
}

func ppNode(buf *bytes.Buffer, indent int, n Node) {
	ind := func() {
		for i := 0; i < indent; i++ {
			buf.WriteByte(' ')
		}
	}
	switch t := n.(type) {
	case *Document:
		ind()
		fmt.Fprintf(buf, "Document(%s)\n", t.ID)
		for _, c := range t.Nodes {
			ppNode(buf, indent+2, c)
		}
	case *TextNode:
		ind()
		fmt.Fprintf(buf, "Text(%q)\n", t.Text)
	case *RawNode:
		ind()
		fmt.Fprintf(buf, "Raw(%q)\n", t.Text)
	case *OutputNode:
		ind()
		fmt.Fprintf(buf, "Output(%q)\n", t.Expr)
	case *SetNode:
		ind()
		fmt.Fprintf(buf, "Set(%s = %q)\n", t.Name, t.Expr)
	case *IfNode:
		ind()
		fmt.Fprintf(buf, "If(%q)\n", t.Cond)
		for _, c := range t.Then {
			ppNode(buf, indent+2, c)
		}
		for _, e := range t.Elifs {
			ind()
			fmt.Fprintf(buf, "Elif(%q)\n", e.Cond)
			for _, c := range e.Body {
				ppNode(buf, indent+2, c)
			}
		}
		if len(t.Else) > 0 {
			ind()
			buf.WriteString("Else\n")
			for _, c := range t.Else {
				ppNode(buf, indent+2, c)
			}
		}
	case *ForNode:
		ind()
		fmt.Fprintf(buf, "For(%s in %q)\n", t.Target, t.Iterable)
		for _, c := range t.Body {
			ppNode(buf, indent+2, c)
		}
		if len(t.Else) > 0 {
			ind()
			buf.WriteString("Else\n")
			for _, c := range t.Else {
				ppNode(buf, indent+2, c)
			}
		}
	case *IncludeNode:
		ind()
		if len(t.Bindings) > 0 {
			fmt.Fprintf(buf, "Include(%s with %d bindings)\n", t.Target, len(t.Bindings))
		} else {
			fmt.Fprintf(buf, "Include(%s)\n", t.Target)
		}
	case *MacroCallNode:
		ind()
		fmt.Fprintf(buf, "MacroCall(%s: %d positional, %d named)\n", t.Name, len(t.Positional), len(t.Named))
	case *MacroDefNode:
		ind()
		fmt.Fprintf(buf, "MacroDef(%s/%d)\n", t.Name, len(t.Params))
		for _, c := range t.Body {
			ppNode(buf, indent+2, c)
		}
	}
}
