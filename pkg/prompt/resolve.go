package prompt

import (
	"fmt"
	"slices"
	"strings"
)

// resolver walks template IR, expanding includes and macro calls against
// the cache and registry and binding the active scope. Expansion order is
// strictly the order directives appear in the parent IR.
type resolver struct {
	cache  *Cache
	macros *MacroRegistry
	eval   *Evaluator
}

// expansionChain is the explicit stack of active template and macro frames.
// It exists so cycle detection and the depth limit are enforced in one
// place instead of being implied by Go call-stack recursion.
type expansionChain struct {
	frames []string
	limit  int
}

func (c *expansionChain) push(frame string) error {
	if slices.Contains(c.frames, frame) {
		return &CycleError{Chain: append(slices.Clone(c.frames), frame)}
	}
	if len(c.frames) >= c.limit {
		return fmt.Errorf("expansion depth limit %d exceeded at %s", c.limit, strings.Join(c.frames, " -> "))
	}
	c.frames = append(c.frames, frame)
	return nil
}

func (c *expansionChain) pop() {
	c.frames = c.frames[:len(c.frames)-1]
}

func (rs *resolver) bindErr(id TemplateID, subject string, format string, args ...any) error {
	return &BindingError{ID: id, Subject: subject, Detail: fmt.Sprintf(format, args...)}
}

// resolveNodes expands nodes into out. id names the template the nodes
// belong to and is used to attribute errors.
func (rs *resolver) resolveNodes(out *renderer, id TemplateID, nodes []Node, sc *Scope, chain *expansionChain) error {
	for _, n := range nodes {
		switch t := n.(type) {
		case *TextNode:
			out.writeText(t.Text)
		case *RawNode:
			out.writeText(t.Text)
		case *OutputNode:
			v, err := rs.eval.Eval(t.Expr, sc)
			if err != nil {
				return rs.bindErr(id, t.Expr, "%v", err)
			}
			if path, undef := isUndefined(v); undef {
				return rs.bindErr(id, path, "undefined variable without default")
			}
			out.writeValue(v)
		case *SetNode:
			v, err := rs.eval.Eval(t.Expr, sc)
			if err != nil {
				return rs.bindErr(id, t.Name, "%v", err)
			}
			if path, undef := isUndefined(v); undef {
				return rs.bindErr(id, t.Name, "set from undefined variable %q", path)
			}
			sc.Set(t.Name, v)
		case *IfNode:
			if err := rs.resolveIf(out, id, t, sc, chain); err != nil {
				return err
			}
		case *ForNode:
			if err := rs.resolveFor(out, id, t, sc, chain); err != nil {
				return err
			}
		case *IncludeNode:
			if err := rs.resolveInclude(out, id, t, sc, chain); err != nil {
				return err
			}
		case *MacroCallNode:
			if err := rs.resolveMacroCall(out, id, t, sc, chain); err != nil {
				return err
			}
		case *MacroDefNode:
			// definitions are collected by the registry, not expanded in place
		default:
			return fmt.Errorf("unhandled node type %T in %s", n, id)
		}
	}
	return nil
}

func (rs *resolver) resolveIf(out *renderer, id TemplateID, n *IfNode, sc *Scope, chain *expansionChain) error {
	b, err := rs.eval.Truthy(n.Cond, sc)
	if err != nil {
		return rs.bindErr(id, n.Cond, "%v", err)
	}
	if b {
		return rs.resolveNodes(out, id, n.Then, sc, chain)
	}
	for _, e := range n.Elifs {
		b, err := rs.eval.Truthy(e.Cond, sc)
		if err != nil {
			return rs.bindErr(id, e.Cond, "%v", err)
		}
		if b {
			return rs.resolveNodes(out, id, e.Body, sc, chain)
		}
	}
	return rs.resolveNodes(out, id, n.Else, sc, chain)
}

func (rs *resolver) resolveFor(out *renderer, id TemplateID, n *ForNode, sc *Scope, chain *expansionChain) error {
	v, err := rs.eval.Eval(n.Iterable, sc)
	if err != nil {
		return rs.bindErr(id, n.Iterable, "%v", err)
	}
	if path, undef := isUndefined(v); undef {
		return rs.bindErr(id, path, "loop over undefined variable")
	}
	items, err := iterateValue(v)
	if err != nil {
		return rs.bindErr(id, n.Iterable, "%v", err)
	}
	if len(items) == 0 {
		return rs.resolveNodes(out, id, n.Else, sc, chain)
	}
	for i, item := range items {
		// one child scope per iteration: the loop variable and loop
		// metadata never leak past the body
		iter := sc.Child(map[string]Value{
			n.Target: item,
			"loop": DictValue{
				"index":  IntValue(i + 1),
				"index0": IntValue(i),
				"first":  BoolValue(i == 0),
				"last":   BoolValue(i == len(items)-1),
			},
		})
		if err := rs.resolveNodes(out, id, n.Body, iter, chain); err != nil {
			return err
		}
	}
	return nil
}

func (rs *resolver) resolveInclude(out *renderer, id TemplateID, n *IncludeNode, sc *Scope, chain *expansionChain) error {
	doc, err := rs.cache.GetOrParse(n.Target)
	if err != nil {
		return fmt.Errorf("include %s at offset %d in %s: %w", n.Target, n.Pos, id, err)
	}
	bindings := map[string]Value{}
	for _, b := range n.Bindings {
		v, err := rs.eval.Eval(b.Expr, sc)
		if err != nil {
			return rs.bindErr(id, b.Name, "%v", err)
		}
		if path, undef := isUndefined(v); undef {
			return rs.bindErr(id, b.Name, "include binding from undefined variable %q", path)
		}
		bindings[b.Name] = v
	}
	if err := chain.push(n.Target.String()); err != nil {
		return err
	}
	defer chain.pop()
	return rs.resolveNodes(out, n.Target, doc.Nodes, sc.Child(bindings), chain)
}

func (rs *resolver) resolveMacroCall(out *renderer, id TemplateID, n *MacroCallNode, sc *Scope, chain *expansionChain) error {
	m, err := rs.macros.Lookup(n.Name)
	if err != nil {
		return fmt.Errorf("macro call %q at offset %d in %s: %w", n.Name, n.Pos, id, err)
	}
	bound, err := rs.bindMacroArgs(id, m, n, sc)
	if err != nil {
		return err
	}
	frame := TemplateID{Namespace: NamespaceMacro, Name: m.Name}.String()
	if err := chain.push(frame); err != nil {
		return err
	}
	defer chain.pop()
	origin := m.Origin
	if origin.Name == "" {
		origin = TemplateID{Namespace: NamespaceMacro, Name: m.Name}
	}
	// macros resolve in a sealed scope: bound arguments only, no ambient
	// capture of the caller's variables
	return rs.resolveNodes(out, origin, m.Body, sealedScope(bound), chain)
}

func (rs *resolver) bindMacroArgs(id TemplateID, m *Macro, n *MacroCallNode, sc *Scope) (map[string]Value, error) {
	if len(n.Positional) > len(m.Params) {
		return nil, rs.bindErr(id, m.Name, "macro takes %d parameters, got %d positional arguments", len(m.Params), len(n.Positional))
	}
	bound := map[string]Value{}
	for i, expr := range n.Positional {
		v, err := rs.evalArg(id, m.Name, expr, sc)
		if err != nil {
			return nil, err
		}
		bound[m.Params[i].Name] = v
	}
	for _, arg := range n.Named {
		if !slices.ContainsFunc(m.Params, func(p Param) bool { return p.Name == arg.Name }) {
			return nil, rs.bindErr(id, m.Name, "macro has no parameter %q", arg.Name)
		}
		if _, dup := bound[arg.Name]; dup {
			return nil, rs.bindErr(id, m.Name, "parameter %q bound twice", arg.Name)
		}
		v, err := rs.evalArg(id, m.Name, arg.Expr, sc)
		if err != nil {
			return nil, err
		}
		bound[arg.Name] = v
	}
	for _, p := range m.Params {
		if _, ok := bound[p.Name]; ok {
			continue
		}
		if !p.HasDefault {
			return nil, rs.bindErr(id, m.Name, "missing required parameter %q", p.Name)
		}
		// defaults are evaluated with no ambient scope, so effectively
		// literals
		v, err := rs.eval.Eval(p.Default, sealedScope(nil))
		if err != nil {
			return nil, rs.bindErr(id, m.Name, "default for %q: %v", p.Name, err)
		}
		if path, undef := isUndefined(v); undef {
			return nil, rs.bindErr(id, m.Name, "default for %q references undefined %q", p.Name, path)
		}
		bound[p.Name] = v
	}
	return bound, nil
}

func (rs *resolver) evalArg(id TemplateID, macroName, expr string, sc *Scope) (Value, error) {
	v, err := rs.eval.Eval(expr, sc)
	if err != nil {
		return nil, rs.bindErr(id, macroName, "argument %q: %v", expr, err)
	}
	if path, undef := isUndefined(v); undef {
		return nil, rs.bindErr(id, macroName, "argument from undefined variable %q", path)
	}
	return v, nil
}
