package prompt

// Scope is the layered render context. A child scope stacks new bindings
// over its parent without mutating it: lookups fall back to the parent on
// miss, writes stay in the child. A scope lives for one render call only.
type Scope struct {
	vals   map[string]Value
	parent *Scope
}

// NewScope builds a root scope from a request context mapping.
func NewScope(context map[string]any) *Scope {
	return &Scope{vals: FromGoMap(context)}
}

// Child layers bindings over s. Passing nil creates an empty child layer,
// which is what loop iterations use.
func (s *Scope) Child(bindings map[string]Value) *Scope {
	if bindings == nil {
		bindings = map[string]Value{}
	}
	return &Scope{vals: bindings, parent: s}
}

// sealedScope builds a scope with no parent. Macro bodies resolve in one of
// these: they see their bound arguments and nothing of the caller.
func sealedScope(bindings map[string]Value) *Scope {
	if bindings == nil {
		bindings = map[string]Value{}
	}
	return &Scope{vals: bindings}
}

// Lookup walks from the innermost layer outwards.
func (s *Scope) Lookup(name string) (Value, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.vals[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Set writes into the current layer. It never touches a parent, so a value
// set inside an include or a loop body is invisible once that scope ends.
func (s *Scope) Set(name string, v Value) {
	s.vals[name] = v
}
