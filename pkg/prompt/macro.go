package prompt

import (
	"sync"
)

// Macro is a named, parameterized fragment callable from any template with
// explicit arguments. Macros never see the caller's ambient variables.
type Macro struct {
	Name   string
	Params []Param
	Body   []Node
	// Origin is the macro-namespace template the definition came from;
	// zero for programmatically registered macros.
	Origin TemplateID
}

// MacroRegistry resolves macro names to definitions. Definitions load
// lazily from the macro namespace (one file may define several macros) and
// reload when their source file's freshness token changes. Programmatic
// registrations take precedence and never expire.
type MacroRegistry struct {
	store Store
	cache *Cache

	mu         sync.RWMutex
	registered map[string]*Macro
	loaded     map[string]loadedMacro
}

type loadedMacro struct {
	macro *Macro
	token Token
}

func NewMacroRegistry(store Store, cache *Cache) *MacroRegistry {
	return &MacroRegistry{
		store:      store,
		cache:      cache,
		registered: map[string]*Macro{},
		loaded:     map[string]loadedMacro{},
	}
}

// Register installs a macro under a fixed name, shadowing any definition in
// the macro namespace.
func (r *MacroRegistry) Register(m *Macro) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered[m.Name] = m
}

// Lookup returns the macro for name. A miss after scanning the macro
// namespace is a NotFoundError for (macro, name).
func (r *MacroRegistry) Lookup(name string) (*Macro, error) {
	r.mu.RLock()
	if m, ok := r.registered[name]; ok {
		r.mu.RUnlock()
		return m, nil
	}
	if lm, ok := r.loaded[name]; ok {
		token, err := r.store.Freshness(lm.macro.Origin)
		if err == nil && token == lm.token {
			r.mu.RUnlock()
			return lm.macro, nil
		}
	}
	r.mu.RUnlock()

	if err := r.rescan(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if lm, ok := r.loaded[name]; ok {
		return lm.macro, nil
	}
	return nil, &NotFoundError{ID: TemplateID{Namespace: NamespaceMacro, Name: name}}
}

// rescan re-extracts definitions from every file in the macro namespace.
// Parses go through the cache, so unchanged files cost a map lookup.
func (r *MacroRegistry) rescan() error {
	names, err := r.store.Names(NamespaceMacro)
	if err != nil {
		return err
	}
	fresh := map[string]loadedMacro{}
	for _, fileName := range names {
		id := TemplateID{Namespace: NamespaceMacro, Name: fileName}
		token, err := r.store.Freshness(id)
		if err != nil {
			return err
		}
		doc, err := r.cache.GetOrParse(id)
		if err != nil {
			return err
		}
		for _, n := range doc.Nodes {
			def, ok := n.(*MacroDefNode)
			if !ok {
				continue
			}
			fresh[def.Name] = loadedMacro{
				macro: &Macro{Name: def.Name, Params: def.Params, Body: def.Body, Origin: id},
				token: token,
			}
		}
	}
	r.mu.Lock()
	r.loaded = fresh
	r.mu.Unlock()
	return nil
}
