package prompt

import (
	"fmt"
	"sort"
)

// DefaultMaxDepth bounds the expansion chain. Prompt compositions are
// shallow in practice; anything past this is a runaway.
const DefaultMaxDepth = 32

// Manager is the single entry point the agent layer calls. It owns the
// cache and macro registry and orchestrates store, parser, resolver and
// renderer for each render call. A Manager is safe for concurrent use; all
// per-render state (scope, expansion chain, output) is call-local.
type Manager struct {
	store    Store
	cache    *Cache
	macros   *MacroRegistry
	eval     *Evaluator
	maxDepth int
}

// Option configures a Manager.
type Option func(*Manager)

// WithMaxDepth overrides the expansion depth limit.
func WithMaxDepth(n int) Option {
	return func(m *Manager) { m.maxDepth = n }
}

// WithFilter installs an additional substitution filter.
func WithFilter(name string, fn FilterFunc) Option {
	return func(m *Manager) { m.eval.Filters[name] = fn }
}

func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		eval:     NewEvaluator(),
		maxDepth: DefaultMaxDepth,
	}
	m.cache = NewCache(store)
	m.macros = NewMacroRegistry(store, m.cache)
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// RegisterMacro installs a programmatic macro, shadowing the macro
// namespace.
func (m *Manager) RegisterMacro(mac *Macro) {
	m.macros.Register(mac)
}

// Render assembles the template identified by id against the supplied
// context mapping and returns the finished text. Values in the context may
// be scalars, strings, or nested mappings and sequences.
//
// Any parse, lookup, binding or cycle failure aborts this render only and
// is returned wrapped with the originating TemplateID; there is never
// partial output alongside a nil error.
func (m *Manager) Render(id TemplateID, context map[string]any) (string, error) {
	doc, err := m.cache.GetOrParse(id)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", id, err)
	}
	chain := &expansionChain{limit: m.maxDepth}
	if err := chain.push(id.String()); err != nil {
		return "", fmt.Errorf("render %s: %w", id, err)
	}
	out := &renderer{}
	rs := &resolver{cache: m.cache, macros: m.macros, eval: m.eval}
	if err := rs.resolveNodes(out, id, doc.Nodes, NewScope(context), chain); err != nil {
		return "", fmt.Errorf("render %s: %w", id, err)
	}
	return out.text(), nil
}

// RenderNamed is Render for a qualified "namespace/name" string.
func (m *Manager) RenderNamed(name string, context map[string]any) (string, error) {
	id, err := ParseTemplateID(name, NamespaceUser)
	if err != nil {
		return "", err
	}
	return m.Render(id, context)
}

// Names lists the templates available in a namespace.
func (m *Manager) Names(ns Namespace) ([]string, error) {
	return m.store.Names(ns)
}

// Check parses every template in every namespace and returns all failures,
// sorted by template id. A healthy content root returns an empty slice.
func (m *Manager) Check() []error {
	var errs []error
	for _, ns := range Namespaces {
		names, err := m.store.Names(ns)
		if err != nil {
			errs = append(errs, fmt.Errorf("listing %s templates: %w", ns, err))
			continue
		}
		for _, name := range names {
			id := TemplateID{Namespace: ns, Name: name}
			if _, err := m.cache.GetOrParse(id); err != nil {
				errs = append(errs, err)
			}
		}
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
	return errs
}

// Load exposes parsed IR for inspection tooling.
func (m *Manager) Load(id TemplateID) (*Document, error) {
	return m.cache.GetOrParse(id)
}
