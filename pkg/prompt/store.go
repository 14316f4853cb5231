package prompt

import (
	"fmt"
	"hash/fnv"
	"io/fs"
	"sort"
	"strings"
	"sync"
)

// Token is a freshness token for a template source. Two equal tokens mean
// the source has not changed since it was last read.
type Token string

// Source is raw template text plus its identity and freshness token. It is
// immutable once read; the store re-reads only when the token changes.
type Source struct {
	ID    TemplateID
	Text  string
	Token Token
}

// Store looks template sources up by qualified name. Implementations read
// only; nothing here ever writes template content.
type Store interface {
	// Load returns the source for id, or a NotFoundError.
	Load(id TemplateID) (*Source, error)
	// Freshness returns the current token for id without reading the
	// full source, or a NotFoundError.
	Freshness(id TemplateID) (Token, error)
	// Names lists the template names present in a namespace, sorted.
	Names(ns Namespace) ([]string, error)
}

// namespaceDir maps a namespace to its content subdirectory.
func namespaceDir(ns Namespace) string {
	switch ns {
	case NamespacePartial:
		return "partials"
	case NamespaceMacro:
		return "macros"
	default:
		return string(ns)
	}
}

// FSStore reads templates from a filesystem with one subdirectory per
// namespace (system/, user/, partials/, macros/) and a .j2 extension that
// may be omitted from template names. Works over os.DirFS for an on-disk
// content root and over embed.FS for the built-in library.
type FSStore struct {
	fsys fs.FS
}

func NewFSStore(fsys fs.FS) *FSStore {
	return &FSStore{fsys: fsys}
}

func (s *FSStore) path(id TemplateID) (string, error) {
	candidates := []string{namespaceDir(id.Namespace) + "/" + id.Name}
	if !strings.HasSuffix(id.Name, ".j2") {
		candidates = append(candidates, candidates[0]+".j2")
	}
	for _, p := range candidates {
		if fi, err := fs.Stat(s.fsys, p); err == nil && !fi.IsDir() {
			return p, nil
		}
	}
	return "", &NotFoundError{ID: id}
}

func (s *FSStore) Load(id TemplateID) (*Source, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	text, err := fs.ReadFile(s.fsys, p)
	if err != nil {
		return nil, fmt.Errorf("reading template %s: %w", id, err)
	}
	token, err := s.tokenFor(p)
	if err != nil {
		return nil, err
	}
	return &Source{ID: id, Text: string(text), Token: token}, nil
}

func (s *FSStore) Freshness(id TemplateID) (Token, error) {
	p, err := s.path(id)
	if err != nil {
		return "", err
	}
	return s.tokenFor(p)
}

func (s *FSStore) tokenFor(path string) (Token, error) {
	fi, err := fs.Stat(s.fsys, path)
	if err != nil {
		return "", fmt.Errorf("stat template %s: %w", path, err)
	}
	return Token(fmt.Sprintf("%d-%d", fi.ModTime().UnixNano(), fi.Size())), nil
}

func (s *FSStore) Names(ns Namespace) ([]string, error) {
	entries, err := fs.ReadDir(s.fsys, namespaceDir(ns))
	if err != nil {
		return nil, nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".j2"))
	}
	sort.Strings(names)
	return names, nil
}

// MemoryStore holds template sources in memory, keyed by TemplateID, with
// content-hash freshness tokens. Mutating an entry changes its token, so
// it doubles as the fixture for cache-invalidation tests.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[TemplateID]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: map[TemplateID]string{}}
}

// MemoryStoreFrom builds a store from qualified "namespace/name" keys.
func MemoryStoreFrom(sources map[string]string) (*MemoryStore, error) {
	s := NewMemoryStore()
	for key, text := range sources {
		id, err := ParseTemplateID(key, NamespacePartial)
		if err != nil {
			return nil, err
		}
		s.Add(id, text)
	}
	return s, nil
}

// Add inserts or replaces a template source.
func (s *MemoryStore) Add(id TemplateID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[id] = text
}

func (s *MemoryStore) Load(id TemplateID) (*Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.m[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	return &Source{ID: id, Text: text, Token: contentToken(text)}, nil
}

func (s *MemoryStore) Freshness(id TemplateID) (Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.m[id]
	if !ok {
		return "", &NotFoundError{ID: id}
	}
	return contentToken(text), nil
}

func (s *MemoryStore) Names(ns Namespace) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for id := range s.m {
		if id.Namespace == ns {
			names = append(names, id.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func contentToken(text string) Token {
	h := fnv.New64a()
	h.Write([]byte(text))
	return Token(fmt.Sprintf("%x", h.Sum64()))
}
