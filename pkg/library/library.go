// Package library ships the built-in prompt content for the route insight
// agents and the prompt-set manifests that describe how to use it. A prompt
// set pairs a system prompt with a user prompt and declares the context keys
// the pair consumes, so callers can be checked before anything is sent to an
// LLM provider.
package library

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Commute-ai/ai-agents/pkg/prompt"
	v "github.com/Commute-ai/ai-agents/pkg/validator"
)

//go:embed content
var contentFS embed.FS

const setsDir = "sets"

// ContextSpec declares the context keys a prompt set consumes. Required keys
// must be supplied by the caller; optional keys fall back to their declared
// default value.
type ContextSpec struct {
	Required []string       `yaml:"required,omitempty"`
	Optional map[string]any `yaml:"optional,omitempty"`
}

func (c ContextSpec) optionalKeys() []string {
	keys := make([]string, 0, len(c.Optional))
	for k := range c.Optional {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set is one prompt-set manifest: a named system/user prompt pairing.
type Set struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	System      string      `yaml:"system"`
	User        string      `yaml:"user"`
	Context     ContextSpec `yaml:"context,omitempty"`
}

func (s Set) Validate() error {
	if err := v.All(
		v.Ident(s.Name, "name"),
		v.NoTemplateSyntax(s.Description, "description"),
		v.NotEmpty(s.System, "system prompt"),
		v.NotEmpty(s.User, "user prompt"),
		v.NoDuplicates(s.Context.Required, "context.required"),
		v.Disjoint(s.Context.Required, s.Context.optionalKeys(), "required", "optional"),
	); err != nil {
		return err
	}
	for _, key := range s.Context.Required {
		if err := v.Ident(key, "context.required key"); err != nil {
			return err
		}
	}
	return v.MapDict(s.Context.Optional, func(key string, _ any) error {
		return v.Ident(key, "key")
	}, "context.optional")
}

func (s Set) systemID() (prompt.TemplateID, error) {
	return prompt.ParseTemplateID(s.System, prompt.NamespaceSystem)
}

func (s Set) userID() (prompt.TemplateID, error) {
	return prompt.ParseTemplateID(s.User, prompt.NamespaceUser)
}

// Rendered holds the finished prompt pair for one LLM call.
type Rendered struct {
	System string
	User   string
}

// Library is a content root plus its validated prompt sets.
type Library struct {
	mgr  *prompt.Manager
	sets map[string]Set
}

// New loads a library from a content root holding namespace directories and
// a sets/ directory of YAML manifests. Every manifest is validated and its
// template graph resolved up front, so a Library that loads cleanly cannot
// fail later on missing templates.
func New(root fs.FS, opts ...prompt.Option) (*Library, error) {
	lib := &Library{
		mgr:  prompt.NewManager(prompt.NewFSStore(root), opts...),
		sets: map[string]Set{},
	}
	entries, err := fs.ReadDir(root, setsDir)
	if err != nil {
		return nil, fmt.Errorf("reading prompt set manifests: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		content, err := fs.ReadFile(root, path.Join(setsDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		var set Set
		dec := yaml.NewDecoder(bytes.NewReader(content))
		dec.KnownFields(true)
		if err := dec.Decode(&set); err != nil {
			return nil, fmt.Errorf("decoding prompt set %s: %w", entry.Name(), err)
		}
		if err := set.Validate(); err != nil {
			return nil, fmt.Errorf("invalid prompt set %s: %w", entry.Name(), err)
		}
		if err := lib.verify(set); err != nil {
			return nil, fmt.Errorf("prompt set %q: %w", set.Name, err)
		}
		if _, dup := lib.sets[set.Name]; dup {
			return nil, fmt.Errorf("duplicate prompt set name %q", set.Name)
		}
		lib.sets[set.Name] = set
		slog.Debug("loaded prompt set", "name", set.Name, "system", set.System, "user", set.User)
	}
	if len(lib.sets) == 0 {
		return nil, fmt.Errorf("no prompt set manifests under %s/", setsDir)
	}
	return lib, nil
}

// Default loads the embedded content shipped with this package.
func Default(opts ...prompt.Option) (*Library, error) {
	root, err := fs.Sub(contentFS, "content")
	if err != nil {
		return nil, err
	}
	return New(root, opts...)
}

// verify parses both prompts of a set and every partial reachable from them.
func (l *Library) verify(s Set) error {
	ids := make([]prompt.TemplateID, 0, 2)
	sysID, err := s.systemID()
	if err != nil {
		return err
	}
	userID, err := s.userID()
	if err != nil {
		return err
	}
	ids = append(ids, sysID, userID)
	seen := map[prompt.TemplateID]bool{}
	for _, id := range ids {
		if err := l.verifyTree(id, seen); err != nil {
			return err
		}
	}
	return nil
}

func (l *Library) verifyTree(id prompt.TemplateID, seen map[prompt.TemplateID]bool) error {
	if seen[id] {
		return nil
	}
	seen[id] = true
	doc, err := l.mgr.Load(id)
	if err != nil {
		return err
	}
	includes, _ := prompt.References(doc)
	for _, inc := range includes {
		if err := l.verifyTree(inc, seen); err != nil {
			return fmt.Errorf("%s includes %s: %w", id, inc, err)
		}
	}
	return nil
}

// Get returns the named prompt set.
func (l *Library) Get(name string) (Set, error) {
	set, ok := l.sets[name]
	if !ok {
		return Set{}, fmt.Errorf("prompt set %q not found", name)
	}
	return set, nil
}

// Names lists the loaded prompt sets in sorted order.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.sets))
	for name := range l.sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Manager exposes the underlying template manager for tooling.
func (l *Library) Manager() *prompt.Manager {
	return l.mgr
}

// Render produces the system and user prompts of the named set against the
// supplied context. Required keys missing from the context abort the render;
// optional keys absent from the context take their manifest defaults.
func (l *Library) Render(name string, context map[string]any) (*Rendered, error) {
	set, err := l.Get(name)
	if err != nil {
		return nil, err
	}
	ctx := make(map[string]any, len(context)+len(set.Context.Optional))
	for k, val := range context {
		ctx[k] = val
	}
	var missing []string
	for _, key := range set.Context.Required {
		if _, ok := ctx[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("prompt set %q: missing required context keys: %s",
			name, strings.Join(missing, ", "))
	}
	for key, def := range set.Context.Optional {
		if _, ok := ctx[key]; !ok {
			ctx[key] = def
		}
	}

	sysID, err := set.systemID()
	if err != nil {
		return nil, err
	}
	userID, err := set.userID()
	if err != nil {
		return nil, err
	}
	system, err := l.mgr.Render(sysID, ctx)
	if err != nil {
		return nil, err
	}
	user, err := l.mgr.Render(userID, ctx)
	if err != nil {
		return nil, err
	}
	return &Rendered{System: system, User: user}, nil
}
