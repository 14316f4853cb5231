package prompt

import (
	"fmt"
	"strings"
)

// Namespace is one of the four template stores. The namespaces are
// independent keyed stores behind one lookup interface; a partial named
// "header" and a macro named "header" do not collide.
type Namespace string

const (
	NamespaceSystem  Namespace = "system"
	NamespaceUser    Namespace = "user"
	NamespacePartial Namespace = "partial"
	NamespaceMacro   Namespace = "macro"
)

// Namespaces lists all namespaces in a stable order.
var Namespaces = []Namespace{NamespaceSystem, NamespaceUser, NamespacePartial, NamespaceMacro}

func (n Namespace) valid() bool {
	switch n {
	case NamespaceSystem, NamespaceUser, NamespacePartial, NamespaceMacro:
		return true
	}
	return false
}

// TemplateID is the qualified name of a template: a namespace plus a name
// unique within it. It is the cache and lookup key everywhere.
type TemplateID struct {
	Namespace Namespace
	Name      string
}

func (id TemplateID) String() string {
	return string(id.Namespace) + "/" + id.Name
}

// ParseTemplateID parses "namespace/name" into a TemplateID. When the
// string has no namespace prefix, def is assumed.
func ParseTemplateID(s string, def Namespace) (TemplateID, error) {
	ns := def
	name := s
	if i := strings.IndexByte(s, '/'); i >= 0 {
		ns = Namespace(s[:i])
		// the FS store maps the partial and macro namespaces onto plural
		// directory names; accept those spellings here as well
		switch ns {
		case "partials":
			ns = NamespacePartial
		case "macros":
			ns = NamespaceMacro
		}
		name = s[i+1:]
	}
	if !ns.valid() {
		return TemplateID{}, fmt.Errorf("unknown template namespace %q in %q", ns, s)
	}
	if name == "" {
		return TemplateID{}, fmt.Errorf("empty template name in %q", s)
	}
	return TemplateID{Namespace: ns, Name: name}, nil
}
