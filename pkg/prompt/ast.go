package prompt

// Node is any IR node in a parsed prompt template.
type Node interface {
	node()
}

// Document is the root node produced by Parse. It carries the identity of
// the template it was parsed from so errors raised during resolution can
// name their origin.
type Document struct {
	ID    TemplateID
	Nodes []Node
}

func (*Document) node() {}

// TextNode represents literal text between tags. Text outside directives is
// preserved byte for byte except where whitespace-control rules apply.
type TextNode struct {
	Text string
}

func (*TextNode) node() {}

// OutputNode represents a variable substitution: {{ expr }}. The expression
// is kept as a raw string and evaluated against the active scope during
// resolution. A lookup that misses without a default is a binding error.
type OutputNode struct {
	Expr string
	Pos  int
}

func (*OutputNode) node() {}

// SetNode represents an assignment into the current scope:
// {% set name = expr %}. The write never escapes the enclosing scope.
type SetNode struct {
	Name string
	Expr string
}

func (*SetNode) node() {}

// IfNode represents an if/elif/else block.
type IfNode struct {
	Cond  string
	Then  []Node
	Elifs []ElifBranch
	Else  []Node
}

func (*IfNode) node() {}

// ElifBranch is a single elif condition with its body.
type ElifBranch struct {
	Cond string
	Body []Node
}

// ForNode represents a loop: {% for target in iterable %}. The optional
// else body renders when the iterable is empty.
type ForNode struct {
	Target   string
	Iterable string
	Body     []Node
	Else     []Node
}

func (*ForNode) node() {}

// RawNode is a block where delimiters are not interpreted, produced by
// {% raw %}...{% endraw %}. Prompts frequently embed literal JSON examples,
// which is what this exists for.
type RawNode struct {
	Text string
}

func (*RawNode) node() {}

// IncludeNode expands a partial in place: {% include "name" %} or
// {% include "name" with a=expr, b=expr %}. The target always resolves in
// the partial namespace unless the name is qualified. Bindings are layered
// over the caller's scope for the duration of the include.
type IncludeNode struct {
	Target   TemplateID
	Bindings []Binding
	Pos      int
}

func (*IncludeNode) node() {}

// Binding is a named expression, used for include bindings and named macro
// arguments. The expression is evaluated in the caller's scope.
type Binding struct {
	Name string
	Expr string
}

// MacroCallNode invokes a registered macro: {{ name(arg, key=arg) }}.
// Positional arguments are raw expressions bound in declaration order.
type MacroCallNode struct {
	Name       string
	Positional []string
	Named      []Binding
	Pos        int
}

func (*MacroCallNode) node() {}

// MacroDefNode declares a reusable parameterized fragment:
// {% macro name(a, b="x") %}...{% endmacro %}. Definitions are collected
// from the macro namespace by the registry; encountering one during
// resolution expands to nothing.
type MacroDefNode struct {
	Name   string
	Params []Param
	Body   []Node
}

func (*MacroDefNode) node() {}

// Param is a single macro parameter. Default, when present, is an
// expression evaluated with no ambient scope, so in practice a literal.
type Param struct {
	Name       string
	Default    string
	HasDefault bool
}
