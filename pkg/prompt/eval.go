package prompt

import (
	"fmt"
	"strconv"
	"strings"
)

// FilterFunc transforms a value in a substitution pipeline.
type FilterFunc func(val Value, args []Value) (Value, error)

// Filters is a registry of filter functions keyed by name.
type Filters map[string]FilterFunc

// DefaultFilters provides the built-in filter set.
func DefaultFilters() Filters {
	return Filters{
		"upper": func(val Value, _ []Value) (Value, error) {
			return StringValue(strings.ToUpper(val.String())), nil
		},
		"lower": func(val Value, _ []Value) (Value, error) {
			return StringValue(strings.ToLower(val.String())), nil
		},
		"trim": func(val Value, _ []Value) (Value, error) {
			return StringValue(strings.TrimSpace(val.String())), nil
		},
		"default": func(val Value, args []Value) (Value, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("default takes exactly one argument")
			}
			if _, undef := isUndefined(val); undef {
				return args[0], nil
			}
			if _, none := val.(NoneValue); none {
				return args[0], nil
			}
			return val, nil
		},
		"join": func(val Value, args []Value) (Value, error) {
			sep := ", "
			if len(args) > 0 {
				sep = args[0].String()
			}
			items, err := iterateValue(val)
			if err != nil {
				return nil, err
			}
			parts := make([]string, 0, len(items))
			for _, item := range items {
				parts = append(parts, item.String())
			}
			return StringValue(strings.Join(parts, sep)), nil
		},
		"length": func(val Value, _ []Value) (Value, error) {
			switch t := val.(type) {
			case StringValue:
				return IntValue(len(t)), nil
			case ListValue:
				return IntValue(len(t)), nil
			case DictValue:
				return IntValue(len(t)), nil
			}
			return nil, fmt.Errorf("value of type %T has no length", val)
		},
	}
}

// Evaluator evaluates the expression subset used inside tags: dotted-path
// lookups, string/int/bool/none literals, and a filter pipeline such as
// name|upper|default('Anon'). A lookup miss yields an undefined value that
// only a default filter can absorb.
type Evaluator struct {
	Filters Filters
}

func NewEvaluator() *Evaluator { return &Evaluator{Filters: DefaultFilters()} }

func (e *Evaluator) Eval(expr string, sc *Scope) (Value, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty expression")
	}
	parts := splitTop(expr, '|')
	val, err := evalAtom(parts[0], sc)
	if err != nil {
		return nil, err
	}
	for _, part := range parts[1:] {
		name, args, err := parseFilter(part, sc)
		if err != nil {
			return nil, err
		}
		fn := e.Filters[name]
		if fn == nil {
			return nil, fmt.Errorf("unknown filter %q", name)
		}
		val, err = fn(val, args)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", name, err)
		}
	}
	return val, nil
}

// Truthy evaluates a condition. Supported forms: a bare expression, 'not'
// prefix, and '==' / '!=' comparisons. An undefined operand is falsy here
// rather than an error, so conditions can probe for optional context.
func (e *Evaluator) Truthy(expr string, sc *Scope) (bool, error) {
	s := strings.TrimSpace(expr)
	if s == "" {
		return false, fmt.Errorf("empty condition")
	}
	if rest, ok := strings.CutPrefix(s, "not "); ok {
		b, err := e.Truthy(rest, sc)
		if err != nil {
			return false, err
		}
		return !b, nil
	}
	for _, op := range []string{"==", "!="} {
		if i := indexTop(s, op); i >= 0 {
			lhs, err := e.Eval(s[:i], sc)
			if err != nil {
				return false, err
			}
			rhs, err := e.Eval(s[i+2:], sc)
			if err != nil {
				return false, err
			}
			eq := valuesEqual(lhs, rhs)
			if op == "!=" {
				return !eq, nil
			}
			return eq, nil
		}
	}
	v, err := e.Eval(s, sc)
	if err != nil {
		return false, err
	}
	return v.Truth(), nil
}

func valuesEqual(a, b Value) bool {
	if _, undef := isUndefined(a); undef {
		_, bu := isUndefined(b)
		_, bn := b.(NoneValue)
		return bu || bn
	}
	if _, undef := isUndefined(b); undef {
		_, an := a.(NoneValue)
		return an
	}
	return a.String() == b.String()
}

// evalAtom evaluates a single literal or dotted-path lookup.
func evalAtom(s string, sc *Scope) (Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty expression")
	}
	if len(s) >= 2 {
		if q := s[0]; (q == '\'' || q == '"') && s[len(s)-1] == q {
			return StringValue(s[1 : len(s)-1]), nil
		}
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return IntValue(n), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return FloatValue(f), nil
	}
	switch s {
	case "true":
		return BoolValue(true), nil
	case "false":
		return BoolValue(false), nil
	case "none":
		return NoneValue{}, nil
	}
	return evalPath(s, sc)
}

// evalPath walks a dotted path, first through the scope and then through
// nested dict values. A miss at any segment returns undefined carrying the
// path walked so far.
func evalPath(path string, sc *Scope) (Value, error) {
	segs := strings.Split(path, ".")
	for _, seg := range segs {
		if !isIdent(seg) {
			return nil, fmt.Errorf("malformed path %q", path)
		}
	}
	cur, ok := sc.Lookup(segs[0])
	if !ok {
		return undefinedValue{path: segs[0]}, nil
	}
	walked := segs[0]
	for _, seg := range segs[1:] {
		dict, isDict := cur.(DictValue)
		if !isDict {
			return undefinedValue{path: walked + "." + seg}, nil
		}
		next, ok := dict[seg]
		if !ok {
			return undefinedValue{path: walked + "." + seg}, nil
		}
		cur = next
		walked += "." + seg
	}
	return cur, nil
}

func parseFilter(s string, sc *Scope) (string, []Value, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil, fmt.Errorf("empty filter in pipeline")
	}
	name := s
	var args []Value
	if i := strings.IndexByte(s, '('); i >= 0 {
		if !strings.HasSuffix(s, ")") {
			return "", nil, fmt.Errorf("malformed filter call %q", s)
		}
		name = strings.TrimSpace(s[:i])
		inner := strings.TrimSpace(s[i+1 : len(s)-1])
		if inner != "" {
			for _, part := range splitTop(inner, ',') {
				v, err := evalAtom(part, sc)
				if err != nil {
					return "", nil, err
				}
				if path, undef := isUndefined(v); undef {
					return "", nil, fmt.Errorf("filter argument %q is undefined", path)
				}
				args = append(args, v)
			}
		}
	}
	if !isIdent(name) {
		return "", nil, fmt.Errorf("malformed filter name %q", name)
	}
	return name, args, nil
}

// splitTop splits s on sep, ignoring separators inside quotes or parens.
func splitTop(s string, sep byte) []string {
	var parts []string
	var b strings.Builder
	depth := 0
	inStr := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr != 0 {
			b.WriteByte(c)
			if c == inStr {
				inStr = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			inStr = c
			b.WriteByte(c)
		case '(':
			depth++
			b.WriteByte(c)
		case ')':
			if depth > 0 {
				depth--
			}
			b.WriteByte(c)
		default:
			if c == sep && depth == 0 {
				parts = append(parts, strings.TrimSpace(b.String()))
				b.Reset()
			} else {
				b.WriteByte(c)
			}
		}
	}
	parts = append(parts, strings.TrimSpace(b.String()))
	return parts
}

// indexTop finds the first top-level occurrence of op outside quotes and
// parens, or -1.
func indexTop(s, op string) int {
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
			if depth > 0 {
				depth--
			}
		}
		if depth == 0 && inStr == 0 && strings.HasPrefix(s[i:], op) {
			return i
		}
	}
	return -1
}

// indexAssign finds a top-level single '=', skipping '==' and '!='.
func indexAssign(s string) int {
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
			if depth > 0 {
				depth--
			}
		case '=':
			if depth > 0 {
				continue
			}
			if i+1 < len(s) && s[i+1] == '=' {
				i++
				continue
			}
			if i > 0 && (s[i-1] == '!' || s[i-1] == '=') {
				continue
			}
			return i
		}
	}
	return -1
}
