// Package starctx builds render contexts from Starlark scripts. A script
// either assigns a dict named "context" at top level or defines a context()
// function returning one; the result is converted to plain Go values and can
// be handed straight to the template manager.
package starctx

import (
	"fmt"
	"log/slog"

	"go.starlark.net/starlark"
)

const entryPoint = "context"

// Exec runs a context script and extracts its context dict. src may be nil
// to read from filename, or a string/[]byte holding the script source.
func Exec(filename string, src any) (map[string]any, error) {
	thread := &starlark.Thread{
		Name: "starctx",
		Print: func(_ *starlark.Thread, msg string) {
			slog.Info("context script print", "file", filename, "msg", msg)
		},
	}
	globals, err := starlark.ExecFile(thread, filename, src, nil)
	if err != nil {
		return nil, fmt.Errorf("executing context script: %w", err)
	}
	val, ok := globals[entryPoint]
	if !ok {
		return nil, fmt.Errorf("script %s does not define %q", filename, entryPoint)
	}
	if fn, isCallable := val.(starlark.Callable); isCallable {
		val, err = starlark.Call(thread, fn, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("calling %s(): %w", entryPoint, err)
		}
	}
	dict, ok := val.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("%q must be a dict, got %s", entryPoint, val.Type())
	}
	return fromDict(dict)
}

func fromDict(dict *starlark.Dict) (map[string]any, error) {
	out := make(map[string]any, dict.Len())
	for _, item := range dict.Items() {
		key, ok := starlark.AsString(item[0])
		if !ok {
			return nil, fmt.Errorf("dict key %s is not a string", item[0].String())
		}
		v, err := fromStarlark(item[1])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}

func fromStarlark(val starlark.Value) (any, error) {
	switch v := val.(type) {
	case nil, starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(v), nil
	case starlark.String:
		return string(v), nil
	case starlark.Int:
		if i, ok := v.Int64(); ok {
			return i, nil
		}
		// integers beyond int64 degrade to their decimal string
		return v.String(), nil
	case starlark.Float:
		return float64(v), nil
	case *starlark.List:
		return fromSequence(v.Len(), v.Index)
	case starlark.Tuple:
		return fromSequence(v.Len(), v.Index)
	case *starlark.Dict:
		return fromDict(v)
	default:
		return nil, fmt.Errorf("unsupported value of type %s", val.Type())
	}
}

func fromSequence(n int, index func(int) starlark.Value) ([]any, error) {
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		v, err := fromStarlark(index(i))
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}
