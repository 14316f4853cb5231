package prompt

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
)

// Value is the tagged value type the engine binds into templates. Dotted
// path lookups walk these values explicitly rather than reflecting over
// arbitrary Go types, which keeps binding errors precise; reflection only
// happens once, at the FromGo boundary.
type Value interface {
	String() string
	Truth() bool
}

// NoneValue represents the absence of a value.
type NoneValue struct{}

func (NoneValue) String() string { return "" }
func (NoneValue) Truth() bool    { return false }

// BoolValue wraps a boolean.
type BoolValue bool

func (b BoolValue) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (b BoolValue) Truth() bool { return bool(b) }

// IntValue wraps a 64-bit integer.
type IntValue int64

func (i IntValue) String() string { return strconv.FormatInt(int64(i), 10) }
func (i IntValue) Truth() bool    { return int64(i) != 0 }

// FloatValue wraps a 64-bit float.
type FloatValue float64

func (f FloatValue) String() string { return strconv.FormatFloat(float64(f), 'g', -1, 64) }
func (f FloatValue) Truth() bool    { return float64(f) != 0 }

// StringValue wraps a string.
type StringValue string

func (s StringValue) String() string { return string(s) }
func (s StringValue) Truth() bool    { return len(s) > 0 }

// ListValue wraps an ordered sequence of values.
type ListValue []Value

func (l ListValue) String() string {
	out := ""
	for i, v := range l {
		if i > 0 {
			out += " "
		}
		out += v.String()
	}
	return out
}
func (l ListValue) Truth() bool { return len(l) > 0 }

// DictValue wraps a string-keyed mapping of values.
type DictValue map[string]Value

func (d DictValue) String() string { return "{...}" }
func (d DictValue) Truth() bool    { return len(d) > 0 }

// undefinedValue marks a lookup miss. It flows through filter pipelines so
// that a declared default can absorb it; if it survives to an output
// position it becomes a BindingError rather than silent empty text.
type undefinedValue struct {
	path string
}

func (undefinedValue) String() string { return "" }
func (undefinedValue) Truth() bool    { return false }

func isUndefined(v Value) (string, bool) {
	u, ok := v.(undefinedValue)
	return u.path, ok
}

// FromGo converts a plain Go value into a Value. Maps must be string-keyed;
// nested maps and slices convert recursively.
func FromGo(v any) Value {
	if v == nil {
		return NoneValue{}
	}
	switch t := v.(type) {
	case Value:
		return t
	case string:
		return StringValue(t)
	case bool:
		return BoolValue(t)
	case int:
		return IntValue(int64(t))
	case int32:
		return IntValue(int64(t))
	case int64:
		return IntValue(t)
	case float32:
		return FloatValue(float64(t))
	case float64:
		return FloatValue(t)
	case []byte:
		return StringValue(string(t))
	case map[string]any:
		out := make(DictValue, len(t))
		for k, val := range t {
			out[k] = FromGo(val)
		}
		return out
	case []any:
		out := make(ListValue, 0, len(t))
		for _, item := range t {
			out = append(out, FromGo(item))
		}
		return out
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		n := rv.Len()
		out := make(ListValue, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, FromGo(rv.Index(i).Interface()))
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			out := DictValue{}
			it := rv.MapRange()
			for it.Next() {
				out[it.Key().String()] = FromGo(it.Value().Interface())
			}
			return out
		}
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return NoneValue{}
		}
		return FromGo(rv.Elem().Interface())
	}
	return StringValue(fmt.Sprintf("%v", v))
}

// FromGoMap converts a request context mapping into engine values.
func FromGoMap(m map[string]any) map[string]Value {
	out := make(map[string]Value, len(m))
	for k, v := range m {
		out[k] = FromGo(v)
	}
	return out
}

// iterateValue turns a Value into a sequence for loop semantics. Lists keep
// their order, dicts iterate over sorted keys so renders stay
// deterministic, none yields an empty sequence.
func iterateValue(v Value) ([]Value, error) {
	switch t := v.(type) {
	case NoneValue:
		return nil, nil
	case ListValue:
		out := make([]Value, len(t))
		copy(out, t)
		return out, nil
	case DictValue:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]Value, 0, len(keys))
		for _, k := range keys {
			out = append(out, StringValue(k))
		}
		return out, nil
	}
	return nil, fmt.Errorf("value of type %T is not iterable", v)
}
