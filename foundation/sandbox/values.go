package sandbox

import (
	"encoding/json"
	"fmt"
	"sort"

	"go.starlark.net/starlark"
)

// Normalize validates the value is one of the kinds a state variable can
// hold and returns it in its canonical Go form. Integers become int64,
// json numbers become int64 or float64, lists become []any and mappings
// become map[string]any. Nested values follow the same rules and may also
// be nil.
func Normalize(v any) (any, error) {
	return normalize(v, false)
}

func normalize(v any, nested bool) (any, error) {
	switch v := v.(type) {
	case nil:
		if nested {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: none can't be stored as a state variable", ErrType)

	case bool:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint32:
		return int64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		return v, nil

	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i, nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: invalid number %q", ErrType, v.String())
		}
		return f, nil

	case []any:
		list := make([]any, len(v))
		for i, e := range v {
			ne, err := normalize(e, true)
			if err != nil {
				return nil, err
			}
			list[i] = ne
		}
		return list, nil

	case map[string]any:
		m := make(map[string]any, len(v))
		for k, e := range v {
			ne, err := normalize(e, true)
			if err != nil {
				return nil, err
			}
			m[k] = ne
		}
		return m, nil
	}

	return nil, fmt.Errorf("%w: %T can't be stored as a state variable", ErrType, v)
}

// copyState returns a deep copy of the normalized state map.
func copyState(state map[string]any) map[string]any {
	cp := make(map[string]any, len(state))
	for name, v := range state {
		cp[name] = deepCopy(v)
	}
	return cp
}

// deepCopy copies the lists and mappings of a normalized value.
func deepCopy(v any) any {
	switch v := v.(type) {
	case []any:
		list := make([]any, len(v))
		for i, e := range v {
			list[i] = deepCopy(e)
		}
		return list

	case map[string]any:
		m := make(map[string]any, len(v))
		for k, e := range v {
			m[k] = deepCopy(e)
		}
		return m
	}

	return v
}

// =============================================================================

// toStarlark converts a normalized Go value into a new, unfrozen starlark
// value. Nothing is shared with the Go value.
func toStarlark(v any) (starlark.Value, error) {
	switch v := v.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(v), nil
	case int:
		return starlark.MakeInt(v), nil
	case int64:
		return starlark.MakeInt64(v), nil
	case float64:
		return starlark.Float(v), nil
	case string:
		return starlark.String(v), nil

	case json.Number, int32, uint32, float32:
		nv, err := normalize(v, true)
		if err != nil {
			return nil, err
		}
		return toStarlark(nv)

	case []any:
		elems := make([]starlark.Value, len(v))
		for i, e := range v {
			se, err := toStarlark(e)
			if err != nil {
				return nil, err
			}
			elems[i] = se
		}
		return starlark.NewList(elems), nil

	case map[string]any:

		// Insertion order of a starlark dict is observable so keys are
		// added in sorted order to keep execution deterministic.
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		d := starlark.NewDict(len(v))
		for _, k := range keys {
			se, err := toStarlark(v[k])
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(k), se); err != nil {
				return nil, err
			}
		}
		return d, nil
	}

	return nil, fmt.Errorf("%w: %T has no script representation", ErrType, v)
}

// fromStarlark converts a starlark value into its normalized Go form. Only
// values a state variable can hold are accepted.
func fromStarlark(v starlark.Value) (any, error) {
	return fromStarlarkValue(v, false)
}

func fromStarlarkValue(v starlark.Value, nested bool) (any, error) {
	switch v := v.(type) {
	case starlark.NoneType:
		if nested {
			return nil, nil
		}

	case starlark.Bool:
		return bool(v), nil

	case starlark.Int:
		i, ok := v.Int64()
		if !ok {
			return nil, fmt.Errorf("%w: integer %s is out of range", ErrType, v.String())
		}
		return i, nil

	case starlark.Float:
		return float64(v), nil

	case starlark.String:
		return string(v), nil

	case *starlark.List:
		list := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			e, err := fromStarlarkValue(v.Index(i), true)
			if err != nil {
				return nil, err
			}
			list[i] = e
		}
		return list, nil

	case *starlark.Dict:
		m := make(map[string]any, v.Len())
		for _, item := range v.Items() {
			k, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("%w: mapping keys must be strings, got %s", ErrType, item[0].Type())
			}
			e, err := fromStarlarkValue(item[1], true)
			if err != nil {
				return nil, err
			}
			m[string(k)] = e
		}
		return m, nil
	}

	return nil, fmt.Errorf("%w: %s can't be stored as a state variable", ErrType, v.Type())
}

// isStateKind reports whether a top level binding should be tracked as a
// state variable.
func isStateKind(v starlark.Value) bool {
	switch v.(type) {
	case starlark.Bool, starlark.Int, starlark.Float, starlark.String, *starlark.List, *starlark.Dict:
		return true
	}
	return false
}
