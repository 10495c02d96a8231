package templates

import (
	"errors"
	"fmt"
	"html/template"
	"reflect"

	"git.home.luguber.info/inful/sitebuilder/internal/content"
)

// ErrOddDictArgs is returned by dict when keys and values do not pair up.
var ErrOddDictArgs = errors.New("dict expects key/value pairs")

// Builtins lists the functions every template can call. Filters may not use
// these names.
var Builtins = []string{"include", "markdown", "source", "safe", "dict", "list", "default"}

func (e *Environment) builtinFuncs(depth int) template.FuncMap {
	return template.FuncMap{
		"include": func(name string, data ...any) (template.HTML, error) {
			ctx, err := includeContext(data)
			if err != nil {
				return "", err
			}
			out, err := e.render(name, ctx, depth+1)
			if err != nil {
				return "", err
			}
			return template.HTML(out), nil // #nosec G203 -- rendered by html/template
		},
		"markdown": func(v any) (template.HTML, error) {
			return e.md.HTML(toString(v))
		},
		"source": func(id string) (string, error) {
			if e.index == nil {
				return "", fmt.Errorf("%w: %s", content.ErrNotFound, id)
			}
			return e.index.Source(id)
		},
		"safe": func(v any) template.HTML {
			return template.HTML(toString(v)) // #nosec G203 -- explicit opt-in by the template author
		},
		"dict": func(kv ...any) (map[string]any, error) {
			if len(kv)%2 != 0 {
				return nil, ErrOddDictArgs
			}
			m := make(map[string]any, len(kv)/2)
			for i := 0; i < len(kv); i += 2 {
				k, ok := kv[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict key %v is %T, not string", kv[i], kv[i])
				}
				m[k] = kv[i+1]
			}
			return m, nil
		},
		"list": func(items ...any) []any {
			return items
		},
		"default": func(def any, v ...any) any {
			if len(v) == 0 || empty(v[0]) {
				return def
			}
			return v[0]
		},
	}
}

func includeContext(data []any) (map[string]any, error) {
	switch len(data) {
	case 0:
		return map[string]any{}, nil
	case 1:
		if data[0] == nil {
			return map[string]any{}, nil
		}
		m, ok := data[0].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("include data is %T, not a map", data[0])
		}
		return m, nil
	}
	return nil, errors.New("include takes at most one data argument")
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case template.HTML:
		return string(s)
	case fmt.Stringer:
		return s.String()
	}
	return fmt.Sprint(v)
}

// empty mirrors template truthiness.
func empty(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return rv.Len() == 0
	case reflect.Bool:
		return !rv.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Truthy reports whether v counts as true in a template {{if}}.
func Truthy(v any) bool { return !empty(v) }
