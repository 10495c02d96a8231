package theme

import (
	"maps"
	"slices"
	"strconv"
)

// Globals is the merged theme configuration exposed to templates. It is
// immutable once built.
type Globals struct {
	root map[string]any
}

// NewGlobals wraps a configuration object. The map is copied.
func NewGlobals(root map[string]any) *Globals {
	if root == nil {
		root = map[string]any{}
	}
	return &Globals{root: cloneValue(root).(map[string]any)}
}

// MergeLayers loads the configuration of every layer in order, each one
// merged over the layers before it.
func MergeLayers(layers ...Layer) (*Globals, error) {
	merged := map[string]any{}
	for _, layer := range layers {
		var err error
		if merged, err = LoadConfig(layer, merged); err != nil {
			return nil, err
		}
	}
	return &Globals{root: merged}, nil
}

// Lookup walks path through nested maps and arrays. Array elements are
// addressed by decimal index. A missing segment reports false.
func (g *Globals) Lookup(path ...string) (any, bool) {
	if g == nil {
		return nil, false
	}
	var cur any = g.root
	for _, seg := range path {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil, false
			}
			cur = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			cur = node[i]
		default:
			return nil, false
		}
	}
	return cloneValue(cur), true
}

// String looks up a non-empty string value.
func (g *Globals) String(path ...string) (string, bool) {
	v, ok := g.Lookup(path...)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// Keys returns the sorted top-level keys.
func (g *Globals) Keys() []string {
	if g == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(g.root))
}

// Map returns a deep copy of the configuration object.
func (g *Globals) Map() map[string]any {
	if g == nil {
		return map[string]any{}
	}
	return cloneValue(g.root).(map[string]any)
}

// Context returns a render context: the globals shallow-merged under data,
// so that data keys win.
func (g *Globals) Context(data map[string]any) map[string]any {
	var size int
	if g != nil {
		size = len(g.root)
	}
	ctx := make(map[string]any, size+len(data))
	if g != nil {
		maps.Copy(ctx, g.root)
	}
	maps.Copy(ctx, data)
	return ctx
}

// FirstString returns the first candidate that resolves to a non-empty
// string. Candidates are tried in order.
func FirstString(candidates ...func() (string, bool)) (string, bool) {
	for _, c := range candidates {
		if s, ok := c(); ok {
			return s, true
		}
	}
	return "", false
}

// From returns a candidate reading a non-empty string from a data map.
func From(data map[string]any, key string) func() (string, bool) {
	return func() (string, bool) {
		s, ok := data[key].(string)
		return s, ok && s != ""
	}
}

// Global returns a candidate reading a non-empty string from globals.
func (g *Globals) Global(path ...string) func() (string, bool) {
	return func() (string, bool) { return g.String(path...) }
}

// Literal returns a candidate that always yields s.
func Literal(s string) func() (string, bool) {
	return func() (string, bool) { return s, s != "" }
}
