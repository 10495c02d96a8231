package theme

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Sentinel marks an array that splices into the existing array instead of
// replacing it: first element appends, last element prepends.
const Sentinel = "..."

var (
	// ErrAmbiguousSentinel is returned for arrays with a sentinel at both ends.
	ErrAmbiguousSentinel = errors.New("array has a sentinel at both ends")
	// ErrNestedSentinel is returned when a sentinel appears inside an array
	// that is itself an array element.
	ErrNestedSentinel = errors.New("sentinel is only supported in top-level arrays")
)

// Merge deep-merges incoming over existing and returns the result. Neither
// argument is modified.
//
// Maps merge key by key. Arrays replace the existing value unless they start
// or end with Sentinel. Everything else replaces.
func Merge(existing, incoming map[string]any) (map[string]any, error) {
	v, err := mergeValue(existing, incoming, nil)
	if err != nil {
		return nil, err
	}
	return v.(map[string]any), nil
}

// MergeAt merges value into root at the given object path.
func MergeAt(root map[string]any, objectPath []string, value any) (map[string]any, error) {
	wrapped := value
	for i := len(objectPath) - 1; i >= 0; i-- {
		wrapped = map[string]any{objectPath[i]: wrapped}
	}
	incoming, ok := wrapped.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("cannot merge %T into the root object", value)
	}
	return Merge(root, incoming)
}

func mergeValue(existing, incoming any, at []string) (any, error) {
	switch in := incoming.(type) {
	case map[string]any:
		base, _ := existing.(map[string]any)
		out := make(map[string]any, len(base)+len(in))
		for k, v := range base {
			out[k] = cloneValue(v)
		}
		for _, k := range slices.Sorted(maps.Keys(in)) {
			merged, err := mergeValue(base[k], in[k], append(slices.Clip(at), k))
			if err != nil {
				return nil, err
			}
			out[k] = merged
		}
		return out, nil
	case []any:
		return mergeArray(existing, in, at)
	default:
		return in, nil
	}
}

func mergeArray(existing any, incoming []any, at []string) (any, error) {
	for i, item := range incoming {
		if nestedSentinel(item) {
			return nil, fmt.Errorf("%s[%d]: %w", strings.Join(at, "."), i, ErrNestedSentinel)
		}
	}

	first := len(incoming) > 0 && incoming[0] == Sentinel
	last := len(incoming) > 1 && incoming[len(incoming)-1] == Sentinel
	if first && last {
		return nil, fmt.Errorf("%s: %w", strings.Join(at, "."), ErrAmbiguousSentinel)
	}
	if !first && !last {
		return cloneValue(incoming), nil
	}

	var base []any
	switch e := existing.(type) {
	case nil:
	case []any:
		base = e
	default:
		base = []any{e}
	}

	out := make([]any, 0, len(base)+len(incoming)-1)
	if first {
		out = append(out, cloneSlice(base)...)
		out = append(out, cloneSlice(incoming[1:])...)
	} else {
		out = append(out, cloneSlice(incoming[:len(incoming)-1])...)
		out = append(out, cloneSlice(base)...)
	}
	return out, nil
}

// nestedSentinel reports whether v contains an array holding a sentinel.
func nestedSentinel(v any) bool {
	switch vv := v.(type) {
	case []any:
		for _, item := range vv {
			if item == Sentinel || nestedSentinel(item) {
				return true
			}
		}
	case map[string]any:
		for _, item := range vv {
			if nestedSentinel(item) {
				return true
			}
		}
	}
	return false
}

func cloneValue(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, item := range vv {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		return cloneSlice(vv)
	default:
		return v
	}
}

func cloneSlice(s []any) []any {
	out := make([]any, len(s))
	for i, item := range s {
		out[i] = cloneValue(item)
	}
	return out
}
