package frontmatter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/magiconair/properties"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ParseYAML parses raw YAML front matter (without delimiters) into a map.
func ParseYAML(raw []byte) (map[string]any, error) {
	var fields map[string]any
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := yaml.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
	}
	return normalizeMap(fields), nil
}

// ParseJSON parses a JSON object. Integral numbers decode as int.
func ParseJSON(raw []byte) (map[string]any, error) {
	var fields map[string]any
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			return nil, err
		}
	}
	return normalizeMap(fields), nil
}

// ParseTOML parses a TOML document.
func ParseTOML(raw []byte) (map[string]any, error) {
	var fields map[string]any
	if err := toml.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return normalizeMap(fields), nil
}

var sectionLine = regexp.MustCompile(`^\s*\[([^\]]*)\]\s*$`)

// ParseProperties parses a Java-style properties block.
//
// Three extensions over plain key/value pairs are supported: `[section]`
// headers prefix the keys that follow them, dotted keys nest into maps, and
// `${key}` references expand to other values. Values that look like booleans,
// numbers or null are converted.
func ParseProperties(raw []byte) (map[string]any, error) {
	p, err := properties.LoadString(expandSections(string(raw)))
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	for _, key := range p.Keys() {
		value, _ := p.Get(key)
		if err := setPath(out, strings.Split(key, "."), coerce(value)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// expandSections rewrites `[section]` headers into key prefixes.
func expandSections(src string) string {
	var (
		b            strings.Builder
		prefix       string
		continuation bool
	)
	for line := range strings.Lines(src) {
		trimmed := strings.TrimSpace(line)
		switch {
		case continuation:
			b.WriteString(line)
		case trimmed == "" || trimmed[0] == '#' || trimmed[0] == '!':
			b.WriteString(line)
		case sectionLine.MatchString(trimmed):
			name := strings.TrimSpace(sectionLine.FindStringSubmatch(trimmed)[1])
			prefix = ""
			if name != "" {
				prefix = name + "."
			}
			continue
		default:
			b.WriteString(prefix)
			b.WriteString(strings.TrimLeft(line, " \t\f"))
		}
		continuation = endsWithContinuation(strings.TrimRight(line, "\r\n"))
	}
	return b.String()
}

func endsWithContinuation(line string) bool {
	n := 0
	for i := len(line) - 1; i >= 0 && line[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

func setPath(m map[string]any, path []string, value any) error {
	for i, seg := range path[:len(path)-1] {
		child, exists := m[seg]
		if !exists {
			next := map[string]any{}
			m[seg] = next
			m = next
			continue
		}
		next, ok := child.(map[string]any)
		if !ok {
			return fmt.Errorf("key %q is both a value and a namespace", strings.Join(path[:i+1], "."))
		}
		m = next
	}
	last := path[len(path)-1]
	if _, isMap := m[last].(map[string]any); isMap {
		return fmt.Errorf("key %q is both a value and a namespace", strings.Join(path, "."))
	}
	m[last] = value
	return nil
}

var numberLike = regexp.MustCompile(`^-?\d+(\.\d+)?([eE][+-]?\d+)?$`)

func coerce(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	if !numberLike.MatchString(s) {
		return s
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// Normalize converts decoder-specific value types into the shared shape used
// by parsed front matter and theme configuration.
func Normalize(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		return normalizeMap(vv)
	case map[any]any:
		out := make(map[string]any, len(vv))
		for k, val := range vv {
			out[fmt.Sprint(k)] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i, item := range vv {
			out[i] = Normalize(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(vv))
		for i, item := range vv {
			out[i] = normalizeMap(item)
		}
		return out
	case json.Number:
		if i, err := vv.Int64(); err == nil {
			return int(i)
		}
		if f, err := vv.Float64(); err == nil {
			return f
		}
		return vv.String()
	case int64:
		return int(vv)
	case uint64:
		return int(vv)
	default:
		return v
	}
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Normalize(v)
	}
	return out
}
