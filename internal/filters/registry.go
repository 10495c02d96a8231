// Package filters builds the registry of theme filters: Lua functions found
// under `filters/` in each theme layer and exposed to templates by name.
//
// A filter file returns either a function, registered under the name derived
// from its path, or a table of functions, registered as `<name>_<key>`.
// Path-derived names replace slashes, hyphens and whitespace with `_`:
// `filters/text/word-count.lua` registers `text_word_count`.
//
// In templates the piped value becomes the first Lua argument, so
// `{{ .x | f 1 2 }}` and `{{ f 1 2 .x }}` both call `f(x, 1, 2)`.
package filters

import (
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"maps"
	"path"
	"regexp"
	"slices"
	"strings"

	lua "github.com/yuin/gopher-lua"

	foundationerrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/theme"
)

// Dir is the directory of a layer holding filter files.
const Dir = "filters"

// Ext is the only supported filter file extension.
const Ext = ".lua"

// ErrClosed is returned when calling a filter after Close.
var ErrClosed = errors.New("filter registry is closed")

// Reserved names cannot be used by filters: the template environment's own
// functions and the text/template builtins.
var Reserved = map[string]bool{
	"include": true, "markdown": true, "source": true, "safe": true,
	"dict": true, "list": true, "default": true,
	"and": true, "or": true, "not": true, "len": true, "index": true, "slice": true,
	"print": true, "printf": true, "println": true, "html": true, "js": true,
	"urlquery": true, "call": true, "eq": true, "ne": true, "lt": true,
	"le": true, "gt": true, "ge": true, "block": true, "define": true,
	"template": true, "with": true, "range": true, "if": true, "else": true, "end": true,
	"break": true, "continue": true, "nil": true, "true": true, "false": true,
}

var (
	identifier    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	separatorRuns = regexp.MustCompile(`[-\s/]+`)
)

// Filter is one registered filter.
type Filter struct {
	Name   string
	Layer  string
	Source string // slash path of the defining file within its layer
	fn     *lua.LFunction
	state  *state
}

// Call runs the filter with args in Lua argument order.
func (f *Filter) Call(args ...any) (any, error) {
	v, err := f.state.call(f.fn, args)
	if err != nil {
		return nil, foundationerrors.FilterError("filter failed").
			WithContext("filter", f.Name).
			WithContext("source", f.Source).
			WithCause(err).
			Build()
	}
	return v, nil
}

// Registry maps filter names to filters.
type Registry struct {
	filters map[string]*Filter
	states  []*state
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{filters: map[string]*Filter{}}
}

// Load builds a registry from layers in order; later layers override earlier
// ones on name collisions.
func Load(layers ...theme.Layer) (*Registry, error) {
	reg := NewRegistry()
	for _, layer := range layers {
		lr, err := LoadLayer(layer)
		if err != nil {
			reg.Close()
			return nil, err
		}
		reg.Merge(lr)
	}
	return reg, nil
}

// LoadLayer discovers and evaluates the filter files of one layer.
func LoadLayer(layer theme.Layer) (*Registry, error) {
	var files []string
	err := theme.WalkLayer(layer.FS, Dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != Dir && theme.IsHidden(d.Name()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if path.Ext(p) != Ext {
			return configError("unsupported filter file type", layer, p).
				WithContext("extension", path.Ext(p)).
				Build()
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(files)

	reg := NewRegistry()
	if len(files) == 0 {
		return reg, nil
	}
	st := newState(DefaultCallTimeout)
	reg.states = append(reg.states, st)
	for _, p := range files {
		if err := reg.loadFile(st, layer, p); err != nil {
			reg.Close()
			return nil, err
		}
	}
	return reg, nil
}

// NameFor derives the registration name of a filter file from its path
// relative to the filters directory.
func NameFor(rel string) string {
	rel = strings.TrimSuffix(rel, path.Ext(rel))
	return separatorRuns.ReplaceAllString(strings.Trim(rel, "/"), "_")
}

func (r *Registry) loadFile(st *state, layer theme.Layer, p string) error {
	src, err := fs.ReadFile(layer.FS, p)
	if err != nil {
		return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "failed to read filter file").
			WithContext("layer", layer.Name).
			WithContext("path", p).
			Build()
	}
	ret, err := st.exec(layer.Name+":"+p, string(src))
	if err != nil {
		return configError("failed to evaluate filter file", layer, p).WithCause(err).Build()
	}

	name := NameFor(strings.TrimPrefix(p, Dir+"/"))
	switch v := ret.(type) {
	case *lua.LFunction:
		return r.register(layer, p, name, v, st)
	case *lua.LTable:
		var keys []string
		var bad error
		v.ForEach(func(k, val lua.LValue) {
			if bad != nil {
				return
			}
			key, ok := k.(lua.LString)
			if !ok {
				bad = configError("filter table keys must be strings", layer, p).WithContext("key", k.String()).Build()
				return
			}
			if _, ok := val.(*lua.LFunction); !ok {
				bad = configError("filter table entries must be functions", layer, p).
					WithContext("key", string(key)).
					WithContext("type", val.Type().String()).
					Build()
				return
			}
			keys = append(keys, string(key))
		})
		if bad != nil {
			return bad
		}
		if len(keys) == 0 {
			return configError("filter table is empty", layer, p).Build()
		}
		slices.Sort(keys)
		for _, key := range keys {
			fn := v.RawGetString(key).(*lua.LFunction)
			if err := r.register(layer, p, name+"_"+key, fn, st); err != nil {
				return err
			}
		}
		return nil
	default:
		return configError("filter file must return a function or a table of functions", layer, p).
			WithContext("type", ret.Type().String()).
			Build()
	}
}

func (r *Registry) register(layer theme.Layer, p, name string, fn *lua.LFunction, st *state) error {
	if !identifier.MatchString(name) {
		return configError("filter name is not a valid identifier", layer, p).WithContext("filter", name).Build()
	}
	if Reserved[name] {
		return configError("filter name is reserved", layer, p).WithContext("filter", name).Build()
	}
	r.filters[name] = &Filter{Name: name, Layer: layer.Name, Source: p, fn: fn, state: st}
	return nil
}

func configError(msg string, layer theme.Layer, p string) *foundationerrors.ErrorBuilder {
	return foundationerrors.ConfigError(msg).
		WithContext("layer", layer.Name).
		WithContext("path", p)
}

// Merge copies other's filters into r, replacing filters with the same name.
func (r *Registry) Merge(other *Registry) {
	maps.Copy(r.filters, other.filters)
	r.states = append(r.states, other.states...)
}

// Get returns a filter by name.
func (r *Registry) Get(name string) (*Filter, bool) {
	f, ok := r.filters[name]
	return f, ok
}

// Names returns the sorted filter names.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.filters))
}

// Len returns the number of registered filters.
func (r *Registry) Len() int {
	return len(r.filters)
}

// FuncMap exposes the filters as template functions. The last template
// argument (the piped value) is passed to Lua first.
func (r *Registry) FuncMap() template.FuncMap {
	fm := make(template.FuncMap, len(r.filters))
	for name, f := range r.filters {
		fm[name] = func(args ...any) (any, error) {
			if len(args) > 1 {
				args = append([]any{args[len(args)-1]}, args[:len(args)-1]...)
			}
			return f.Call(args...)
		}
	}
	return fm
}

// Close releases the Lua states. Filters fail with ErrClosed afterwards.
func (r *Registry) Close() {
	for _, st := range r.states {
		st.close()
	}
}

// String lists the filters for diagnostics.
func (r *Registry) String() string {
	var b strings.Builder
	for _, name := range r.Names() {
		f := r.filters[name]
		fmt.Fprintf(&b, "%s\t%s:%s\n", name, f.Layer, f.Source)
	}
	return b.String()
}
