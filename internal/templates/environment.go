// Package templates is the template environment of one build: the theme
// layouts, the merged globals, the filters and the Markdown renderer, behind
// an immutable value shared by every render call.
//
// Templates are html/template. Layout files from every layer are parsed into
// one master set, custom definitions shadowing base ones by name. The master
// set is never executed; each render works on a clone, so documents can
// define their own blocks without affecting each other. Sources that are not
// HTML, such as Markdown bodies, are expanded with text/template instead.
package templates

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"slices"
	texttemplate "text/template"

	"git.home.luguber.info/inful/sitebuilder/internal/content"
	"git.home.luguber.info/inful/sitebuilder/internal/filters"
	foundationerrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/markdown"
	"git.home.luguber.info/inful/sitebuilder/internal/theme"
)

// MaxIncludeDepth bounds nested include calls.
const MaxIncludeDepth = 32

// Options are the inputs of New.
type Options struct {
	// Layers in application order, base first.
	Layers   []theme.Layer
	Globals  *theme.Globals
	Filters  *filters.Registry
	Markdown *markdown.Renderer
	// Content is consulted before the theme layers when resolving names.
	Content *content.Index
}

// Environment renders templates. It is safe for concurrent use as long as
// the content index is not mutated concurrently.
type Environment struct {
	master   *template.Template
	globals  *theme.Globals
	md       *markdown.Renderer
	index    *content.Index
	loaders  []Loader
	builtins template.FuncMap
	funcs    template.FuncMap
}

// New builds the environment.
func New(opts Options) (*Environment, error) {
	e := &Environment{
		globals: opts.Globals,
		md:      opts.Markdown,
		index:   opts.Content,
	}
	if e.globals == nil {
		e.globals = theme.NewGlobals(nil)
	}
	if e.md == nil {
		e.md = markdown.New(markdown.DefaultOptions())
	}

	e.loaders = append(e.loaders, ContentLoader{Index: opts.Content})
	for _, layer := range slices.Backward(opts.Layers) {
		e.loaders = append(e.loaders, LayerLoader{Layer: layer})
	}

	e.builtins = e.builtinFuncs(0)
	funcs := template.FuncMap{}
	if opts.Filters != nil {
		for name, fn := range opts.Filters.FuncMap() {
			funcs[name] = fn
		}
	}
	for name, fn := range e.builtins {
		funcs[name] = fn
	}

	e.funcs = funcs
	master := template.New("").Funcs(funcs)
	for _, layer := range opts.Layers {
		names, err := layerTemplates(layer)
		if err != nil {
			return nil, foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "scan theme templates").
				WithContext("layer", layer.Name).
				Build()
		}
		for _, name := range names {
			src, err := fs.ReadFile(layer.FS, name)
			if err != nil {
				return nil, foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "read theme template").
					WithContext("layer", layer.Name).
					WithContext("template", name).
					Build()
			}
			if _, err := master.New(name).Parse(string(src)); err != nil {
				return nil, foundationerrors.WrapError(err, foundationerrors.CategoryTemplate, "parse theme template").
					WithContext("layer", layer.Name).
					WithContext("template", name).
					Fatal().
					Build()
			}
		}
	}
	e.master = master
	return e, nil
}

// Globals returns the template globals.
func (e *Environment) Globals() *theme.Globals { return e.globals }

// Markdown returns the Markdown renderer.
func (e *Environment) Markdown() *markdown.Renderer { return e.md }

// Context merges the globals under data.
func (e *Environment) Context(data map[string]any) map[string]any {
	return e.globals.Context(data)
}

// Has reports whether name resolves through any loader.
func (e *Environment) Has(name string) bool {
	_, _, ok, _ := e.resolve(name)
	return ok
}

// Defined reports whether name is in the master set, which is what
// {{template}} and {{block}} calls can reach.
func (e *Environment) Defined(name string) bool {
	return e.master.Lookup(name) != nil
}

// Templates lists the names in the master set.
func (e *Environment) Templates() []string {
	var names []string
	for _, t := range e.master.Templates() {
		if t.Name() != "" {
			names = append(names, t.Name())
		}
	}
	slices.Sort(names)
	return names
}

// Render resolves name through the loaders and executes it with the globals
// merged under data.
func (e *Environment) Render(name string, data map[string]any) (string, error) {
	return e.render(name, data, 0)
}

// RenderString executes src as a template named name.
func (e *Environment) RenderString(name, src string, data map[string]any) (string, error) {
	return e.execute(name, src, data, 0)
}

// Expand executes src as a text/template with the same functions and
// context as Render. The output is not escaped.
func (e *Environment) Expand(name, src string, data map[string]any) (string, error) {
	t, err := texttemplate.New(name).Funcs(texttemplate.FuncMap(e.funcs)).Parse(src)
	if err != nil {
		return "", foundationerrors.WrapError(err, foundationerrors.CategoryTemplate, "parse template").
			WithContext("template", name).
			Build()
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, e.Context(data)); err != nil {
		return "", foundationerrors.WrapError(err, foundationerrors.CategoryTemplate, "render template").
			WithContext("template", name).
			Build()
	}
	return buf.String(), nil
}

func (e *Environment) render(name string, data map[string]any, depth int) (string, error) {
	src, _, ok, err := e.resolve(name)
	if err != nil {
		return "", foundationerrors.WrapError(err, foundationerrors.CategoryTemplate, "load template").
			WithContext("template", name).
			Build()
	}
	if !ok {
		return "", foundationerrors.TemplateError("template not found").
			WithContext("template", name).
			Build()
	}
	return e.execute(name, src, data, depth)
}

func (e *Environment) resolve(name string) (string, Loader, bool, error) {
	for _, l := range e.loaders {
		src, ok, err := l.Load(name)
		if err != nil {
			return "", l, false, err
		}
		if ok {
			return src, l, true, nil
		}
	}
	return "", nil, false, nil
}

func (e *Environment) execute(name, src string, data map[string]any, depth int) (string, error) {
	if depth > MaxIncludeDepth {
		return "", foundationerrors.TemplateError("include depth exceeded").
			WithContext("template", name).
			WithContext("depth", depth).
			Build()
	}
	t, err := e.master.Clone()
	if err != nil {
		return "", fmt.Errorf("clone template set: %w", err)
	}
	if depth > 0 {
		t.Funcs(e.builtinFuncs(depth))
	}
	if _, err := t.New(name).Parse(src); err != nil {
		return "", foundationerrors.WrapError(err, foundationerrors.CategoryTemplate, "parse template").
			WithContext("template", name).
			Build()
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, name, e.Context(data)); err != nil {
		return "", foundationerrors.WrapError(err, foundationerrors.CategoryTemplate, "render template").
			WithContext("template", name).
			Build()
	}
	return buf.String(), nil
}
