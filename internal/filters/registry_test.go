package filters

import (
	"errors"
	"html/template"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	foundationerrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/theme"
)

func layer(name string, files map[string]string) theme.Layer {
	fsys := fstest.MapFS{}
	for p, src := range files {
		fsys[p] = &fstest.MapFile{Data: []byte(src)}
	}
	return theme.Layer{Name: name, FS: fsys}
}

func TestNameFor(t *testing.T) {
	assert.Equal(t, "absolute_url", NameFor("absolute-url.lua"))
	assert.Equal(t, "text_word_count", NameFor("text/word-count.lua"))
	assert.Equal(t, "a_b_c", NameFor("a//b -- c.lua"))
}

func TestLoadLayer_FunctionAndTable(t *testing.T) {
	reg, err := LoadLayer(layer("base", map[string]string{
		"filters/upper.lua":     `return function(s) return string.upper(s) end`,
		"filters/text/math.lua": `return { add = function(a, b) return a + b end, neg = function(a) return -a end }`,
	}))
	require.NoError(t, err)
	t.Cleanup(reg.Close)

	assert.Equal(t, []string{"text_math_add", "text_math_neg", "upper"}, reg.Names())

	f, ok := reg.Get("upper")
	require.True(t, ok)
	got, err := f.Call("hi")
	require.NoError(t, err)
	assert.Equal(t, "HI", got)

	add, _ := reg.Get("text_math_add")
	got, err = add.Call(2, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, got)
}

func TestLoadLayer_ShapeErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"wrong extension":    {"filters/upper.js": `module.exports = s => s`},
		"returns string":     {"filters/x.lua": `return "nope"`},
		"returns nothing":    {"filters/x.lua": `local x = 1`},
		"table of non funcs": {"filters/x.lua": `return { a = 1 }`},
		"syntax error":       {"filters/x.lua": `return function(`},
		"reserved name":      {"filters/include.lua": `return function() end`},
		"invalid name":       {"filters/1st.lua": `return function() end`},
		"sandboxed io":       {"filters/x.lua": `return io.open("x")`},
	}
	for name, files := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadLayer(layer("base", files))
			require.Error(t, err)
			assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryConfig), err.Error())
		})
	}
}

func TestLoadLayer_SkipsHiddenAndMissingDir(t *testing.T) {
	reg, err := LoadLayer(layer("base", map[string]string{
		"filters/.DS_Store": "junk",
		"layouts/base.html": "",
	}))
	require.NoError(t, err)
	assert.Equal(t, 0, reg.Len())
}

func TestLoad_CustomOverridesBase(t *testing.T) {
	base := layer("base", map[string]string{
		"filters/greet.lua": `return function(s) return "base " .. s end`,
		"filters/keep.lua":  `return function() return "kept" end`,
	})
	custom := layer("custom", map[string]string{
		"filters/greet.lua": `return function(s) return "custom " .. s end`,
	})

	reg, err := Load(base, custom)
	require.NoError(t, err)
	t.Cleanup(reg.Close)

	greet, _ := reg.Get("greet")
	assert.Equal(t, "custom", greet.Layer)
	got, err := greet.Call("x")
	require.NoError(t, err)
	assert.Equal(t, "custom x", got)

	keep, _ := reg.Get("keep")
	got, err = keep.Call()
	require.NoError(t, err)
	assert.Equal(t, "kept", got)
}

func TestFuncMap_PipedValueFirst(t *testing.T) {
	reg, err := LoadLayer(layer("base", map[string]string{
		"filters/wrap.lua": `return function(s, l, r) return l .. s .. r end`,
	}))
	require.NoError(t, err)
	t.Cleanup(reg.Close)

	tmpl := template.Must(template.New("t").Funcs(reg.FuncMap()).Parse(`{{ .x | wrap "[" "]" }}|{{ wrap "(" ")" .x }}`))
	var b strings.Builder
	require.NoError(t, tmpl.Execute(&b, map[string]any{"x": "v"}))
	assert.Equal(t, "[v]|(v)", b.String())
}

func TestSafeHelper(t *testing.T) {
	reg, err := LoadLayer(layer("base", map[string]string{
		"filters/bold.lua":  `return function(s) return safe("<b>" .. s .. "</b>") end`,
		"filters/plain.lua": `return function(s) return "<b>" .. s .. "</b>" end`,
	}))
	require.NoError(t, err)
	t.Cleanup(reg.Close)

	tmpl := template.Must(template.New("t").Funcs(reg.FuncMap()).Parse(`{{ bold "x" }} {{ plain "x" }}`))
	var b strings.Builder
	require.NoError(t, tmpl.Execute(&b, nil))
	assert.Equal(t, "<b>x</b> &lt;b&gt;x&lt;/b&gt;", b.String())
}

func TestConversions(t *testing.T) {
	reg, err := LoadLayer(layer("base", map[string]string{
		"filters/echo.lua": `return function(v) return v end`,
		"filters/kind.lua": `return function(v) return type(v) end`,
	}))
	require.NoError(t, err)
	t.Cleanup(reg.Close)

	echo, _ := reg.Get("echo")
	in := map[string]any{
		"list": []any{"a", 1, true},
		"map":  map[string]any{"k": 1.5},
		"html": template.HTML("<i>"),
		"strs": []string{"x", "y"},
	}
	got, err := echo.Call(in)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"list": []any{"a", 1, true},
		"map":  map[string]any{"k": 1.5},
		"html": "<i>",
		"strs": []any{"x", "y"},
	}, got)

	kind, _ := reg.Get("kind")
	got, err = kind.Call(nil)
	require.NoError(t, err)
	assert.Equal(t, "nil", got)
}

func TestRuntimeErrorIsFilterError(t *testing.T) {
	reg, err := LoadLayer(layer("base", map[string]string{
		"filters/boom.lua": `return function() error("kaboom") end`,
	}))
	require.NoError(t, err)

	boom, _ := reg.Get("boom")
	_, err = boom.Call()
	require.Error(t, err)
	assert.True(t, foundationerrors.HasCategory(err, foundationerrors.CategoryFilter))
	assert.Contains(t, err.Error(), "kaboom")

	reg.Close()
	_, err = boom.Call()
	require.True(t, errors.Is(err, ErrClosed))
}

func TestBaseThemeFilters(t *testing.T) {
	reg, err := Load(theme.Embedded())
	require.NoError(t, err)
	t.Cleanup(reg.Close)

	abs, ok := reg.Get("absolute_url")
	require.True(t, ok)
	for in, want := range map[any]bool{"https://x.org": true, "http://x": true, "/local": false, 42: false} {
		got, err := abs.Call(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, "%v", in)
	}

	attrs, ok := reg.Get("attributes")
	require.True(t, ok)
	obj := map[string]any{"id": "main", "class": []any{"a", "b"}, "hidden": true, "title": `say "hi"`, "n": 3}

	got, err := attrs.Call(obj)
	require.NoError(t, err)
	assert.Equal(t, template.HTML(`class="a b" hidden="true" id="main" n="3" title="say &quot;hi&quot;"`), got)

	got, err = attrs.Call(obj, map[string]any{"exclude": "class"})
	require.NoError(t, err)
	assert.Equal(t, template.HTML(`hidden="true" id="main" n="3" title="say &quot;hi&quot;"`), got)

	got, err = attrs.Call(obj, map[string]any{"include": []any{"id", "n"}})
	require.NoError(t, err)
	assert.Equal(t, template.HTML(`id="main" n="3"`), got)

	got, err = attrs.Call(nil)
	require.NoError(t, err)
	assert.Equal(t, template.HTML(""), got)
}
