package theme

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeLayers_CustomOverridesBase(t *testing.T) {
	base := Layer{Name: BaseLayerName, FS: fstest.MapFS{
		"config/index.yaml": file("wrapper: base\nlayout: page\nnav: [home]\nsite:\n  title: Base\n"),
	}}
	custom := Layer{Name: CustomLayerName, FS: fstest.MapFS{
		"config/index.yaml": file("layout: post\nnav: ['...', blog]\n"),
		"config/site.yml":   file("title: Custom\n"),
	}}

	g, err := MergeLayers(base, custom)
	require.NoError(t, err)

	layout, ok := g.String("layout")
	require.True(t, ok)
	assert.Equal(t, "post", layout)

	nav, ok := g.Lookup("nav")
	require.True(t, ok)
	assert.Equal(t, []any{"home", "blog"}, nav)

	title, ok := g.String("site", "title")
	require.True(t, ok)
	assert.Equal(t, "Custom", title)

	first, ok := g.Lookup("nav", "0")
	require.True(t, ok)
	assert.Equal(t, "home", first)

	assert.Equal(t, []string{"layout", "nav", "site", "wrapper"}, g.Keys())
}

func TestGlobals_MissingLookupIsAbsent(t *testing.T) {
	g := NewGlobals(map[string]any{"a": map[string]any{"b": ""}, "n": 3})

	_, ok := g.Lookup("missing")
	assert.False(t, ok)
	_, ok = g.Lookup("n", "deeper")
	assert.False(t, ok)
	_, ok = g.String("a", "b")
	assert.False(t, ok, "empty strings count as absent")
	_, ok = g.String("n")
	assert.False(t, ok)

	var nilGlobals *Globals
	_, ok = nilGlobals.Lookup("a")
	assert.False(t, ok)
}

func TestGlobals_Immutable(t *testing.T) {
	src := map[string]any{"list": []any{"a"}}
	g := NewGlobals(src)
	src["list"].([]any)[0] = "changed"

	v, _ := g.Lookup("list")
	assert.Equal(t, []any{"a"}, v)

	v.([]any)[0] = "mutated"
	again, _ := g.Lookup("list")
	assert.Equal(t, []any{"a"}, again)
}

func TestGlobals_Context(t *testing.T) {
	g := NewGlobals(map[string]any{"title": "Global", "lang": "en"})
	ctx := g.Context(map[string]any{"title": "Doc"})
	assert.Equal(t, map[string]any{"title": "Doc", "lang": "en"}, ctx)
}

func TestFirstString(t *testing.T) {
	g := NewGlobals(map[string]any{"wrapper": "site"})

	got, ok := FirstString(From(map[string]any{"wrapper": ""}, "wrapper"), g.Global("wrapper"), Literal("base"))
	require.True(t, ok)
	assert.Equal(t, "site", got)

	got, _ = FirstString(From(map[string]any{"wrapper": "doc"}, "wrapper"), g.Global("wrapper"))
	assert.Equal(t, "doc", got)

	got, _ = FirstString(From(nil, "wrapper"), NewGlobals(nil).Global("wrapper"), Literal("base"))
	assert.Equal(t, "base", got)

	_, ok = FirstString(From(nil, "layout"), NewGlobals(nil).Global("layout"))
	assert.False(t, ok)
}

func TestLayers_DirAndScaffold(t *testing.T) {
	dir := t.TempDir()
	written, err := Scaffold(dir, false)
	require.NoError(t, err)
	assert.Contains(t, written, "config/site.yaml")
	assert.Contains(t, written, "layouts/post.html")

	again, err := Scaffold(dir, false)
	require.NoError(t, err)
	assert.Empty(t, again)

	layers := Layers("", dir)
	require.Len(t, layers, 2)
	assert.Equal(t, BaseLayerName, layers[0].Name)
	assert.Empty(t, layers[0].Dir)
	assert.Equal(t, dir, layers[1].Dir)

	g, err := MergeLayers(layers...)
	require.NoError(t, err)
	title, _ := g.String("site", "title")
	assert.Equal(t, "My Site", title)

	_, err = os.Stat(filepath.Join(dir, "filters", "strings.lua"))
	require.NoError(t, err)
}
