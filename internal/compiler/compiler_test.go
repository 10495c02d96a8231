package compiler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/content"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/templates"
	"git.home.luguber.info/inful/sitebuilder/internal/theme"
)

type recorderStub struct {
	metrics.NoopRecorder
	pages, drafts int
}

func (r *recorderStub) AddPagesWritten(n int)  { r.pages += n }
func (r *recorderStub) AddDraftsSkipped(n int) { r.drafts += n }

type site struct {
	content fstest.MapFS
	base    fstest.MapFS
	custom  fstest.MapFS
	globals map[string]any
}

func compile(t *testing.T, s site, out string) (*Report, *content.Index) {
	t.Helper()
	ix, err := content.LoadFS(s.content, "", content.Options{OutRoot: out})
	require.NoError(t, err)

	if s.custom == nil {
		s.custom = fstest.MapFS{}
	}
	env, err := templates.New(templates.Options{
		Layers: []theme.Layer{
			{Name: theme.BaseLayerName, FS: s.base},
			{Name: theme.CustomLayerName, FS: s.custom},
		},
		Globals: theme.NewGlobals(s.globals),
		Content: ix,
	})
	require.NoError(t, err)

	report, err := New(env, ix).Compile(context.Background())
	require.NoError(t, err)
	return report, ix
}

var baseTheme = fstest.MapFS{
	"layouts/base.html": {Data: []byte("<html>{{include .main .}}</html>")},
}

func TestCompile_EndToEndWithLayout(t *testing.T) {
	out := t.TempDir()
	report, ix := compile(t, site{
		content: fstest.MapFS{
			"posts/hello.md": {Data: []byte("---\nlayout: post\ntitle: Hi\n---\n# Hi\n")},
		},
		base: baseTheme,
		custom: fstest.MapFS{
			"layouts/post.html": {Data: []byte(`<article data-title="{{.title}}">{{block "content" .}}{{end}}</article>`)},
		},
		globals: map[string]any{"block": "content"},
	}, out)

	page, err := os.ReadFile(filepath.Join(out, "posts", "hello.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html><article data-title=\"Hi\"><h1 id=\"hi\">Hi</h1>\n</article></html>", string(page))

	require.Len(t, report.Pages, 1)
	assert.Equal(t, "posts/hello.md", report.Pages[0].ID)

	doc, _ := ix.Get("posts/hello.md")
	assert.Equal(t, content.StateWritten, doc.State())
	assert.Equal(t, "posts/hello.md", doc.Data[KeyMain])
}

func TestCompile_NoLayoutLeavesContentUnwrapped(t *testing.T) {
	out := t.TempDir()
	compile(t, site{
		content: fstest.MapFS{"hello.md": {Data: []byte("# Hi")}},
		base:    baseTheme,
	}, out)

	page, err := os.ReadFile(filepath.Join(out, "hello.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html><h1 id=\"hi\">Hi</h1>\n</html>", string(page))
}

func TestCompile_MarkdownTemplateExpressionsRenderFirst(t *testing.T) {
	out := t.TempDir()
	compile(t, site{
		content: fstest.MapFS{"a.md": {Data: []byte("---\nname: World\n---\nHello *{{.name}}* from {{.site}}")}},
		base:    baseTheme,
		globals: map[string]any{"site": "S"},
	}, out)

	page, err := os.ReadFile(filepath.Join(out, "a.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html><p>Hello <em>World</em> from S</p>\n</html>", string(page))
}

func TestCompile_HTMLMasksMarkdown(t *testing.T) {
	out := t.TempDir()
	compile(t, site{
		content: fstest.MapFS{
			"a.md":   {Data: []byte("# from markdown")},
			"a.html": {Data: []byte("<p>from html</p>")},
		},
		base: baseTheme,
	}, out)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	page, err := os.ReadFile(filepath.Join(out, "a.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html><p>from html</p></html>", string(page))
}

func TestCompile_DraftsAreNeverWritten(t *testing.T) {
	for _, draft := range []string{"true", "yes", "1", "\"x\"", "[1]"} {
		out := t.TempDir()
		report, ix := compile(t, site{
			content: fstest.MapFS{
				"d.md":    {Data: []byte("---\ndraft: " + draft + "\nlayout: missing\n---\nx")},
				"keep.md": {Data: []byte("---\ndraft: false\n---\nx")},
			},
			base: baseTheme,
			custom: fstest.MapFS{
				"layouts/missing.html": {Data: []byte(`{{block "content" .}}{{end}}`)},
			},
		}, out)

		_, err := os.Stat(filepath.Join(out, "d.html"))
		assert.True(t, os.IsNotExist(err), draft)
		assert.FileExists(t, filepath.Join(out, "keep.html"))
		assert.Equal(t, []string{"d.md"}, report.Drafts, draft)
		doc, _ := ix.Get("d.md")
		assert.Equal(t, content.StateDropped, doc.State())
	}
}

func TestCompile_WrapperResolution(t *testing.T) {
	base := fstest.MapFS{
		"layouts/base.html":  {Data: []byte("base:{{include .main .}}")},
		"layouts/alt.html":   {Data: []byte("alt:{{include .main .}}")},
		"layouts/other.html": {Data: []byte("other:{{include .main .}}")},
	}
	out := t.TempDir()
	compile(t, site{
		content: fstest.MapFS{
			"doc.html":    {Data: []byte("---\nwrapper: other\n---\nd")},
			"global.html": {Data: []byte("g")},
		},
		base:    base,
		globals: map[string]any{"wrapper": "alt"},
	}, out)

	page, _ := os.ReadFile(filepath.Join(out, "doc.html"))
	assert.Equal(t, "other:d", string(page))
	page, _ = os.ReadFile(filepath.Join(out, "global.html"))
	assert.Equal(t, "alt:g", string(page))

	out = t.TempDir()
	compile(t, site{
		content: fstest.MapFS{"plain.html": {Data: []byte("p")}},
		base:    base,
		globals: map[string]any{"wrapper": ""},
	}, out)
	page, _ = os.ReadFile(filepath.Join(out, "plain.html"))
	assert.Equal(t, "base:p", string(page), "empty global falls back to the default wrapper")
}

func TestCompile_Idempotent(t *testing.T) {
	s := site{
		content: fstest.MapFS{
			"index.md":       {Data: []byte("---\ntitle: Home\n---\n# Home\n\n- one\n- two\n")},
			"posts/a.md":     {Data: []byte("---\nlayout: post\ntags: [x, y]\n---\n{{range .tags}}*{{.}}* {{end}}")},
			"posts/b.html":   {Data: []byte("<p>{{.title}}</p>")},
			"posts/c.md":     {Data: []byte("---\ndraft: true\n---\nnope")},
			"deep/er/x.html": {Data: []byte("x")},
		},
		base: baseTheme,
		custom: fstest.MapFS{
			"layouts/post.html": {Data: []byte(`<article>{{block "content" .}}{{end}}</article>`)},
		},
		globals: map[string]any{"block": "content"},
	}

	out := t.TempDir()
	compile(t, s, out)
	first := snapshot(t, out)
	compile(t, s, out)
	assert.Equal(t, first, snapshot(t, out))
	assert.Len(t, first, 4)
}

func TestCompile_WarnsOnDanglingLinks(t *testing.T) {
	report, _ := compile(t, site{
		content: fstest.MapFS{
			"index.md": {Data: []byte("[ok](about.md) [bad](missing.md) [ext](https://example.com/x.html)")},
			"about.md": {Data: []byte("about")},
		},
		base: baseTheme,
	}, t.TempDir())

	assert.Equal(t, []string{"index.md: missing.md"}, report.Warnings)
}

func TestCompile_MissingLayoutLeavesContentUnwrapped(t *testing.T) {
	out := t.TempDir()
	report, ix := compile(t, site{
		content: fstest.MapFS{
			"posts/hello.md": {Data: []byte("---\nlayout: post\ntitle: Hi\n---\n# Hi\n")},
		},
		base:    baseTheme,
		globals: map[string]any{"block": "content"},
	}, out)

	page, err := os.ReadFile(filepath.Join(out, "posts", "hello.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html><h1 id=\"hi\">Hi</h1>\n</html>", string(page))
	require.Len(t, report.Pages, 1)

	doc, _ := ix.Get("posts/hello.md")
	assert.Equal(t, content.StateWritten, doc.State())
}

func TestCompile_MarkdownExpressionsIgnoreHTMLContext(t *testing.T) {
	out := t.TempDir()
	compile(t, site{
		content: fstest.MapFS{"a.md": {Data: []byte("---\nname: World\n---\nUse `<a href=\"` and {{.name}} here")}},
		base:    baseTheme,
	}, out)

	page, err := os.ReadFile(filepath.Join(out, "a.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "<code>&lt;a href=")
	assert.Contains(t, string(page), "and World here")
}

func TestCompile_RecordsMetrics(t *testing.T) {
	ix, err := content.LoadFS(fstest.MapFS{
		"a.md": {Data: []byte("a")},
		"b.md": {Data: []byte("---\ndraft: true\n---\nb")},
	}, "", content.Options{OutRoot: t.TempDir()})
	require.NoError(t, err)
	env, err := templates.New(templates.Options{
		Layers:  []theme.Layer{{Name: theme.BaseLayerName, FS: baseTheme}},
		Content: ix,
	})
	require.NoError(t, err)

	rec := &recorderStub{}
	_, err = New(env, ix, WithRecorder(rec)).Compile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rec.pages)
	assert.Equal(t, 1, rec.drafts)
}

func TestReport_WriteManifest(t *testing.T) {
	out := t.TempDir()
	r := &Report{Pages: []Page{
		{ID: "b.md", Target: filepath.Join(out, "b.html"), Fingerprint: "fb"},
		{ID: "a.md", Target: filepath.Join(out, "a.html"), Fingerprint: "fa"},
	}}
	require.NoError(t, r.WriteManifest(out))

	data, err := os.ReadFile(filepath.Join(out, ManifestName))
	require.NoError(t, err)
	assert.JSONEq(t, `{"pages":[
		{"id":"a.md","target":"a.html","fingerprint":"fa"},
		{"id":"b.md","target":"b.html","fingerprint":"fb"}]}`, string(data))
	assert.Contains(t, r.Summary(), "pages=2")
}

func snapshot(t *testing.T, root string) map[string]string {
	t.Helper()
	files := map[string]string{}
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, p)
		files[rel] = string(b)
		return nil
	})
	require.NoError(t, err)
	return files
}
