package assets

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!DOCTYPE html>
<html>
<head>
  <link rel="stylesheet" href="/styles/main.css" media="screen">
  <link rel="stylesheet" href="https://cdn.example.com/x.css">
</head>
<body>
  <p>Hello</p>
  <script src="../scripts/top.js" defer></script>
</body>
</html>
`

func TestInliner_InlinesSmallLocalAssets(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "styles", "main.css"), "body { color: red }")
	write(t, filepath.Join(dir, "scripts", "top.js"), "window.top_loaded = true;")

	in := &Inliner{SearchDirs: []string{dir}, Limit: 1024}
	out, err := in.Inline([]byte(page), "docs/index.html")
	require.NoError(t, err)

	s := string(out)
	assert.Contains(t, s, `<style media="screen">body { color: red }</style>`)
	assert.Contains(t, s, `<script>window.top_loaded = true;</script>`)
	assert.Contains(t, s, `href="https://cdn.example.com/x.css"`)
	assert.NotContains(t, s, "/styles/main.css")
}

func TestInliner_RespectsLimit(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "styles", "main.css"), strings.Repeat("a{}", 100))

	in := &Inliner{SearchDirs: []string{dir}, Limit: 10}
	out, err := in.Inline([]byte(page), "index.html")
	require.NoError(t, err)
	assert.Equal(t, page, string(out), "nothing inlined leaves the page untouched")

	in.Limit = 0
	out, err = in.Inline([]byte(page), "index.html")
	require.NoError(t, err)
	assert.Equal(t, page, string(out))
}

func TestInliner_RefusesClosingTags(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "scripts", "top.js"), "document.write('</SCRIPT>')")

	in := &Inliner{SearchDirs: []string{dir}, Limit: 1024}
	out, err := in.Inline([]byte(page), "docs/index.html")
	require.NoError(t, err)
	assert.Contains(t, string(out), `src="../scripts/top.js"`)
}

func TestHTML_BuildsDist(t *testing.T) {
	p, paths := newPipeline(t, Production)
	p.assets.InlineLimit = 1024
	write(t, filepath.Join(paths.Client, "404.html"), "<html><body>  <p>missing</p>  </body></html>")
	write(t, filepath.Join(paths.Client, "index.html"), "<p>client version</p>")
	write(t, filepath.Join(paths.Staging, "index.html"), page)
	write(t, filepath.Join(paths.Staging, "styles", "main.css"), "body {\n  color: red;\n}\n")
	write(t, filepath.Join(paths.Staging, "scripts", "main.bundle.js"), "var answer = 40 + 2;\n")
	write(t, filepath.Join(paths.Staging, "scripts", "main.bundle.js.map"), "{}")

	require.NoError(t, p.HTML(context.Background()))

	index := read(t, filepath.Join(paths.Dist, "index.html"))
	assert.Contains(t, index, `<style media="screen">body{color:red}</style>`)
	assert.NotContains(t, index, "client version")
	assert.Contains(t, read(t, filepath.Join(paths.Dist, "404.html")), "<p>missing")

	assert.Equal(t, "body{color:red}", read(t, filepath.Join(paths.Dist, "styles", "main.css")))
	assert.FileExists(t, filepath.Join(paths.Dist, "scripts", "main.bundle.js"))
	assert.NoFileExists(t, filepath.Join(paths.Dist, "scripts", "main.bundle.js.map"))
}
