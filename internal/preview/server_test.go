package preview

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/build"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	foundationerrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
)

var devSeq = build.Sequence{{build.TaskTemplates}}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.Content = filepath.Join(root, "content")
	cfg.Paths.CustomTheme = filepath.Join(root, "theme")
	cfg.Paths.Client = filepath.Join(root, "client")
	cfg.Paths.Staging = filepath.Join(root, ".tmp")
	cfg.Paths.Dist = filepath.Join(root, "dist")
	return &cfg
}

func newRunner(task build.TaskFunc) *build.Runner {
	r := build.NewRunner(build.Continue, "development", nil)
	r.Register(build.TaskTemplates, task)
	return r
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:noctx // test helper
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestServer_ServesStagingBeforeClient(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.Paths.Staging, "index.html"), "<html><body>staged</body></html>")
	writeFile(t, filepath.Join(cfg.Paths.Client, "index.html"), "<html><body>client</body></html>")
	writeFile(t, filepath.Join(cfg.Paths.Client, "styles", "app.css"), "body{color:red}")

	rb := NewRebuilder(newRunner(func(context.Context) error { return nil }), devSeq, nil)
	srv := httptest.NewServer(NewServer(cfg, rb).Handler())
	defer srv.Close()

	resp, body := get(t, srv.URL+"/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "staged")
	assert.Contains(t, body, `<script async src="/livereload.js"></script></body>`)
	assert.Contains(t, resp.Header.Get("Cache-Control"), "no-cache")

	resp, body = get(t, srv.URL+"/styles/app.css")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "body{color:red}", body)

	resp, _ = get(t, srv.URL+"/missing.css")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_ExtensionlessPathResolvesToPage(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.Paths.Staging, "docs", "intro.html"), "<body>intro</body>")
	writeFile(t, filepath.Join(cfg.Paths.Staging, "docs", "index.html"), "<body>docs index</body>")

	rb := NewRebuilder(newRunner(func(context.Context) error { return nil }), devSeq, nil)
	srv := httptest.NewServer(NewServer(cfg, rb).Handler())
	defer srv.Close()

	_, body := get(t, srv.URL+"/docs/intro")
	assert.Contains(t, body, "intro")
	_, body = get(t, srv.URL+"/docs/")
	assert.Contains(t, body, "docs index")
}

func TestServer_LiveReloadScript(t *testing.T) {
	cfg := testConfig(t)
	rb := NewRebuilder(newRunner(func(context.Context) error { return nil }), devSeq, nil)
	srv := httptest.NewServer(NewServer(cfg, rb).Handler())
	defer srv.Close()

	resp, body := get(t, srv.URL+"/livereload.js")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "javascript")
	assert.Contains(t, body, "EventSource('/livereload')")
}

func TestServer_LiveReloadDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.LiveReload = false
	writeFile(t, filepath.Join(cfg.Paths.Staging, "index.html"), "<body>plain</body>")

	rb := NewRebuilder(newRunner(func(context.Context) error { return nil }), devSeq, nil)
	srv := httptest.NewServer(NewServer(cfg, rb).Handler())
	defer srv.Close()

	resp, _ := get(t, srv.URL+"/livereload.js")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_, body := get(t, srv.URL+"/")
	assert.Equal(t, "<body>plain</body>", body)
}

func TestServer_FailedBuildShowsOverlay(t *testing.T) {
	cfg := testConfig(t)
	writeFile(t, filepath.Join(cfg.Paths.Staging, "index.html"), "<body>stale</body>")
	writeFile(t, filepath.Join(cfg.Paths.Client, "app.css"), "a{}")

	rb := NewRebuilder(newRunner(func(context.Context) error {
		return foundationerrors.AssetError("bundle failed").WithContext("entry", "scripts/main.js").Build()
	}), devSeq, nil)
	server := NewServer(cfg, rb)
	res := rb.Rebuild(t.Context(), TriggerInitial)
	require.True(t, res.Failed())
	require.NoError(t, res.Err)

	srv := httptest.NewServer(server.Handler())
	defer srv.Close()

	resp, body := get(t, srv.URL+"/")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body, "Build error")
	assert.Contains(t, body, "bundle failed")
	assert.Contains(t, body, "scripts/main.js")
	assert.Contains(t, body, "/livereload.js")
	assert.NotContains(t, body, "stale")

	// Assets are still served so the overlay page itself can load.
	resp, body = get(t, srv.URL+"/app.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "a{}", body)
}

func TestServer_Metrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Metrics = true
	reg := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)

	rb := NewRebuilder(newRunner(func(context.Context) error { return nil }), devSeq, recorder)
	rb.Rebuild(t.Context(), TriggerInitial)
	srv := httptest.NewServer(NewServer(cfg, rb, WithRegistry(reg)).Handler())
	defer srv.Close()

	resp, body := get(t, srv.URL+"/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "rebuilds")
}

func TestDistHandler(t *testing.T) {
	dist := t.TempDir()
	writeFile(t, filepath.Join(dist, "index.html"), "<body>prod</body>")

	srv := httptest.NewServer(DistHandler(dist))
	defer srv.Close()

	resp, body := get(t, srv.URL+"/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<body>prod</body>", body)
}

func TestServeDist_MissingDirectory(t *testing.T) {
	err := ServeDist(t.Context(), "127.0.0.1:0", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, foundationerrors.CategoryNotFound, foundationerrors.GetCategory(err))
}

func TestWatchRoots_SkipsMissing(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.Paths.Content, 0o750))
	require.NoError(t, os.MkdirAll(cfg.Paths.Client, 0o750))

	assert.Equal(t, []string{cfg.Paths.Content, cfg.Paths.Client}, WatchRoots(cfg))
}
