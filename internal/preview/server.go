// Package preview is the development server: it serves the staging tree
// with LiveReload, rebuilds on file changes, and shows build failures as an
// in-page overlay.
package preview

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	foundationerrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
)

const shutdownTimeout = 5 * time.Second

// Server serves the staging and client directories of a development build.
type Server struct {
	cfg       *config.Config
	rebuilder *Rebuilder
	hub       *LiveReloadHub
	registry  *prom.Registry
	roots     []string
}

// Option configures a Server.
type Option func(*Server)

// WithRegistry exposes reg at /metrics when server.metrics is enabled.
func WithRegistry(reg *prom.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// NewServer returns a server for cfg whose pages are produced by rebuilder.
// Every completed rebuild is broadcast to LiveReload clients.
func NewServer(cfg *config.Config, rebuilder *Rebuilder, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg,
		rebuilder: rebuilder,
		hub:       NewLiveReloadHub(),
		roots:     []string{cfg.Paths.Staging, cfg.Paths.Client},
	}
	for _, opt := range opts {
		opt(s)
	}
	rebuilder.OnComplete(s.publish)
	return s
}

// Hub returns the LiveReload hub.
func (s *Server) Hub() *LiveReloadHub { return s.hub }

func (s *Server) publish(res Result) {
	hash := strconv.FormatInt(time.Now().UnixNano(), 10)
	if res.Report != nil {
		hash = res.Report.ID
	}
	s.hub.Broadcast(Event{Hash: hash, Error: res.Failed()})
}

// Handler returns the HTTP routes of the development server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(requestLogger)

	if s.cfg.Server.LiveReload {
		r.Get("/livereload", s.hub.ServeHTTP)
		r.Get("/livereload.js", serveScript)
	}
	if s.cfg.Server.Metrics {
		r.Handle("/metrics", metrics.HTTPHandler(s.registry))
	}

	var pages http.Handler = http.HandlerFunc(s.servePage)
	if s.cfg.Server.LiveReload {
		pages = injectLiveReload(pages)
	}
	r.Handle("/*", pages)
	return r
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request) {
	if res, ok := s.rebuilder.Last(); ok && res.Failed() && isHTMLPage(r.URL.Path) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(foundationerrors.RenderOverlay(res.FirstError())))
		return
	}
	layeredFiles(s.roots).ServeHTTP(w, r)
}

func serveScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	if _, err := w.Write([]byte(LiveReloadScript)); err != nil {
		slog.Error("failed to write livereload script", logfields.Error(err))
	}
}

// Run performs the initial build, then serves until ctx is done while the
// watcher and optional scheduler feed the rebuilder.
func (s *Server) Run(ctx context.Context) error {
	s.rebuilder.Rebuild(ctx, TriggerInitial)

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	l, err := startLoop(loopCtx, s.cfg, s.rebuilder)
	if err != nil {
		return err
	}
	defer l.stop()

	return serve(ctx, s.cfg.Server.Addr(), s.Handler(), s.hub.Shutdown)
}

// Watch performs the initial build and rebuilds on changes until ctx is
// done, without serving anything.
func Watch(ctx context.Context, cfg *config.Config, rebuilder *Rebuilder) error {
	rebuilder.Rebuild(ctx, TriggerInitial)

	l, err := startLoop(ctx, cfg, rebuilder)
	if err != nil {
		return err
	}
	defer l.stop()
	slog.Info("Watching for changes", logfields.Count(len(l.roots)))
	<-ctx.Done()
	return nil
}

// ServeDist serves a finished dist directory as static files.
func ServeDist(ctx context.Context, addr, dir string) error {
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return foundationerrors.NewError(foundationerrors.CategoryNotFound, "dist directory not found").
			WithContext("path", dir).
			Build()
	}
	return serve(ctx, addr, DistHandler(dir), nil)
}

// DistHandler serves dir with caching disabled.
func DistHandler(dir string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.NoCache)
	r.Use(requestLogger)
	r.Handle("/*", layeredFiles{dir})
	return r
}

func serve(ctx context.Context, addr string, handler http.Handler, beforeShutdown func()) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return foundationerrors.RuntimeError("failed to listen").
			WithContext("addr", addr).
			WithCause(err).
			Build()
	}
	// No write timeout: LiveReload streams are long-lived.
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second, IdleTimeout: 300 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	slog.Info("Preview server listening", logfields.Addr("http://"+ln.Addr().String()))

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return foundationerrors.RuntimeError("preview server failed").WithCause(err).Build()
	}

	slog.Info("Shutting down preview server")
	if beforeShutdown != nil {
		beforeShutdown()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP server shutdown error", logfields.Error(err))
	}
	return nil
}

// loop owns the watcher and scheduler feeding a rebuilder.
type loop struct {
	roots     []string
	watcher   *Watcher
	scheduler *Scheduler
}

func startLoop(ctx context.Context, cfg *config.Config, rebuilder *Rebuilder) (*loop, error) {
	go rebuilder.Run(ctx)

	l := &loop{roots: WatchRoots(cfg)}
	w, err := NewWatcher(l.roots, cfg.Server.Debounce, func() { rebuilder.Request(TriggerWatch) })
	if err != nil {
		return nil, foundationerrors.RuntimeError("failed to start file watcher").WithCause(err).Build()
	}
	l.watcher = w
	go w.Run(ctx)

	if cfg.Server.RebuildInterval > 0 {
		sched, err := NewScheduler(cfg.Server.RebuildInterval, func() { rebuilder.Request(TriggerSchedule) })
		if err != nil {
			_ = w.Close()
			return nil, foundationerrors.RuntimeError("failed to start rebuild scheduler").WithCause(err).Build()
		}
		sched.Start()
		l.scheduler = sched
	}
	return l, nil
}

func (l *loop) stop() {
	if err := l.watcher.Close(); err != nil {
		slog.Debug("watcher close", logfields.Error(err))
	}
	if l.scheduler != nil {
		if err := l.scheduler.Stop(); err != nil {
			slog.Debug("scheduler shutdown", logfields.Error(err))
		}
	}
}

// layeredFiles serves the first root that contains the requested path.
// Directories resolve to index.html and extensionless paths to <path>.html.
type layeredFiles []string

func (roots layeredFiles) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + r.URL.Path)
	for _, root := range roots {
		if file, ok := resolveFile(root, name); ok {
			http.ServeFile(w, r, file)
			return
		}
	}
	http.NotFound(w, r)
}

func resolveFile(root, name string) (string, bool) {
	full := filepath.Join(root, filepath.FromSlash(name))
	candidates := []string{full}
	if st, err := os.Stat(full); err == nil && st.IsDir() {
		candidates = []string{filepath.Join(full, "index.html")}
	} else if filepath.Ext(full) == "" {
		candidates = append(candidates, full+".html")
	}
	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && !st.IsDir() {
			return c, true
		}
	}
	return "", false
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			logfields.Method(r.Method),
			logfields.Path(r.URL.Path),
			logfields.Status(ww.Status()),
			logfields.DurationMS(float64(time.Since(start).Milliseconds())))
	})
}
