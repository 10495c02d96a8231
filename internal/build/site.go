package build

import (
	"context"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/sitebuilder/internal/assets"
	"git.home.luguber.info/inful/sitebuilder/internal/compiler"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/content"
	"git.home.luguber.info/inful/sitebuilder/internal/filters"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/markdown"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/templates"
	"git.home.luguber.info/inful/sitebuilder/internal/theme"
)

// Site wires the configuration into the build tasks.
type Site struct {
	cfg      *config.Config
	mode     assets.Mode
	recorder metrics.Recorder
	assets   *assets.Pipeline

	mu    sync.Mutex
	pages *compiler.Report
}

// SiteOption configures a Site.
type SiteOption func(*Site)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) SiteOption {
	return func(s *Site) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewSite returns a site for cfg in the given mode.
func NewSite(cfg *config.Config, mode assets.Mode, opts ...SiteOption) *Site {
	s := &Site{cfg: cfg, mode: mode, recorder: metrics.NoopRecorder{}, assets: assets.New(cfg, mode)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the site configuration.
func (s *Site) Config() *config.Config { return s.cfg }

// Runner returns a runner with every task registered. Production runs fail
// fast, development runs continue past failures.
func (s *Site) Runner() *Runner {
	policy := Continue
	if s.mode == assets.Production {
		policy = FailFast
	}
	r := NewRunner(policy, string(s.mode), s.recorder)
	r.Register(TaskClean, s.assets.Clean)
	r.Register(TaskScripts, s.assets.Scripts)
	r.Register(TaskStyles, s.assets.Styles)
	r.Register(TaskCopy, s.assets.Copy)
	r.Register(TaskImages, s.assets.Images)
	r.Register(TaskHTML, s.assets.HTML)
	r.Register(TaskAbout, s.assets.About)
	r.Register(TaskTemplates, func(ctx context.Context) error {
		_, err := s.Templates(ctx)
		return err
	})
	return r
}

// Run executes seq and attaches the compile report to the build report.
func (s *Site) Run(ctx context.Context, seq Sequence) (*Report, error) {
	s.mu.Lock()
	s.pages = nil
	s.mu.Unlock()

	report, err := s.Runner().Run(ctx, seq)

	s.mu.Lock()
	report.Pages = s.pages
	s.mu.Unlock()
	return report, err
}

// Templates runs the content pipeline: it loads the theme layers, merges
// their configuration into globals, registers filters, indexes content and
// compiles every page into the staging tree.
func (s *Site) Templates(ctx context.Context) (*compiler.Report, error) {
	paths := s.cfg.Paths
	layers := theme.Layers(paths.Theme, paths.CustomTheme)

	globals, err := theme.MergeLayers(layers...)
	if err != nil {
		return nil, err
	}
	registry, err := filters.Load(layers...)
	if err != nil {
		return nil, err
	}
	defer registry.Close()

	index, err := content.Load(paths.Content, content.Options{
		OutRoot: paths.Staging,
		Strict:  s.cfg.FrontMatter.Strict,
	})
	if err != nil {
		return nil, err
	}

	md := s.cfg.Markdown
	env, err := templates.New(templates.Options{
		Layers:  layers,
		Globals: globals,
		Filters: registry,
		Markdown: markdown.New(markdown.Options{
			Typographer: md.Typographer,
			Linkify:     md.Linkify,
			HardWraps:   md.HardWraps,
			Emoji:       md.Emoji,
			Unsafe:      md.Unsafe,
		}),
		Content: index,
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("Template environment ready",
		logfields.Count(len(env.Templates())),
		slog.Int("filters", registry.Len()),
		slog.Int("documents", index.Len()))

	report, err := compiler.New(env, index, compiler.WithRecorder(s.recorder)).Compile(ctx)
	if err != nil {
		return nil, err
	}
	if err := report.WriteManifest(paths.Staging); err != nil {
		slog.Warn("Failed to write page manifest", logfields.Path(paths.Staging), logfields.Error(err))
	}

	s.mu.Lock()
	s.pages = report
	s.mu.Unlock()
	return report, nil
}
