package commands

import (
	"git.home.luguber.info/inful/sitebuilder/internal/assets"
	"git.home.luguber.info/inful/sitebuilder/internal/build"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/preview"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Port         int  `short:"p" help:"Override server.port"`
	Dist         bool `help:"Run a production build and serve dist without live reload"`
	NoLiveReload bool `name:"no-live-reload" help:"Disable LiveReload SSE and script injection"`
}

func (s *ServeCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	if s.Port != 0 {
		cfg.Server.Port = s.Port
	}
	if s.NoLiveReload {
		cfg.Server.LiveReload = false
	}
	ctx, cancel := signalContext()
	defer cancel()

	if s.Dist {
		if _, err := RunBuild(ctx, cfg); err != nil {
			return err
		}
		return preview.ServeDist(ctx, cfg.Server.Addr(), cfg.Paths.Dist)
	}

	recorder, reg := recorderFor(cfg)
	site := build.NewSite(cfg, assets.Development, build.WithRecorder(recorder))
	rebuilder := preview.NewRebuilder(site, build.DevSequence, recorder)
	return preview.NewServer(cfg, rebuilder, preview.WithRegistry(reg)).Run(ctx)
}
