package commands

import (
	"git.home.luguber.info/inful/sitebuilder/internal/assets"
	"git.home.luguber.info/inful/sitebuilder/internal/build"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/preview"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct{}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	site := build.NewSite(cfg, assets.Development)
	if _, err := site.Run(ctx, build.WatchSequence); err != nil {
		return err
	}
	return preview.Watch(ctx, cfg, preview.NewRebuilder(site, build.DevSequence, nil))
}
