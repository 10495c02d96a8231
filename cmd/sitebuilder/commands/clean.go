package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/sitebuilder/internal/assets"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
)

// CleanCmd implements the 'clean' command.
type CleanCmd struct{}

func (c *CleanCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	if err := assets.New(cfg, assets.Production).Clean(context.Background()); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.out(), "Removed %s and the contents of %s\n", cfg.Paths.Staging, cfg.Paths.Dist)
	return nil
}
