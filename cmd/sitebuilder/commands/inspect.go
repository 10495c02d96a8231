package commands

import (
	"fmt"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/filters"
	foundationerrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/frontmatter"
	"git.home.luguber.info/inful/sitebuilder/internal/theme"
)

// InspectCmd implements the 'inspect' command.
type InspectCmd struct {
	Filters bool `help:"Only list the registered filters"`
}

func (c *InspectCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	layers := theme.Layers(cfg.Paths.Theme, cfg.Paths.CustomTheme)
	out := g.out()

	if !c.Filters {
		globals, err := theme.MergeLayers(layers...)
		if err != nil {
			return err
		}
		data, err := frontmatter.SerializeYAML(globals.Map())
		if err != nil {
			return foundationerrors.WrapError(err, foundationerrors.CategoryInternal, "failed to serialize globals").Build()
		}
		_, _ = fmt.Fprintln(out, "# globals")
		_, _ = out.Write(data)
	}

	registry, err := filters.Load(layers...)
	if err != nil {
		return err
	}
	defer registry.Close()
	_, _ = fmt.Fprintf(out, "# filters (%d)\n", registry.Len())
	for _, name := range registry.Names() {
		_, _ = fmt.Fprintf(out, "- %s\n", name)
	}
	return nil
}
