package commands

import (
	"context"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/sitebuilder/internal/assets"
	"git.home.luguber.info/inful/sitebuilder/internal/build"
	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	NoAbout bool `name:"no-about" help:"Skip writing dist/about.txt"`
	Report  bool `name:"report" default:"true" negatable:"" help:"Persist build-report.json into the staging directory"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	if b.NoAbout {
		cfg.Build.About = false
	}
	ctx, cancel := signalContext()
	defer cancel()

	report, err := RunBuild(ctx, cfg)
	if report != nil {
		_, _ = fmt.Fprintln(g.out(), report.Summary())
		if b.Report {
			if perr := report.Persist(cfg.Paths.Staging); perr != nil {
				slog.Warn("Failed to persist build report", logfields.Error(perr))
			}
		}
	}
	return err
}

// RunBuild runs the production sequence for cfg.
func RunBuild(ctx context.Context, cfg *config.Config) (*build.Report, error) {
	recorder, _ := recorderFor(cfg)
	site := build.NewSite(cfg, assets.Production, build.WithRecorder(recorder))
	return site.Run(ctx, build.ProductionSequence)
}
