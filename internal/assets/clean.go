package assets

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// Clean removes the staging tree and the contents of dist, keeping dist/.git
// so a deploy checkout survives.
func (p *Pipeline) Clean(ctx context.Context) error {
	if err := os.RemoveAll(p.paths.Staging); err != nil {
		return fsError(err, "remove staging directory", p.paths.Staging)
	}

	entries, err := os.ReadDir(p.paths.Dist)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fsError(err, "read dist directory", p.paths.Dist)
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.Name() == ".git" {
			continue
		}
		target := filepath.Join(p.paths.Dist, e.Name())
		if err := os.RemoveAll(target); err != nil {
			return fsError(err, "remove dist entry", target)
		}
	}
	slog.Debug("Cleaned output directories",
		logfields.Path(p.paths.Staging), logfields.Target(p.paths.Dist))
	return nil
}
