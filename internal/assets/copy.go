package assets

import (
	"context"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".svg": true}

// handledExts are produced by other steps and never copied verbatim.
var handledExts = map[string]bool{".html": true, ".css": true, ".scss": true, ".js": true}

// Images copies client images to dist.
func (p *Pipeline) Images(ctx context.Context) error {
	n := 0
	err := walkFiles(p.paths.Client, false, func(rel string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !imageExts[strings.ToLower(path.Ext(rel))] {
			return nil
		}
		n++
		return p.toDist(rel)
	})
	if err != nil {
		return err
	}
	slog.Debug("Copied images", logfields.Count(n), logfields.Target(p.paths.Dist))
	return nil
}

// Copy ships every client file no other step handles, dotfiles included,
// plus the configured other scripts.
func (p *Pipeline) Copy(ctx context.Context) error {
	n := 0
	err := walkFiles(p.paths.Client, true, func(rel string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		ext := strings.ToLower(path.Ext(rel))
		if handledExts[ext] || imageExts[ext] {
			return nil
		}
		n++
		return p.toDist(rel)
	})
	if err != nil {
		return err
	}
	for _, rel := range p.assets.OtherScripts {
		src := filepath.Join(p.paths.Client, filepath.FromSlash(rel))
		if _, err := os.Stat(src); os.IsNotExist(err) {
			slog.Debug("Skipping missing script", logfields.Path(src))
			continue
		}
		if err := copyFile(src, filepath.Join(p.paths.Dist, filepath.FromSlash(rel))); err != nil {
			return err
		}
		n++
	}
	slog.Debug("Copied static files", logfields.Count(n), logfields.Target(p.paths.Dist))
	return nil
}

func (p *Pipeline) toDist(rel string) error {
	return copyFile(
		filepath.Join(p.paths.Client, filepath.FromSlash(rel)),
		filepath.Join(p.paths.Dist, filepath.FromSlash(rel)),
	)
}
