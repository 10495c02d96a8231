// Package assets implements the asset build steps: cleaning the output
// trees, bundling scripts and stylesheets with esbuild, copying images and
// static files, inlining and minifying HTML, and writing about.txt.
//
// Steps read from the client directory and the staging tree and write to
// staging (scripts, styles) or dist (everything else).
package assets

import (
	"io/fs"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	foundationerrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Mode selects development or production behavior.
type Mode string

const (
	Development Mode = "development"
	Production  Mode = "production"
)

// Pipeline runs asset steps for one configuration.
type Pipeline struct {
	paths  config.PathsConfig
	assets config.AssetsConfig
	build  config.BuildConfig
	mode   Mode
	// RepoDir is where about.txt looks for a git repository.
	RepoDir string
}

// New returns a pipeline for cfg.
func New(cfg *config.Config, mode Mode) *Pipeline {
	return &Pipeline{
		paths:   cfg.Paths,
		assets:  cfg.Assets,
		build:   cfg.Build,
		mode:    mode,
		RepoDir: ".",
	}
}

// Mode returns the pipeline mode.
func (p *Pipeline) Mode() Mode { return p.mode }

func (p *Pipeline) minify() bool {
	return p.mode == Production && p.assets.Minify
}

func writeFile(dst string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fsError(err, "create directory", filepath.Dir(dst))
	}
	// #nosec G306 -- site output is public
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return fsError(err, "write file", dst)
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(filepath.Clean(src))
	if err != nil {
		return fsError(err, "read file", src)
	}
	return writeFile(dst, data)
}

func fsError(err error, msg, path string) error {
	return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, msg).
		WithContext("path", path).
		Build()
}

// walkFiles calls fn with the slash-separated relative path of every regular
// file under root. A missing root has no files.
func walkFiles(root string, includeHidden bool, fn func(rel string) error) error {
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != root && !includeHidden && d.Name()[0] == '.' {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel))
	})
}
