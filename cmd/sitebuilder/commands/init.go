package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	foundationerrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/frontmatter"
	"git.home.luguber.info/inful/sitebuilder/internal/theme"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration, theme and sample files"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	out := g.out()
	_, _ = fmt.Fprintln(out, "Initializing sitebuilder project")
	_, _ = fmt.Fprintf(out, "Writing configuration to %s\n", root.Config)
	if err := config.Init(root.Config, i.Force); err != nil {
		return err
	}

	cfg, err := config.Load(root.Config)
	if err != nil {
		return err
	}
	base := filepath.Dir(root.Config)
	themeDir := resolve(base, cfg.Paths.CustomTheme)
	written, err := theme.Scaffold(themeDir, i.Force)
	if err != nil {
		return err
	}
	for _, f := range written {
		_, _ = fmt.Fprintf(out, "  %s\n", filepath.Join(themeDir, f))
	}

	sample := filepath.Join(resolve(base, cfg.Paths.Content), "index.md")
	wrote, err := writeSamplePage(sample, i.Force)
	if err != nil {
		return err
	}
	if wrote {
		_, _ = fmt.Fprintf(out, "  %s\n", sample)
	}
	_, _ = fmt.Fprintln(out, "initialized successfully")
	return nil
}

// resolve interprets configured paths relative to the config file.
func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

func writeSamplePage(path string, force bool) (bool, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return false, nil
	}
	fm, err := frontmatter.SerializeYAML(map[string]any{
		"title":  "Welcome",
		"layout": "post",
	})
	if err != nil {
		return false, foundationerrors.WrapError(err, foundationerrors.CategoryInternal, "failed to serialize sample front matter").Build()
	}
	body := []byte("\nThis page was generated by `sitebuilder init`. Edit it, or add more Markdown files next to it.\n")
	page := frontmatter.Join(fm, body, true, frontmatter.Style{})
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "failed to create content directory").
			WithContext("path", filepath.Dir(path)).
			Build()
	}
	if err := os.WriteFile(path, page, 0o644); err != nil {
		return false, foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "failed to write sample page").
			WithContext("path", path).
			Build()
	}
	return true, nil
}
