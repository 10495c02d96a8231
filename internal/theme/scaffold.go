package theme

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"

	foundationerrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

//go:embed starter
var starter embed.FS

// Scaffold writes a starter custom theme into dir. Existing files are kept
// unless force is set. It returns the files written, relative to dir.
func Scaffold(dir string, force bool) ([]string, error) {
	var written []string
	err := fs.WalkDir(starter, "starter", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel("starter", filepath.FromSlash(p))
		if err != nil {
			return err
		}
		target := filepath.Join(dir, rel)
		if _, statErr := os.Stat(target); statErr == nil && !force {
			return nil
		}
		data, err := starter.ReadFile(p)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return err
		}
		written = append(written, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return written, foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "failed to scaffold theme").
			WithContext("path", dir).
			Build()
	}
	return written, nil
}
