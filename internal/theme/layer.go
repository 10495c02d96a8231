// Package theme loads theme layers: their merged configuration (template
// globals) and the file systems templates and filters are read from.
//
// Two layers exist. The base layer defaults to the theme embedded in this
// package and may be replaced by a directory; the custom layer is the site's
// own theme directory. Layers apply base first, custom over base.
package theme

import (
	"embed"
	"errors"
	"io/fs"
	"os"
)

const (
	BaseLayerName   = "base"
	CustomLayerName = "custom"
)

//go:embed base
var embedded embed.FS

// Layer is one named theme file system.
type Layer struct {
	Name string
	FS   fs.FS
	// Dir is the on-disk root of the layer; empty for the embedded base theme.
	Dir string
}

// Embedded returns the built-in base theme.
func Embedded() Layer {
	sub, err := fs.Sub(embedded, "base")
	if err != nil {
		panic(err) // the embed directive guarantees the directory exists
	}
	return Layer{Name: BaseLayerName, FS: sub}
}

// DirLayer returns a layer rooted at an on-disk directory.
func DirLayer(name, dir string) Layer {
	return Layer{Name: name, FS: os.DirFS(dir), Dir: dir}
}

// Layers returns the base and custom layers in application order. An empty
// baseDir selects the embedded base theme.
func Layers(baseDir, customDir string) []Layer {
	base := Embedded()
	if baseDir != "" {
		base = DirLayer(BaseLayerName, baseDir)
	}
	return []Layer{base, DirLayer(CustomLayerName, customDir)}
}

// WalkLayer walks root inside fsys, treating a missing root as empty.
func WalkLayer(fsys fs.FS, root string, fn fs.WalkDirFunc) error {
	if _, err := fs.Stat(fsys, root); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fs.WalkDir(fsys, root, fn)
}

// IsHidden reports whether a path element is a dotfile.
func IsHidden(name string) bool {
	return len(name) > 1 && name[0] == '.'
}
