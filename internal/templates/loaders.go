package templates

import (
	"errors"
	"io/fs"
	"path"

	"git.home.luguber.info/inful/sitebuilder/internal/content"
	"git.home.luguber.info/inful/sitebuilder/internal/theme"
)

// Loader resolves a template name to its source text.
type Loader interface {
	Load(name string) (src string, ok bool, err error)
}

// ContentLoader serves document template sources from the content index.
// Lookups always read the document's current state.
type ContentLoader struct {
	Index *content.Index
}

func (l ContentLoader) Load(name string) (string, bool, error) {
	if l.Index == nil {
		return "", false, nil
	}
	src, ok := l.Index.Template(name)
	return src, ok, nil
}

// LayerLoader serves template files from a theme layer.
type LayerLoader struct {
	Layer theme.Layer
}

func (l LayerLoader) Load(name string) (string, bool, error) {
	if !fs.ValidPath(name) {
		return "", false, nil
	}
	b, err := fs.ReadFile(l.Layer.FS, name)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(b), true, nil
}

// Dirs are the layer directories whose .html files are parsed up front so
// documents can reference them with {{template}}.
var Dirs = []string{"layouts", "partials"}

// layerTemplates lists the template files of a layer in walk order.
func layerTemplates(layer theme.Layer) ([]string, error) {
	var names []string
	for _, dir := range Dirs {
		err := theme.WalkLayer(layer.FS, dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if theme.IsHidden(d.Name()) {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if !d.IsDir() && path.Ext(p) == ".html" {
				names = append(names, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return names, nil
}
