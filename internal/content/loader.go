package content

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	foundationerrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/frontmatter"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// ErrNotFound is returned when an id does not name an indexed document.
var ErrNotFound = errors.New("document not found")

// Options controls how content is loaded.
type Options struct {
	// OutRoot is the directory pages are written under.
	OutRoot string
	// Strict turns malformed front matter into a fatal error instead of an
	// empty data map.
	Strict bool
}

// Load indexes the content directory dir. A missing directory yields an empty index.
func Load(dir string, opts Options) (*Index, error) {
	return LoadFS(os.DirFS(dir), dir, opts)
}

// LoadFS indexes the content tree in fsys. dir is recorded as the on-disk
// location of fsys and may be empty.
func LoadFS(fsys fs.FS, dir string, opts Options) (*Index, error) {
	ix, err := Discover(fsys, dir)
	if err != nil {
		return nil, err
	}
	for _, doc := range ix.Documents() {
		raw, err := fs.ReadFile(fsys, doc.ID)
		if err != nil {
			return nil, foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "read content file").
				WithContext("path", doc.ID).
				Build()
		}
		if err := parse(doc, raw, opts); err != nil {
			return nil, err
		}
	}
	slog.Debug("Indexed content", logfields.Path(dir), logfields.Count(ix.Len()))
	return ix, nil
}

// Discover walks fsys for content files and builds an index of unread
// documents, applying the masking rules between sources of one logical id.
func Discover(fsys fs.FS, dir string) (*Index, error) {
	ix := NewIndex()
	err := walk(fsys, func(p string) {
		ext := strings.ToLower(path.Ext(p))
		kind, ok := KindForExt(ext)
		if !ok {
			return
		}
		doc := &Document{ID: p, Ext: ext, Kind: kind}
		if dir != "" {
			doc.Path = filepath.Join(dir, filepath.FromSlash(p))
		}
		if !ix.Add(doc) {
			slog.Debug("Content source masked", logfields.Document(p))
		}
	})
	if err != nil {
		return nil, foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "scan content").
			WithContext("path", dir).
			Build()
	}
	return ix, nil
}

func walk(fsys fs.FS, fn func(p string)) error {
	if _, err := fs.Stat(fsys, "."); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != "." && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			fn(p)
		}
		return nil
	})
}

func parse(doc *Document, raw []byte, opts Options) error {
	parsed, err := frontmatter.ParseDocument(raw)
	if err != nil {
		if opts.Strict {
			return foundationerrors.WrapError(err, foundationerrors.CategoryContent, "malformed front matter").
				WithContext("document", doc.ID).
				Fatal().
				Build()
		}
		slog.Warn("Malformed front matter, using empty data",
			logfields.Document(doc.ID), logfields.Error(err))
	}

	doc.Data = parsed.Data
	doc.Raw = strings.TrimSpace(string(parsed.Body))
	doc.Body = doc.Raw
	doc.Content = doc.Raw
	doc.Target = TargetFor(opts.OutRoot, doc.ID)

	fp, err := Fingerprint(doc.Data, doc.Raw)
	if err != nil {
		return fmt.Errorf("fingerprint %s: %w", doc.ID, err)
	}
	doc.Fingerprint = fp

	if missingTitle(doc.Data["title"]) {
		doc.Data["title"] = DefaultTitle(doc)
	}
	return doc.Transition(StateFrontMatterParsed)
}

// missingTitle reports whether a front matter title is absent or blank.
// Non-string titles such as `title: 2024` are kept.
func missingTitle(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	default:
		return false
	}
}
