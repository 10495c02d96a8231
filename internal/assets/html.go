package assets

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	mhtml "github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	foundationerrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

const (
	mimeHTML = "text/html"
	mimeCSS  = "text/css"
	mimeJS   = "application/javascript"
)

// NewMinifier returns a minifier for HTML, CSS and JavaScript. Document
// tags and end tags are kept so pages stay well formed.
func NewMinifier() *minify.M {
	m := minify.New()
	m.AddFunc(mimeCSS, css.Minify)
	m.Add(mimeHTML, &mhtml.Minifier{KeepDocumentTags: true, KeepEndTags: true, KeepQuotes: true})
	m.AddFuncRegexp(regexp.MustCompile(`^(application|text)/(x-)?(java|ecma)script$`), js.Minify)
	return m
}

// HTML takes the client pages and the compiled staging pages, inlines small
// local stylesheets and scripts, minifies, and writes them to dist. Staging
// pages win over client pages with the same path. Bundled stylesheets and
// scripts in staging are shipped alongside.
func (p *Pipeline) HTML(ctx context.Context) error {
	in := &Inliner{
		SearchDirs: []string{p.paths.Staging, p.paths.Client},
		Limit:      p.assets.InlineLimit,
	}
	var m *minify.M
	if p.assets.Minify {
		m = NewMinifier()
		in.Minifier = m
	}

	pages := map[string]string{}
	for _, root := range []string{p.paths.Client, p.paths.Staging} {
		err := walkFiles(root, false, func(rel string) error {
			if path.Ext(rel) == ".html" {
				pages[rel] = filepath.Join(root, filepath.FromSlash(rel))
			}
			return nil
		})
		if err != nil {
			return fsError(err, "scan pages", root)
		}
	}

	for rel, src := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := os.ReadFile(filepath.Clean(src))
		if err != nil {
			return fsError(err, "read page", src)
		}
		out, err := in.Inline(page, rel)
		if err != nil {
			return foundationerrors.WrapError(err, foundationerrors.CategoryAsset, "inline assets").
				WithContext("path", src).
				Build()
		}
		if m != nil {
			if out, err = m.Bytes(mimeHTML, out); err != nil {
				return minifyError(err, src)
			}
		}
		if err := writeFile(filepath.Join(p.paths.Dist, filepath.FromSlash(rel)), out); err != nil {
			return err
		}
	}

	err := walkFiles(p.paths.Staging, false, func(rel string) error {
		var mime string
		switch path.Ext(rel) {
		case ".css":
			mime = mimeCSS
		case ".js":
			mime = mimeJS
		default:
			return nil
		}
		src := filepath.Join(p.paths.Staging, filepath.FromSlash(rel))
		data, err := os.ReadFile(filepath.Clean(src))
		if err != nil {
			return fsError(err, "read asset", src)
		}
		if m != nil {
			if data, err = m.Bytes(mime, data); err != nil {
				return minifyError(err, src)
			}
		}
		return writeFile(filepath.Join(p.paths.Dist, filepath.FromSlash(rel)), data)
	})
	if err != nil {
		return err
	}
	slog.Debug("Processed pages", logfields.Count(len(pages)), logfields.Target(p.paths.Dist))
	return nil
}

func minifyError(err error, path string) error {
	return foundationerrors.WrapError(err, foundationerrors.CategoryAsset, "minify").
		WithContext("path", path).
		Build()
}

// Inliner replaces references to small local stylesheets and scripts with
// their content.
type Inliner struct {
	// SearchDirs are tried in order to resolve local asset paths.
	SearchDirs []string
	// Limit is the largest asset inlined, in bytes. Zero disables inlining.
	Limit int
	// Minifier, when set, minifies inlined content.
	Minifier *minify.M
}

// Inline rewrites page, located at the slash-separated rel path. Pages with
// nothing to inline are returned unchanged.
func (in *Inliner) Inline(page []byte, rel string) ([]byte, error) {
	if in.Limit <= 0 {
		return page, nil
	}
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}

	changed := false
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			if c.Type == html.ElementNode {
				switch c.DataAtom {
				case atom.Link:
					if strings.EqualFold(getAttr(c, "rel"), "stylesheet") {
						if body, ok := in.load(getAttr(c, "href"), rel, mimeCSS, "</style"); ok {
							n.InsertBefore(element(atom.Style, body, attrsWithout(c, "rel", "href")), c)
							n.RemoveChild(c)
							changed = true
						}
					}
				case atom.Script:
					if src := getAttr(c, "src"); src != "" && c.FirstChild == nil {
						if body, ok := in.load(src, rel, mimeJS, "</script"); ok {
							c.Attr = attrsWithout(c, "src", "async", "defer")
							c.AppendChild(&html.Node{Type: html.TextNode, Data: body})
							changed = true
						}
					}
				}
			}
			visit(c)
			c = next
		}
	}
	visit(doc)

	if !changed {
		return page, nil
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// load reads a local asset referenced from the page at rel if it is small
// enough and safe to embed.
func (in *Inliner) load(ref, rel, mime, closer string) (string, bool) {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Path == "" {
		return "", false
	}
	p := u.Path
	if strings.HasPrefix(p, "/") {
		p = strings.TrimPrefix(path.Clean(p), "/")
	} else {
		p = path.Join(path.Dir(rel), p)
	}
	if strings.HasPrefix(p, "../") || p == ".." {
		return "", false
	}

	for _, dir := range in.SearchDirs {
		full := filepath.Join(dir, filepath.FromSlash(p))
		info, err := os.Stat(full)
		if err != nil || info.IsDir() {
			continue
		}
		if info.Size() > int64(in.Limit) {
			slog.Debug("Asset above inline limit", logfields.Path(full), slog.Int64("size", info.Size()))
			return "", false
		}
		data, err := os.ReadFile(filepath.Clean(full))
		if err != nil {
			return "", false
		}
		if in.Minifier != nil {
			if minified, err := in.Minifier.Bytes(mime, data); err == nil {
				data = minified
			}
		}
		if bytes.Contains(bytes.ToLower(data), []byte(closer)) {
			return "", false
		}
		return string(data), true
	}
	return "", false
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func attrsWithout(n *html.Node, keys ...string) []html.Attribute {
	var out []html.Attribute
outer:
	for _, a := range n.Attr {
		for _, k := range keys {
			if strings.EqualFold(a.Key, k) {
				continue outer
			}
		}
		out = append(out, a)
	}
	return out
}

func element(a atom.Atom, text string, attrs []html.Attribute) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return n
}
