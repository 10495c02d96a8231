package markdown

import (
	"net/url"
	"path"
	"strings"
)

type LinkKind string

const (
	LinkKindInline              LinkKind = "inline"
	LinkKindImage               LinkKind = "image"
	LinkKindAuto                LinkKind = "auto"
	LinkKindReferenceDefinition LinkKind = "reference_definition"
)

type Link struct {
	Kind        LinkKind
	Destination string
}

// LocalPage resolves a link to a content page relative to the document at
// from (a slash path). It returns the target path without extension, or
// false for external links, anchors and non-page assets.
func (l Link) LocalPage(from string) (string, bool) {
	if l.Kind == LinkKindImage || l.Destination == "" || strings.HasPrefix(l.Destination, "#") {
		return "", false
	}
	u, err := url.Parse(l.Destination)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Path == "" {
		return "", false
	}
	ext := path.Ext(u.Path)
	switch ext {
	case ".md", ".markdown", ".html":
	default:
		return "", false
	}
	p := u.Path
	if !strings.HasPrefix(p, "/") {
		p = path.Join(path.Dir(from), p)
	}
	return strings.TrimPrefix(strings.TrimSuffix(path.Clean(p), ext), "/"), true
}
