package content

import (
	"path"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/sitebuilder/internal/markdown"
)

var separatorRun = regexp.MustCompile(`[-_\s]+`)

var titleCaser = cases.Title(language.English)

// DefaultTitle picks a page title when front matter has none: the first
// level-one heading of a Markdown body, else the file name title-cased.
func DefaultTitle(doc *Document) string {
	if doc.IsMarkdown() {
		if h, ok := markdown.FirstHeading([]byte(doc.Raw)); ok {
			return h
		}
	}
	name := strings.TrimSuffix(path.Base(doc.ID), doc.Ext)
	if name == "index" {
		if dir := path.Dir(doc.ID); dir != "." {
			name = path.Base(dir)
		}
	}
	return titleCaser.String(strings.TrimSpace(separatorRun.ReplaceAllString(name, " ")))
}
