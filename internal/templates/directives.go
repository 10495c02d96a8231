package templates

import (
	"strconv"
	"strings"
)

// LayoutName maps a layout or wrapper name to its template path.
func LayoutName(layout string) string {
	return "layouts/" + layout + ".html"
}

// Extends returns the directive that renders content through a layout.
// Layouts place document content with {{block "<name>" .}}{{end}}.
func Extends(layout string) string {
	return "{{template " + strconv.Quote(LayoutName(layout)) + " .}}"
}

// Block wraps body in a named block definition. Without a layout the block
// is also rendered in place.
func Block(name, body string, inline bool) string {
	var b strings.Builder
	b.WriteString("{{define ")
	b.WriteString(strconv.Quote(name))
	b.WriteString("}}")
	b.WriteString(body)
	b.WriteString("{{end}}")
	if inline {
		b.WriteString("{{template ")
		b.WriteString(strconv.Quote(name))
		b.WriteString(" .}}")
	}
	return b.String()
}

// Markdown returns the directive that renders a document's current body as Markdown.
func Markdown(id string) string {
	return "{{markdown (source " + strconv.Quote(id) + ")}}"
}
