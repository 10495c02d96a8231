// Package content builds the document index from the site's content tree.
//
// Every Markdown or HTML file under the content root becomes a Document keyed
// by its slash-separated relative path. Documents carry their front matter,
// their current body text and the template source that the compiler mutates
// pass by pass. State changes are forward-only.
package content

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Kind distinguishes Markdown from HTML sources.
type Kind string

const (
	KindMarkdown Kind = "markdown"
	KindHTML     Kind = "html"
)

// KindForExt maps a file extension to a document kind.
func KindForExt(ext string) (Kind, bool) {
	switch strings.ToLower(ext) {
	case ".md", ".markdown":
		return KindMarkdown, true
	case ".html":
		return KindHTML, true
	}
	return "", false
}

// State is the compile stage a document has reached.
type State int

const (
	StateDiscovered State = iota
	StateFrontMatterParsed
	StateMarkdownPreprocessed
	StateUnchanged
	StateLayoutWrapped
	StateRendered
	StateWritten
	StateDropped
)

var stateNames = [...]string{
	"discovered",
	"frontmatter_parsed",
	"markdown_preprocessed",
	"unchanged",
	"layout_wrapped",
	"rendered",
	"written",
	"dropped",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateWritten || s == StateDropped
}

var transitions = map[State][]State{
	StateDiscovered:           {StateFrontMatterParsed},
	StateFrontMatterParsed:    {StateMarkdownPreprocessed, StateUnchanged},
	StateMarkdownPreprocessed: {StateLayoutWrapped},
	StateUnchanged:            {StateLayoutWrapped},
	StateLayoutWrapped:        {StateRendered},
	StateRendered:             {StateWritten, StateDropped},
}

// ErrInvalidTransition is returned when a document is moved to a state that
// does not directly follow its current one.
var ErrInvalidTransition = errors.New("invalid document state transition")

// CanTransition reports whether from may move directly to to.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Document is one content file.
type Document struct {
	// ID is the slash-separated path relative to the content root, with extension.
	ID   string
	Ext  string
	Kind Kind
	// Path is the file's location on disk, empty for in-memory sources.
	Path string

	// Data is the front matter, later extended with defaults such as title and main.
	Data map[string]any
	// Raw is the trimmed body as read from disk.
	Raw string
	// Body is the current body text. The Markdown pass replaces it with the
	// template-expanded Markdown.
	Body string
	// Content is the template source compiled for this document.
	Content string
	// Output is the final rendered page.
	Output string

	Target      string
	Fingerprint string

	state State
}

// State returns the document's current stage.
func (d *Document) State() State { return d.state }

// Transition moves the document to next, rejecting skips and backward moves.
func (d *Document) Transition(next State) error {
	if !CanTransition(d.state, next) {
		return fmt.Errorf("%w: %s: %s -> %s", ErrInvalidTransition, d.ID, d.state, next)
	}
	d.state = next
	return nil
}

// LogicalID is the id without its extension. Sources sharing a logical id
// compete for the same output page.
func (d *Document) LogicalID() string {
	return LogicalID(d.ID)
}

// LogicalID strips the extension from a document id.
func LogicalID(id string) string {
	return strings.TrimSuffix(id, path.Ext(id))
}

// IsMarkdown reports whether the document is a Markdown source.
func (d *Document) IsMarkdown() bool { return d.Kind == KindMarkdown }

// TargetFor maps a document id onto the output root, always with an .html extension.
func TargetFor(outRoot, id string) string {
	return filepath.Join(outRoot, filepath.FromSlash(LogicalID(id)+".html"))
}
