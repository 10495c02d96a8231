package content

import (
	"fmt"
	"sort"
)

// Index holds the documents of one build keyed by id.
type Index struct {
	docs    map[string]*Document
	logical map[string]string
	ids     []string
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{docs: map[string]*Document{}, logical: map[string]string{}}
}

// Add inserts doc, resolving logical-id collisions: an HTML source masks a
// Markdown one, and ".md" beats ".markdown". It reports whether doc is now
// the indexed source for its logical id.
func (ix *Index) Add(doc *Document) bool {
	key := doc.LogicalID()
	if prevID, ok := ix.logical[key]; ok {
		prev := ix.docs[prevID]
		if !outranks(doc, prev) {
			return false
		}
		delete(ix.docs, prevID)
		ix.removeID(prevID)
	}
	ix.docs[doc.ID] = doc
	ix.logical[key] = doc.ID
	ix.insertID(doc.ID)
	return true
}

func outranks(a, b *Document) bool {
	if a.Kind != b.Kind {
		return a.Kind == KindHTML
	}
	if a.Ext != b.Ext {
		return a.Ext == ".md" || a.Ext == ".html"
	}
	return a.ID < b.ID
}

func (ix *Index) insertID(id string) {
	i := sort.SearchStrings(ix.ids, id)
	ix.ids = append(ix.ids, "")
	copy(ix.ids[i+1:], ix.ids[i:])
	ix.ids[i] = id
}

func (ix *Index) removeID(id string) {
	i := sort.SearchStrings(ix.ids, id)
	if i < len(ix.ids) && ix.ids[i] == id {
		ix.ids = append(ix.ids[:i], ix.ids[i+1:]...)
	}
}

// Get returns the document with the given id.
func (ix *Index) Get(id string) (*Document, bool) {
	d, ok := ix.docs[id]
	return d, ok
}

// Resolve finds a document by id or by logical id.
func (ix *Index) Resolve(id string) (*Document, bool) {
	if d, ok := ix.docs[id]; ok {
		return d, true
	}
	if real, ok := ix.logical[LogicalID(id)]; ok {
		return ix.docs[real], true
	}
	if real, ok := ix.logical[id]; ok {
		return ix.docs[real], true
	}
	return nil, false
}

// Source returns the current body text of a document. Reads are never cached
// because compiler passes replace the body.
func (ix *Index) Source(id string) (string, error) {
	d, ok := ix.Resolve(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return d.Body, nil
}

// Template returns the current template source of a document.
func (ix *Index) Template(id string) (string, bool) {
	d, ok := ix.Resolve(id)
	if !ok {
		return "", false
	}
	return d.Content, true
}

// IDs returns the document ids in sorted order.
func (ix *Index) IDs() []string {
	out := make([]string, len(ix.ids))
	copy(out, ix.ids)
	return out
}

// Documents returns the documents in id order.
func (ix *Index) Documents() []*Document {
	out := make([]*Document, 0, len(ix.ids))
	for _, id := range ix.ids {
		out = append(out, ix.docs[id])
	}
	return out
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int { return len(ix.ids) }
