package content

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransition_ForwardOnly(t *testing.T) {
	d := &Document{ID: "a.md"}
	require.NoError(t, d.Transition(StateFrontMatterParsed))
	require.NoError(t, d.Transition(StateMarkdownPreprocessed))

	err := d.Transition(StateFrontMatterParsed)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))

	err = d.Transition(StateRendered)
	require.ErrorIs(t, err, ErrInvalidTransition, "skipping layout wrapping is rejected")

	require.NoError(t, d.Transition(StateLayoutWrapped))
	require.NoError(t, d.Transition(StateRendered))
	require.NoError(t, d.Transition(StateDropped))
	assert.True(t, d.State().Terminal())
	require.ErrorIs(t, d.Transition(StateWritten), ErrInvalidTransition)
}

func TestTransition_HTMLSkipsMarkdownPass(t *testing.T) {
	d := &Document{ID: "a.html"}
	require.NoError(t, d.Transition(StateFrontMatterParsed))
	require.ErrorIs(t, d.Transition(StateLayoutWrapped), ErrInvalidTransition)
	require.NoError(t, d.Transition(StateUnchanged))
	require.NoError(t, d.Transition(StateLayoutWrapped))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "layout_wrapped", StateLayoutWrapped.String())
	assert.Equal(t, "state(42)", State(42).String())
}

func TestIndex_Resolve(t *testing.T) {
	ix := NewIndex()
	ix.Add(&Document{ID: "posts/a.md", Ext: ".md", Kind: KindMarkdown, Body: "md"})

	d, ok := ix.Resolve("posts/a")
	require.True(t, ok)
	assert.Equal(t, "posts/a.md", d.ID)

	d, ok = ix.Resolve("posts/a.html")
	require.True(t, ok, "logical id matches any extension")
	assert.Equal(t, "posts/a.md", d.ID)

	_, err := ix.Source("missing.md")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestIndex_SourceIsLive(t *testing.T) {
	ix := NewIndex()
	d := &Document{ID: "a.md", Ext: ".md", Kind: KindMarkdown, Body: "one"}
	ix.Add(d)

	src, err := ix.Source("a.md")
	require.NoError(t, err)
	assert.Equal(t, "one", src)

	d.Body = "two"
	src, err = ix.Source("a.md")
	require.NoError(t, err)
	assert.Equal(t, "two", src)
}

func TestIndex_AddOrderIndependent(t *testing.T) {
	html := &Document{ID: "a.html", Ext: ".html", Kind: KindHTML}
	md := &Document{ID: "a.md", Ext: ".md", Kind: KindMarkdown}

	ix := NewIndex()
	assert.True(t, ix.Add(html))
	assert.False(t, ix.Add(md))
	assert.Equal(t, []string{"a.html"}, ix.IDs())

	ix = NewIndex()
	assert.True(t, ix.Add(md))
	assert.True(t, ix.Add(html))
	assert.Equal(t, []string{"a.html"}, ix.IDs())
}
