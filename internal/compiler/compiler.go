// Package compiler turns the content index into pages. It runs ordered passes
// over every document (Markdown preprocessing, layout wrapping, final render,
// write) and moves each document through its state machine.
package compiler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/content"
	foundationerrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/markdown"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/templates"
	"git.home.luguber.info/inful/sitebuilder/internal/theme"
)

// Front-matter keys with meaning to the compiler.
const (
	KeyLayout  = "layout"
	KeyBlock   = "block"
	KeyWrapper = "wrapper"
	KeyDraft   = "draft"
	KeyMain    = "main"
)

// DefaultWrapper is the wrapper layout used when neither the document nor the
// globals name one.
const DefaultWrapper = "base"

// Compiler runs the page passes for one build.
type Compiler struct {
	env      *templates.Environment
	index    *content.Index
	recorder metrics.Recorder
	now      func() time.Time
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithRecorder reports pages written and drafts skipped.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Compiler) {
		if r != nil {
			c.recorder = r
		}
	}
}

// New returns a compiler over index using env.
func New(env *templates.Environment, index *content.Index, opts ...Option) *Compiler {
	c := &Compiler{env: env, index: index, recorder: metrics.NoopRecorder{}, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type pass struct {
	name string
	fn   func(*content.Document) error
}

// Compile runs every pass over the whole index, in id order, and writes the
// pages. A failing document aborts the run.
func (c *Compiler) Compile(ctx context.Context) (*Report, error) {
	start := c.now()
	report := &Report{}

	passes := []pass{
		{"markdown", c.preprocess},
		{"links", func(d *content.Document) error {
			report.Warnings = append(report.Warnings, c.checkLinks(d)...)
			return nil
		}},
		{"layout", c.wrap},
		{"render", c.render},
		{"write", func(d *content.Document) error { return c.write(d, report) }},
	}
	docs := c.index.Documents()
	for _, p := range passes {
		for _, doc := range docs {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			if err := p.fn(doc); err != nil {
				return report, annotate(err, p.name, doc)
			}
		}
	}

	report.Duration = c.now().Sub(start)
	c.recorder.AddPagesWritten(len(report.Pages))
	c.recorder.AddDraftsSkipped(len(report.Drafts))
	slog.Info("Pages compiled",
		logfields.Count(len(report.Pages)),
		slog.Int("drafts", len(report.Drafts)),
		logfields.DurationMS(float64(report.Duration.Milliseconds())))
	return report, nil
}

func annotate(err error, stage string, doc *content.Document) error {
	var ce *foundationerrors.ClassifiedError
	if errors.As(err, &ce) {
		return ce.WithContext("document", doc.ID).WithContext("stage", stage)
	}
	return foundationerrors.WrapError(err, foundationerrors.CategoryBuild, "compile document").
		WithContext("document", doc.ID).
		WithContext("stage", stage).
		Build()
}

// preprocess expands a Markdown document's own template expressions and
// replaces its content with a directive that renders the result as Markdown.
// HTML documents pass through unchanged.
func (c *Compiler) preprocess(doc *content.Document) error {
	if !doc.IsMarkdown() {
		return doc.Transition(content.StateUnchanged)
	}
	out, err := c.env.Expand(doc.ID, doc.Body, doc.Data)
	if err != nil {
		return err
	}
	doc.Body = out
	doc.Content = templates.Markdown(doc.ID)
	return doc.Transition(content.StateMarkdownPreprocessed)
}

// wrap applies the block and layout directives and records the document id
// as main so wrappers can include it.
func (c *Compiler) wrap(doc *content.Document) error {
	g := c.env.Globals()
	layout, hasLayout := theme.FirstString(theme.From(doc.Data, KeyLayout), g.Global(KeyLayout))
	block, hasBlock := theme.FirstString(theme.From(doc.Data, KeyBlock), g.Global(KeyBlock))
	if hasLayout && !c.env.Defined(templates.LayoutName(layout)) {
		slog.Debug("Layout not found, leaving document unwrapped",
			logfields.Document(doc.ID),
			slog.String(KeyLayout, layout))
		layout, hasLayout = "", false
	}

	if hasBlock {
		doc.Content = templates.Block(block, doc.Content, !hasLayout)
	}
	if hasLayout {
		doc.Content = templates.Extends(layout) + doc.Content
	}
	doc.Data[KeyMain] = doc.ID
	slog.Debug("Document wrapped",
		logfields.Document(doc.ID),
		slog.String(KeyLayout, layout),
		slog.String(KeyBlock, block))
	return doc.Transition(content.StateLayoutWrapped)
}

// render executes the wrapper layout with the document's data.
func (c *Compiler) render(doc *content.Document) error {
	g := c.env.Globals()
	wrapper, _ := theme.FirstString(
		theme.From(doc.Data, KeyWrapper),
		g.Global(KeyWrapper),
		theme.Literal(DefaultWrapper),
	)
	out, err := c.env.Render(templates.LayoutName(wrapper), doc.Data)
	if err != nil {
		return err
	}
	doc.Output = out
	return doc.Transition(content.StateRendered)
}

// write emits the page unless it is a draft. Unchanged files are left alone
// so their modification time is stable.
func (c *Compiler) write(doc *content.Document, report *Report) error {
	if templates.Truthy(doc.Data[KeyDraft]) {
		report.Drafts = append(report.Drafts, doc.ID)
		slog.Debug("Draft skipped", logfields.Document(doc.ID))
		return doc.Transition(content.StateDropped)
	}

	out := []byte(doc.Output)
	existing, err := os.ReadFile(doc.Target)
	if err != nil || !bytes.Equal(existing, out) {
		if err := os.MkdirAll(filepath.Dir(doc.Target), 0o750); err != nil {
			return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "create output directory").
				WithContext("path", filepath.Dir(doc.Target)).
				Build()
		}
		// #nosec G306 -- generated pages are public site content
		if err := os.WriteFile(doc.Target, out, 0o644); err != nil {
			return foundationerrors.WrapError(err, foundationerrors.CategoryFileSystem, "write page").
				WithContext("path", doc.Target).
				Build()
		}
	}

	report.Pages = append(report.Pages, Page{ID: doc.ID, Target: doc.Target, Fingerprint: doc.Fingerprint})
	return doc.Transition(content.StateWritten)
}

// checkLinks warns about relative links to pages that are not in the index.
func (c *Compiler) checkLinks(doc *content.Document) []string {
	if !doc.IsMarkdown() {
		return nil
	}
	var warnings []string
	for _, link := range markdown.ExtractLinks([]byte(doc.Body)) {
		target, ok := link.LocalPage(doc.ID)
		if !ok {
			continue
		}
		if _, found := c.index.Resolve(target); found {
			continue
		}
		slog.Warn("Link to unknown page",
			logfields.Document(doc.ID),
			logfields.Target(link.Destination))
		warnings = append(warnings, doc.ID+": "+link.Destination)
	}
	return warnings
}
