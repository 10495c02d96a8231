package compiler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ManifestName is the file the page manifest is written to, relative to the output root.
const ManifestName = ".manifest.json"

// Page is one written page.
type Page struct {
	ID          string `json:"id"`
	Target      string `json:"target"`
	Fingerprint string `json:"fingerprint"`
}

// Report summarizes one compile run.
type Report struct {
	Pages    []Page        `json:"pages"`
	Drafts   []string      `json:"drafts,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
	Duration time.Duration `json:"-"`
}

// Summary returns a one-line human readable summary.
func (r *Report) Summary() string {
	return fmt.Sprintf("pages=%d drafts=%d warnings=%d duration=%s",
		len(r.Pages), len(r.Drafts), len(r.Warnings), r.Duration.Round(time.Millisecond))
}

// WriteManifest writes the pages and their fingerprints as JSON under outRoot.
// Targets are stored relative to outRoot so the manifest does not depend on
// where the build ran.
func (r *Report) WriteManifest(outRoot string) error {
	pages := make([]Page, len(r.Pages))
	for i, p := range r.Pages {
		rel, err := filepath.Rel(outRoot, p.Target)
		if err != nil {
			rel = p.Target
		}
		pages[i] = Page{ID: p.ID, Target: filepath.ToSlash(rel), Fingerprint: p.Fingerprint}
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].ID < pages[j].ID })

	data, err := json.MarshalIndent(struct {
		Pages  []Page   `json:"pages"`
		Drafts []string `json:"drafts,omitempty"`
	}{pages, r.Drafts}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.MkdirAll(outRoot, 0o750); err != nil {
		return fmt.Errorf("create output root: %w", err)
	}
	// #nosec G306 -- manifest lists public pages
	return os.WriteFile(filepath.Join(outRoot, ManifestName), append(data, '\n'), 0o644)
}
