package build

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitebuilder/internal/compiler"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
)

// TaskResult records the outcome of one task.
type TaskResult struct {
	Task     TaskName            `json:"task"`
	Group    int                 `json:"group"`
	Result   metrics.ResultLabel `json:"result"`
	Duration time.Duration       `json:"duration_ns"`
	Error    string              `json:"error,omitempty"`
}

// Report captures one run of a sequence.
type Report struct {
	ID      string                    `json:"id"`
	Mode    string                    `json:"mode"`
	Start   time.Time                 `json:"start"`
	End     time.Time                 `json:"end"`
	Tasks   []TaskResult              `json:"tasks"`
	Outcome metrics.BuildOutcomeLabel `json:"outcome"`
	// Pages is the compile report of the templates task, when it ran.
	Pages *compiler.Report `json:"pages,omitempty"`

	mu     sync.Mutex
	errors []error
}

func newReport(mode string) *Report {
	return &Report{ID: uuid.NewString(), Mode: mode, Start: time.Now()}
}

func (r *Report) record(res TaskResult, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		res.Error = err.Error()
		r.errors = append(r.errors, err)
	}
	r.Tasks = append(r.Tasks, res)
}

// Errors returns the task failures in the order they were recorded.
func (r *Report) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errors...)
}

// Failed reports whether any task failed.
func (r *Report) Failed() bool {
	return len(r.Errors()) > 0
}

func (r *Report) finish(outcome metrics.BuildOutcomeLabel) {
	r.End = time.Now()
	r.Outcome = outcome
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.End.IsZero() {
		return time.Since(r.Start)
	}
	return r.End.Sub(r.Start)
}

// Summary returns a human-readable single-line summary.
func (r *Report) Summary() string {
	pages := 0
	if r.Pages != nil {
		pages = len(r.Pages.Pages)
	}
	return fmt.Sprintf("id=%s mode=%s tasks=%d errors=%d pages=%d duration=%s outcome=%s",
		r.ID, r.Mode, len(r.Tasks), len(r.Errors()), pages, r.Duration().Truncate(time.Millisecond), r.Outcome)
}

// Persist writes build-report.json into root, atomically.
func (r *Report) Persist(root string) error {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return fmt.Errorf("ensure root for report: %w", err)
	}
	r.mu.Lock()
	data, err := json.MarshalIndent(r, "", "  ")
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("marshal report json: %w", err)
	}
	path := filepath.Join(root, "build-report.json")
	tmp := path + ".tmp"
	// #nosec G306 -- report is not sensitive
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp report json: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("atomic rename json: %w", err)
	}
	return nil
}
