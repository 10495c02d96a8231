package preview

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"git.home.luguber.info/inful/sitebuilder/internal/build"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
)

// Rebuild triggers.
const (
	TriggerInitial  = "initial"
	TriggerWatch    = "watch"
	TriggerSchedule = "schedule"
)

// Builder runs one build sequence. *build.Site satisfies it.
type Builder interface {
	Run(ctx context.Context, seq build.Sequence) (*build.Report, error)
}

// Result is the outcome of one completed rebuild.
type Result struct {
	Trigger string
	Report  *build.Report
	Err     error
}

// Failed reports whether the build returned an error or recorded task failures.
func (r Result) Failed() bool {
	return r.Err != nil || (r.Report != nil && r.Report.Failed())
}

// FirstError returns the first failure of the build, or nil.
func (r Result) FirstError() error {
	if r.Err != nil {
		return r.Err
	}
	if r.Report != nil {
		if errs := r.Report.Errors(); len(errs) > 0 {
			return errs[0]
		}
	}
	return nil
}

// Rebuilder serializes development builds. Requests arriving while a build
// runs coalesce into a single follow-up build, and completion listeners run
// only after a build has finished.
type Rebuilder struct {
	builder  Builder
	seq      build.Sequence
	recorder metrics.Recorder
	requests chan string

	buildMu sync.Mutex

	mu        sync.RWMutex
	last      *Result
	listeners []func(Result)
}

// NewRebuilder returns a rebuilder running seq on builder.
func NewRebuilder(builder Builder, seq build.Sequence, recorder metrics.Recorder) *Rebuilder {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Rebuilder{builder: builder, seq: seq, recorder: recorder, requests: make(chan string, 1)}
}

// OnComplete registers fn to run after every build.
func (r *Rebuilder) OnComplete(fn func(Result)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Last returns the most recent result, if any build has completed.
func (r *Rebuilder) Last() (Result, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return Result{}, false
	}
	return *r.last, true
}

// Request asks for a rebuild without blocking. A request made while another
// is already pending is merged into it.
func (r *Rebuilder) Request(trigger string) {
	select {
	case r.requests <- trigger:
	default:
		slog.Debug("Rebuild already pending", slog.String("trigger", trigger))
	}
}

// Rebuild runs one build synchronously and notifies listeners.
func (r *Rebuilder) Rebuild(ctx context.Context, trigger string) Result {
	r.buildMu.Lock()
	defer r.buildMu.Unlock()

	r.recorder.IncRebuilds(trigger)
	slog.Info("Rebuilding site", slog.String("trigger", trigger))
	report, err := r.builder.Run(ctx, r.seq)
	res := Result{Trigger: trigger, Report: report, Err: err}
	if res.Failed() && !errors.Is(err, context.Canceled) {
		slog.Warn("Rebuild reported errors", slog.String("trigger", trigger), logfields.Error(res.FirstError()))
	}

	r.mu.Lock()
	r.last = &res
	listeners := slices.Clone(r.listeners)
	r.mu.Unlock()
	for _, fn := range listeners {
		fn(res)
	}
	return res
}

// Run processes requests until ctx is done.
func (r *Rebuilder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case trigger := <-r.requests:
			r.Rebuild(ctx, trigger)
		}
	}
}
