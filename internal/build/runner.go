package build

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	foundationerrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
)

// Policy decides what a task failure does to the rest of the run.
type Policy int

const (
	// FailFast cancels the run at the first failure (production builds).
	FailFast Policy = iota
	// Continue records failures and runs the remaining tasks (development).
	Continue
)

// Runner executes sequences of registered tasks.
type Runner struct {
	tasks    map[TaskName]TaskFunc
	policy   Policy
	mode     string
	recorder metrics.Recorder
}

// NewRunner returns a runner with no tasks registered.
func NewRunner(policy Policy, mode string, recorder metrics.Recorder) *Runner {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Runner{tasks: map[TaskName]TaskFunc{}, policy: policy, mode: mode, recorder: recorder}
}

// Register adds or replaces a task.
func (r *Runner) Register(name TaskName, fn TaskFunc) {
	r.tasks[name] = fn
}

// Run executes seq. Under FailFast the first error is returned and later
// groups do not start; under Continue the error is nil and failures are in
// the report.
func (r *Runner) Run(ctx context.Context, seq Sequence) (*Report, error) {
	report := newReport(r.mode)
	log := slog.With(logfields.BuildID(report.ID), logfields.Mode(r.mode))
	log.Info("Build started", logfields.Count(len(seq.Tasks())))

	for _, name := range seq.Tasks() {
		if _, ok := r.tasks[name]; !ok {
			err := foundationerrors.InternalError("task not registered").WithContext("task", string(name)).Build()
			report.finish(metrics.OutcomeFailed)
			return report, err
		}
	}

	var runErr error
	for i, group := range seq {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if err := r.runGroup(ctx, log, report, i, group); err != nil {
			runErr = err
			break
		}
	}

	outcome := metrics.OutcomeSuccess
	switch {
	case errors.Is(runErr, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		outcome = metrics.OutcomeCanceled
	case runErr != nil:
		outcome = metrics.OutcomeFailed
	case report.Failed():
		outcome = metrics.OutcomeWarning
	}
	report.finish(outcome)
	r.recorder.ObserveBuildDuration(report.Duration())
	r.recorder.IncBuildOutcome(outcome)

	attrs := []any{slog.String("outcome", string(outcome)), logfields.DurationMS(float64(report.Duration().Milliseconds()))}
	if outcome == metrics.OutcomeSuccess {
		log.Info("Build finished", attrs...)
	} else {
		log.Warn("Build finished", append(attrs, logfields.Count(len(report.Errors())))...)
	}
	return report, runErr
}

func (r *Runner) runGroup(ctx context.Context, log *slog.Logger, report *Report, index int, group []TaskName) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, name := range group {
		fn := r.tasks[name]
		g.Go(func() error {
			start := time.Now()
			err := fn(gctx)
			dur := time.Since(start)

			result := metrics.ResultSuccess
			switch {
			case err == nil:
			case errors.Is(err, context.Canceled):
				result = metrics.ResultCanceled
			default:
				result = metrics.ResultFailed
			}
			report.record(TaskResult{Task: name, Group: index, Result: result, Duration: dur}, err)
			r.recorder.ObserveTaskDuration(string(name), dur)
			r.recorder.IncTaskResult(string(name), result)

			if err != nil {
				log.Error("Task failed", logfields.Task(string(name)), logfields.Group(index), logfields.Error(err))
				if r.policy == FailFast {
					return err
				}
				return nil
			}
			log.Debug("Task finished", logfields.Task(string(name)), logfields.Group(index),
				logfields.DurationMS(float64(dur.Milliseconds())))
			return nil
		})
	}
	return g.Wait()
}
