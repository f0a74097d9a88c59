// Package runner wraps a single keepbackup operation in the run lifecycle:
// log the start, execute, then finalize exactly once with the log tail and
// the stdout summary.
//
// Operations never decide the exit status themselves. They return a Result
// by value and the Runner turns it into an Outcome, so backups and browser
// smoke checks share one finalize path.
package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/hazyhaar/keepbackup/idgen"
	"github.com/hazyhaar/keepbackup/runlog"
)

// Run is what an Operation gets to work with. It is created once per
// invocation and never shared.
type Run struct {
	ID    string
	Start time.Time
	Paths runlog.Paths
	Log   *runlog.Log
}

// Result is the value an Operation returns from Execute. A nil Err means
// success; NotesCount is reported either way.
type Result struct {
	NotesCount int
	Err        error
}

// Operation is one unit of work a run executes.
type Operation interface {
	// Label prefixes the started/finished log lines, e.g. "backup".
	Label() string
	// Output is the artifact reported in the summary: a file path or URL.
	Output(paths runlog.Paths) string
	Execute(ctx context.Context, run Run) Result
}

// Runner drives the lifecycle. The zero value is not usable; call New.
type Runner struct {
	stdout io.Writer
	logger *zap.Logger
	now    func() time.Time
	newID  idgen.Generator
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the diagnostics logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock replaces time.Now, used for the end-of-run timestamp.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithIDGenerator replaces the run ID source. A nil gen keeps the default.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(r *Runner) {
		if gen != nil {
			r.newID = gen
		}
	}
}

// New creates a Runner printing summaries to stdout (os.Stdout when nil).
func New(stdout io.Writer, opts ...Option) *Runner {
	if stdout == nil {
		stdout = os.Stdout
	}
	r := &Runner{
		stdout: stdout,
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  idgen.Default,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes op for a run that started at start and owns paths, and
// returns the process exit code: 0 on success, 1 otherwise.
//
// Finalization is deferred, so it happens exactly once whatever the
// operation does, including panicking.
func (r *Runner) Run(ctx context.Context, start time.Time, paths runlog.Paths, op Operation) (code int) {
	run := Run{
		ID:    r.newID(),
		Start: start,
		Paths: paths,
		Log:   runlog.Open(paths.LogFile),
	}
	label := op.Label()
	log := r.logger.With(zap.String("run_id", run.ID), zap.String("op", label))

	var res Result
	defer func() {
		out := r.finalize(run, label, op.Output(paths), res)
		log.Debug("runner: finished",
			zap.Bool("success", out.Success),
			zap.Duration("duration", out.Duration),
			zap.String("error_kind", string(out.Kind)))
		code = out.ExitCode()
	}()

	if err := run.Log.Appendf("%s started run_id=%s start_time=%s", label, run.ID, runlog.ISO(start)); err != nil {
		log.Error("runner: write start line", zap.String("log_file", paths.LogFile), zap.Error(err))
		res = Result{Err: err}
		return
	}

	log.Debug("runner: started", zap.String("log_file", paths.LogFile))
	res = execute(ctx, op, run)
	return
}

// execute converts a panic inside the operation into an error result.
func execute(ctx context.Context, op Operation, run Run) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			res = Result{Err: fmt.Errorf("%s: unexpected panic: %v", op.Label(), p)}
		}
	}()
	return op.Execute(ctx, run)
}

// Reject returns an Operation with op's label and output that fails with err
// instead of executing. A run that cannot be configured is still logged,
// summarised and reported as a failure.
func Reject(op Operation, err error) Operation {
	return rejected{Operation: op, err: err}
}

type rejected struct {
	Operation
	err error
}

func (r rejected) Execute(context.Context, Run) Result {
	return Result{Err: r.err}
}
