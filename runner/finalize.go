package runner

import (
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hazyhaar/keepbackup/failure"
	"github.com/hazyhaar/keepbackup/runlog"
)

// Outcome is the finished state of a run.
type Outcome struct {
	Success    bool
	NotesCount int
	Duration   time.Duration
	Output     string
	Kind       failure.Kind
	Error      string
}

// NewOutcome derives an Outcome from an operation result.
func NewOutcome(res Result, d time.Duration, output string) Outcome {
	o := Outcome{
		Success:    res.Err == nil,
		NotesCount: res.NotesCount,
		Duration:   d,
		Output:     output,
	}
	if res.Err != nil {
		o.Kind = failure.KindOf(res.Err)
		o.Error = oneLine(res.Err.Error())
	}
	return o
}

// ExitCode maps the outcome to a process exit status.
func (o Outcome) ExitCode() int {
	if o.Success {
		return 0
	}
	return 1
}

// failed returns a copy of o that reports err. An existing error message is
// kept first.
func (o Outcome) failed(err error) Outcome {
	o.Success = false
	if o.Error == "" {
		o.Kind = failure.KindOf(err)
		o.Error = oneLine(err.Error())
	}
	return o
}

func (r *Runner) finalize(run Run, label, output string, res Result) Outcome {
	end := r.now()
	out := NewOutcome(res, end.Sub(run.Start), output)

	if err := run.Log.AppendAll(TailLines(label, end, out)...); err != nil {
		r.logger.Error("runner: write log tail",
			zap.String("log_file", run.Log.Path()), zap.Error(err))
		out = out.failed(err)
	}

	if err := WriteSummary(r.stdout, out); err != nil {
		r.logger.Error("runner: print summary", zap.Error(err))
	}
	return out
}

// TailLines are the log lines written when a run finishes, in order.
func TailLines(label string, end time.Time, o Outcome) []string {
	lines := []string{
		fmt.Sprintf("%s finished (success=%s) end_time=%s", label, formatBool(o.Success), runlog.ISO(end)),
		"duration_seconds=" + formatSeconds(o.Duration),
		fmt.Sprintf("notes_count=%d", o.NotesCount),
		"output=" + o.Output,
	}
	if o.Error != "" {
		lines = append(lines, "error="+o.Error)
	}
	return lines
}

// WriteSummary prints the summary line and, on failure, the error line.
func WriteSummary(w io.Writer, o Outcome) error {
	_, err := io.WriteString(w, FormatSummary(o))
	return err
}

// FormatSummary renders the stdout summary, newline-terminated.
func FormatSummary(o Outcome) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "summary success=%s notes_count=%d duration_seconds=%s output=%s\n",
		formatBool(o.Success), o.NotesCount, formatSeconds(o.Duration), o.Output)
	if o.Error != "" {
		fmt.Fprintf(&sb, "error=%s\n", o.Error)
	}
	return sb.String()
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.2f", d.Seconds())
}

// oneLine keeps multi-line driver errors on the single error= line.
func oneLine(s string) string {
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == '\n' || r == '\r' }), " ")
}
