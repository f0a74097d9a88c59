package backup

import (
	"context"

	"github.com/hazyhaar/keepbackup/notes"
	"github.com/hazyhaar/keepbackup/runlog"
	"github.com/hazyhaar/keepbackup/runner"
)

// Operation collects notes and writes them to the run's backup file.
type Operation struct {
	Manual    []string
	NotesFile string
	// Loader reads NotesFile. Nil uses the package default.
	Loader *notes.Loader
}

func (o *Operation) Label() string { return "backup" }

func (o *Operation) Output(p runlog.Paths) string { return p.BackupFile }

// Execute stamps the archive with the run's start time.
func (o *Operation) Execute(_ context.Context, run runner.Run) runner.Result {
	collect := notes.Collect
	if o.Loader != nil {
		collect = o.Loader.Collect
	}

	list, err := collect(o.Manual, o.NotesFile)
	if err != nil {
		return runner.Result{Err: err}
	}
	if o.NotesFile != "" {
		if err := run.Log.Appendf("backup notes_file=%s", o.NotesFile); err != nil {
			return runner.Result{NotesCount: len(list), Err: err}
		}
	}

	if err := Write(run.Paths.BackupFile, run.Start, list); err != nil {
		return runner.Result{NotesCount: len(list), Err: err}
	}
	return runner.Result{NotesCount: len(list)}
}
