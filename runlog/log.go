package runlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/keepbackup/failure"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Log appends timestamped lines to one run's log file. It holds no open
// handle between calls: each Append opens, writes one line and closes.
type Log struct {
	path string
	now  func() time.Time
}

// Open returns a Log writing to path. Nothing touches the filesystem until
// the first Append.
func Open(path string) *Log {
	return &Log{path: path, now: time.Now}
}

// Path returns the log file location.
func (l *Log) Path() string { return l.path }

// Append writes "[<timestamp>] <message>" followed by a newline.
func (l *Log) Append(message string) (err error) {
	if err := os.MkdirAll(filepath.Dir(l.path), dirPerm); err != nil {
		return failure.IO(err, "create log dir for %s", l.path)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, filePerm)
	if err != nil {
		return failure.IO(err, "open log %s", l.path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = failure.IO(cerr, "close log %s", l.path)
		}
	}()

	if _, err := fmt.Fprintf(f, "[%s] %s\n", ISOSeconds(l.now()), message); err != nil {
		return failure.IO(err, "append log %s", l.path)
	}
	return nil
}

// Appendf formats a message and appends it.
func (l *Log) Appendf(format string, args ...any) error {
	return l.Append(fmt.Sprintf(format, args...))
}

// AppendAll writes messages in order and keeps going after a failed line so
// that as much of the record as possible reaches disk. It returns every
// failure joined.
func (l *Log) AppendAll(messages ...string) error {
	var errs []error
	for _, m := range messages {
		if err := l.Append(m); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
