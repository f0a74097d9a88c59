// Package runlog derives the per-run output paths and appends the run log.
//
// Paths are a pure function of the run's start time. A run resolves them
// once and carries the value around; resolving again later in the same run
// would point the log tail at a different file.
package runlog

import (
	"path/filepath"
	"time"
)

const (
	backupRoot = "backups"
	logRoot    = "logs"
	backupName = "keep.json"

	dateLayout    = "2006-01-02"
	logNameLayout = "2006-01-02_150405"
)

// Paths are the filesystem locations owned by a single run.
type Paths struct {
	BackupDir  string
	BackupFile string
	LogFile    string
}

// Resolve returns the run paths relative to the working directory.
func Resolve(now time.Time) Paths {
	return ResolveIn("", now)
}

// ResolveIn returns the run paths rooted at root. An empty root behaves like
// Resolve.
func ResolveIn(root string, now time.Time) Paths {
	backupDir := filepath.Join(root, backupRoot, now.Format(dateLayout))
	return Paths{
		BackupDir:  backupDir,
		BackupFile: filepath.Join(backupDir, backupName),
		LogFile:    filepath.Join(root, logRoot, "run_"+now.Format(logNameLayout)+".log"),
	}
}
