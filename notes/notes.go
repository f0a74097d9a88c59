// Package notes gathers the note bodies a backup run persists.
//
// Manual notes come first, in argument order, followed by the entries of an
// optional notes file in file order. Whitespace is trimmed and empty bodies
// are dropped everywhere.
package notes

import (
	"strings"

	"github.com/hazyhaar/keepbackup/failure"
)

// Note is one backed-up note. It has no identity beyond its position.
type Note struct {
	Body string `json:"body"`
}

// NoNotesMessage is the validation text reported when nothing was supplied.
const NoNotesMessage = "no notes provided. Use --note or --notes-file."

// Collect merges manual bodies with the contents of notesFile (skipped when
// empty). It fails with a not-found error for a missing file and with a
// validation error when the merged list is empty.
func Collect(manual []string, notesFile string) ([]Note, error) {
	return defaultLoader().Collect(manual, notesFile)
}

// Collect is the Loader-bound form of the package-level Collect.
func (l *Loader) Collect(manual []string, notesFile string) ([]Note, error) {
	var out []Note
	for _, body := range manual {
		if body = strings.TrimSpace(body); body != "" {
			out = append(out, Note{Body: body})
		}
	}

	if notesFile != "" {
		fromFile, err := l.Load(notesFile)
		if err != nil {
			return nil, err
		}
		out = append(out, fromFile...)
	}

	if len(out) == 0 {
		return nil, failure.Validation(NoNotesMessage)
	}
	return out, nil
}
