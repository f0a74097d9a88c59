// Package backup writes the per-run JSON archive of collected notes.
package backup

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/keepbackup/failure"
	"github.com/hazyhaar/keepbackup/notes"
	"github.com/hazyhaar/keepbackup/runlog"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Payload is the on-disk backup document.
type Payload struct {
	ScrapedAt string       `json:"scraped_at"`
	Notes     []notes.Note `json:"notes"`
}

// Encode renders the payload the way it is stored: two-space indentation,
// HTML and non-ASCII characters left as-is, trailing newline.
func Encode(at time.Time, list []notes.Note) ([]byte, error) {
	if list == nil {
		list = []notes.Note{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Payload{ScrapedAt: runlog.ISO(at), Notes: list}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write stores the payload at path, creating parent directories and
// overwriting any existing file in place.
func Write(path string, at time.Time, list []notes.Note) error {
	data, err := Encode(at, list)
	if err != nil {
		return failure.IO(err, "encode backup")
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return failure.IO(err, "create backup dir for %s", path)
	}
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return failure.IO(err, "write backup %s", path)
	}
	return nil
}

// Read loads a backup written by Write.
func Read(path string) (*Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, failure.IO(err, "read backup %s", path)
	}
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, failure.IO(err, "decode backup %s", path)
	}
	return &p, nil
}
