package verify

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hazyhaar/keepbackup/failure"
	"github.com/hazyhaar/keepbackup/notes"
	"github.com/hazyhaar/keepbackup/runlog"
	"github.com/hazyhaar/keepbackup/runner"
)

// Smoke is a run operation that verifies one page. When Fixture is set the
// file must exist before any browser session is opened.
type Smoke struct {
	Verifier *Verifier
	Check    Check
	Fixture  string
}

// NewLiveSmoke checks the live service URL, reusing profileDir when set. No
// note elements are required.
func NewLiveSmoke(v *Verifier, liveURL, profileDir string) *Smoke {
	return &Smoke{
		Verifier: v,
		Check:    Check{URL: liveURL, ProfileDir: profileDir},
	}
}

// NewFixtureSmoke checks a local HTML fixture in an ephemeral session and
// requires at least minNotes elements matching selector. An empty selector
// means the standard note selector.
func NewFixtureSmoke(v *Verifier, fixture, selector string, minNotes int) *Smoke {
	if selector == "" {
		selector = notes.NoteSelector
	}
	return &Smoke{
		Verifier: v,
		Check: Check{
			URL:      FileURL(fixture),
			Selector: selector,
			MinNotes: minNotes,
		},
		Fixture: fixture,
	}
}

func (s *Smoke) Label() string { return "browser smoke" }

func (s *Smoke) Output(runlog.Paths) string { return s.Check.URL }

func (s *Smoke) Execute(ctx context.Context, run runner.Run) runner.Result {
	if s.Fixture != "" {
		if _, err := os.Stat(s.Fixture); errors.Is(err, fs.ErrNotExist) {
			return runner.Result{Err: failure.NotFound("fixture not found: %s", s.Fixture)}
		} else if err != nil {
			return runner.Result{Err: failure.IO(err, "stat fixture %s", s.Fixture)}
		}
	}

	count, err := s.Verifier.Verify(ctx, run.Log, s.Check)
	return runner.Result{NotesCount: count, Err: err}
}

// FileURL returns the absolute file:// URL for a local path.
func FileURL(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}
