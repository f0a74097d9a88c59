package notes

import (
	"bufio"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/keepbackup/failure"
)

const maxLineSize = 1 << 20

// Loader reads notes files. Plain text files hold one note per line; HTML
// files (.html, .htm) hold one note per element marked with the note test id.
type Loader struct {
	policy *bluemonday.Policy
	conv   *converter.Converter
}

// NewLoader builds a Loader with the UGC sanitizing policy and a CommonMark
// converter.
func NewLoader() *Loader {
	return &Loader{
		policy: bluemonday.UGCPolicy(),
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

var defaultLoader = sync.OnceValue(NewLoader)

// LoadFile reads notes from path with the default Loader.
func LoadFile(path string) ([]Note, error) {
	return defaultLoader().Load(path)
}

// Load reads notes from path, choosing the format by extension.
func (l *Loader) Load(path string) ([]Note, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, failure.NotFound("notes file not found: %s", path)
	}
	if err != nil {
		return nil, failure.IO(err, "open notes file %s", path)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return l.readHTML(f, path)
	default:
		return readLines(f, path)
	}
}

func readLines(r io.Reader, path string) ([]Note, error) {
	var out []Note
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		if body := strings.TrimSpace(sc.Text()); body != "" {
			out = append(out, Note{Body: body})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, failure.IO(err, "read notes file %s", path)
	}
	return out, nil
}
