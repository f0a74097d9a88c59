package notes

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/hazyhaar/keepbackup/failure"
)

// NoteTestID is the data-testid value carried by every note element in the
// service's markup and in the local fixture.
const NoteTestID = "keep-note"

// NoteSelector matches note elements in a live page or fixture.
const NoteSelector = `[data-testid="` + NoteTestID + `"]`

func (l *Loader) readHTML(r io.Reader, path string) ([]Note, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, failure.IO(err, "parse notes file %s", path)
	}

	var out []Note
	for _, n := range findNoteNodes(doc) {
		if body := l.nodeBody(n); body != "" {
			out = append(out, Note{Body: body})
		}
	}
	return out, nil
}

// nodeBody converts the sanitized inner HTML of n to Markdown. If conversion
// yields nothing, the node's plain text is used instead.
func (l *Loader) nodeBody(n *html.Node) string {
	fallback := strings.TrimSpace(collectText(n))

	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return fallback
		}
	}
	clean := l.policy.Sanitize(buf.String())
	if strings.TrimSpace(clean) == "" {
		return fallback
	}

	md, err := l.conv.ConvertString(clean)
	if err != nil || strings.TrimSpace(md) == "" {
		return fallback
	}
	return strings.TrimSpace(md)
}

// findNoteNodes returns note elements in document order. Notes nested inside
// another note are not reported separately.
func findNoteNodes(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && getAttr(n, "data-testid") == NoteTestID {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func collectText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
