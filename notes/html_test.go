package notes

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const exportPage = `<!DOCTYPE html>
<html>
<head><title>Keep</title><style>.x{}</style></head>
<body>
<main>
  <div data-testid="keep-note">Buy milk</div>
  <div class="pinned">not a note</div>
  <div data-testid="keep-note"><p>Call <strong>Alice</strong></p><script>alert(1)</script></div>
  <div data-testid="keep-note">   </div>
  <section>
    <div data-testid="keep-note">Nested deeper</div>
  </section>
</main>
</body>
</html>`

func TestLoad_HTMLExport(t *testing.T) {
	path := writeFile(t, "export.html", exportPage)

	got, err := NewLoader().Load(path)
	require.NoError(t, err)

	want := []Note{
		{Body: "Buy milk"},
		{Body: "Call **Alice**"},
		{Body: "Nested deeper"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_HTMLScriptStripped(t *testing.T) {
	path := writeFile(t, "export.htm", exportPage)

	got, err := LoadFile(path)
	require.NoError(t, err)
	for _, n := range got {
		assert.NotContains(t, n.Body, "alert")
	}
}

func TestCollect_ManualBeforeHTML(t *testing.T) {
	path := writeFile(t, "export.HTML", exportPage)

	got, err := Collect([]string{"manual"}, path)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "manual", got[0].Body)
	assert.Equal(t, "Buy milk", got[1].Body)
}

func TestFindNoteNodes_OuterOnly(t *testing.T) {
	doc, err := html.Parse(strings.NewReader(
		`<div data-testid="keep-note">outer <span data-testid="keep-note">inner</span></div>`))
	require.NoError(t, err)

	nodes := findNoteNodes(doc)
	require.Len(t, nodes, 1)
	assert.Equal(t, "outer inner", collectText(nodes[0]))
}

func TestNoteSelector(t *testing.T) {
	assert.Equal(t, `[data-testid="keep-note"]`, NoteSelector)
}

func TestLoad_ShippedFixture(t *testing.T) {
	got, err := LoadFile("../fixtures/keep_mock.html")
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Contains(t, got[0].Body, "Groceries")
	assert.Contains(t, got[0].Body, "Milk, eggs, coffee")
	assert.Contains(t, got[1].Body, "Call the plumber about the kitchen sink")
	assert.Contains(t, got[2].Body, "Réunion jeudi à 10h")
}
