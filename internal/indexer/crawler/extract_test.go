package crawler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articlePage = `<!DOCTYPE html>
<html><head><title>ignored</title></head>
<body>
  <h1 class="headline">Storm hits <em>coast</em></h1>
  <h3>The Herald</h3>
  <sub>12 March 2024</sub>
  <p>Heavy rain &amp; wind
     closed roads.</p>
  <p>Schools reopen <b>tomorrow</b>.</p>
  <script>alert("x")</script>
</body></html>`

func TestExtract(t *testing.T) {
	doc := NewExtractor().Extract(articlePage, "17")

	assert.Equal(t, "17", doc.ID)
	assert.Equal(t, "Storm hits coast", doc.Title)
	assert.Equal(t, "Heavy rain & wind closed roads. Schools reopen tomorrow.", doc.Body)
	assert.Equal(t, map[string]string{"DATE": "12 March 2024", "PUB": "The Herald"}, doc.Fields)
}

func TestExtractEmptyPage(t *testing.T) {
	doc := NewExtractor().Extract("<html><body></body></html>", "3")
	assert.Equal(t, "3", doc.ID)
	assert.Empty(t, doc.Title)
	assert.Empty(t, doc.Body)
	assert.Nil(t, doc.Fields)
}

func TestExtractFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.html")
	require.NoError(t, os.WriteFile(path, []byte(articlePage), 0o644))

	doc, err := NewExtractor().ExtractFile(path, "1")
	require.NoError(t, err)
	assert.Equal(t, "Storm hits coast", doc.Title)

	_, err = NewExtractor().ExtractFile(filepath.Join(t.TempDir(), "missing.html"), "2")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
