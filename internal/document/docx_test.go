package document

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wordBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body>
<w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve"> World</w:t></w:r></w:p>
<w:p><w:r><w:t>Name</w:t><w:tab/><w:t>Value</w:t><w:br/><w:t>next line</w:t></w:r></w:p>
<w:tbl><w:tr><w:tc><w:p><w:r><w:t>cell &amp; more</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
</w:body>
</w:document>`

// writeDOCX writes a minimal DOCX package with the given body part.
func writeDOCX(t *testing.T, path, body string) {
	t.Helper()
	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	ct, err := w.Create("[Content_Types].xml")
	require.NoError(t, err)
	_, err = ct.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`))
	require.NoError(t, err)

	if body != "" {
		doc, err := w.Create("word/document.xml")
		require.NoError(t, err)
		_, err = doc.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestReadText_DOCX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.docx")
	writeDOCX(t, path, wordBody)

	text, err := ReadText(path)
	require.NoError(t, err)
	assert.Equal(t, "Hello World\nName\tValue\nnext line\ncell & more", text)
}

func TestReadText_DOCXErrors(t *testing.T) {
	dir := t.TempDir()

	notZip := filepath.Join(dir, "plain.docx")
	require.NoError(t, os.WriteFile(notZip, []byte("not a zip archive"), 0o644))
	_, err := ReadText(notZip)
	assert.Error(t, err)

	noBody := filepath.Join(dir, "empty.docx")
	writeDOCX(t, noBody, "")
	_, err = ReadText(noBody)
	assert.Error(t, err)

	broken := filepath.Join(dir, "broken.docx")
	writeDOCX(t, broken, "<w:document><w:body><w:p>")
	_, err = ReadText(broken)
	assert.Error(t, err)
}

func TestLoader_LoadsDOCXByDefault(t *testing.T) {
	root := t.TempDir()
	writeDOCX(t, filepath.Join(root, "docs", "report.docx"), wordBody)
	writeFile(t, root, "bad.docx", "garbage")

	l, err := NewLoader(root, nil, nil)
	require.NoError(t, err)

	docs, failures, err := l.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "docs/report.docx", docs[0].Source)
	assert.Contains(t, docs[0].Content, "Hello World")

	require.Len(t, failures, 1)
	var loadErr *LoadError
	require.True(t, errors.As(failures[0], &loadErr))
	assert.Equal(t, "bad.docx", loadErr.Source)
}
