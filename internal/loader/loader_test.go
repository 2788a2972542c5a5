package loader

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_PlainText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("The sky is blue. Water is wet."), 0o600))

	units, err := Load(path)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "The sky is blue. Water is wet.", units[0].Text)
	assert.Empty(t, units[0].Section)
}

func TestLoad_Markdown(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Heading\n\nBody text."), 0o600))

	units, err := Load(path)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Contains(t, units[0].Text, "Body text.")
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "image.png")
	require.NoError(t, os.WriteFile(path, []byte("not text"), 0o600))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoad_EmptyDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte("   \n\t "), 0o600))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestFromString(t *testing.T) {
	units, err := FromString("pasted content")
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "pasted content", units[0].Text)

	_, err = FromString("   ")
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported(".txt"))
	assert.True(t, Supported(".PDF"))
	assert.True(t, Supported(".docx"))
	assert.True(t, Supported(".md"))
	assert.False(t, Supported(".png"))
	assert.False(t, Supported(""))
}

// writeDOCX builds a minimal OOXML archive with the given paragraphs.
func writeDOCX(t *testing.T, path string, paragraphs ...string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)

	doc := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	for _, p := range paragraphs {
		doc += `<w:p><w:r><w:t>` + p + `</w:t></w:r></w:p>`
	}
	doc += `</w:body></w:document>`

	_, err = w.Write([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
}

func TestLoad_DOCX(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.docx")
	writeDOCX(t, path, "First paragraph.", "Second paragraph.")

	units, err := Load(path)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "First paragraph.\nSecond paragraph.", units[0].Text)
}

func TestLoad_DOCXWithoutBodyText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blank.docx")
	writeDOCX(t, path)

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrEmptyDocument)
}
