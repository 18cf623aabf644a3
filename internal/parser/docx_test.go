package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew-quintana/insurance-navigator-sub019/internal/pipeline"
)

// buildDOCX assembles a minimal OOXML container with the given document.xml.
func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	f, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(documentXML))
	require.NoError(t, err)

	require.NoError(t, w.Close())
	return buf.Bytes()
}

const sampleDocumentXML = `<?xml version="1.0" encoding="UTF-8"?>
<document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <body>
    <p>
      <pPr><pStyle val="Heading1"/></pPr>
      <r><t>Coverage Summary</t></r>
    </p>
    <p>
      <r><t>Routine checkups are </t></r>
      <r><t>fully covered.</t></r>
    </p>
    <p>
      <pPr><pStyle val="Heading2"/></pPr>
      <r><t>Exclusions</t></r>
    </p>
    <p>
      <r><t>Cosmetic procedures are excluded.</t></r>
    </p>
  </body>
</document>`

func TestDOCXParse(t *testing.T) {
	d := NewDOCX()

	text, err := d.Parse(context.Background(), buildDOCX(t, sampleDocumentXML))
	require.NoError(t, err)

	assert.Contains(t, text, "# Coverage Summary")
	assert.Contains(t, text, "Routine checkups are fully covered.")
	assert.Contains(t, text, "## Exclusions")
	assert.Contains(t, text, "Cosmetic procedures are excluded.")
}

func TestDOCXNotAZip(t *testing.T) {
	d := NewDOCX()

	_, err := d.Parse(context.Background(), []byte("definitely not a zip archive"))
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrCorruptInput)
}

func TestDOCXMissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/other.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte("<x/>"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	d := NewDOCX()
	_, err = d.Parse(context.Background(), buf.Bytes())
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrCorruptInput)
}

func TestDOCXMalformedXML(t *testing.T) {
	d := NewDOCX()

	_, err := d.Parse(context.Background(), buildDOCX(t, "<document><body><p>unclosed"))
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrCorruptInput)
}
