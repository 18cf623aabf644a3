package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/andrew-quintana/insurance-navigator-sub019/internal/pipeline"
)

// DOCX extracts paragraph text from word/document.xml inside the OOXML zip
// container. Paragraph styles marked as headings become markdown headings so
// the chunker can split on document structure.
type DOCX struct{}

func NewDOCX() *DOCX {
	return &DOCX{}
}

func (d *DOCX) ContentTypes() []string {
	return []string{"application/vnd.openxmlformats-officedocument.wordprocessingml.document"}
}

func (d *DOCX) Parse(_ context.Context, raw []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("not a zip container: %w", pipeline.ErrCorruptInput)
	}

	content, err := readArchiveFile(reader, "word/document.xml")
	if err != nil {
		return "", err
	}
	if content == nil {
		return "", fmt.Errorf("missing word/document.xml: %w", pipeline.ErrCorruptInput)
	}

	text, err := renderDocumentXML(content)
	if err != nil {
		return "", err
	}

	return normalizeText(text), nil
}

func readArchiveFile(reader *zip.Reader, name string) ([]byte, error) {
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, pipeline.ErrCorruptInput)
		}

		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, pipeline.ErrCorruptInput)
		}

		return content, nil
	}
	return nil, nil
}

// documentXML mirrors the subset of word/document.xml the parser consumes.
type documentXML struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Properties struct {
		Style struct {
			Val string `xml:"val,attr"`
		} `xml:"pStyle"`
	} `xml:"pPr"`
	Runs []docxRun `xml:"r"`
}

type docxRun struct {
	Text []docxText `xml:"t"`
}

type docxText struct {
	Content string `xml:",chardata"`
}

func (p docxParagraph) text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		for _, t := range r.Text {
			b.WriteString(t.Content)
		}
	}
	return strings.TrimSpace(b.String())
}

// headingLevel maps OOXML paragraph styles like "Heading1" to a markdown
// heading depth; 0 means body text.
func (p docxParagraph) headingLevel() int {
	style := strings.ToLower(p.Properties.Style.Val)
	if !strings.HasPrefix(style, "heading") {
		return 0
	}
	switch strings.TrimPrefix(style, "heading") {
	case "1":
		return 1
	case "2":
		return 2
	case "3":
		return 3
	case "4":
		return 4
	default:
		return 0
	}
}

func renderDocumentXML(content []byte) (string, error) {
	var doc documentXML
	if err := xml.Unmarshal(content, &doc); err != nil {
		return "", fmt.Errorf("document.xml: %w", pipeline.ErrCorruptInput)
	}

	var b strings.Builder
	for _, para := range doc.Body.Paragraphs {
		text := para.text()
		if text == "" {
			continue
		}

		if level := para.headingLevel(); level > 0 {
			b.WriteString(strings.Repeat("#", level))
			b.WriteString(" ")
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}

	return b.String(), nil
}
