// Package parser converts raw uploaded files into normalized text. Parsers
// are pure from the caller's perspective: same bytes in, same text out, no
// hidden state. Failures are classified via the pipeline error taxonomy so
// the orchestrator can decide whether a retry is worthwhile.
package parser

import (
	"context"
	"fmt"
	"mime"
	"strings"

	"github.com/andrew-quintana/insurance-navigator-sub019/internal/pipeline"
)

// Parser converts one family of content types into normalized text.
type Parser interface {
	// ContentTypes returns the MIME types this parser handles.
	ContentTypes() []string

	// Parse converts raw bytes into normalized text.
	Parse(ctx context.Context, raw []byte) (string, error)
}

// Registry dispatches parse requests by content type.
type Registry struct {
	byType map[string]Parser
}

func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{byType: make(map[string]Parser)}
	for _, p := range parsers {
		for _, ct := range p.ContentTypes() {
			r.byType[ct] = p
		}
	}
	return r
}

// DefaultRegistry returns a registry covering the formats the pipeline
// accepts. runner executes the external pdftotext binary; pass nil to use the
// real one.
func DefaultRegistry(runner CommandRunner) *Registry {
	if runner == nil {
		runner = ExecRunner{}
	}
	return NewRegistry(
		NewPlaintext(),
		NewMarkdown(),
		NewDOCX(),
		NewPDF(runner),
	)
}

// Parse normalizes contentType (stripping parameters like charset) and
// dispatches to the matching parser. Unknown types return
// pipeline.ErrUnsupportedFormat.
func (r *Registry) Parse(ctx context.Context, raw []byte, contentType string) (string, error) {
	mediaType := contentType
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = parsed
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))

	p, ok := r.byType[mediaType]
	if !ok {
		return "", fmt.Errorf("content type %q: %w", mediaType, pipeline.ErrUnsupportedFormat)
	}

	return p.Parse(ctx, raw)
}

// normalizeText canonicalizes parser output: CRLF to LF, trimmed trailing
// whitespace per line, at most one blank line between paragraphs. Chunk IDs
// are derived from this text, so normalization must stay deterministic.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}

	return strings.TrimSpace(strings.Join(out, "\n"))
}
