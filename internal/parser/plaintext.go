package parser

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/andrew-quintana/insurance-navigator-sub019/internal/pipeline"
)

// Plaintext handles text/plain uploads.
type Plaintext struct{}

func NewPlaintext() *Plaintext {
	return &Plaintext{}
}

func (p *Plaintext) ContentTypes() []string {
	return []string{"text/plain"}
}

func (p *Plaintext) Parse(_ context.Context, raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("not valid UTF-8: %w", pipeline.ErrCorruptInput)
	}
	return normalizeText(string(raw)), nil
}

// Markdown handles markdown uploads. Markdown is already the pipeline's
// normalized representation, so parsing is normalization only.
type Markdown struct{}

func NewMarkdown() *Markdown {
	return &Markdown{}
}

func (m *Markdown) ContentTypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

func (m *Markdown) Parse(_ context.Context, raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("not valid UTF-8: %w", pipeline.ErrCorruptInput)
	}
	return normalizeText(string(raw)), nil
}
