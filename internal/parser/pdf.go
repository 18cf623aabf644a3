package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/andrew-quintana/insurance-navigator-sub019/internal/pipeline"
)

// CommandRunner executes an external command and returns its stdout. The
// seam exists so tests can substitute the pdftotext binary.
type CommandRunner interface {
	Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)
}

// ExecRunner runs the real command via os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %s: %w", name, bytes.TrimSpace(stderr.Bytes()), err)
	}

	return out.Bytes(), nil
}

// PDF converts PDFs to text through the poppler pdftotext binary, reading the
// document from stdin and writing text to stdout.
type PDF struct {
	runner CommandRunner
}

func NewPDF(runner CommandRunner) *PDF {
	return &PDF{runner: runner}
}

func (p *PDF) ContentTypes() []string {
	return []string{"application/pdf"}
}

// pdfMagic is the required header for any well-formed PDF.
var pdfMagic = []byte("%PDF-")

func (p *PDF) Parse(ctx context.Context, raw []byte) (string, error) {
	if !bytes.HasPrefix(raw, pdfMagic) {
		return "", fmt.Errorf("missing %%PDF header: %w", pipeline.ErrCorruptInput)
	}

	out, err := p.runner.Run(ctx, raw, "pdftotext", "-layout", "-", "-")
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// pdftotext exits non-zero for damaged or encrypted documents.
			return "", fmt.Errorf("pdftotext failed: %v: %w", err, pipeline.ErrCorruptInput)
		}
		// Binary missing or killed: transient from the pipeline's view.
		return "", fmt.Errorf("pdftotext unavailable: %w", err)
	}

	return normalizeText(string(out)), nil
}
