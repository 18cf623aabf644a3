// Package tokens estimates token counts for chunk sizing and retrieval
// token budgets.
package tokens

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/andrew-quintana/insurance-navigator-sub019/internal/pipeline"
)

// Counter names. Chunk boundaries depend on the counter, so the name is
// pinned in the job spec alongside the chunker identity and a worker must
// resolve exactly the named counter or fail the stage.
const (
	CounterCL100KBase  = "cl100k_base"
	CounterApproximate = "approximate"
)

// Counter estimates the number of model tokens in a string.
type Counter interface {
	Count(text string) int
}

// Tiktoken counts tokens with the cl100k_base BPE, the encoding used by the
// OpenAI embedding models this pipeline targets.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

func NewTiktoken() (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &Tiktoken{enc: enc}, nil
}

func (t *Tiktoken) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// Approximate counts roughly four characters per token, the usual rule of
// thumb for English prose.
type Approximate struct{}

func (Approximate) Count(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}

// ForName resolves a counter by its pinned name. An unknown name is a
// permanent error; a load failure for a known name (the BPE vocabulary is
// fetched lazily) is transient and left retryable.
func ForName(name string) (Counter, error) {
	switch name {
	case CounterCL100KBase:
		t, err := NewTiktoken()
		if err != nil {
			return nil, fmt.Errorf("load %s encoding: %w", name, err)
		}
		return t, nil
	case CounterApproximate:
		return Approximate{}, nil
	default:
		return nil, fmt.Errorf("unknown token counter %q: %w", name, pipeline.ErrInvalidInput)
	}
}
