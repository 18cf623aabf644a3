package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrew-quintana/insurance-navigator-sub019/internal/tokens"
)

const policyText = `# Coverage

## Benefits

Routine checkups are covered at one hundred percent. Specialist visits require a referral.

Emergency care is covered worldwide.

## Exclusions

Cosmetic procedures are not covered. Experimental treatments require prior authorization.`

func newTestChunker(maxTokens int) *Chunker {
	return New("markdown", "v1", maxTokens, tokens.Approximate{})
}

// inflatedCounter reports four times the approximate count, standing in for
// a different tokenizer on an identically configured worker.
type inflatedCounter struct{}

func (inflatedCounter) Count(text string) int {
	return 4 * tokens.Approximate{}.Count(text)
}

// Chunk boundaries depend on the counter, not just (text, name, version,
// budget). That is why the counter is pinned by name in the job spec: two
// workers resolving different counters under the same chunker identity would
// write conflicting rows under the same chunk IDs.
func TestChunkBoundariesDependOnCounter(t *testing.T) {
	a := New("markdown", "v1", 64, tokens.Approximate{})
	b := New("markdown", "v1", 64, inflatedCounter{})

	assert.NotEqual(t, len(a.Chunk(policyText)), len(b.Chunk(policyText)))
}

func TestChunkOrdinalsAreStableAndGapless(t *testing.T) {
	c := newTestChunker(512)

	chunks := c.Chunk(policyText)
	require.NotEmpty(t, chunks)

	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Ordinal)
		assert.NotEmpty(t, chunk.Text)
	}
}

func TestChunkDeterministic(t *testing.T) {
	c := newTestChunker(64)

	first := c.Chunk(policyText)
	second := c.Chunk(policyText)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i], second[i], "chunk %d drifted between runs", i)
	}
}

func TestChunkSectionPaths(t *testing.T) {
	c := newTestChunker(32)

	chunks := c.Chunk(policyText)
	require.NotEmpty(t, chunks)

	var sections []string
	for _, chunk := range chunks {
		sections = append(sections, chunk.Section)
	}

	assert.Contains(t, sections, "Coverage > Benefits")
	assert.Contains(t, sections, "Coverage > Exclusions")
}

func TestChunkRespectsTokenBudget(t *testing.T) {
	c := newTestChunker(20)

	chunks := c.Chunk(policyText)
	require.NotEmpty(t, chunks)

	counter := tokens.Approximate{}
	for _, chunk := range chunks {
		// Multi-paragraph chunks stay within budget; a single indivisible
		// piece may exceed it only when it cannot be split further.
		if strings.Contains(chunk.Text, "\n\n") {
			assert.LessOrEqual(t, counter.Count(chunk.Text), 20)
		}
	}
}

func TestChunkHardSplitsOversizedParagraph(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("This sentence pads the paragraph well past any budget. ")
	}

	c := newTestChunker(30)
	chunks := c.Chunk(b.String())

	require.Greater(t, len(chunks), 1, "oversized paragraph must be split")
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Ordinal)
	}
}

func TestChunkEmptyInput(t *testing.T) {
	c := newTestChunker(512)

	assert.Empty(t, c.Chunk(""))
	assert.Empty(t, c.Chunk("   \n\n   "))
}

func TestChunkHeadingOnlyDocument(t *testing.T) {
	c := newTestChunker(512)

	// Headings alone produce no body chunks.
	assert.Empty(t, c.Chunk("# Title\n\n## Subtitle"))
}

func TestParseHeading(t *testing.T) {
	tests := []struct {
		block     string
		wantLevel int
		wantTitle string
		wantOK    bool
	}{
		{"# Coverage", 1, "Coverage", true},
		{"### Deep Section", 3, "Deep Section", true},
		{"#NoSpace", 0, "", false},
		{"plain text", 0, "", false},
		{"####### too deep", 0, "", false},
		{"#", 0, "", false},
	}

	for _, tt := range tests {
		level, title, ok := parseHeading(tt.block)
		assert.Equal(t, tt.wantOK, ok, "block %q", tt.block)
		if ok {
			assert.Equal(t, tt.wantLevel, level)
			assert.Equal(t, tt.wantTitle, title)
		}
	}
}

func TestSectionPathReplacesSiblings(t *testing.T) {
	p := newSectionPath()

	p.enter(1, "Coverage")
	p.enter(2, "Benefits")
	assert.Equal(t, "Coverage > Benefits", p.String())

	p.enter(2, "Exclusions")
	assert.Equal(t, "Coverage > Exclusions", p.String())

	p.enter(1, "Claims")
	assert.Equal(t, "Claims", p.String())
}
