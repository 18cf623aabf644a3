// Package chunker splits normalized text into bounded, ordered segments.
// Output is fully deterministic for a given (text, name, version, budget,
// counter): chunk identity is derived from the ordinal positions produced
// here, so any change to the splitting algorithm must come with a version
// bump, and the counter must be the one named in the job spec rather than
// whatever the host has available.
package chunker

import (
	"strings"

	"github.com/andrew-quintana/insurance-navigator-sub019/internal/tokens"
)

// Chunk is one output segment. Ordinals are assigned in document order
// starting at zero, with no gaps.
type Chunk struct {
	Ordinal    int
	Text       string
	TokenCount int
	Section    string // heading path, e.g. "Coverage > Exclusions"
}

type Chunker struct {
	name      string
	version   string
	maxTokens int
	counter   tokens.Counter
}

func New(name, version string, maxTokens int, counter tokens.Counter) *Chunker {
	if maxTokens <= 0 {
		maxTokens = 512
	}
	if counter == nil {
		counter = tokens.Approximate{}
	}
	return &Chunker{name: name, version: version, maxTokens: maxTokens, counter: counter}
}

func (c *Chunker) Name() string    { return c.name }
func (c *Chunker) Version() string { return c.version }

// Chunk splits text on markdown headings first, paragraphs second, and a hard
// token cutoff last. Whitespace-only input produces no chunks.
func (c *Chunker) Chunk(text string) []Chunk {
	blocks := splitBlocks(text)
	if len(blocks) == 0 {
		return nil
	}

	var out []Chunk
	var pending []string
	pendingTokens := 0
	section := ""

	flush := func() {
		if len(pending) == 0 {
			return
		}
		out = append(out, Chunk{
			Ordinal:    len(out),
			Text:       strings.Join(pending, "\n\n"),
			TokenCount: pendingTokens,
			Section:    section,
		})
		pending = nil
		pendingTokens = 0
	}

	sections := newSectionPath()

	for _, block := range blocks {
		if level, title, ok := parseHeading(block); ok {
			// A heading closes the running chunk and opens a new section.
			flush()
			sections.enter(level, title)
			section = sections.String()
			continue
		}

		n := c.counter.Count(block)
		if n > c.maxTokens {
			// Oversized paragraph: hard-split on sentence boundaries.
			for _, piece := range c.hardSplit(block) {
				pn := c.counter.Count(piece)
				if pendingTokens+pn > c.maxTokens {
					flush()
				}
				pending = append(pending, piece)
				pendingTokens += pn
			}
			continue
		}

		if pendingTokens+n > c.maxTokens {
			flush()
		}
		pending = append(pending, block)
		pendingTokens += n
	}
	flush()

	return out
}

// splitBlocks breaks normalized text into paragraphs and heading lines.
func splitBlocks(text string) []string {
	var blocks []string
	for _, raw := range strings.Split(text, "\n\n") {
		for _, part := range splitHeadingRuns(raw) {
			part = strings.TrimSpace(part)
			if part != "" {
				blocks = append(blocks, part)
			}
		}
	}
	return blocks
}

// splitHeadingRuns separates heading lines that were not surrounded by blank
// lines from the paragraph text around them.
func splitHeadingRuns(paragraph string) []string {
	lines := strings.Split(paragraph, "\n")

	var parts []string
	var current []string
	for _, line := range lines {
		if _, _, ok := parseHeading(line); ok {
			if len(current) > 0 {
				parts = append(parts, strings.Join(current, "\n"))
				current = nil
			}
			parts = append(parts, line)
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		parts = append(parts, strings.Join(current, "\n"))
	}
	return parts
}

// parseHeading reports whether block is a single markdown ATX heading line.
func parseHeading(block string) (level int, title string, ok bool) {
	if strings.Contains(block, "\n") {
		return 0, "", false
	}
	trimmed := strings.TrimSpace(block)
	if !strings.HasPrefix(trimmed, "#") {
		return 0, "", false
	}

	i := 0
	for i < len(trimmed) && trimmed[i] == '#' {
		i++
	}
	if i > 6 || i == len(trimmed) || trimmed[i] != ' ' {
		return 0, "", false
	}

	title = strings.TrimSpace(trimmed[i:])
	if title == "" {
		return 0, "", false
	}
	return i, title, true
}

// hardSplit cuts an oversized paragraph into pieces no larger than the token
// budget, preferring sentence boundaries and falling back to word boundaries.
func (c *Chunker) hardSplit(block string) []string {
	sentences := splitSentences(block)

	var pieces []string
	var current []string
	currentTokens := 0

	emit := func() {
		if len(current) > 0 {
			pieces = append(pieces, strings.Join(current, " "))
			current = nil
			currentTokens = 0
		}
	}

	for _, s := range sentences {
		n := c.counter.Count(s)
		if n > c.maxTokens {
			emit()
			pieces = append(pieces, c.splitWords(s)...)
			continue
		}
		if currentTokens+n > c.maxTokens {
			emit()
		}
		current = append(current, s)
		currentTokens += n
	}
	emit()

	return pieces
}

func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			end := i + 1
			// Consume closing quotes/parens attached to the terminator.
			for end < len(text) && (text[end] == '"' || text[end] == ')' || text[end] == '\'') {
				end++
			}
			if end >= len(text) || text[end] == ' ' || text[end] == '\n' {
				s := strings.TrimSpace(text[start:end])
				if s != "" {
					sentences = append(sentences, s)
				}
				start = end
				i = end - 1
			}
		}
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// splitWords is the last-resort cutter for pathological single-sentence runs.
func (c *Chunker) splitWords(s string) []string {
	words := strings.Fields(s)

	var pieces []string
	var current []string
	currentTokens := 0
	for _, w := range words {
		n := c.counter.Count(w)
		if currentTokens+n > c.maxTokens && len(current) > 0 {
			pieces = append(pieces, strings.Join(current, " "))
			current = nil
			currentTokens = 0
		}
		current = append(current, w)
		currentTokens += n
	}
	if len(current) > 0 {
		pieces = append(pieces, strings.Join(current, " "))
	}
	return pieces
}

// sectionPath tracks the heading stack while scanning blocks in order.
type sectionPath struct {
	titles []string
	levels []int
}

func newSectionPath() *sectionPath {
	return &sectionPath{}
}

func (p *sectionPath) enter(level int, title string) {
	for len(p.levels) > 0 && p.levels[len(p.levels)-1] >= level {
		p.levels = p.levels[:len(p.levels)-1]
		p.titles = p.titles[:len(p.titles)-1]
	}
	p.levels = append(p.levels, level)
	p.titles = append(p.titles, title)
}

func (p *sectionPath) String() string {
	return strings.Join(p.titles, " > ")
}
