package ingestion

import (
	"strings"
	"unicode"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

// Chunk is a piece of a document together with the heading of the section
// it came from. Heading is empty for text before the first heading.
type Chunk struct {
	Heading string
	Text    string
}

type section struct {
	heading    string
	paragraphs []string
}

// ChunkSections splits content at ATX headings and packs each section's
// paragraphs into chunks of at most target bytes. Paragraphs longer than
// target are cut at word boundaries. Consecutive chunks of one section
// share up to overlap trailing bytes; chunks never span two sections.
func ChunkSections(content string, target, overlap int) []Chunk {
	if target <= 0 {
		target = defaultChunkSize
	}
	if overlap < 0 || overlap+2 >= target {
		overlap = 0
	}

	chunks := make([]Chunk, 0)
	for _, sec := range splitSections(content) {
		for _, text := range packParagraphs(sec.paragraphs, target, overlap) {
			chunks = append(chunks, Chunk{Heading: sec.heading, Text: text})
		}
	}
	return chunks
}

func splitSections(content string) []section {
	content = strings.ReplaceAll(content, "\r\n", "\n")

	sections := make([]section, 0)
	current := section{}
	var para []string
	inFence := false

	flushPara := func() {
		if p := strings.TrimSpace(strings.Join(para, "\n")); p != "" {
			current.paragraphs = append(current.paragraphs, p)
		}
		para = para[:0]
	}
	flushSection := func() {
		flushPara()
		if len(current.paragraphs) > 0 {
			sections = append(sections, current)
		}
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			para = append(para, line)
			continue
		}
		if inFence {
			para = append(para, line)
			continue
		}
		if heading, ok := atxHeading(trimmed); ok {
			flushSection()
			current = section{heading: heading, paragraphs: []string{trimmed}}
			continue
		}
		if trimmed == "" {
			flushPara()
			continue
		}
		para = append(para, line)
	}
	flushSection()

	return sections
}

// atxHeading reports the text of a "# Title" style line.
func atxHeading(line string) (string, bool) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return "", false
	}
	rest := line[level:]
	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return "", false
	}
	title := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(rest), "#"))
	if title == "" {
		return "", false
	}
	return title, true
}

func packParagraphs(paragraphs []string, target, overlap int) []string {
	limit := target
	if overlap > 0 {
		limit = target - overlap - 2
	}
	pieces := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		pieces = append(pieces, splitLong(p, limit)...)
	}

	chunks := make([]string, 0)
	var b strings.Builder
	for _, piece := range pieces {
		if b.Len() > 0 && b.Len()+2+len(piece) > target {
			done := b.String()
			chunks = append(chunks, done)
			b.Reset()
			if tail := overlapTail(done, overlap); tail != "" {
				b.WriteString(tail)
			}
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(piece)
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}

// splitLong cuts text into pieces of at most limit bytes at whitespace.
// A single word longer than limit is kept whole.
func splitLong(text string, limit int) []string {
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}

	out := make([]string, 0, len(text)/limit+1)
	var b strings.Builder
	for _, word := range strings.Fields(text) {
		if b.Len() > 0 && b.Len()+1+len(word) > limit {
			out = append(out, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(word)
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

// overlapTail returns at most n trailing bytes of text, starting on a word.
func overlapTail(text string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(text) <= n {
		return text
	}
	start := len(text) - n
	tail := text[start:]
	if unicode.IsSpace(rune(text[start-1])) {
		return strings.TrimSpace(tail)
	}
	if i := strings.IndexFunc(tail, unicode.IsSpace); i >= 0 {
		return strings.TrimSpace(tail[i:])
	}
	return ""
}
