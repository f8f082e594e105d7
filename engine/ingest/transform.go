package ingest

import (
	"strings"
	"unicode"

	"github.com/NyayaAI/nyaya-core/engine/domain"
)

const (
	// DefaultChunkSize is the target number of tokens per chunk.
	DefaultChunkSize = 256
	// DefaultOverlap is the number of overlapping tokens between
	// consecutive chunks of the same unit.
	DefaultOverlap = 30
)

// Chunk is one embeddable unit of a section. SubSection is empty for
// chunks of the main legal text.
type Chunk struct {
	Text       string `json:"text"`
	Index      int    `json:"index"`
	SubSection string `json:"sub_section,omitempty"`
}

// chunkSection splits a section into chunks. The main text and each
// sub-section are chunked independently: a chunk never spans a
// sub-section boundary, because mixing 103(1) and 103(2) text in one
// vector poisons both lookups.
func chunkSection(s domain.Section, chunkSize, overlap int) []Chunk {
	var out []Chunk

	idx := 0
	for _, c := range chunkUnit(s.LegalText, "", chunkSize, overlap) {
		c.Index = idx
		idx++
		out = append(out, c)
	}
	for _, ss := range s.SubSections {
		for _, c := range chunkUnit(ss.LegalText, ss.Label, chunkSize, overlap) {
			c.Index = idx
			idx++
			out = append(out, c)
		}
	}
	return out
}

func chunkUnit(text, subSection string, chunkSize, overlap int) []Chunk {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}

	var chunks []Chunk
	start := 0
	for start < len(sentences) {
		var buf strings.Builder
		tokens := 0
		end := start

		for end < len(sentences) {
			words := wordCount(sentences[end])
			if tokens+words > chunkSize && tokens > 0 {
				break
			}
			if buf.Len() > 0 {
				buf.WriteByte(' ')
			}
			buf.WriteString(sentences[end])
			tokens += words
			end++
		}

		chunks = append(chunks, Chunk{Text: buf.String(), SubSection: subSection})

		overlapTokens := 0
		newStart := end
		for newStart > start && overlapTokens < overlap {
			newStart--
			overlapTokens += wordCount(sentences[newStart])
		}
		if newStart == start || end == len(sentences) {
			start = end
		} else {
			start = newStart
		}
	}
	return chunks
}

// splitSentences breaks statute text on sentence punctuation and
// newlines. Clause markers like "(a)" do not end sentences.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if r == '.' || r == ';' || r == '\n' {
			if r == '\n' || i == len(text)-1 || (i+1 < len(text) && unicode.IsSpace(rune(text[i+1]))) {
				if s := strings.TrimSpace(current.String()); s != "" {
					sentences = append(sentences, s)
				}
				current.Reset()
			}
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
