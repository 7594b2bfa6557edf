package splitter

import (
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	DefaultChunkSize    = 2000
	DefaultChunkOverlap = 100
)

// markdownSeparators prefer headings and paragraphs, since extracted pages
// arrive as markdown.
var markdownSeparators = []string{"\n## ", "\n### ", "\n\n", "\n", ". ", " ", ""}

// TextSplitter cuts page content into prompt-sized chunks.
type TextSplitter struct {
	splitter textsplitter.TextSplitter
}

// NewRecursiveCharacterTextSplitter creates a recursive character splitter.
// A non-positive size falls back to DefaultChunkSize; an overlap that is not
// smaller than the size is dropped.
func NewRecursiveCharacterTextSplitter(chunkSize, chunkOverlap int) *TextSplitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	ts := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(chunkSize),
		textsplitter.WithChunkOverlap(chunkOverlap),
		textsplitter.WithSeparators(markdownSeparators),
	)
	return &TextSplitter{splitter: ts}
}

// SplitText splits text into chunks
func (ts *TextSplitter) SplitText(text string) ([]string, error) {
	return ts.splitter.SplitText(text)
}
