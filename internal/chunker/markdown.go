package chunker

import (
	"log"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownChunker renders markdown to plain text, cuts it into sections at
// headings and windows every section like TextChunker. Sequence indices run
// across the whole document.
type MarkdownChunker struct {
	text *TextChunker
}

// NewMarkdownChunker validates config and returns a markdown chunker.
func NewMarkdownChunker(config Config) (*MarkdownChunker, error) {
	tc, err := NewTextChunker(config)
	if err != nil {
		return nil, err
	}
	return &MarkdownChunker{text: tc}, nil
}

func (m *MarkdownChunker) Name() string {
	return "markdown"
}

// DocumentStructure counts headings per level and paragraphs.
type DocumentStructure struct {
	HeadingCounts   map[int]int
	TotalParagraphs int
}

// section is a heading title plus the plain text below it.
type section struct {
	Title string
	Text  string
}

func (m *MarkdownChunker) Chunk(content, source string) ([]Chunk, error) {
	src := []byte(content)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	structure := analyzeStructure(doc)
	level := selectLevel(structure)
	log.Printf("📊 [%s] %s: headings=%v, paragraphs=%d, split level=%d",
		m.Name(), source, structure.HeadingCounts, structure.TotalParagraphs, level)

	var chunks []Chunk
	offset := 0
	for _, sec := range splitSections(doc, src, level) {
		runes := []rune(sec.Text)
		chunks = append(chunks, m.text.chunkRunes(runes, source, sec.Title, len(chunks), offset)...)
		offset += len(runes)
	}
	for i := range chunks {
		chunks[i].Metadata["method"] = m.Name()
	}

	log.Printf("✅ [%s] %s: created %d chunks", m.Name(), source, len(chunks))
	return chunks, nil
}

// analyzeStructure counts headings per level and paragraphs.
func analyzeStructure(doc ast.Node) DocumentStructure {
	structure := DocumentStructure{HeadingCounts: make(map[int]int)}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			structure.HeadingCounts[node.Level]++
		case *ast.Paragraph:
			structure.TotalParagraphs++
		}
		return ast.WalkContinue, nil
	})

	return structure
}

// selectLevel picks the deepest-enough heading level to split on: the first
// of H1..H4 with enough headings, or any heading at all as a last resort.
// Zero means the document has no headings and stays one section.
func selectLevel(structure DocumentStructure) int {
	minHeadings := map[int]int{1: 2, 2: 3, 3: 5, 4: 10}
	for level := 1; level <= 4; level++ {
		if structure.HeadingCounts[level] >= minHeadings[level] {
			return level
		}
	}
	for level := 1; level <= 6; level++ {
		if structure.HeadingCounts[level] > 0 {
			return level
		}
	}
	return 0
}

// splitSections renders the document to plain text, starting a new section
// at every heading of level <= targetLevel. Deeper headings stay inline.
func splitSections(doc ast.Node, src []byte, targetLevel int) []section {
	var sections []section
	var current strings.Builder
	var title string

	flush := func() {
		body := strings.TrimSpace(current.String())
		if body != "" {
			sections = append(sections, section{Title: title, Text: body})
		}
		current.Reset()
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			switch n.(type) {
			case *ast.Paragraph:
				current.WriteString("\n\n")
			case *ast.TextBlock:
				current.WriteString("\n")
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			headingText := extractText(node, src)
			if targetLevel > 0 && node.Level <= targetLevel {
				flush()
				title = headingText
			}
			current.WriteString(headingText + "\n\n")
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			current.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				current.WriteString("\n")
			}
		case *ast.String:
			current.Write(node.Value)
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				current.Write(seg.Value(src))
			}
			current.WriteString("\n")
		}
		return ast.WalkContinue, nil
	})
	flush()

	return sections
}

// extractText collects the text of a node and its inline descendants.
func extractText(node ast.Node, src []byte) string {
	var buf strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch c := child.(type) {
		case *ast.Text:
			buf.Write(c.Segment.Value(src))
		case *ast.String:
			buf.Write(c.Value)
		default:
			buf.WriteString(extractText(child, src))
		}
	}
	return buf.String()
}
