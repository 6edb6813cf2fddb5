// Package importer turns uploaded manuscripts into chapters. Markdown
// splits on top-level headings; Word documents are flattened to
// Markdown first so both formats share one splitter.
package importer

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Chapter is one imported chapter, before it is added to a book.
type Chapter struct {
	Name    string
	Content string
}

// Read parses an uploaded file by extension. Supported: .md, .markdown,
// .txt (treated as Markdown) and .docx.
func Read(name string, data []byte) ([]Chapter, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown", ".txt":
		return SplitMarkdown(data), nil
	case ".docx":
		md, err := docxToMarkdown(data)
		if err != nil {
			return nil, err
		}
		return SplitMarkdown(md), nil
	default:
		return nil, fmt.Errorf("import %q: unsupported format", name)
	}
}

var chapterPrefix = regexp.MustCompile(`(?i)^chapter\b\s*\d*\s*:?\s*`)

// SplitMarkdown cuts a document at every level-1 heading. A document
// with no headings becomes a single unnamed chapter.
func SplitMarkdown(data []byte) []Chapter {
	doc := goldmark.New().Parser().Parse(text.NewReader(data))

	var offsets []int
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		heading, ok := n.(*ast.Heading)
		if !ok || heading.Level != 1 || heading.Lines().Len() == 0 {
			continue
		}
		start := heading.Lines().At(0).Start
		// Back up to the start of the heading line, past the "#".
		for start > 0 && data[start-1] != '\n' {
			start--
		}
		offsets = append(offsets, start)
	}

	if len(offsets) == 0 {
		content := strings.TrimSpace(string(data))
		if content == "" {
			return nil
		}
		return []Chapter{{Content: content}}
	}

	var chapters []Chapter
	for i, start := range offsets {
		end := len(data)
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		chunk := strings.TrimSpace(string(data[start:end]))
		name, content, _ := strings.Cut(chunk, "\n")
		chapters = append(chapters, Chapter{
			Name:    chapterName(name),
			Content: strings.TrimSpace(content),
		})
	}
	return chapters
}

// chapterName strips heading markers and a "Chapter N:" prefix. A
// heading that is only "Chapter N" yields an empty name.
func chapterName(heading string) string {
	name := strings.TrimSpace(strings.TrimLeft(heading, "#"))
	return strings.TrimSpace(chapterPrefix.ReplaceAllString(name, ""))
}

type docxDocument struct {
	Body struct {
		Paragraphs []docxParagraph `xml:"p"`
	} `xml:"body"`
}

type docxParagraph struct {
	Props struct {
		Style struct {
			Val string `xml:"val,attr"`
		} `xml:"pStyle"`
	} `xml:"pPr"`
	Runs []struct {
		Text []string `xml:"t"`
	} `xml:"r"`
}

func (p docxParagraph) text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		for _, t := range r.Text {
			b.WriteString(t)
		}
	}
	return b.String()
}

func (p docxParagraph) heading() bool {
	style := p.Props.Style.Val
	return strings.HasPrefix(style, "Heading") || style == "Title"
}

// docxToMarkdown extracts the main document part and renders headings
// as level-1 Markdown headings.
func docxToMarkdown(data []byte) ([]byte, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("import docx: %w", err)
	}

	part, err := archive.Open("word/document.xml")
	if err != nil {
		return nil, fmt.Errorf("import docx: missing document part: %w", err)
	}
	defer part.Close()

	raw, err := io.ReadAll(part)
	if err != nil {
		return nil, fmt.Errorf("import docx: %w", err)
	}

	var doc docxDocument
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("import docx: %w", err)
	}

	var b bytes.Buffer
	for _, p := range doc.Body.Paragraphs {
		line := strings.TrimSpace(p.text())
		if line == "" {
			continue
		}
		if p.heading() {
			b.WriteString("# ")
		}
		b.WriteString(line)
		b.WriteString("\n\n")
	}
	return b.Bytes(), nil
}
