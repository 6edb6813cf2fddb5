package importer

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

func TestSplitMarkdownByHeadings(t *testing.T) {
	doc := []byte(`# Chapter 1: The Storm

It was a dark and stormy night.

# Chapter 2: The Calm

The morning after was quiet.

More text here.
`)
	chapters := SplitMarkdown(doc)
	if len(chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(chapters))
	}
	if chapters[0].Name != "The Storm" {
		t.Fatalf("chapter 1 name: %q", chapters[0].Name)
	}
	if chapters[0].Content != "It was a dark and stormy night." {
		t.Fatalf("chapter 1 content: %q", chapters[0].Content)
	}
	if chapters[1].Name != "The Calm" {
		t.Fatalf("chapter 2 name: %q", chapters[1].Name)
	}
	if !strings.Contains(chapters[1].Content, "More text here.") {
		t.Fatalf("chapter 2 content truncated: %q", chapters[1].Content)
	}
}

func TestSplitMarkdownBareChapterHeading(t *testing.T) {
	doc := []byte("# Chapter 3\n\nSome text.\n")
	chapters := SplitMarkdown(doc)
	if len(chapters) != 1 {
		t.Fatalf("expected 1 chapter, got %d", len(chapters))
	}
	if chapters[0].Name != "" {
		t.Fatalf("bare chapter heading should have no name, got %q", chapters[0].Name)
	}
	if chapters[0].Content != "Some text." {
		t.Fatalf("content: %q", chapters[0].Content)
	}
}

func TestSplitMarkdownNoHeadings(t *testing.T) {
	chapters := SplitMarkdown([]byte("Just prose, no structure.\n"))
	if len(chapters) != 1 {
		t.Fatalf("expected 1 chapter, got %d", len(chapters))
	}
	if chapters[0].Name != "" || chapters[0].Content != "Just prose, no structure." {
		t.Fatalf("got %+v", chapters[0])
	}
}

func TestSplitMarkdownIgnoresSubheadings(t *testing.T) {
	doc := []byte("# One\n\ntext\n\n## Scene break\n\nmore text\n")
	chapters := SplitMarkdown(doc)
	if len(chapters) != 1 {
		t.Fatalf("subheading split the chapter: %d chapters", len(chapters))
	}
	if !strings.Contains(chapters[0].Content, "Scene break") {
		t.Fatalf("subheading lost: %q", chapters[0].Content)
	}
}

func TestReadRejectsUnknownFormat(t *testing.T) {
	if _, err := Read("draft.pdf", nil); err == nil {
		t.Fatal("unknown format accepted")
	}
}

func TestReadDocx(t *testing.T) {
	document := `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p>
      <w:pPr><w:pStyle w:val="Heading1"/></w:pPr>
      <w:r><w:t>Chapter 1: Arrival</w:t></w:r>
    </w:p>
    <w:p><w:r><w:t>The ship </w:t><w:t>landed at dawn.</w:t></w:r></w:p>
    <w:p>
      <w:pPr><w:pStyle w:val="Heading1"/></w:pPr>
      <w:r><w:t>Chapter 2: Departure</w:t></w:r>
    </w:p>
    <w:p><w:r><w:t>It left at dusk.</w:t></w:r></w:p>
  </w:body>
</w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte(document)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	chapters, err := Read("draft.docx", buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if len(chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(chapters))
	}
	if chapters[0].Name != "Arrival" {
		t.Fatalf("chapter 1 name: %q", chapters[0].Name)
	}
	if chapters[0].Content != "The ship landed at dawn." {
		t.Fatalf("chapter 1 content: %q", chapters[0].Content)
	}
	if chapters[1].Name != "Departure" || chapters[1].Content != "It left at dusk." {
		t.Fatalf("chapter 2: %+v", chapters[1])
	}
}
