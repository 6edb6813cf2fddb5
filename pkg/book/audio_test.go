package book

import (
	"context"
	"errors"
	"testing"

	"inkwell/pkg/backend"
)

func TestParagraphAudioRenderedOncePerParagraph(t *testing.T) {
	voice := &fakeSpeaker{}
	b := newTestBook(t, &backend.Set{Voice: voice})
	appendChapters(t, b, "first paragraph\n\nsecond paragraph")

	c, _ := b.Chapter(1)
	ctx := context.Background()

	data, err := c.ParagraphAudio(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "mp3:first paragraph" {
		t.Fatalf("got %q", data)
	}
	if _, err := c.ParagraphAudio(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if len(voice.texts) != 1 {
		t.Fatalf("paragraph re-rendered, %d calls", len(voice.texts))
	}
}

func TestChapterAudioConcatenates(t *testing.T) {
	voice := &fakeSpeaker{}
	b := newTestBook(t, &backend.Set{Voice: voice})
	appendChapters(t, b, "one\n\ntwo")

	c, _ := b.Chapter(1)
	data, err := c.Audio(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "mp3:onemp3:two" {
		t.Fatalf("got %q", data)
	}
}

func TestChapterAudioRequestedParagraphs(t *testing.T) {
	voice := &fakeSpeaker{}
	b := newTestBook(t, &backend.Set{Voice: voice})
	appendChapters(t, b, "one\n\ntwo\n\nthree")

	c, _ := b.Chapter(1)
	data, err := c.Audio(context.Background(), []int{2, 0})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "mp3:threemp3:one" {
		t.Fatalf("got %q", data)
	}
	if len(voice.texts) != 2 {
		t.Fatalf("rendered %d paragraphs, want 2", len(voice.texts))
	}

	if _, err := c.Audio(context.Background(), []int{5}); !errors.Is(err, ErrBadPosition) {
		t.Fatalf("expected ErrBadPosition, got %v", err)
	}
}

func TestClearParagraphAudioRerenders(t *testing.T) {
	voice := &fakeSpeaker{}
	b := newTestBook(t, &backend.Set{Voice: voice})
	appendChapters(t, b, "one\n\ntwo")

	c, _ := b.Chapter(1)
	ctx := context.Background()
	if _, err := c.Audio(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if err := c.ClearParagraphAudio(0); err != nil {
		t.Fatal(err)
	}

	if _, err := c.ParagraphAudio(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ParagraphAudio(ctx, 1); err != nil {
		t.Fatal(err)
	}
	// Only the cleared paragraph was rendered again.
	if len(voice.texts) != 3 {
		t.Fatalf("rendered %d times, want 3", len(voice.texts))
	}

	if err := c.ClearParagraphAudio(9); !errors.Is(err, ErrBadPosition) {
		t.Fatalf("expected ErrBadPosition, got %v", err)
	}
}

func TestParagraphAudioOutOfRange(t *testing.T) {
	b := newTestBook(t, &backend.Set{Voice: &fakeSpeaker{}})
	appendChapters(t, b, "only one paragraph")

	c, _ := b.Chapter(1)
	if _, err := c.ParagraphAudio(context.Background(), 5); !errors.Is(err, ErrBadPosition) {
		t.Fatalf("expected ErrBadPosition, got %v", err)
	}
}

func TestSetContentClearsNarration(t *testing.T) {
	voice := &fakeSpeaker{}
	b := newTestBook(t, &backend.Set{Voice: voice})
	appendChapters(t, b, "original text")

	c, _ := b.Chapter(1)
	ctx := context.Background()
	if _, err := c.ParagraphAudio(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if err := c.SetContent("rewritten text"); err != nil {
		t.Fatal(err)
	}
	data, err := c.ParagraphAudio(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "mp3:rewritten text" {
		t.Fatalf("stale narration served: %q", data)
	}
	if len(voice.texts) != 2 {
		t.Fatalf("expected re-render after rewrite, %d calls", len(voice.texts))
	}
}

func TestAudioUnavailableWithoutVoice(t *testing.T) {
	b := newTestBook(t, &backend.Set{})
	appendChapters(t, b, "some text")

	c, _ := b.Chapter(1)
	if _, err := c.ParagraphAudio(context.Background(), 0); !errors.Is(err, backend.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
