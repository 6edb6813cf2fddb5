package book

import (
	"context"
	"strings"
	"testing"

	"inkwell/pkg/backend"
)

func addCharacter(t *testing.T, b *Book, n int, name string) {
	t.Helper()
	c, err := b.Chapter(n)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.AddCharacter(name); err != nil {
		t.Fatal(err)
	}
}

func TestCharacterSummaryNoAppearance(t *testing.T) {
	text := &fakeText{budget: 100, converse: func([]backend.Message, float64) (string, error) {
		return "should not be called", nil
	}}
	b := newTestBook(t, &backend.Set{Content: text})
	appendChapters(t, b, "chapter one text", "chapter two text")

	summary, err := b.Character("Ghost").Summary(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if summary != "" {
		t.Fatalf("expected empty summary, got %q", summary)
	}
	if text.calls() != 0 {
		t.Fatalf("backend called %d times for unseen character", text.calls())
	}

	// The empty result is cached like any other.
	cached, err := b.store.LoadCharacterSummary(b.Title, 2, "Ghost")
	if err != nil {
		t.Fatal(err)
	}
	if cached != "" {
		t.Fatalf("unexpected cached summary %q", cached)
	}
}

func TestCharacterSummaryBackfillsAscending(t *testing.T) {
	text := &fakeText{budget: 100, converse: func(messages []backend.Message, temperature float64) (string, error) {
		if temperature != 0.0 {
			t.Fatalf("character summaries must run at temperature 0, got %v", temperature)
		}
		if strings.Contains(messages[0].Content, "first time") {
			return "Alice is introduced in the opening", nil
		}
		return "Alice has grown since the opening", nil
	}}
	b := newTestBook(t, &backend.Set{Content: text})
	appendChapters(t, b, "alice at the tea party", "a chapter without her", "alice down the rabbit hole")
	addCharacter(t, b, 1, "Alice")
	addCharacter(t, b, 3, "Alice")

	summary, err := b.Character("Alice").Summary(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if summary != "Alice has grown since the opening" {
		t.Fatalf("got %q", summary)
	}

	if len(text.conversations) != 2 {
		t.Fatalf("expected 2 conversations (chapter 1 then 3), got %d", len(text.conversations))
	}
	// Chapter 1 uses the first-appearance framing and chapter 1 content.
	if !strings.Contains(text.conversations[0][0].Content, "first time") {
		t.Fatalf("chapter 1 framing wrong: %q", text.conversations[0][0].Content)
	}
	if !strings.Contains(text.conversations[0][2].Content, "tea party") {
		t.Fatalf("chapter 1 content missing: %q", text.conversations[0][2].Content)
	}
	// Chapter 3 carries chapter 1's summary forward.
	if !strings.Contains(text.conversations[1][0].Content, "Alice is introduced in the opening") {
		t.Fatalf("prior summary not carried: %q", text.conversations[1][0].Content)
	}
	if !strings.Contains(text.conversations[1][2].Content, "rabbit hole") {
		t.Fatalf("chapter 3 content missing: %q", text.conversations[1][2].Content)
	}

	// Chapter 1's intermediate summary was persisted during backfill.
	intermediate, err := b.store.LoadCharacterSummary(b.Title, 1, "Alice")
	if err != nil {
		t.Fatal(err)
	}
	if intermediate != "Alice is introduced in the opening" {
		t.Fatalf("got %q", intermediate)
	}
}

func TestCharacterSummaryBetweenAppearances(t *testing.T) {
	text := &fakeText{budget: 100, converse: func([]backend.Message, float64) (string, error) {
		return "what is known after chapter one", nil
	}}
	b := newTestBook(t, &backend.Set{Content: text})
	appendChapters(t, b, "alice appears", "alice is absent")
	addCharacter(t, b, 1, "Alice")

	summary, err := b.Character("Alice").Summary(context.Background(), 2)
	if err != nil {
		t.Fatal(err)
	}
	if summary != "what is known after chapter one" {
		t.Fatalf("got %q", summary)
	}
	if len(text.conversations) != 1 {
		t.Fatalf("expected 1 conversation, got %d", len(text.conversations))
	}
}

func TestCharacterSummaryCached(t *testing.T) {
	text := &fakeText{budget: 100, converse: func([]backend.Message, float64) (string, error) {
		return "the summary", nil
	}}
	b := newTestBook(t, &backend.Set{Content: text})
	appendChapters(t, b, "alice appears")
	addCharacter(t, b, 1, "Alice")

	ctx := context.Background()
	if _, err := b.Character("Alice").Summary(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Character("Alice").Summary(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if len(text.conversations) != 1 {
		t.Fatalf("summary recomputed, %d conversations", len(text.conversations))
	}
}

func TestCharacterExtractionMalformedListTreatedAsEmpty(t *testing.T) {
	text := &fakeText{budget: 100, complete: func(string) (string, error) {
		return "I could not find any characters, sorry!", nil
	}}
	b := newTestBook(t, &backend.Set{Content: text})
	appendChapters(t, b, "a crowd scene")

	c, _ := b.Chapter(1)
	names, err := c.Characters(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 {
		t.Fatalf("expected no characters, got %v", names)
	}
}

func TestCharacterExtractionParsesFencedArray(t *testing.T) {
	text := &fakeText{budget: 100, complete: func(prompt string) (string, error) {
		if !strings.Contains(prompt, "crowd scene") {
			t.Fatalf("content missing from extraction prompt")
		}
		return "```json\n[\"Alice\", \"Bob\"]\n```", nil
	}}
	b := newTestBook(t, &backend.Set{Content: text})
	appendChapters(t, b, "a crowd scene")

	c, _ := b.Chapter(1)
	names, err := c.Characters(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "Alice" || names[1] != "Bob" {
		t.Fatalf("got %v", names)
	}

	// Second call serves the persisted list.
	if _, err := c.Characters(context.Background()); err != nil {
		t.Fatal(err)
	}
	if text.calls() != 1 {
		t.Fatalf("extraction re-ran, %d calls", text.calls())
	}
}

func TestCharacterRenameMigratesSummaries(t *testing.T) {
	text := &fakeText{budget: 100, converse: func([]backend.Message, float64) (string, error) {
		return "the summary", nil
	}}
	b := newTestBook(t, &backend.Set{Content: text})
	appendChapters(t, b, "alice appears")
	addCharacter(t, b, 1, "Alice")

	ctx := context.Background()
	if _, err := b.Character("Alice").Summary(ctx, 1); err != nil {
		t.Fatal(err)
	}
	if err := b.Character("Alice").Rename("Alyssa"); err != nil {
		t.Fatal(err)
	}

	summary, err := b.Character("Alyssa").Summary(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if summary != "the summary" {
		t.Fatalf("got %q", summary)
	}
	if len(text.conversations) != 1 {
		t.Fatalf("summary recomputed after rename, %d conversations", len(text.conversations))
	}
}

func TestRemoveCharacterFromSingleChapter(t *testing.T) {
	b := newTestBook(t, &backend.Set{})
	appendChapters(t, b, "one", "two")
	addCharacter(t, b, 1, "Alice")
	addCharacter(t, b, 2, "Alice")
	if err := b.Character("Alice").SetDescription("curious"); err != nil {
		t.Fatal(err)
	}

	c1, _ := b.Chapter(1)
	if err := c1.RemoveCharacter("Alice"); err != nil {
		t.Fatal(err)
	}

	names, err := c1.storedCharacters()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 {
		t.Fatalf("chapter 1 still lists %v", names)
	}

	c2, _ := b.Chapter(2)
	names, err = c2.storedCharacters()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "Alice" {
		t.Fatalf("chapter 2 list damaged: %v", names)
	}

	desc, err := b.Character("Alice").Description()
	if err != nil {
		t.Fatal(err)
	}
	if desc != "curious" {
		t.Fatalf("global description lost: %q", desc)
	}
}

func TestRemoveCharacterLastReferencePurges(t *testing.T) {
	b := newTestBook(t, &backend.Set{})
	appendChapters(t, b, "alice alone")
	addCharacter(t, b, 1, "Alice")
	if err := b.Character("Alice").SetDescription("curious"); err != nil {
		t.Fatal(err)
	}

	c, _ := b.Chapter(1)
	if err := c.RemoveCharacter("Alice"); err != nil {
		t.Fatal(err)
	}

	names, err := b.CharacterNames()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 {
		t.Fatalf("character survived its last reference: %v", names)
	}
	desc, err := b.Character("Alice").Description()
	if err != nil {
		t.Fatal(err)
	}
	if desc != "" {
		t.Fatalf("global files survived last reference: %q", desc)
	}
}

func TestChapterDescriptionBackfillsAscending(t *testing.T) {
	text := &fakeText{budget: 100, converse: func(messages []backend.Message, temperature float64) (string, error) {
		if temperature != 0.0 {
			t.Fatalf("character descriptions must run at temperature 0, got %v", temperature)
		}
		if strings.Contains(messages[0].Content, "first time") {
			return "Alice wears a blue dress", nil
		}
		return "Alice's dress is torn from the fall", nil
	}}
	b := newTestBook(t, &backend.Set{Content: text})
	appendChapters(t, b, "alice at the tea party", "a quiet chapter", "alice down the rabbit hole")
	addCharacter(t, b, 1, "Alice")
	addCharacter(t, b, 3, "Alice")

	desc, err := b.Character("Alice").ChapterDescription(context.Background(), 3)
	if err != nil {
		t.Fatal(err)
	}
	if desc != "Alice's dress is torn from the fall" {
		t.Fatalf("got %q", desc)
	}

	if len(text.conversations) != 2 {
		t.Fatalf("expected 2 conversations (chapter 1 then 3), got %d", len(text.conversations))
	}
	if !strings.Contains(text.conversations[0][2].Content, "tea party") {
		t.Fatalf("chapter 1 content missing: %q", text.conversations[0][2].Content)
	}
	// Chapter 3 carries chapter 1's description forward.
	if !strings.Contains(text.conversations[1][0].Content, "described so far") {
		t.Fatalf("chapter 3 framing wrong: %q", text.conversations[1][0].Content)
	}
	if !strings.Contains(text.conversations[1][0].Content, "blue dress") {
		t.Fatalf("prior description not carried: %q", text.conversations[1][0].Content)
	}

	intermediate, err := b.store.LoadChapterCharacterDescription(b.Title, 1, "Alice")
	if err != nil {
		t.Fatal(err)
	}
	if intermediate != "Alice wears a blue dress" {
		t.Fatalf("got %q", intermediate)
	}
}

func TestChapterDescriptionManualOverride(t *testing.T) {
	text := &fakeText{budget: 100, converse: func([]backend.Message, float64) (string, error) {
		return "derived description", nil
	}}
	b := newTestBook(t, &backend.Set{Content: text})
	appendChapters(t, b, "alice appears")
	addCharacter(t, b, 1, "Alice")

	alice := b.Character("Alice")
	if err := alice.SetChapterDescription(1, "the author says she is tall"); err != nil {
		t.Fatal(err)
	}
	desc, err := alice.ChapterDescription(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if desc != "the author says she is tall" {
		t.Fatalf("override ignored: %q", desc)
	}
	if text.calls() != 0 {
		t.Fatalf("backend called %d times despite override", text.calls())
	}
}

func TestCharacterVisualPersistedUntilDescriptionChanges(t *testing.T) {
	text := &fakeText{budget: 100, complete: func(prompt string) (string, error) {
		if strings.Contains(prompt, "red cloak") {
			return "a figure in a red cloak", nil
		}
		return "a figure in a grey coat", nil
	}}
	b := newTestBook(t, &backend.Set{Content: text})

	alice := b.Character("Alice")
	if err := alice.SetDescription("she wears a grey coat"); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	visual, err := alice.Visual(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if visual != "a figure in a grey coat" {
		t.Fatalf("got %q", visual)
	}
	if _, err := alice.Visual(ctx); err != nil {
		t.Fatal(err)
	}
	if text.calls() != 1 {
		t.Fatalf("visual re-derived, %d calls", text.calls())
	}
	stored, err := b.store.LoadCharacterVisual(b.Title, "Alice")
	if err != nil {
		t.Fatal(err)
	}
	if stored != visual {
		t.Fatalf("visual not persisted: %q", stored)
	}

	if err := alice.SetDescription("she wears a red cloak"); err != nil {
		t.Fatal(err)
	}
	visual, err = alice.Visual(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if visual != "a figure in a red cloak" {
		t.Fatalf("stale visual survived description change: %q", visual)
	}
}

func TestCharacterExtractionMatchesKnownNames(t *testing.T) {
	text := &fakeText{budget: 100, complete: func(prompt string) (string, error) {
		if !strings.Contains(prompt, "The known characters are: Alice Liddell.") {
			t.Fatalf("known characters missing from prompt: %q", prompt)
		}
		if !strings.Contains(prompt, "use the known character's name") {
			t.Fatalf("partial-match instruction missing: %q", prompt)
		}
		return `["Alice Liddell"]`, nil
	}}
	b := newTestBook(t, &backend.Set{Content: text})
	if err := b.Character("Alice Liddell").SetDescription("curious"); err != nil {
		t.Fatal(err)
	}
	appendChapters(t, b, "alice joins the tea party")

	c, _ := b.Chapter(1)
	names, err := c.Characters(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "Alice Liddell" {
		t.Fatalf("got %v", names)
	}
}

func TestCharacterRenameNoop(t *testing.T) {
	b := newTestBook(t, &backend.Set{})
	appendChapters(t, b, "alice appears")
	addCharacter(t, b, 1, "Alice")
	alice := b.Character("Alice")
	if err := alice.SetDescription("curious"); err != nil {
		t.Fatal(err)
	}

	if err := alice.Rename(""); err != nil {
		t.Fatal(err)
	}
	if err := alice.Rename("Alice"); err != nil {
		t.Fatal(err)
	}
	if alice.Name != "Alice" {
		t.Fatalf("name changed to %q", alice.Name)
	}
	desc, err := b.Character("Alice").Description()
	if err != nil {
		t.Fatal(err)
	}
	if desc != "curious" {
		t.Fatalf("description lost: %q", desc)
	}
}

func TestCharacterExpertiseDerivedOnce(t *testing.T) {
	text := &fakeText{budget: 100, complete: func(prompt string) (string, error) {
		if !strings.Contains(prompt, "master of disguise") {
			t.Fatalf("description missing from expertise prompt")
		}
		return "- disguise\n- lockpicking", nil
	}}
	b := newTestBook(t, &backend.Set{Content: text})

	alice := b.Character("Alice")
	if err := alice.SetDescription("a master of disguise"); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	expertise, err := alice.Expertise(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if expertise != "- disguise\n- lockpicking" {
		t.Fatalf("got %q", expertise)
	}
	if _, err := alice.Expertise(ctx); err != nil {
		t.Fatal(err)
	}
	if text.calls() != 1 {
		t.Fatalf("expertise re-derived, %d calls", text.calls())
	}
}
