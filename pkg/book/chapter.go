package book

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/segmentio/ksuid"

	"inkwell/pkg/schema"
	"inkwell/pkg/utils"
)

// Chapter is a positional view into a book. Loaded fields are cached
// until the book's structure changes or the content is rewritten.
type Chapter struct {
	book   *Book
	Number int

	mu            sync.Mutex
	name          *string
	content       *string
	summary       *string
	characters    []string
	charsLoaded   bool
	techEval      *schema.ChapterEval
	entEval       *schema.ChapterEval
	charSummaries map[string]string
	charDescs     map[string]string
}

func newChapter(b *Book, n int) *Chapter {
	return &Chapter{
		book:          b,
		Number:        n,
		charSummaries: make(map[string]string),
		charDescs:     make(map[string]string),
	}
}

func (c *Chapter) Name() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.name != nil {
		return *c.name, nil
	}
	name, err := c.book.store.LoadChapterName(c.book.Title, c.Number)
	if errors.Is(err, fs.ErrNotExist) {
		name, err = "", nil
	}
	if err != nil {
		return "", err
	}
	c.name = &name
	return name, nil
}

func (c *Chapter) SetName(name string) error {
	if err := c.book.store.SaveChapterName(c.book.Title, c.Number, name); err != nil {
		return err
	}
	c.mu.Lock()
	c.name = &name
	c.mu.Unlock()
	return nil
}

func (c *Chapter) Content() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.content != nil {
		return *c.content, nil
	}
	content, err := c.book.store.LoadContent(c.book.Title, c.Number)
	if errors.Is(err, fs.ErrNotExist) {
		content, err = "", nil
	}
	if err != nil {
		return "", err
	}
	c.content = &content
	return content, nil
}

// SetContent replaces the chapter text and drops everything derived
// from the old text: summary, evaluations, rendered narration.
func (c *Chapter) SetContent(content string) error {
	if err := c.book.store.SaveContent(c.book.Title, c.Number, content); err != nil {
		return err
	}
	if err := c.book.store.ClearAudio(c.book.Title, c.Number); err != nil {
		return err
	}
	if err := c.book.store.DeleteDerived(c.book.Title, c.Number); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content = &content
	c.summary = nil
	c.techEval = nil
	c.entEval = nil
	clear(c.charSummaries)
	clear(c.charDescs)
	return nil
}

// storedCharacters returns the persisted character list without
// consulting the extraction backend.
func (c *Chapter) storedCharacters() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.charsLoaded {
		return c.characters, nil
	}
	names, err := c.book.store.LoadChapterCharacters(c.book.Title, c.Number)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.characters = names
	c.charsLoaded = true
	return names, nil
}

// Characters returns the chapter's character list, extracting it from
// the content on first use. A reply that is not a JSON string array is
// logged and treated as no characters rather than failing the chapter.
func (c *Chapter) Characters(ctx context.Context) ([]string, error) {
	stored, err := c.storedCharacters()
	if err != nil {
		return nil, err
	}
	if stored != nil {
		return stored, nil
	}

	content, err := c.Content()
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, nil
	}

	known, err := c.book.CharacterNames()
	if err != nil {
		return nil, err
	}

	reply, err := c.book.backends.ContentText().Complete(ctx, extractCharactersPrompt(content, known))
	if err != nil {
		return nil, err
	}

	var names []string
	cleaned := utils.CleanJSON(utils.StripThink(reply))
	if err := json.Unmarshal([]byte(cleaned), &names); err != nil {
		log.Warn("character extraction returned malformed list",
			"book", c.book.Title, "chapter", c.Number, "reply", utils.LimitStr(cleaned, 120), "err", err)
		names = nil
	}

	if err := c.setCharacters(names); err != nil {
		return nil, err
	}
	return names, nil
}

func (c *Chapter) setCharacters(names []string) error {
	if err := c.book.store.SaveChapterCharacters(c.book.Title, c.Number, names); err != nil {
		return err
	}
	c.mu.Lock()
	c.characters = names
	c.charsLoaded = true
	c.mu.Unlock()
	return nil
}

// AddCharacter appends a name to the chapter's list if absent.
func (c *Chapter) AddCharacter(name string) error {
	stored, err := c.storedCharacters()
	if err != nil {
		return err
	}
	for _, existing := range stored {
		if existing == name {
			return nil
		}
	}
	return c.setCharacters(append(stored, name))
}

// RemoveCharacter drops a name from this chapter's list. When that was
// the character's last appearance, the character's global files go too.
func (c *Chapter) RemoveCharacter(name string) error {
	if err := c.book.store.RemoveChapterCharacter(c.book.Title, c.Number, name); err != nil {
		return err
	}
	c.mu.Lock()
	kept := c.characters[:0]
	for _, existing := range c.characters {
		if existing != name {
			kept = append(kept, existing)
		}
	}
	c.characters = kept
	delete(c.charSummaries, name)
	delete(c.charDescs, name)
	c.mu.Unlock()

	refs, err := c.book.Character(name).References()
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return c.book.store.RemoveCharacter(c.book.Title, name)
	}
	return nil
}

// Paragraphs splits the content on blank lines. Narration is rendered
// and cached per paragraph.
func (c *Chapter) Paragraphs() ([]string, error) {
	content, err := c.Content()
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, nil
	}
	var paragraphs []string
	for _, p := range strings.Split(content, "\n\n") {
		if strings.TrimSpace(p) != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs, nil
}

// ParagraphAudio returns the narration for one paragraph, rendering it
// on first use.
func (c *Chapter) ParagraphAudio(ctx context.Context, p int) ([]byte, error) {
	paragraphs, err := c.Paragraphs()
	if err != nil {
		return nil, err
	}
	if p < 0 || p >= len(paragraphs) {
		return nil, fmt.Errorf("paragraph %d of %d: %w", p, len(paragraphs), ErrBadPosition)
	}

	cached, err := c.book.store.LoadParagraphAudio(c.book.Title, c.Number, p)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	data, err := c.book.backends.Speaker().Speech(ctx, paragraphs[p])
	if err != nil {
		return nil, err
	}
	if err := c.book.store.SaveParagraphAudio(c.book.Title, c.Number, p, data); err != nil {
		return nil, err
	}
	log.Info("paragraph narrated", "book", c.book.Title, "chapter", c.Number, "paragraph", p, "bytes", len(data))
	return data, nil
}

// ClearParagraphAudio drops one paragraph's rendered narration so the
// next request re-renders it.
func (c *Chapter) ClearParagraphAudio(p int) error {
	paragraphs, err := c.Paragraphs()
	if err != nil {
		return err
	}
	if p < 0 || p >= len(paragraphs) {
		return fmt.Errorf("paragraph %d of %d: %w", p, len(paragraphs), ErrBadPosition)
	}
	return c.book.store.ClearParagraphAudio(c.book.Title, c.Number, p)
}

// Audio concatenates narration for the requested paragraphs, in the
// order given. With no paragraphs it covers the whole chapter.
func (c *Chapter) Audio(ctx context.Context, requested []int) ([]byte, error) {
	if len(requested) == 0 {
		paragraphs, err := c.Paragraphs()
		if err != nil {
			return nil, err
		}
		for p := range paragraphs {
			requested = append(requested, p)
		}
	}
	var out []byte
	for _, p := range requested {
		data, err := c.ParagraphAudio(ctx, p)
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
	}
	return out, nil
}

// Edit rewrites a selection of the chapter with the model, applying the
// book's writing style as rules, and records the attempt in the edit
// history. The caller decides whether to accept the result.
func (c *Chapter) Edit(ctx context.Context, prompt, selection string) (string, []utils.WordDelta, error) {
	rules, err := c.book.WritingStyle()
	if err != nil {
		return "", nil, err
	}

	reply, err := c.book.backends.ContentText().Complete(ctx, editPrompt(prompt, rules, selection))
	if err != nil {
		return "", nil, err
	}
	result := strings.TrimSpace(utils.StripThink(reply))

	entry := schema.EditHistoryEntry{
		ID:        ksuid.New().String(),
		Prompt:    prompt,
		Rules:     rules,
		Original:  selection,
		Result:    result,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if err := c.book.store.AppendEdit(c.book.Title, c.Number, entry); err != nil {
		return "", nil, err
	}

	return result, utils.DiffWords(selection, result), nil
}

// Edits returns the chapter's recorded edit history.
func (c *Chapter) Edits() ([]schema.EditHistoryEntry, error) {
	return c.book.store.LoadEdits(c.book.Title, c.Number)
}
