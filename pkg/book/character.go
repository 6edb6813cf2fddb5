package book

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"strings"

	_ "image/jpeg"
	_ "image/png"

	"github.com/charmbracelet/log"
	"github.com/gen2brain/webp"

	"inkwell/pkg/backend"
	"inkwell/pkg/utils"
)

// Character is a view over one named character of a book.
type Character struct {
	book *Book
	Name string
}

// References lists the chapters (ascending) whose character list
// includes this character. Only persisted lists are consulted.
func (ch *Character) References() ([]int, error) {
	numbers, err := ch.book.Numbers()
	if err != nil {
		return nil, err
	}
	var refs []int
	for _, n := range numbers {
		c, err := ch.book.Chapter(n)
		if err != nil {
			return nil, err
		}
		names, err := c.storedCharacters()
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			if name == ch.Name {
				refs = append(refs, n)
				break
			}
		}
	}
	return refs, nil
}

// Summary returns everything known about the character after the given
// chapter. Knowledge accumulates over the character's appearances: each
// appearance folds that chapter's content into the summary of the
// previous appearance, so asking at chapter K first fills in every
// earlier appearance in order. A character with no appearance up to K
// has an empty summary, which is cached like any other.
func (ch *Character) Summary(ctx context.Context, upTo int) (string, error) {
	return ch.accumulate(ctx, upTo, ch.cachedSummary, ch.cacheSummary, ch.summarizeAppearance)
}

// ChapterDescription returns how the character presents as of the given
// chapter, built the same way as Summary: each appearance folds the
// chapter into the description carried from the previous one. A
// description written with SetChapterDescription takes precedence.
func (ch *Character) ChapterDescription(ctx context.Context, upTo int) (string, error) {
	return ch.accumulate(ctx, upTo, ch.cachedDescription, ch.cacheDescription, ch.describeAppearance)
}

// accumulate walks the character's appearances up to a chapter, folding
// each one into the value carried from the previous appearance and
// caching every step.
func (ch *Character) accumulate(ctx context.Context, upTo int,
	cached func(*Chapter) (string, bool),
	cache func(*Chapter, string) error,
	fold func(context.Context, *Chapter, string) (string, error),
) (string, error) {
	chapter, err := ch.book.Chapter(upTo)
	if err != nil {
		return "", err
	}
	if v, ok := cached(chapter); ok {
		return v, nil
	}

	refs, err := ch.References()
	if err != nil {
		return "", err
	}
	var appearances []int
	for _, n := range refs {
		if n <= upTo {
			appearances = append(appearances, n)
		}
	}

	if len(appearances) == 0 {
		if err := cache(chapter, ""); err != nil {
			return "", err
		}
		return "", nil
	}

	prior := ""
	for _, n := range appearances {
		at, err := ch.book.Chapter(n)
		if err != nil {
			return "", err
		}
		if v, ok := cached(at); ok {
			prior = v
			continue
		}
		v, err := fold(ctx, at, prior)
		if err != nil {
			return "", err
		}
		if err := cache(at, v); err != nil {
			return "", err
		}
		prior = v
	}

	last := appearances[len(appearances)-1]
	if last != upTo {
		if err := cache(chapter, prior); err != nil {
			return "", err
		}
	}
	return prior, nil
}

func (ch *Character) cachedSummary(c *Chapter) (string, bool) {
	c.mu.Lock()
	if summary, ok := c.charSummaries[ch.Name]; ok {
		c.mu.Unlock()
		return summary, true
	}
	c.mu.Unlock()

	summary, err := ch.book.store.LoadCharacterSummary(ch.book.Title, c.Number, ch.Name)
	if err != nil {
		return "", false
	}
	c.mu.Lock()
	c.charSummaries[ch.Name] = summary
	c.mu.Unlock()
	return summary, true
}

func (ch *Character) cacheSummary(c *Chapter, summary string) error {
	if err := ch.book.store.SaveCharacterSummary(ch.book.Title, c.Number, ch.Name, summary); err != nil {
		return err
	}
	c.mu.Lock()
	c.charSummaries[ch.Name] = summary
	c.mu.Unlock()
	return nil
}

func (ch *Character) summarizeAppearance(ctx context.Context, c *Chapter, prior string) (string, error) {
	content, err := c.Content()
	if err != nil {
		return "", err
	}

	first := backend.Message{Role: backend.RoleUser, Content: characterFirstPrompt(ch.Name)}
	if prior != "" {
		first.Content = characterPriorPrompt(ch.Name, prior)
	}
	messages := []backend.Message{
		first,
		{Role: backend.RoleAssistant, Content: summaryAck},
		{Role: backend.RoleUser, Content: characterFoldPrompt(ch.Name, content)},
	}

	reply, err := ch.book.backends.ContentText().Converse(ctx, messages, 0.0)
	if err != nil {
		return "", err
	}
	log.Debug("character summarized", "book", ch.book.Title, "chapter", c.Number, "character", ch.Name)
	return strings.TrimSpace(utils.StripThink(reply)), nil
}

func (ch *Character) cachedDescription(c *Chapter) (string, bool) {
	c.mu.Lock()
	if desc, ok := c.charDescs[ch.Name]; ok {
		c.mu.Unlock()
		return desc, true
	}
	c.mu.Unlock()

	desc, err := ch.book.store.LoadChapterCharacterDescription(ch.book.Title, c.Number, ch.Name)
	if err != nil {
		return "", false
	}
	c.mu.Lock()
	c.charDescs[ch.Name] = desc
	c.mu.Unlock()
	return desc, true
}

func (ch *Character) cacheDescription(c *Chapter, desc string) error {
	if err := ch.book.store.SaveChapterCharacterDescription(ch.book.Title, c.Number, ch.Name, desc); err != nil {
		return err
	}
	c.mu.Lock()
	c.charDescs[ch.Name] = desc
	c.mu.Unlock()
	return nil
}

func (ch *Character) describeAppearance(ctx context.Context, c *Chapter, prior string) (string, error) {
	content, err := c.Content()
	if err != nil {
		return "", err
	}

	first := backend.Message{Role: backend.RoleUser, Content: characterFirstPrompt(ch.Name)}
	if prior != "" {
		first.Content = describePriorPrompt(ch.Name, prior)
	}
	messages := []backend.Message{
		first,
		{Role: backend.RoleAssistant, Content: summaryAck},
		{Role: backend.RoleUser, Content: describeFoldPrompt(ch.Name, content)},
	}

	reply, err := ch.book.backends.ContentText().Converse(ctx, messages, 0.0)
	if err != nil {
		return "", err
	}
	log.Debug("character described", "book", ch.book.Title, "chapter", c.Number, "character", ch.Name)
	return strings.TrimSpace(utils.StripThink(reply)), nil
}

// Description returns the author-maintained character description,
// empty when unset.
func (ch *Character) Description() (string, error) {
	desc, err := ch.book.store.LoadCharacterDescription(ch.book.Title, ch.Name)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	return desc, err
}

func (ch *Character) SetDescription(desc string) error {
	if err := ch.book.store.SaveCharacterDescription(ch.book.Title, ch.Name, desc); err != nil {
		return err
	}
	// The visual prompt follows the description.
	return ch.book.store.DeleteCharacterVisual(ch.book.Title, ch.Name)
}

// SetChapterDescription overrides the derived description for one
// chapter.
func (ch *Character) SetChapterDescription(n int, desc string) error {
	c, err := ch.book.Chapter(n)
	if err != nil {
		return err
	}
	return ch.cacheDescription(c, desc)
}

// Expertise returns the character's expertise, deriving it from the
// description on first use.
func (ch *Character) Expertise(ctx context.Context) (string, error) {
	stored, err := ch.book.store.LoadCharacterExpertise(ch.book.Title, ch.Name)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	desc, err := ch.Description()
	if err != nil {
		return "", err
	}
	if desc == "" {
		return "", nil
	}

	reply, err := ch.book.backends.ContentText().Complete(ctx, expertisePrompt(ch.Name, desc))
	if err != nil {
		return "", err
	}
	expertise := strings.TrimSpace(utils.StripThink(reply))
	if err := ch.book.store.SaveCharacterExpertise(ch.book.Title, ch.Name, expertise); err != nil {
		return "", err
	}
	return expertise, nil
}

func (ch *Character) SetExpertise(expertise string) error {
	return ch.book.store.SaveCharacterExpertise(ch.book.Title, ch.Name, expertise)
}

// Visual returns the character's image prompt, deriving it from the
// description on first use. Rewriting the description drops it.
func (ch *Character) Visual(ctx context.Context) (string, error) {
	stored, err := ch.book.store.LoadCharacterVisual(ch.book.Title, ch.Name)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	desc, err := ch.Description()
	if err != nil {
		return "", err
	}
	if desc == "" {
		return "", fmt.Errorf("visual for %q: no description", ch.Name)
	}
	reply, err := ch.book.backends.ContentText().Complete(ctx, visualPrompt(ch.Name, desc))
	if err != nil {
		return "", err
	}
	visual := strings.TrimSpace(utils.StripThink(reply))
	if err := ch.book.store.SaveCharacterVisual(ch.book.Title, ch.Name, visual); err != nil {
		return "", err
	}
	return visual, nil
}

// Thumbnail returns the character portrait as WebP, generating it on
// first use.
func (ch *Character) Thumbnail(ctx context.Context) ([]byte, error) {
	cached, err := ch.book.store.LoadThumbnail(ch.book.Title, ch.Name)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	visual, err := ch.Visual(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := ch.book.backends.Image().Image(ctx, visual)
	if err != nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode portrait: %w", err)
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, webp.Options{Quality: 80, Method: 6}); err != nil {
		return nil, fmt.Errorf("encode portrait: %w", err)
	}
	if err := ch.book.store.SaveThumbnail(ch.book.Title, ch.Name, buf.Bytes()); err != nil {
		return nil, err
	}
	log.Info("thumbnail generated", "book", ch.book.Title, "character", ch.Name, "bytes", buf.Len())
	return buf.Bytes(), nil
}

// Rename moves every trace of the character to the new name. An empty
// or unchanged name is a no-op.
func (ch *Character) Rename(updated string) error {
	if updated == "" || updated == ch.Name {
		return nil
	}
	if err := ch.book.store.RenameCharacter(ch.book.Title, ch.Name, updated); err != nil {
		return err
	}
	ch.book.invalidate()
	ch.Name = updated
	return nil
}

// Delete removes the character from every chapter and its stored files.
func (ch *Character) Delete() error {
	if err := ch.book.store.RemoveCharacter(ch.book.Title, ch.Name); err != nil {
		return err
	}
	ch.book.invalidate()
	return nil
}
