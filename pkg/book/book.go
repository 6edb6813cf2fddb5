// Package book implements the manuscript model: a registry of
// contiguously numbered chapters, characters whose knowledge
// accumulates chapter by chapter, and the model-backed derivations
// (summaries, evaluations, narration) layered on top. All state lives
// in the store; in-memory maps are read-through caches that structure
// operations invalidate wholesale.
package book

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"inkwell/pkg/backend"
	"inkwell/pkg/store"
)

// Book is one open manuscript.
type Book struct {
	Title string

	store    *store.Store
	backends *backend.Set

	mu       sync.Mutex
	chapters map[int]*Chapter
}

// Open returns an existing book. The chapter numbering is validated to
// be contiguous from 1; a gap means the tree was edited by hand and the
// registry's positional operations would silently misbehave.
func Open(s *store.Store, backends *backend.Set, title string) (*Book, error) {
	if !s.BookExists(title) {
		return nil, fmt.Errorf("open %q: %w", title, ErrNotFound)
	}
	b := &Book{
		Title:    title,
		store:    s,
		backends: backends,
		chapters: make(map[int]*Chapter),
	}
	if _, err := b.Numbers(); err != nil {
		return nil, err
	}
	return b, nil
}

// Create makes a new empty book.
func Create(s *store.Store, backends *backend.Set, title string) (*Book, error) {
	if s.BookExists(title) {
		return nil, fmt.Errorf("create %q: book already exists", title)
	}
	if err := s.CreateBook(title); err != nil {
		return nil, err
	}
	return &Book{
		Title:    title,
		store:    s,
		backends: backends,
		chapters: make(map[int]*Chapter),
	}, nil
}

// Numbers returns chapter numbers in order, verifying they run 1..N
// with no gaps.
func (b *Book) Numbers() ([]int, error) {
	numbers, err := b.store.ListChapters(b.Title)
	if err != nil {
		return nil, err
	}
	for i, n := range numbers {
		if n != i+1 {
			return nil, fmt.Errorf("book %q: chapter numbering broken at %d", b.Title, n)
		}
	}
	return numbers, nil
}

// Len reports the chapter count.
func (b *Book) Len() (int, error) {
	numbers, err := b.Numbers()
	if err != nil {
		return 0, err
	}
	return len(numbers), nil
}

// Chapter returns the chapter at position n.
func (b *Book) Chapter(n int) (*Chapter, error) {
	count, err := b.Len()
	if err != nil {
		return nil, err
	}
	if n < 1 || n > count {
		return nil, fmt.Errorf("chapter %d of %d: %w", n, count, ErrBadPosition)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.chapters[n]; ok {
		return c, nil
	}
	c := newChapter(b, n)
	b.chapters[n] = c
	return c, nil
}

// Append adds a chapter at position N+1.
func (b *Book) Append(name, content string) (*Chapter, error) {
	count, err := b.Len()
	if err != nil {
		return nil, err
	}
	n := count + 1
	if err := b.store.CreateChapter(b.Title, n); err != nil {
		return nil, err
	}
	c, err := b.Chapter(n)
	if err != nil {
		return nil, err
	}
	if name != "" {
		if err := c.SetName(name); err != nil {
			return nil, err
		}
	}
	if content != "" {
		if err := c.SetContent(content); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// InsertAfter opens a new empty chapter at position pos+1, shifting
// later chapters up by exactly one. pos 0 inserts at the front.
func (b *Book) InsertAfter(pos int) (*Chapter, error) {
	count, err := b.Len()
	if err != nil {
		return nil, err
	}
	if pos < 0 || pos > count {
		return nil, fmt.Errorf("insert after %d of %d: %w", pos, count, ErrBadPosition)
	}

	// Shift descending so each rename lands on a free slot.
	for n := count; n > pos; n-- {
		if err := b.store.MoveChapter(b.Title, n, n+1); err != nil {
			return nil, err
		}
	}
	if err := b.store.CreateChapter(b.Title, pos+1); err != nil {
		return nil, err
	}
	b.invalidate()
	log.Info("chapter inserted", "book", b.Title, "position", pos+1)
	return b.Chapter(pos + 1)
}

// Remove deletes chapter n and closes the gap.
func (b *Book) Remove(n int) error {
	count, err := b.Len()
	if err != nil {
		return err
	}
	if n < 1 || n > count {
		return fmt.Errorf("remove %d of %d: %w", n, count, ErrBadPosition)
	}
	if err := b.store.DeleteChapter(b.Title, n); err != nil {
		return err
	}
	for m := n + 1; m <= count; m++ {
		if err := b.store.MoveChapter(b.Title, m, m-1); err != nil {
			return err
		}
	}
	b.invalidate()
	log.Info("chapter removed", "book", b.Title, "position", n)
	return nil
}

// Renumber moves chapter old to position new, shifting the chapters in
// between by one. Slot 0 stages the moving chapter so no rename ever
// collides with a live position.
func (b *Book) Renumber(old, updated int) error {
	count, err := b.Len()
	if err != nil {
		return err
	}
	if old < 1 || old > count {
		return fmt.Errorf("renumber from %d of %d: %w", old, count, ErrBadPosition)
	}
	if updated < 1 || updated > count {
		return fmt.Errorf("renumber to %d of %d: %w", updated, count, ErrBadPosition)
	}
	if old == updated {
		return nil
	}

	if err := b.store.MoveChapter(b.Title, old, 0); err != nil {
		return err
	}
	if updated > old {
		for n := old + 1; n <= updated; n++ {
			if err := b.store.MoveChapter(b.Title, n, n-1); err != nil {
				return err
			}
		}
	} else {
		for n := old - 1; n >= updated; n-- {
			if err := b.store.MoveChapter(b.Title, n, n+1); err != nil {
				return err
			}
		}
	}
	if err := b.store.MoveChapter(b.Title, 0, updated); err != nil {
		return err
	}
	b.invalidate()
	log.Info("chapter renumbered", "book", b.Title, "from", old, "to", updated)
	return nil
}

// invalidate drops every cached chapter. Positional caches cannot
// survive a structure change.
func (b *Book) invalidate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.chapters)
}

// Invalidate is the external hook for the filesystem watcher.
func (b *Book) Invalidate() { b.invalidate() }

// WritingStyle returns the book's style rules, empty when unset.
func (b *Book) WritingStyle() (string, error) {
	return b.store.LoadWritingStyle(b.Title)
}

func (b *Book) SetWritingStyle(style string) error {
	return b.store.SaveWritingStyle(b.Title, style)
}

// Character returns a view over the named character.
func (b *Book) Character(name string) *Character {
	return &Character{book: b, Name: name}
}

// CharacterNames lists characters known to the book.
func (b *Book) CharacterNames() ([]string, error) {
	seen := make(map[string]struct{})
	var names []string

	global, err := b.store.CharacterNames(b.Title)
	if err != nil {
		return nil, err
	}
	for _, name := range global {
		seen[name] = struct{}{}
		names = append(names, name)
	}

	numbers, err := b.Numbers()
	if err != nil {
		return nil, err
	}
	for _, n := range numbers {
		c, err := b.Chapter(n)
		if err != nil {
			return nil, err
		}
		listed, err := c.storedCharacters()
		if err != nil {
			return nil, err
		}
		for _, name := range listed {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				names = append(names, name)
			}
		}
	}
	return names, nil
}

// Library opens books on demand and keeps them cached until the
// watcher reports an on-disk change.
type Library struct {
	store    *store.Store
	backends *backend.Set

	mu   sync.Mutex
	open map[string]*Book
}

func NewLibrary(s *store.Store, backends *backend.Set) *Library {
	return &Library{
		store:    s,
		backends: backends,
		open:     make(map[string]*Book),
	}
}

func (l *Library) Store() *store.Store { return l.store }

func (l *Library) Titles() ([]string, error) {
	return l.store.Books()
}

func (l *Library) Book(title string) (*Book, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.open[title]; ok {
		return b, nil
	}
	b, err := Open(l.store, l.backends, title)
	if err != nil {
		return nil, err
	}
	l.open[title] = b
	return b, nil
}

func (l *Library) Create(title string) (*Book, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, err := Create(l.store, l.backends, title)
	if err != nil {
		return nil, err
	}
	l.open[title] = b
	return b, nil
}

// Drop evicts a cached book after an external change.
func (l *Library) Drop(title string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.open, title)
}
