// Package store persists manuscripts as plain files under a data
// directory, one subdirectory per book. Everything an author touches is
// Markdown or JSON on disk so the tree stays inspectable and diffable
// outside the tool.
//
// Layout:
//
//	<data>/settings.json
//	<data>/<book>/writing_style.md
//	<data>/<book>/chapters/<n>/name.md
//	<data>/<book>/chapters/<n>/content.md
//	<data>/<book>/chapters/<n>/summary.md
//	<data>/<book>/chapters/<n>/characters.md
//	<data>/<book>/chapters/<n>/technical_eval.md
//	<data>/<book>/chapters/<n>/entertainment_eval.md
//	<data>/<book>/chapters/<n>/edits.json
//	<data>/<book>/chapters/<n>/audio/paragraph_<p>.mp3
//	<data>/<book>/chapters/<n>/characters/<name>.md
//	<data>/<book>/chapters/<n>/characters/<name>_summary.md
//	<data>/<book>/characters/<name>/description.md
//	<data>/<book>/characters/<name>/expertise.md
//	<data>/<book>/characters/<name>/thumbnail.webp
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"inkwell/pkg/schema"
	"inkwell/pkg/utils"
)

// ErrConflict is returned when a chapter move would overwrite an
// existing chapter.
var ErrConflict = errors.New("store: chapter already exists")

// Evaluation kinds, doubling as file stems.
const (
	EvalTechnical     = "technical_eval"
	EvalEntertainment = "entertainment_eval"
)

// Store reads and writes one data directory.
type Store struct {
	root string
}

func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("store: create data dir: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) Root() string { return s.root }

// writeFile writes atomically: tmp file, fsync, rename. A crash mid-write
// leaves the previous version intact.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("store: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("store: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("store: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("store: rename: %w", err)
	}
	return nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", filepath.Base(path), err)
	}
	return data, nil
}

// safeName rejects path components that would escape the data directory.
func safeName(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("store: invalid name %q", name)
	}
	return name, nil
}

func (s *Store) bookDir(book string) (string, error) {
	name, err := safeName(book)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, name), nil
}

func (s *Store) chapterDir(book string, n int) (string, error) {
	dir, err := s.bookDir(book)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "chapters", strconv.Itoa(n)), nil
}

// SettingsPath locates the backend configuration file. The caller owns
// its shape; the store only places it.
func (s *Store) SettingsPath() string {
	return filepath.Join(s.root, "settings.json")
}

// Books

// Books lists book directories sorted by name.
func (s *Store) Books() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("store: list books: %w", err)
	}
	var books []string
	for _, e := range entries {
		if e.IsDir() {
			books = append(books, e.Name())
		}
	}
	sort.Strings(books)
	return books, nil
}

func (s *Store) CreateBook(book string) error {
	dir, err := s.bookDir(book)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Join(dir, "chapters"), 0o755); err != nil {
		return fmt.Errorf("store: create book: %w", err)
	}
	return nil
}

func (s *Store) BookExists(book string) bool {
	dir, err := s.bookDir(book)
	if err != nil {
		return false
	}
	return utils.Exists(dir)
}

// Chapters

// ListChapters returns chapter numbers in ascending order. Non-numeric
// entries under chapters/ are ignored.
func (s *Store) ListChapters(book string) ([]int, error) {
	dir, err := s.bookDir(book)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(dir, "chapters"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: list chapters: %w", err)
	}
	var numbers []int
	for _, e := range entries {
		n, err := strconv.Atoi(e.Name())
		if err != nil || !e.IsDir() {
			continue
		}
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers, nil
}

func (s *Store) ChapterExists(book string, n int) bool {
	dir, err := s.chapterDir(book, n)
	if err != nil {
		return false
	}
	return utils.Exists(dir)
}

func (s *Store) CreateChapter(book string, n int) error {
	dir, err := s.chapterDir(book, n)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: create chapter: %w", err)
	}
	return nil
}

// MoveChapter renames a chapter directory. The target must not exist.
func (s *Store) MoveChapter(book string, from, to int) error {
	src, err := s.chapterDir(book, from)
	if err != nil {
		return err
	}
	dst, err := s.chapterDir(book, to)
	if err != nil {
		return err
	}
	if utils.Exists(dst) {
		return fmt.Errorf("move chapter %d to %d: %w", from, to, ErrConflict)
	}
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("store: move chapter: %w", err)
	}
	return nil
}

func (s *Store) DeleteChapter(book string, n int) error {
	dir, err := s.chapterDir(book, n)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("store: delete chapter: %w", err)
	}
	return nil
}

func (s *Store) chapterFile(book string, n int, stem string) (string, error) {
	dir, err := s.chapterDir(book, n)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, stem), nil
}

func (s *Store) saveChapterText(book string, n int, stem, text string) error {
	path, err := s.chapterFile(book, n, stem)
	if err != nil {
		return err
	}
	return writeFile(path, []byte(text))
}

func (s *Store) loadChapterText(book string, n int, stem string) (string, error) {
	path, err := s.chapterFile(book, n, stem)
	if err != nil {
		return "", err
	}
	data, err := readFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Store) SaveChapterName(book string, n int, name string) error {
	return s.saveChapterText(book, n, "name.md", name)
}

func (s *Store) LoadChapterName(book string, n int) (string, error) {
	return s.loadChapterText(book, n, "name.md")
}

func (s *Store) SaveContent(book string, n int, content string) error {
	return s.saveChapterText(book, n, "content.md", content)
}

func (s *Store) LoadContent(book string, n int) (string, error) {
	return s.loadChapterText(book, n, "content.md")
}

func (s *Store) SaveSummary(book string, n int, summary string) error {
	return s.saveChapterText(book, n, "summary.md", summary)
}

func (s *Store) LoadSummary(book string, n int) (string, error) {
	return s.loadChapterText(book, n, "summary.md")
}

// SaveChapterCharacters persists the character list, one name per line.
func (s *Store) SaveChapterCharacters(book string, n int, names []string) error {
	return s.saveChapterText(book, n, "characters.md", strings.Join(names, "\n"))
}

func (s *Store) LoadChapterCharacters(book string, n int) ([]string, error) {
	text, err := s.loadChapterText(book, n, "characters.md")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

func (s *Store) SaveEval(book string, n int, kind string, raw []byte) error {
	return s.saveChapterText(book, n, kind+".md", string(raw))
}

func (s *Store) LoadEval(book string, n int, kind string) ([]byte, error) {
	text, err := s.loadChapterText(book, n, kind+".md")
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

// DeleteDerived removes everything computed from a chapter's content:
// summary, evaluations, and the chapter-scoped character summaries and
// descriptions. Missing files are not an error.
func (s *Store) DeleteDerived(book string, n int) error {
	dir, err := s.chapterDir(book, n)
	if err != nil {
		return err
	}
	for _, stem := range []string{"summary.md", EvalTechnical + ".md", EvalEntertainment + ".md"} {
		if err := os.Remove(filepath.Join(dir, stem)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("store: delete derived: %w", err)
		}
	}
	entries, err := os.ReadDir(filepath.Join(dir, "characters"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("store: delete derived: %w", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".md") {
			if err := os.Remove(filepath.Join(dir, "characters", e.Name())); err != nil {
				return fmt.Errorf("store: delete derived: %w", err)
			}
		}
	}
	return nil
}

// Edit history

func (s *Store) LoadEdits(book string, n int) ([]schema.EditHistoryEntry, error) {
	path, err := s.chapterFile(book, n, "edits.json")
	if err != nil {
		return nil, err
	}
	if !utils.Exists(path) {
		return nil, nil
	}
	return utils.Load[[]schema.EditHistoryEntry](path)
}

func (s *Store) AppendEdit(book string, n int, entry schema.EditHistoryEntry) error {
	edits, err := s.LoadEdits(book, n)
	if err != nil {
		return err
	}
	edits = append(edits, entry)
	data, err := json.MarshalIndent(edits, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode edits: %w", err)
	}
	path, err := s.chapterFile(book, n, "edits.json")
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

// Per-chapter character files

func (s *Store) chapterCharacterFile(book string, n int, name, suffix string) (string, error) {
	dir, err := s.chapterDir(book, n)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "characters", utils.SanitizeFilename(name)+suffix), nil
}

// SaveChapterCharacterDescription stores how a character presents in
// one specific chapter, distinct from the book-global description.
func (s *Store) SaveChapterCharacterDescription(book string, n int, name, text string) error {
	path, err := s.chapterCharacterFile(book, n, name, ".md")
	if err != nil {
		return err
	}
	return writeFile(path, []byte(text))
}

func (s *Store) LoadChapterCharacterDescription(book string, n int, name string) (string, error) {
	path, err := s.chapterCharacterFile(book, n, name, ".md")
	if err != nil {
		return "", err
	}
	data, err := readFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SaveCharacterSummary stores the cumulative summary of a character as
// of the given chapter.
func (s *Store) SaveCharacterSummary(book string, n int, name, summary string) error {
	path, err := s.chapterCharacterFile(book, n, name, "_summary.md")
	if err != nil {
		return err
	}
	return writeFile(path, []byte(summary))
}

func (s *Store) LoadCharacterSummary(book string, n int, name string) (string, error) {
	path, err := s.chapterCharacterFile(book, n, name, "_summary.md")
	if err != nil {
		return "", err
	}
	data, err := readFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Global character files

func (s *Store) characterDir(book, name string) (string, error) {
	dir, err := s.bookDir(book)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "characters", utils.SanitizeFilename(name)), nil
}

// CharacterNames lists characters with a global directory, sorted.
func (s *Store) CharacterNames(book string) ([]string, error) {
	dir, err := s.bookDir(book)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(dir, "characters"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: list characters: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) saveCharacterText(book, name, stem, text string) error {
	dir, err := s.characterDir(book, name)
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, stem), []byte(text))
}

func (s *Store) loadCharacterText(book, name, stem string) (string, error) {
	dir, err := s.characterDir(book, name)
	if err != nil {
		return "", err
	}
	data, err := readFile(filepath.Join(dir, stem))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *Store) SaveCharacterDescription(book, name, text string) error {
	return s.saveCharacterText(book, name, "description.md", text)
}

func (s *Store) LoadCharacterDescription(book, name string) (string, error) {
	return s.loadCharacterText(book, name, "description.md")
}

func (s *Store) SaveCharacterExpertise(book, name, text string) error {
	return s.saveCharacterText(book, name, "expertise.md", text)
}

func (s *Store) LoadCharacterExpertise(book, name string) (string, error) {
	return s.loadCharacterText(book, name, "expertise.md")
}

func (s *Store) SaveCharacterVisual(book, name, text string) error {
	return s.saveCharacterText(book, name, "visual.md", text)
}

func (s *Store) LoadCharacterVisual(book, name string) (string, error) {
	return s.loadCharacterText(book, name, "visual.md")
}

// DeleteCharacterVisual drops the stored visual description so it is
// re-derived after the underlying description changes.
func (s *Store) DeleteCharacterVisual(book, name string) error {
	dir, err := s.characterDir(book, name)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(dir, "visual.md")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("store: delete visual: %w", err)
	}
	return nil
}

func (s *Store) SaveThumbnail(book, name string, data []byte) error {
	dir, err := s.characterDir(book, name)
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, "thumbnail.webp"), data)
}

func (s *Store) LoadThumbnail(book, name string) ([]byte, error) {
	dir, err := s.characterDir(book, name)
	if err != nil {
		return nil, err
	}
	return readFile(filepath.Join(dir, "thumbnail.webp"))
}

// RenameCharacter rewrites every chapter's character list and per-chapter
// files, then moves the global directory. No-op entries are skipped so a
// partially renamed tree converges on retry.
func (s *Store) RenameCharacter(book, old, updated string) error {
	chapters, err := s.ListChapters(book)
	if err != nil {
		return err
	}
	for _, n := range chapters {
		names, err := s.LoadChapterCharacters(book, n)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		changed := false
		for i, name := range names {
			if name == old {
				names[i] = updated
				changed = true
			}
		}
		if changed {
			if err := s.SaveChapterCharacters(book, n, names); err != nil {
				return err
			}
		}
		for _, suffix := range []string{".md", "_summary.md"} {
			src, err := s.chapterCharacterFile(book, n, old, suffix)
			if err != nil {
				return err
			}
			if !utils.Exists(src) {
				continue
			}
			dst, err := s.chapterCharacterFile(book, n, updated, suffix)
			if err != nil {
				return err
			}
			if err := os.Rename(src, dst); err != nil {
				return fmt.Errorf("store: rename character file: %w", err)
			}
		}
	}

	srcDir, err := s.characterDir(book, old)
	if err != nil {
		return err
	}
	if utils.Exists(srcDir) {
		dstDir, err := s.characterDir(book, updated)
		if err != nil {
			return err
		}
		if err := os.Rename(srcDir, dstDir); err != nil {
			return fmt.Errorf("store: rename character dir: %w", err)
		}
	}
	return nil
}

// RemoveChapterCharacter drops a character from one chapter's list and
// deletes that chapter's files for it. Global character files stay.
func (s *Store) RemoveChapterCharacter(book string, n int, name string) error {
	names, err := s.LoadChapterCharacters(book, n)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	kept := names[:0]
	changed := false
	for _, existing := range names {
		if existing == name {
			changed = true
			continue
		}
		kept = append(kept, existing)
	}
	if changed {
		if err := s.SaveChapterCharacters(book, n, kept); err != nil {
			return err
		}
	}
	for _, suffix := range []string{".md", "_summary.md"} {
		path, err := s.chapterCharacterFile(book, n, name, suffix)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("store: remove chapter character: %w", err)
		}
	}
	return nil
}

// RemoveCharacter deletes a character from every chapter list, its
// per-chapter files, and its global directory.
func (s *Store) RemoveCharacter(book, name string) error {
	chapters, err := s.ListChapters(book)
	if err != nil {
		return err
	}
	for _, n := range chapters {
		if err := s.RemoveChapterCharacter(book, n, name); err != nil {
			return err
		}
	}

	dir, err := s.characterDir(book, name)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("store: remove character dir: %w", err)
	}
	return nil
}

// Audio

func (s *Store) audioFile(book string, n, paragraph int) (string, error) {
	dir, err := s.chapterDir(book, n)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "audio", fmt.Sprintf("paragraph_%d.mp3", paragraph)), nil
}

func (s *Store) SaveParagraphAudio(book string, n, paragraph int, data []byte) error {
	path, err := s.audioFile(book, n, paragraph)
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

func (s *Store) LoadParagraphAudio(book string, n, paragraph int) ([]byte, error) {
	path, err := s.audioFile(book, n, paragraph)
	if err != nil {
		return nil, err
	}
	return readFile(path)
}

// ClearParagraphAudio drops one rendered paragraph.
func (s *Store) ClearParagraphAudio(book string, n, paragraph int) error {
	path, err := s.audioFile(book, n, paragraph)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("store: clear paragraph audio: %w", err)
	}
	return nil
}

// ClearAudio drops every rendered paragraph for a chapter. Called when
// the content changes so stale narration never outlives its text.
func (s *Store) ClearAudio(book string, n int) error {
	dir, err := s.chapterDir(book, n)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(filepath.Join(dir, "audio")); err != nil {
		return fmt.Errorf("store: clear audio: %w", err)
	}
	return nil
}

// Writing style

func (s *Store) SaveWritingStyle(book, style string) error {
	dir, err := s.bookDir(book)
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, "writing_style.md"), []byte(style))
}

func (s *Store) LoadWritingStyle(book string) (string, error) {
	dir, err := s.bookDir(book)
	if err != nil {
		return "", err
	}
	data, err := readFile(filepath.Join(dir, "writing_style.md"))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
