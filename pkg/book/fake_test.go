package book

import (
	"context"
	"sync"
	"testing"

	"inkwell/pkg/backend"
	"inkwell/pkg/store"
)

// fakeText records every call and answers from caller-supplied
// functions.
type fakeText struct {
	budget   int
	complete func(prompt string) (string, error)
	converse func(messages []backend.Message, temperature float64) (string, error)

	mu            sync.Mutex
	prompts       []string
	conversations [][]backend.Message
}

func (f *fakeText) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.complete == nil {
		return "", backend.ErrUnavailable
	}
	return f.complete(prompt)
}

func (f *fakeText) Converse(_ context.Context, messages []backend.Message, temperature float64) (string, error) {
	f.mu.Lock()
	f.conversations = append(f.conversations, messages)
	f.mu.Unlock()
	if f.converse == nil {
		return "", backend.ErrUnavailable
	}
	return f.converse(messages, temperature)
}

func (f *fakeText) MaxTokens() int { return f.budget }

func (f *fakeText) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts) + len(f.conversations)
}

type fakeSpeaker struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeSpeaker) Speech(_ context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	return []byte("mp3:" + text), nil
}

func newTestBook(t *testing.T, set *backend.Set) *Book {
	t.Helper()
	s, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Create(s, set, "novel")
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func appendChapters(t *testing.T, b *Book, contents ...string) {
	t.Helper()
	for i, content := range contents {
		if _, err := b.Append("", content); err != nil {
			t.Fatalf("append chapter %d: %v", i+1, err)
		}
	}
}

func chapterContent(t *testing.T, b *Book, n int) string {
	t.Helper()
	c, err := b.Chapter(n)
	if err != nil {
		t.Fatal(err)
	}
	content, err := c.Content()
	if err != nil {
		t.Fatal(err)
	}
	return content
}
