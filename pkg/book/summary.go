package book

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/charmbracelet/log"

	"inkwell/pkg/backend"
	"inkwell/pkg/utils"
)

// Window sizing for long chapters. Each segment leaves headroom for
// the prompt and overlaps its predecessor so scenes cut at a boundary
// still land in one segment whole.
const (
	segmentHeadroom = 200
	segmentOverlap  = 50
)

// Summary returns the chapter summary, computing and persisting it on
// first use. Chapters with no content report NoSummary without caching
// so a later write triggers a real pass; a backend failure degrades to
// the same uncached NoSummary instead of failing the chapter. Content
// that fits the text backend's token budget is summarized in one call;
// longer content is split into overlapping word windows, each condensed
// to around 200 words, and the condensed segments are summarized
// together.
func (c *Chapter) Summary(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.summary != nil {
		defer c.mu.Unlock()
		return *c.summary, nil
	}
	c.mu.Unlock()

	stored, err := c.book.store.LoadSummary(c.book.Title, c.Number)
	if err == nil {
		c.mu.Lock()
		c.summary = &stored
		c.mu.Unlock()
		return stored, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}

	content, err := c.Content()
	if err != nil {
		return "", err
	}
	if content == "" {
		return NoSummary, nil
	}

	text := c.book.backends.ContentText()
	budget := text.MaxTokens()
	if budget == 0 {
		return "", fmt.Errorf("summarize chapter %d: %w", c.Number, backend.ErrUnavailable)
	}

	if tokens, err := utils.NumTokens(content); err == nil {
		log.Debug("summarizing chapter", "book", c.book.Title, "chapter", c.Number, "tokens", tokens, "budget", budget)
	}

	words := strings.Fields(content)
	var summary string
	if len(words) <= budget {
		reply, err := text.Complete(ctx, summarizePrompt(content))
		if err != nil {
			log.Warn("summarization failed", "book", c.book.Title, "chapter", c.Number, "err", err)
			return NoSummary, nil
		}
		summary = strings.TrimSpace(utils.StripThink(reply))
	} else {
		summary, err = c.summarizeSegments(ctx, words, budget)
		if err != nil {
			log.Warn("summarization failed", "book", c.book.Title, "chapter", c.Number, "err", err)
			return NoSummary, nil
		}
	}

	if err := c.book.store.SaveSummary(c.book.Title, c.Number, summary); err != nil {
		return "", err
	}
	c.mu.Lock()
	c.summary = &summary
	c.mu.Unlock()
	return summary, nil
}

func (c *Chapter) summarizeSegments(ctx context.Context, words []string, budget int) (string, error) {
	text := c.book.backends.ContentText()
	size := budget - segmentHeadroom
	if size < 1 {
		size = budget
	}
	step := size - segmentOverlap
	if step < 1 {
		step = size
	}

	var parts []string
	for start := 0; start < len(words); start += step {
		end := min(start+size, len(words))
		segment := strings.Join(words[start:end], " ")
		reply, err := text.Complete(ctx, summarizeSegmentPrompt(segment))
		if err != nil {
			return "", err
		}
		parts = append(parts, strings.TrimSpace(utils.StripThink(reply)))
		if end == len(words) {
			break
		}
	}
	log.Debug("chapter split for summarization", "book", c.book.Title, "chapter", c.Number, "segments", len(parts))

	reply, err := text.Complete(ctx, summarizeJoinedPrompt(strings.Join(parts, " ")))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(utils.StripThink(reply)), nil
}
