package book

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/charmbracelet/log"

	"inkwell/pkg/backend"
	"inkwell/pkg/schema"
	"inkwell/pkg/store"
	"inkwell/pkg/utils"
)

// TechnicalEval judges the chapter's plausibility against each
// character's expertise. The result is computed once and cached; a
// malformed model reply fails the call and leaves any cached value
// untouched. Chapters with no content have no evaluation.
func (c *Chapter) TechnicalEval(ctx context.Context) (*schema.ChapterEval, error) {
	c.mu.Lock()
	if c.techEval != nil {
		defer c.mu.Unlock()
		return c.techEval, nil
	}
	c.mu.Unlock()

	if cached, err := c.loadEval(store.EvalTechnical); cached != nil || err != nil {
		return cached, err
	}
	return c.evalTechnical(ctx)
}

// ReevaluateTechnical asks the judge again regardless of any cached
// evaluation, replacing it on success. A failed run keeps the old one.
func (c *Chapter) ReevaluateTechnical(ctx context.Context) (*schema.ChapterEval, error) {
	return c.evalTechnical(ctx)
}

func (c *Chapter) evalTechnical(ctx context.Context) (*schema.ChapterEval, error) {
	content, err := c.Content()
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, nil
	}

	names, err := c.Characters(ctx)
	if err != nil {
		return nil, err
	}

	var messages []backend.Message
	for _, name := range names {
		expertise, err := c.book.Character(name).Expertise(ctx)
		if err != nil {
			return nil, err
		}
		if expertise == "" {
			continue
		}
		messages = append(messages,
			backend.Message{Role: backend.RoleUser, Content: expertiseFraming(name, expertise)},
			backend.Message{Role: backend.RoleAssistant, Content: summaryAck},
		)
	}
	messages = append(messages,
		backend.Message{Role: backend.RoleUser, Content: content + "\n\n" + technicalEvalInstruction()},
	)

	return c.runEval(ctx, c.book.backends.TechEvalText(), store.EvalTechnical, messages)
}

// EntertainmentEval judges the chapter against the story so far, using
// the summaries of every preceding chapter as context.
func (c *Chapter) EntertainmentEval(ctx context.Context) (*schema.ChapterEval, error) {
	c.mu.Lock()
	if c.entEval != nil {
		defer c.mu.Unlock()
		return c.entEval, nil
	}
	c.mu.Unlock()

	if cached, err := c.loadEval(store.EvalEntertainment); cached != nil || err != nil {
		return cached, err
	}
	return c.evalEntertainment(ctx)
}

// ReevaluateEntertainment is the forced variant of EntertainmentEval.
func (c *Chapter) ReevaluateEntertainment(ctx context.Context) (*schema.ChapterEval, error) {
	return c.evalEntertainment(ctx)
}

func (c *Chapter) evalEntertainment(ctx context.Context) (*schema.ChapterEval, error) {
	content, err := c.Content()
	if err != nil {
		return nil, err
	}
	if content == "" {
		return nil, nil
	}

	var messages []backend.Message
	for n := 1; n < c.Number; n++ {
		prior, err := c.book.Chapter(n)
		if err != nil {
			return nil, err
		}
		summary, err := prior.Summary(ctx)
		if err != nil {
			return nil, err
		}
		messages = append(messages,
			backend.Message{Role: backend.RoleUser, Content: fmt.Sprintf("Summary of chapter %d:\n%s", n, summary)},
			backend.Message{Role: backend.RoleAssistant, Content: summaryAck},
		)
	}
	messages = append(messages,
		backend.Message{Role: backend.RoleUser, Content: content + "\n\n" + entertainmentEvalInstruction()},
	)

	return c.runEval(ctx, c.book.backends.EntEvalText(), store.EvalEntertainment, messages)
}

func (c *Chapter) runEval(ctx context.Context, text backend.Text, kind string, messages []backend.Message) (*schema.ChapterEval, error) {
	reply, err := text.Converse(ctx, messages, 0.9)
	if err != nil {
		return nil, err
	}

	raw := utils.CleanJSON(utils.StripThink(reply))
	eval, err := schema.ParseChapterEval([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if err := c.book.store.SaveEval(c.book.Title, c.Number, kind, []byte(raw)); err != nil {
		return nil, err
	}
	c.setEval(kind, eval)
	log.Info("chapter evaluated", "book", c.book.Title, "chapter", c.Number, "kind", kind, "score", eval.Score)
	return eval, nil
}

// loadEval reads a persisted evaluation, nil when none exists.
func (c *Chapter) loadEval(kind string) (*schema.ChapterEval, error) {
	raw, err := c.book.store.LoadEval(c.book.Title, c.Number, kind)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	eval, err := schema.ParseChapterEval(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	c.setEval(kind, eval)
	return eval, nil
}

func (c *Chapter) setEval(kind string, eval *schema.ChapterEval) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch kind {
	case store.EvalTechnical:
		c.techEval = eval
	case store.EvalEntertainment:
		c.entEval = eval
	}
}

// Evaluation is the read-through accessor: memory, then disk, then nil.
// It never calls a backend.
func (c *Chapter) Evaluation(kind string) (*schema.ChapterEval, error) {
	c.mu.Lock()
	switch kind {
	case store.EvalTechnical:
		if c.techEval != nil {
			defer c.mu.Unlock()
			return c.techEval, nil
		}
	case store.EvalEntertainment:
		if c.entEval != nil {
			defer c.mu.Unlock()
			return c.entEval, nil
		}
	default:
		c.mu.Unlock()
		return nil, fmt.Errorf("unknown evaluation kind %q", kind)
	}
	c.mu.Unlock()
	return c.loadEval(kind)
}
