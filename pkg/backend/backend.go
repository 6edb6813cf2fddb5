// Package backend wraps the generative services the authoring tool depends
// on behind capability interfaces. Each backend advertises a max token
// budget; zero means the capability is not configured and callers must
// degrade instead of calling out.
package backend

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when a capability has no configured backend
// or a zero token budget.
var ErrUnavailable = errors.New("backend: capability unavailable")

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a multi-turn exchange.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Text is a generative text capability.
type Text interface {
	// Complete runs a single-turn prompt.
	Complete(ctx context.Context, prompt string) (string, error)
	// Converse runs a multi-turn exchange at the given temperature.
	Converse(ctx context.Context, messages []Message, temperature float64) (string, error)
	// MaxTokens reports the backend's token budget. 0 means unconfigured.
	MaxTokens() int
}

// Imager generates an image from a text prompt.
type Imager interface {
	Image(ctx context.Context, prompt string) ([]byte, error)
}

// Speaker synthesizes speech audio from text.
type Speaker interface {
	Speech(ctx context.Context, text string) ([]byte, error)
}

// Set holds the backend assigned to each role. Any field may be nil;
// the accessors substitute an unavailable backend so callers get
// ErrUnavailable instead of a nil dereference.
type Set struct {
	Content  Text
	TechEval Text
	EntEval  Text
	Imager   Imager
	Voice    Speaker
}

func (s *Set) ContentText() Text {
	if s == nil || s.Content == nil {
		return unavailable{}
	}
	return s.Content
}

func (s *Set) TechEvalText() Text {
	if s == nil || s.TechEval == nil {
		return unavailable{}
	}
	return s.TechEval
}

func (s *Set) EntEvalText() Text {
	if s == nil || s.EntEval == nil {
		return unavailable{}
	}
	return s.EntEval
}

func (s *Set) Image() Imager {
	if s == nil || s.Imager == nil {
		return unavailable{}
	}
	return s.Imager
}

func (s *Set) Speaker() Speaker {
	if s == nil || s.Voice == nil {
		return unavailable{}
	}
	return s.Voice
}

// unavailable satisfies every capability with ErrUnavailable.
type unavailable struct{}

func (unavailable) Complete(context.Context, string) (string, error) { return "", ErrUnavailable }
func (unavailable) Converse(context.Context, []Message, float64) (string, error) {
	return "", ErrUnavailable
}
func (unavailable) MaxTokens() int                                 { return 0 }
func (unavailable) Image(context.Context, string) ([]byte, error)  { return nil, ErrUnavailable }
func (unavailable) Speech(context.Context, string) ([]byte, error) { return nil, ErrUnavailable }
