package backend

import (
	"context"

	"golang.org/x/time/rate"
)

// limited throttles a Text backend to a requests-per-minute budget.
// Hosted inference endpoints enforce per-key rate limits; waiting here
// turns a hard 429 into backpressure.
type limited struct {
	inner Text
	lim   *rate.Limiter
}

// Limit wraps text so that calls block until the rpm budget allows them.
// rpm <= 0 returns text unchanged.
func Limit(text Text, rpm int) Text {
	if rpm <= 0 {
		return text
	}
	return &limited{
		inner: text,
		lim:   rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1),
	}
}

func (l *limited) Complete(ctx context.Context, prompt string) (string, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return "", err
	}
	return l.inner.Complete(ctx, prompt)
}

func (l *limited) Converse(ctx context.Context, messages []Message, temperature float64) (string, error) {
	if err := l.lim.Wait(ctx); err != nil {
		return "", err
	}
	return l.inner.Converse(ctx, messages, temperature)
}

func (l *limited) MaxTokens() int { return l.inner.MaxTokens() }
