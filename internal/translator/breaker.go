package translator

import (
	"context"
	"fmt"
	"time"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/pkg/log"
	"github.com/sony/gobreaker"
)

// Breaker stops calling a provider after maxFailures consecutive failures and
// fails fast until openTimeout has passed.
type Breaker struct {
	next Translator
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(name string, next Translator, maxFailures int, openTimeout time.Duration) *Breaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(maxFailures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Translation provider %s circuit %s -> %s", name, from, to)
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *Breaker) Translate(ctx context.Context, text, source, target string) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Translate(ctx, text, source, target)
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", b.cb.Name(), err)
	}
	return out.(string), nil
}

func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Timeout bounds each call with its own deadline.
type Timeout struct {
	next    Translator
	timeout time.Duration
}

func NewTimeout(next Translator, timeout time.Duration) *Timeout {
	return &Timeout{next: next, timeout: timeout}
}

func (t *Timeout) Translate(ctx context.Context, text, source, target string) (string, error) {
	if t.timeout <= 0 {
		return t.next.Translate(ctx, text, source, target)
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Translate(ctx, text, source, target)
}
