package translator

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Paced spaces successive calls at least delay apart, across every caller
// sharing it. The first call is not delayed.
type Paced struct {
	next    Translator
	limiter *rate.Limiter
	delay   atomic.Int64
}

func NewPaced(next Translator, delay time.Duration) *Paced {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	p := &Paced{next: next, limiter: rate.NewLimiter(limit, 1)}
	p.delay.Store(int64(max(delay, 0)))
	return p
}

func (p *Paced) Translate(ctx context.Context, text, source, target string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return p.next.Translate(ctx, text, source, target)
}

// SetDelay changes the spacing for subsequent calls. A token already
// accrued under the old delay is kept.
func (p *Paced) SetDelay(delay time.Duration) {
	p.delay.Store(int64(max(delay, 0)))
	if delay <= 0 {
		p.limiter.SetLimit(rate.Inf)
		return
	}
	p.limiter.SetLimit(rate.Every(delay))
}

func (p *Paced) Delay() time.Duration {
	return time.Duration(p.delay.Load())
}
