package translator

import (
	"context"
	"errors"
	"fmt"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/errs"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/pkg/log"
)

// Chain tries each provider in order and returns the first success.
type Chain struct {
	providers []Named
}

func NewChain(providers ...Named) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) Translate(ctx context.Context, text, source, target string) (string, error) {
	if len(c.providers) == 0 {
		return "", errs.New(errs.ErrConfig, "no translation providers configured")
	}
	var failures []error
	for i, p := range c.providers {
		out, err := p.Translate(ctx, text, source, target)
		if err == nil {
			if i > 0 {
				log.Info("Translated to %s with fallback provider %s", target, p.Name)
			}
			return out, nil
		}
		failures = append(failures, fmt.Errorf("%s: %w", p.Name, err))
		if ctx.Err() != nil {
			break
		}
	}
	return "", errs.Wrap(errors.Join(failures...), errs.ErrExternalCall, "all translation providers failed").
		WithContext("target", target)
}
