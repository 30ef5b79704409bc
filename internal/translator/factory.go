package translator

import (
	"context"
	"net/http"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/config"
	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/errs"
)

// NewProvider builds one named provider from configuration.
func NewProvider(ctx context.Context, name string, cfg *config.Config, httpClient *http.Client) (Translator, error) {
	switch name {
	case config.ProviderGoogle:
		return NewGoogle(cfg.Providers.GoogleURL, httpClient), nil
	case config.ProviderLibre:
		return NewLibre(cfg.Providers.LibreURL, cfg.Providers.LibreKey, httpClient), nil
	case config.ProviderGemini:
		return NewGemini(ctx, cfg.Providers.GeminiKey, cfg.Providers.GeminiModel)
	case config.ProviderOpenAI:
		return NewOpenAI(cfg.Providers.OpenAIKey, cfg.Providers.OpenAIURL, cfg.Providers.OpenAIModel), nil
	default:
		return nil, errs.Newf(errs.ErrConfig, "unknown translation provider %q", name)
	}
}

// Stack is a ready-to-use translator plus the pacing stage, whose delay can
// be changed while running.
type Stack struct {
	Translator
	Paced *Paced
}

// FromConfig assembles the provider chain. Each provider gets its own per-call
// timeout and circuit breaker. Calls that reach the network are paced at least
// the configured delay apart; repeated texts are answered from memory.
func FromConfig(ctx context.Context, cfg *config.Config, httpClient *http.Client) (*Stack, error) {
	names := cfg.ProviderChain()
	providers := make([]Named, 0, len(names))
	for _, name := range names {
		p, err := NewProvider(ctx, name, cfg, httpClient)
		if err != nil {
			return nil, err
		}
		guarded := NewBreaker(name, NewTimeout(p, cfg.Translate.CallTimeout), cfg.Breaker.MaxFailures, cfg.Breaker.OpenTimeout)
		providers = append(providers, Named{Name: name, Translator: guarded})
	}
	paced := NewPaced(NewChain(providers...), cfg.Translate.Delay)
	return &Stack{Translator: NewCache(paced, 0), Paced: paced}, nil
}
