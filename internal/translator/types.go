// Package translator turns text into other languages through external
// services, splitting long text into bounded chunks.
package translator

import "context"

// Translator translates one piece of text. Implementations make exactly one
// attempt per call.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Func adapts a function to Translator.
type Func func(ctx context.Context, text, source, target string) (string, error)

func (f Func) Translate(ctx context.Context, text, source, target string) (string, error) {
	return f(ctx, text, source, target)
}

// Named pairs a translator with the provider name used in logs.
type Named struct {
	Name string
	Translator
}
