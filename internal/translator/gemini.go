package translator

import (
	"context"
	"fmt"
	"strings"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/errs"
	"google.golang.org/genai"
)

var languageNames = map[string]string{
	"si": "Sinhala (සිංහල)",
	"ta": "Tamil (தமிழ்)",
	"en": "English",
}

func languageName(code string) string {
	if name, ok := languageNames[strings.ToLower(code)]; ok {
		return name
	}
	return code
}

// Prompt builds the instruction used by the LLM providers.
func Prompt(text, target string) string {
	lang := languageName(target)
	return fmt.Sprintf(`Translate the following text to %[1]s.

IMPORTANT RULES:
- Preserve all scientific terms accurately
- Maintain professional academic tone
- Keep numbers, units, and technical terms in English if no direct translation exists
- For marine biology terms, use commonly accepted %[1]s equivalents
- Format the translation naturally for %[1]s readers
- Reply with the translation only

TEXT TO TRANSLATE:
%[2]s

TRANSLATION:`, lang, text)
}

// Gemini translates through the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errs.Wrap(err, errs.ErrConfig, "create gemini client")
	}
	return &Gemini{client: client, model: model}, nil
}

func (g *Gemini) Translate(ctx context.Context, text, _, target string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(Prompt(text, target)), nil)
	if err != nil {
		return "", errs.Wrap(err, errs.ErrExternalCall, "gemini generate content").WithContext("model", g.model)
	}
	out := strings.TrimSpace(resp.Text())
	if out == "" {
		return "", errs.New(errs.ErrExternalCall, "gemini returned no text").WithContext("model", g.model)
	}
	return out, nil
}
