package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/errs"
)

// Libre calls a LibreTranslate server.
type Libre struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewLibre(baseURL, apiKey string, httpClient *http.Client) *Libre {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Libre{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, httpClient: httpClient}
}

type libreRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type libreResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error"`
}

func (l *Libre) Translate(ctx context.Context, text, source, target string) (string, error) {
	if source == "" {
		source = "auto"
	}
	payload, err := json.Marshal(libreRequest{Q: text, Source: source, Target: target, Format: "text", APIKey: l.apiKey})
	if err != nil {
		return "", errs.Wrap(err, errs.ErrExternalCall, "encode libretranslate request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+"/translate", bytes.NewReader(payload))
	if err != nil {
		return "", errs.Wrap(err, errs.ErrExternalCall, "build libretranslate request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", errs.Wrap(err, errs.ErrExternalCall, "libretranslate request")
	}
	defer resp.Body.Close()

	var out libreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", errs.Wrap(err, errs.ErrExternalCall, "decode libretranslate response").WithContext("status", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || out.Error != "" {
		return "", errs.Newf(errs.ErrExternalCall, "libretranslate status %d: %s", resp.StatusCode, out.Error)
	}
	return out.TranslatedText, nil
}
