package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/safenetcreations/NARA-OFFICIAL-WEBSITE-sub019/internal/errs"
)

// Google calls the public translate_a/single endpoint.
type Google struct {
	baseURL    string
	httpClient *http.Client
}

func NewGoogle(baseURL string, httpClient *http.Client) *Google {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Google{baseURL: baseURL, httpClient: httpClient}
}

func (g *Google) Translate(ctx context.Context, text, source, target string) (string, error) {
	if source == "" {
		source = "auto"
	}
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", source)
	q.Set("tl", target)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", errs.Wrap(err, errs.ErrExternalCall, "build google request")
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", errs.Wrap(err, errs.ErrExternalCall, "google translate request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errs.Wrap(err, errs.ErrExternalCall, "read google response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", errs.Newf(errs.ErrExternalCall, "google translate status %d", resp.StatusCode).
			WithContext("body", truncate(string(body), 200))
	}
	return parseGoogleResponse(body)
}

// parseGoogleResponse joins the translated segments found at data[0][i][0].
func parseGoogleResponse(body []byte) (string, error) {
	var data []json.RawMessage
	if err := json.Unmarshal(body, &data); err != nil || len(data) == 0 {
		return "", errs.New(errs.ErrExternalCall, "unexpected google response shape")
	}
	var segments [][]json.RawMessage
	if err := json.Unmarshal(data[0], &segments); err != nil {
		return "", errs.Wrap(err, errs.ErrExternalCall, "unexpected google segments")
	}
	var sb strings.Builder
	for i, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		var part *string
		if err := json.Unmarshal(seg[0], &part); err != nil {
			return "", errs.Wrap(err, errs.ErrExternalCall, fmt.Sprintf("unexpected google segment %d", i))
		}
		if part != nil {
			sb.WriteString(*part)
		}
	}
	return sb.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
