package translate

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const googleURL = "https://translate.googleapis.com/translate_a/single"

var googleCodes = map[Language]string{
	Auto:               "auto",
	ChineseSimplified:  "zh-CN",
	ChineseTraditional: "zh-TW",
	English:            "en",
	Japanese:           "ja",
	French:             "fr",
	Korean:             "ko",
	German:             "de",
}

// GoogleBackend uses the public web translation endpoint; it needs no key.
type GoogleBackend struct {
	baseURL string
	client  *http.Client
}

func NewGoogleBackend(client *http.Client) *GoogleBackend {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &GoogleBackend{baseURL: googleURL, client: client}
}

func (g *GoogleBackend) Translate(ctx context.Context, text string, from, to Language) (string, error) {
	src, dst, err := pairCodes(googleCodes, from, to)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", src)
	q.Set("tl", dst)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	// Reply shape: [[["translated","source",...],...],null,"en",...]
	var payload []any
	if err := doJSON(g.client, req, &payload); err != nil {
		return "", err
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("%w: empty payload", ErrMalformedResponse)
	}
	segments, ok := payload[0].([]any)
	if !ok {
		return "", fmt.Errorf("%w: missing segments", ErrMalformedResponse)
	}

	var b strings.Builder
	for _, seg := range segments {
		parts, ok := seg.([]any)
		if !ok || len(parts) == 0 {
			continue
		}
		if s, ok := parts[0].(string); ok {
			b.WriteString(s)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: no translated segments", ErrMalformedResponse)
	}
	return b.String(), nil
}
