package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const youdaoURL = "https://openapi.youdao.com/api"

var youdaoCodes = map[Language]string{
	Auto:               "auto",
	ChineseSimplified:  "zh-CHS",
	ChineseTraditional: "zh-CHT",
	English:            "en",
	Japanese:           "ja",
	French:             "fr",
	Korean:             "ko",
	German:             "de",
}

// YoudaoBackend calls the Youdao openapi text translation endpoint (v3 signature).
type YoudaoBackend struct {
	appKey    string
	appSecret string
	baseURL   string
	client    *http.Client
	now       func() time.Time
	salt      func() string
}

func NewYoudaoBackend(appKey, appSecret string, client *http.Client) *YoudaoBackend {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &YoudaoBackend{
		appKey:    appKey,
		appSecret: appSecret,
		baseURL:   youdaoURL,
		client:    client,
		now:       time.Now,
		salt:      func() string { return ulid.Make().String() },
	}
}

type youdaoResponse struct {
	ErrorCode   string   `json:"errorCode"`
	Translation []string `json:"translation"`
}

func (y *YoudaoBackend) Translate(ctx context.Context, text string, from, to Language) (string, error) {
	if y.appKey == "" || y.appSecret == "" {
		return "", fmt.Errorf("%w: YOUDAO_APP_KEY and YOUDAO_APP_SECRET are required", ErrMissingCredentials)
	}
	src, dst, err := pairCodes(youdaoCodes, from, to)
	if err != nil {
		return "", err
	}

	salt := y.salt()
	curtime := strconv.FormatInt(y.now().Unix(), 10)
	form := url.Values{}
	form.Set("q", text)
	form.Set("from", src)
	form.Set("to", dst)
	form.Set("appKey", y.appKey)
	form.Set("salt", salt)
	form.Set("curtime", curtime)
	form.Set("signType", "v3")
	form.Set("sign", youdaoSign(y.appKey, text, salt, curtime, y.appSecret))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, y.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp youdaoResponse
	if err := doJSON(y.client, req, &resp); err != nil {
		return "", err
	}
	if resp.ErrorCode != "0" {
		return "", youdaoError(resp.ErrorCode)
	}
	if len(resp.Translation) == 0 {
		return "", fmt.Errorf("%w: empty translation", ErrMalformedResponse)
	}
	return strings.Join(resp.Translation, "\n"), nil
}

// youdaoInput truncates long queries the way the v3 signature expects:
// first 10 runes + rune count + last 10 runes.
func youdaoInput(q string) string {
	r := []rune(q)
	if len(r) <= 20 {
		return q
	}
	return string(r[:10]) + strconv.Itoa(len(r)) + string(r[len(r)-10:])
}

func youdaoSign(appKey, q, salt, curtime, secret string) string {
	sum := sha256.Sum256([]byte(appKey + youdaoInput(q) + salt + curtime + secret))
	return hex.EncodeToString(sum[:])
}

func youdaoError(code string) error {
	switch code {
	case "411", "412":
		return fmt.Errorf("%w: youdao errorCode %s", ErrRateLimited, code)
	case "102":
		return fmt.Errorf("%w: youdao errorCode %s", ErrUnsupportedLanguagePair, code)
	case "108", "110", "202":
		return fmt.Errorf("%w: youdao errorCode %s", ErrMissingCredentials, code)
	case "":
		return fmt.Errorf("%w: missing errorCode", ErrMalformedResponse)
	default:
		return fmt.Errorf("%w: youdao errorCode %s", ErrNetwork, code)
	}
}
