package translate

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const baiduURL = "https://fanyi-api.baidu.com/api/trans/vip/translate"

var baiduCodes = map[Language]string{
	Auto:               "auto",
	ChineseSimplified:  "zh",
	ChineseTraditional: "cht",
	English:            "en",
	Japanese:           "jp",
	French:             "fra",
	Korean:             "kor",
	German:             "de",
}

// BaiduBackend calls the Baidu general translation API.
type BaiduBackend struct {
	appID     string
	secretKey string
	baseURL   string
	client    *http.Client
	salt      func() string
}

func NewBaiduBackend(appID, secretKey string, client *http.Client) *BaiduBackend {
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &BaiduBackend{
		appID:     appID,
		secretKey: secretKey,
		baseURL:   baiduURL,
		client:    client,
		salt:      func() string { return strconv.FormatInt(time.Now().UnixNano(), 10) },
	}
}

type baiduResponse struct {
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
	Result    []struct {
		Src string `json:"src"`
		Dst string `json:"dst"`
	} `json:"trans_result"`
}

func (b *BaiduBackend) Translate(ctx context.Context, text string, from, to Language) (string, error) {
	if b.appID == "" || b.secretKey == "" {
		return "", fmt.Errorf("%w: BAIDU_APP_ID and BAIDU_SECRET_KEY are required", ErrMissingCredentials)
	}
	src, dst, err := pairCodes(baiduCodes, from, to)
	if err != nil {
		return "", err
	}

	salt := b.salt()
	form := url.Values{}
	form.Set("q", text)
	form.Set("from", src)
	form.Set("to", dst)
	form.Set("appid", b.appID)
	form.Set("salt", salt)
	form.Set("sign", baiduSign(b.appID, text, salt, b.secretKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp baiduResponse
	if err := doJSON(b.client, req, &resp); err != nil {
		return "", err
	}
	if resp.ErrorCode != "" && resp.ErrorCode != "52000" {
		return "", baiduError(resp.ErrorCode, resp.ErrorMsg)
	}
	if len(resp.Result) == 0 {
		return "", fmt.Errorf("%w: empty trans_result", ErrMalformedResponse)
	}

	lines := make([]string, 0, len(resp.Result))
	for _, r := range resp.Result {
		lines = append(lines, r.Dst)
	}
	return strings.Join(lines, "\n"), nil
}

func baiduSign(appID, q, salt, key string) string {
	sum := md5.Sum([]byte(appID + q + salt + key))
	return hex.EncodeToString(sum[:])
}

func baiduError(code, msg string) error {
	switch code {
	case "54003", "54005":
		return fmt.Errorf("%w: baidu %s %s", ErrRateLimited, code, msg)
	case "58001":
		return fmt.Errorf("%w: baidu %s %s", ErrUnsupportedLanguagePair, code, msg)
	case "52003", "54001", "58002":
		return fmt.Errorf("%w: baidu %s %s", ErrMissingCredentials, code, msg)
	default:
		return fmt.Errorf("%w: baidu %s %s", ErrNetwork, code, msg)
	}
}
