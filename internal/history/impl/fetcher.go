package impl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bakkerme/salewatch/internal/history"
	"github.com/tidwall/gjson"
)

const (
	defaultBaseURL   = "https://www.pathofexile.com/api/trade/history/"
	defaultReferer   = "https://www.pathofexile.com/trade/history"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36"

	sessionCookie   = "POESESSID"
	clearanceCookie = "cf_clearance"
)

// browserHeaders mirror what the trade site's own XHR sends. The history
// endpoint rejects requests that do not look like they came from the page.
var browserHeaders = map[string]string{
	"Accept":                      "*/*",
	"Accept-Language":             "en-US,en;q=0.9",
	"X-Requested-With":            "XMLHttpRequest",
	"Sec-Fetch-Dest":              "empty",
	"Sec-Fetch-Mode":              "cors",
	"Sec-Fetch-Site":              "same-origin",
	"DNT":                         "1",
	"sec-ch-ua":                   `"Chromium";v="142", "Google Chrome";v="142", "Not_A Brand";v="99"`,
	"sec-ch-ua-arch":              `"x86"`,
	"sec-ch-ua-bitness":           `"64"`,
	"sec-ch-ua-full-version":      `"142.0.7444.163"`,
	"sec-ch-ua-full-version-list": `"Chromium";v="142.0.7444.163", "Google Chrome";v="142.0.7444.163", "Not_A Brand";v="99.0.0.0"`,
	"sec-ch-ua-mobile":            "?0",
	"sec-ch-ua-model":             `""`,
	"sec-ch-ua-platform":          `"Windows"`,
	"sec-ch-ua-platform-version":  `"19.0.0"`,
}

type Fetcher struct {
	client      *http.Client
	baseURL     string
	userAgent   string
	sessionID   string
	cfClearance string
	maxBodySize int64
}

// NewFetcher builds a fetcher for the trade-history API. The timeout bounds
// the whole request, including reading the body.
func NewFetcher(timeout time.Duration, baseURL, userAgent, sessionID, cfClearance string) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = defaultUserAgent
	}
	return &Fetcher{
		client:      &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		userAgent:   userAgent,
		sessionID:   sessionID,
		cfClearance: cfClearance,
		maxBodySize: 10 << 20, // 10 MiB
	}
}

func (f *Fetcher) Fetch(ctx context.Context, market string) (json.RawMessage, error) {
	market = strings.TrimSpace(market)
	if market == "" {
		return nil, fmt.Errorf("trade history: market is required")
	}
	endpoint := f.baseURL + url.PathEscape(market)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("trade history: build request: %w", err)
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Referer", defaultReferer)
	if f.sessionID != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: f.sessionID})
	}
	if f.cfClearance != "" {
		req.AddCookie(&http.Cookie{Name: clearanceCookie, Value: f.cfClearance})
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trade history: GET %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("trade history: read body: %w", err)
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, fmt.Errorf("trade history: response larger than %d bytes", f.maxBodySize)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &history.StatusError{StatusCode: resp.StatusCode, Body: history.Snippet(body)}
	}
	if !gjson.ValidBytes(body) {
		return nil, &history.ParseError{Snippet: history.Snippet(body)}
	}
	return json.RawMessage(body), nil
}
