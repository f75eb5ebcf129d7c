package impl

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bakkerme/salewatch/internal/history"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func response(r *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Status:     http.StatusText(status),
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    r,
	}
}

func TestFetcherSendsCookiesAndHeaders(t *testing.T) {
	t.Parallel()

	fetcher := NewFetcher(2*time.Second, "http://poe.test/api/trade/history", "", "sess-123", "clear-456")
	fetcher.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.URL.String() != "http://poe.test/api/trade/history/Keepers" {
				t.Errorf("url = %s", r.URL.String())
			}
			if c, err := r.Cookie("POESESSID"); err != nil || c.Value != "sess-123" {
				t.Errorf("POESESSID cookie = %v, %v", c, err)
			}
			if c, err := r.Cookie("cf_clearance"); err != nil || c.Value != "clear-456" {
				t.Errorf("cf_clearance cookie = %v, %v", c, err)
			}
			if got := r.Header.Get("X-Requested-With"); got != "XMLHttpRequest" {
				t.Errorf("X-Requested-With = %q", got)
			}
			if got := r.Header.Get("Referer"); got != defaultReferer {
				t.Errorf("Referer = %q", got)
			}
			if got := r.Header.Get("User-Agent"); got != defaultUserAgent {
				t.Errorf("User-Agent = %q", got)
			}
			return response(r, http.StatusOK, `[{"id":"1"}]`), nil
		}),
	}

	payload, err := fetcher.Fetch(context.Background(), "Keepers")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if string(payload) != `[{"id":"1"}]` {
		t.Fatalf("payload = %s", payload)
	}
}

func TestFetcherReportsStatusErrors(t *testing.T) {
	t.Parallel()

	fetcher := NewFetcher(time.Second, "http://poe.test/", "", "s", "c")
	fetcher.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return response(r, http.StatusForbidden, "Just a moment..."), nil
		}),
	}

	_, err := fetcher.Fetch(context.Background(), "Keepers")
	var statusErr *history.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusForbidden || statusErr.Body != "Just a moment..." {
		t.Fatalf("unexpected status error %+v", statusErr)
	}
}

func TestFetcherReportsParseErrors(t *testing.T) {
	t.Parallel()

	fetcher := NewFetcher(time.Second, "http://poe.test/", "", "s", "c")
	fetcher.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return response(r, http.StatusOK, "<html>not json</html>"), nil
		}),
	}

	_, err := fetcher.Fetch(context.Background(), "Keepers")
	var parseErr *history.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestFetcherWrapsTransportErrors(t *testing.T) {
	t.Parallel()

	timeout := errors.New("i/o timeout")
	fetcher := NewFetcher(time.Second, "http://poe.test/", "", "s", "c")
	fetcher.client = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return nil, timeout
		}),
	}

	_, err := fetcher.Fetch(context.Background(), "Keepers")
	if !errors.Is(err, timeout) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}
