package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	appLog "wikical/internal/log"
)

// maxBodyBytes bounds how much of the API response is read.
const maxBodyBytes = 16 << 20

// Fetcher retrieves the rendered HTML of the events page from the MediaWiki
// parse API.
type Fetcher struct {
	client    *http.Client
	url       string
	userAgent string
}

// NewFetcher creates a Fetcher for the given parse API URL.
// A zero timeout falls back to 15 seconds.
func NewFetcher(url, userAgent string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
		url:       url,
		userAgent: userAgent,
	}
}

// parseResponse is the subset of the action=parse response we consume.
// The page HTML lives under parse.text["*"].
type parseResponse struct {
	Parse *struct {
		Text map[string]json.RawMessage `json:"text"`
	} `json:"parse"`
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

// FetchHTML performs one GET against the API and returns the page HTML.
// Transport failures and non-2xx statuses yield a *FetchError; a body that
// does not have the expected shape yields a *DecodeError.
func (f *Fetcher) FetchHTML(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return "", &FetchError{URL: f.url, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	appLog.Info("wiki fetch start", "url", redactURL(f.url))

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: f.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{
			URL:        f.url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &FetchError{URL: f.url, StatusCode: 0, Err: err}
	}

	page, err := DecodeParseResponse(body)
	if err != nil {
		return "", err
	}

	appLog.Info("wiki fetch success", "url", redactURL(f.url), "status", resp.StatusCode, "html_bytes", len(page))
	return page, nil
}

// DecodeParseResponse extracts parse.text["*"] from a parse API response.
func DecodeParseResponse(body []byte) (string, error) {
	var pr parseResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return "", &DecodeError{Reason: "invalid JSON", Err: err}
	}
	if pr.Error != nil {
		return "", &DecodeError{Reason: fmt.Sprintf("api error %q: %s", pr.Error.Code, pr.Error.Info)}
	}
	if pr.Parse == nil {
		return "", &DecodeError{Reason: `missing "parse" object`}
	}
	if pr.Parse.Text == nil {
		return "", &DecodeError{Reason: `missing "parse.text" object`}
	}
	raw, ok := pr.Parse.Text["*"]
	if !ok || string(raw) == "null" {
		return "", &DecodeError{Reason: `missing "parse.text.*" field`}
	}

	var page string
	if err := json.Unmarshal(raw, &page); err != nil {
		return "", &DecodeError{Reason: `"parse.text.*" is not a string`, Err: err}
	}
	return page, nil
}

// redactURL keeps only scheme and host so query strings and credentials
// never reach logs.
//
//	https://example.com/w/api.php?action=parse -> https://example.com/...(redacted)
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
