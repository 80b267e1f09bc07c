package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// NewHTTPClient returns a resty client set up for scraping result pages.
func NewHTTPClient(userAgent string, timeout time.Duration) *resty.Client {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "text/html,application/xhtml+xml").
		SetHeader("Accept-Language", "en-US,en;q=0.9")
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}
	return client
}

// FetchDocument GETs pageURL with params and parses the body as HTML.
func FetchDocument(ctx context.Context, client *resty.Client, pageURL string, params map[string]string) (*goquery.Document, error) {
	resp, err := client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetDoNotParseResponse(true).
		Get(pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode(), pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}
	return doc, nil
}

// Text returns the trimmed text of the first match of selector inside s.
func Text(s *goquery.Selection, selector string) string {
	return strings.TrimSpace(s.Find(selector).First().Text())
}

// Attr returns the first non-empty value of attrs on the first match of selector.
func Attr(s *goquery.Selection, selector string, attrs ...string) string {
	sel := s.Find(selector).First()
	for _, a := range attrs {
		if v, ok := sel.Attr(a); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Resolve makes href absolute against base. Empty input stays empty.
func Resolve(base *url.URL, href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}
