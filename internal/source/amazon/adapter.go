package amazon

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/timmy/stylematch/internal/domain"
	"github.com/timmy/stylematch/internal/source"
)

const (
	SourceID   = "amazon"
	SourceName = "Amazon"

	DefaultBaseURL    = "https://www.amazon.in"
	DefaultMaxResults = 20
)

// Adapter implements the Source interface for Amazon search result pages.
type Adapter struct {
	baseURL *url.URL
	client  *resty.Client
}

// NewAdapter creates a new Amazon adapter. An empty baseURL means DefaultBaseURL.
func NewAdapter(baseURL, userAgent string, timeout time.Duration) (*Adapter, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid amazon base url: %w", err)
	}
	return &Adapter{
		baseURL: u,
		client:  source.NewHTTPClient(userAgent, timeout),
	}, nil
}

// GetSourceID returns the unique identifier for this source
func (a *Adapter) GetSourceID() string {
	return SourceID
}

// GetDisplayName returns a human-readable name for this source
func (a *Adapter) GetDisplayName() string {
	return SourceName
}

// Search fetches the results page for query and parses up to maxResults listings.
func (a *Adapter) Search(ctx context.Context, query domain.Query, maxResults int) ([]domain.Candidate, error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	doc, err := source.FetchDocument(ctx, a.client, a.baseURL.String()+"/s", map[string]string{
		"k": string(query),
	})
	if err != nil {
		return nil, err
	}
	return a.parse(doc, maxResults), nil
}

func (a *Adapter) parse(doc *goquery.Document, maxResults int) []domain.Candidate {
	var out []domain.Candidate
	doc.Find("[data-component-type='s-search-result']").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if len(out) >= maxResults {
			return false
		}
		out = append(out, domain.Candidate{
			Name:      source.Text(s, "h2.a-size-base-plus span"),
			Price:     price(s),
			SourceURL: domain.OptString(source.Resolve(a.baseURL, source.Attr(s, "a.a-link-normal", "href"))),
			ImageURL:  domain.OptString(source.Attr(s, "img.s-image", "src")),
			Rating:    domain.OptString(source.Text(s, ".a-icon-alt")),
		})
		return true
	})
	return out
}

// price joins the currency symbol and the whole part. Without a whole part
// there is no price.
func price(s *goquery.Selection) *string {
	whole := strings.TrimSuffix(source.Text(s, "span.a-price-whole"), ".")
	if whole == "" {
		return nil
	}
	return domain.OptString(source.Text(s, "span.a-price-symbol") + whole)
}
