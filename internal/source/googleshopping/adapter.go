package googleshopping

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/timmy/stylematch/internal/domain"
	"github.com/timmy/stylematch/internal/logger"
	"github.com/timmy/stylematch/internal/source"
)

const (
	SourceID   = "google_shopping"
	SourceName = "Google Shopping"

	DefaultBaseURL    = "https://www.google.com"
	DefaultMaxResults = 40
)

// Result page selectors.
const (
	selResult = ".sh-dgr__grid-result"
	selName   = "h3"
	selPrice  = ".a8Pemb"
	selLink   = "a"
	selImage  = ".ArOc1c img"
	selRating = ".Rsc7Yb"
)

// Adapter implements the Source interface for Google Shopping result pages.
type Adapter struct {
	baseURL *url.URL
	client  *resty.Client
}

// NewAdapter creates a new Google Shopping adapter. An empty baseURL means
// DefaultBaseURL.
func NewAdapter(baseURL, userAgent string, timeout time.Duration) (*Adapter, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid google shopping base url: %w", err)
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

// Search fetches the shopping tab for query and parses up to maxResults
// listings. Listings without a title are skipped.
func (a *Adapter) Search(ctx context.Context, query domain.Query, maxResults int) ([]domain.Candidate, error) {
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	doc, err := source.FetchDocument(ctx, a.client, a.baseURL.String()+"/search", map[string]string{
		"q":   string(query),
		"tbm": "shop",
		"hl":  "en",
	})
	if err != nil {
		return nil, err
	}
	return a.parse(ctx, doc, maxResults), nil
}

func (a *Adapter) parse(ctx context.Context, doc *goquery.Document, maxResults int) []domain.Candidate {
	var out []domain.Candidate
	skipped := 0
	doc.Find(selResult).EachWithBreak(func(i int, s *goquery.Selection) bool {
		if len(out) >= maxResults {
			return false
		}
		name := source.Text(s, selName)
		if name == "" {
			skipped++
			return true
		}
		out = append(out, domain.Candidate{
			Name:      name,
			Price:     domain.OptString(source.Text(s, selPrice)),
			SourceURL: domain.OptString(source.Resolve(a.baseURL, source.Attr(s, selLink, "href"))),
			ImageURL:  domain.OptString(source.Attr(s, selImage, "src", "data-src")),
			Rating:    domain.OptString(source.Text(s, selRating)),
		})
		return true
	})
	if skipped > 0 {
		logger.CtxWarn(ctx, "Skipped %d Google Shopping listings without a title", skipped)
	}
	return out
}
