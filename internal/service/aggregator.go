package service

import (
	"net/url"
	"strings"

	"github.com/timmy/stylematch/internal/domain"
)

// placeholders are the "nothing found" strings scrapers emit for missing fields.
var placeholders = map[string]bool{
	"no name available":   true,
	"no price available":  true,
	"no rating available": true,
	"no link available":   true,
	"no image available":  true,
	"n/a":                 true,
}

// trackingParams are dropped from source URLs before comparing them.
var trackingParams = []string{"ref", "tag", "ref_", "srsltid", "psc"}

// Aggregator merges per-source candidate lists.
type Aggregator struct {
	dedupe bool
}

// NewAggregator returns an Aggregator. With dedupe set, candidates whose
// normalized source URL was already seen are dropped (first one wins).
func NewAggregator(dedupe bool) *Aggregator {
	return &Aggregator{dedupe: dedupe}
}

// Merge concatenates lists in the order given, keeping each list's internal
// order. Candidates without an image URL are kept.
func (a *Aggregator) Merge(lists [][]domain.Candidate) []domain.Candidate {
	total := 0
	for _, l := range lists {
		total += len(l)
	}

	merged := make([]domain.Candidate, 0, total)
	seen := make(map[string]struct{})
	for _, l := range lists {
		for _, c := range l {
			c = normalizeCandidate(c)
			if a.dedupe && c.SourceURL != nil {
				key := DedupeKey(*c.SourceURL)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
			}
			merged = append(merged, c)
		}
	}
	return merged
}

func normalizeCandidate(c domain.Candidate) domain.Candidate {
	c.Name = strings.TrimSpace(c.Name)
	c.Price = clean(c.Price)
	c.SourceURL = clean(c.SourceURL)
	c.ImageURL = clean(c.ImageURL)
	c.Rating = clean(c.Rating)
	return c
}

func clean(s *string) *string {
	if s == nil {
		return nil
	}
	v := domain.OptString(*s)
	if v != nil && placeholders[strings.ToLower(*v)] {
		return nil
	}
	return v
}

// DedupeKey normalizes a product URL: lower-cased scheme and host, no
// trailing slash, no fragment, and no utm_* or affiliate parameters.
// Unparseable URLs are compared verbatim.
func DedupeKey(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")

	q := u.Query()
	for k := range q {
		if strings.HasPrefix(strings.ToLower(k), "utm_") {
			q.Del(k)
		}
	}
	for _, k := range trackingParams {
		q.Del(k)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
