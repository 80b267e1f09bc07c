// Package artifacts writes per-source result sidecars for auditing.
package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/timmy/stylematch/internal/domain"
	"github.com/timmy/stylematch/internal/logger"
	"github.com/timmy/stylematch/internal/storage"
)

// ErrNotFound is returned by Load when no sidecar exists for a match and source.
var ErrNotFound = errors.New("sidecar not found")

var validSegment = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type matchIDKey struct{}

// WithMatchID tags ctx so sidecars written under it are grouped by match.
func WithMatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, matchIDKey{}, id)
}

func matchID(ctx context.Context) string {
	if id, ok := ctx.Value(matchIDKey{}).(string); ok && id != "" {
		return id
	}
	return "adhoc-" + uuid.NewString()
}

// Sink stores raw source results. A nil *Sink is valid and stores nothing.
type Sink struct {
	store  storage.ObjectStorage
	prefix string
}

// NewSink writes sidecars into store under prefix.
func NewSink(store storage.ObjectStorage, prefix string) *Sink {
	return &Sink{store: store, prefix: prefix}
}

// Sidecar is the document written for one source search.
type Sidecar struct {
	Source    string             `json:"source"`
	Query     string             `json:"query"`
	MatchID   string             `json:"match_id"`
	CreatedAt time.Time          `json:"created_at"`
	Results   []domain.Candidate `json:"results"`
}

func (s *Sink) key(matchID, source string) string {
	return path.Join(s.prefix, matchID, source+"_results.json")
}

// SaveResults writes <prefix>/<match>/<source>_results.json and returns its key.
func (s *Sink) SaveResults(ctx context.Context, source string, query domain.Query, results []domain.Candidate) (string, error) {
	if s == nil || s.store == nil {
		return "", nil
	}
	id := matchID(ctx)
	doc := Sidecar{
		Source:    source,
		Query:     string(query),
		MatchID:   id,
		CreatedAt: time.Now().UTC(),
		Results:   results,
	}
	if doc.Results == nil {
		doc.Results = []domain.Candidate{}
	}

	body, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode %s results: %w", source, err)
	}

	key := s.key(id, source)
	if err := s.store.Upload(ctx, key, bytes.NewReader(body), int64(len(body)), "application/json"); err != nil {
		return "", err
	}
	logger.CtxDebug(ctx, "Saved %d %s results to %s", len(doc.Results), source, s.store.GetURL(key))
	return key, nil
}

// Load reads the sidecar a match wrote for source.
func (s *Sink) Load(ctx context.Context, matchID, source string) (Sidecar, error) {
	if !validSegment.MatchString(matchID) || !validSegment.MatchString(source) {
		return Sidecar{}, fmt.Errorf("%w: sidecar %s/%s", domain.ErrInvalidInput, matchID, source)
	}
	if s == nil || s.store == nil {
		return Sidecar{}, ErrNotFound
	}

	key := s.key(matchID, source)
	ok, err := s.store.Exists(ctx, key)
	if err != nil {
		return Sidecar{}, err
	}
	if !ok {
		return Sidecar{}, ErrNotFound
	}

	rc, err := s.store.Download(ctx, key)
	if err != nil {
		return Sidecar{}, err
	}
	defer rc.Close()

	var doc Sidecar
	if err := json.NewDecoder(rc).Decode(&doc); err != nil {
		return Sidecar{}, fmt.Errorf("failed to decode sidecar %s: %w", key, err)
	}
	return doc, nil
}

// Purge deletes the sidecars a match wrote for the given sources and returns
// how many existed.
func (s *Sink) Purge(ctx context.Context, matchID string, sources []string) (int, error) {
	if s == nil || s.store == nil || !validSegment.MatchString(matchID) {
		return 0, nil
	}

	var errs []error
	removed := 0
	for _, source := range sources {
		key := s.key(matchID, source)
		ok, err := s.store.Exists(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
