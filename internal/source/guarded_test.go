package source

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/stylematch/internal/config"
	"github.com/timmy/stylematch/internal/domain"
	"github.com/timmy/stylematch/internal/metrics"
)

type stubSource struct {
	id      string
	results []domain.Candidate
	err     error
	delay   time.Duration
	calls   int
}

func (s *stubSource) GetSourceID() string    { return s.id }
func (s *stubSource) GetDisplayName() string { return s.id }

func (s *stubSource) Search(ctx context.Context, _ domain.Query, _ int) ([]domain.Candidate, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.results, s.err
}

type recordingSink struct {
	mu      sync.Mutex
	sources []string
	counts  []int
}

func (r *recordingSink) SaveResults(_ context.Context, source string, _ domain.Query, results []domain.Candidate) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, source)
	r.counts = append(r.counts, len(results))
	return source + "_results.json", nil
}

func TestGuardedStampsSourceAndSavesSidecar(t *testing.T) {
	inner := &stubSource{id: "amazon", results: []domain.Candidate{{Name: "a"}, {Name: "b"}, {Name: "c"}}}
	sink := &recordingSink{}
	g := NewGuarded(inner, time.Second, config.BreakerConfig{}, sink, metrics.NewNop())

	got, err := g.Search(context.Background(), "q", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "amazon", got[0].Source)
	assert.Equal(t, "b", got[1].Name)
	assert.Empty(t, inner.results[0].Source, "inner results must not be mutated")
	assert.Equal(t, []string{"amazon"}, sink.sources)
	assert.Equal(t, []int{2}, sink.counts)
}

func TestGuardedWrapsErrors(t *testing.T) {
	inner := &stubSource{id: "google_shopping", err: errors.New("captcha")}
	g := NewGuarded(inner, time.Second, config.BreakerConfig{}, nil, nil)

	_, err := g.Search(context.Background(), "q", 10)
	var se *domain.ScrapeError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "google_shopping", se.Source)
	assert.ErrorIs(t, err, domain.ErrScrape)
	assert.False(t, domain.IsFatal(err))
}

func TestGuardedTimeout(t *testing.T) {
	inner := &stubSource{id: "slow", delay: time.Second}
	g := NewGuarded(inner, 20*time.Millisecond, config.BreakerConfig{}, nil, nil)

	start := time.Now()
	_, err := g.Search(context.Background(), "q", 10)
	assert.ErrorIs(t, err, domain.ErrScrape)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestGuardedBreakerOpens(t *testing.T) {
	inner := &stubSource{id: "flaky", err: errors.New("503")}
	g := NewGuarded(inner, time.Second, config.BreakerConfig{MinRequests: 3, FailureRatio: 0.5, OpenTimeout: time.Minute}, nil, metrics.NewNop())

	for i := 0; i < 3; i++ {
		_, err := g.Search(context.Background(), "q", 10)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, g.State())

	_, err := g.Search(context.Background(), "q", 10)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.ErrorIs(t, err, domain.ErrScrape)
	assert.Equal(t, 3, inner.calls, "open breaker must not call the source")
}
