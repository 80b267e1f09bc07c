package source

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/timmy/stylematch/internal/config"
	"github.com/timmy/stylematch/internal/domain"
	"github.com/timmy/stylematch/internal/logger"
	"github.com/timmy/stylematch/internal/metrics"
)

// ResultSink receives each successful search's raw results.
type ResultSink interface {
	SaveResults(ctx context.Context, source string, query domain.Query, results []domain.Candidate) (string, error)
}

// Guarded wraps a Source with a per-call timeout, a circuit breaker,
// metrics and an optional result sidecar. Every failure it returns is a
// *domain.ScrapeError naming the source.
type Guarded struct {
	inner   Source
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	sink    ResultSink
	metrics *metrics.Metrics
}

// NewGuarded wraps inner. A zero timeout disables the per-call deadline.
func NewGuarded(inner Source, timeout time.Duration, bc config.BreakerConfig, sink ResultSink, m *metrics.Metrics) *Guarded {
	minRequests := bc.MinRequests
	if minRequests == 0 {
		minRequests = 5
	}
	ratio := bc.FailureRatio
	if ratio <= 0 {
		ratio = 0.5
	}
	openTimeout := bc.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 60 * time.Second
	}

	id := inner.GetSourceID()
	settings := gobreaker.Settings{
		Name:        id,
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= ratio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker for source %s: %s -> %s", name, from, to)
			if m != nil {
				open := 0.0
				if to == gobreaker.StateOpen {
					open = 1
				}
				m.BreakerOpen.WithLabelValues(name).Set(open)
			}
		},
	}

	return &Guarded{
		inner:   inner,
		timeout: timeout,
		breaker: gobreaker.NewCircuitBreaker(settings),
		sink:    sink,
		metrics: m,
	}
}

func (g *Guarded) GetSourceID() string    { return g.inner.GetSourceID() }
func (g *Guarded) GetDisplayName() string { return g.inner.GetDisplayName() }

// Search runs the wrapped search under the timeout and breaker, stamps the
// source id on each candidate and stores a sidecar.
func (g *Guarded) Search(ctx context.Context, query domain.Query, maxResults int) ([]domain.Candidate, error) {
	id := g.GetSourceID()
	ctx = logger.SetSource(ctx, id)
	start := time.Now()

	out, err := g.breaker.Execute(func() (interface{}, error) {
		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		return g.inner.Search(callCtx, query, maxResults)
	})
	if g.metrics != nil {
		g.metrics.SourceDuration.WithLabelValues(id).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if g.metrics != nil {
			g.metrics.SourceErrors.WithLabelValues(id).Inc()
		}
		var se *domain.ScrapeError
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, &domain.ScrapeError{Source: id, Err: err}
	}

	results, _ := out.([]domain.Candidate)
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	stamped := make([]domain.Candidate, len(results))
	for i, c := range results {
		c.Source = id
		stamped[i] = c
	}

	if g.metrics != nil {
		g.metrics.SourceResults.WithLabelValues(id).Add(float64(len(stamped)))
	}
	logger.With(logger.Fields{
		logger.FieldCount:      len(stamped),
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info(ctx, "Source %s returned %d results", id, len(stamped))

	if g.sink != nil {
		if key, err := g.sink.SaveResults(ctx, id, query, stamped); err != nil {
			logger.CtxWarn(ctx, "Failed to save %s results sidecar: %v", id, err)
		} else if key != "" {
			logger.CtxDebug(ctx, "Saved %s results to %s", id, key)
		}
	}
	return stamped, nil
}

// State returns the breaker state, for health reporting.
func (g *Guarded) State() gobreaker.State {
	return g.breaker.State()
}
