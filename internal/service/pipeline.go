package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/timmy/stylematch/internal/artifacts"
	"github.com/timmy/stylematch/internal/config"
	"github.com/timmy/stylematch/internal/domain"
	"github.com/timmy/stylematch/internal/logger"
	"github.com/timmy/stylematch/internal/metrics"
	"github.com/timmy/stylematch/internal/source"
	"github.com/timmy/stylematch/internal/workspace"
)

const (
	defaultCandidateWorkers = 8
	defaultLogTop           = 10
)

// SearchTarget pairs a source with the number of listings to request from it.
type SearchTarget struct {
	Source     source.Source
	MaxResults int
}

// MatchRequest is one uploaded garment image to match.
type MatchRequest struct {
	// RequestID is the caller's correlation id, used for logging only.
	RequestID    string
	Filename     string
	Image        []byte
	GarmentType  string
	GarmentLayer string
}

// MatchDeps are the collaborators of a MatchService.
type MatchDeps struct {
	Describer  Describer
	Sources    []SearchTarget
	Embedder   Embedder
	Fetcher    *ImageFetcher
	Workspaces *workspace.Manager
	Metrics    *metrics.Metrics
}

// MatchService runs the describe, search, embed and rank pipeline.
type MatchService struct {
	describer    Describer
	sources      []SearchTarget
	embedder     Embedder
	fetcher      *ImageFetcher
	workspaces   *workspace.Manager
	aggregator   *Aggregator
	metrics      *metrics.Metrics
	workers      int
	logTop       int
	embedTimeout time.Duration
}

// NewMatchService creates a new match service.
// Parameters:
//   - deps: describer, sources, embedder, fetcher and workspace manager.
//   - cfg: pipeline settings (worker count, dedupe, logged top N).
//   - embedTimeout: per-image embedding deadline; zero disables it.
//
// Returns:
//   - *MatchService: initialized service.
//   - error: non-nil if a required collaborator is missing.
func NewMatchService(deps MatchDeps, cfg config.PipelineConfig, embedTimeout time.Duration) (*MatchService, error) {
	switch {
	case deps.Describer == nil:
		return nil, errors.New("match service: describer is required")
	case len(deps.Sources) == 0:
		return nil, errors.New("match service: at least one source is required")
	case deps.Embedder == nil:
		return nil, errors.New("match service: embedder is required")
	case deps.Fetcher == nil:
		return nil, errors.New("match service: fetcher is required")
	case deps.Workspaces == nil:
		return nil, errors.New("match service: workspace manager is required")
	}

	workers := cfg.CandidateWorkers
	if workers <= 0 {
		workers = defaultCandidateWorkers
	}
	logTop := cfg.LogTop
	if logTop <= 0 {
		logTop = defaultLogTop
	}

	return &MatchService{
		describer:    deps.Describer,
		sources:      deps.Sources,
		embedder:     deps.Embedder,
		fetcher:      deps.Fetcher,
		workspaces:   deps.Workspaces,
		aggregator:   NewAggregator(cfg.Dedupe),
		metrics:      deps.Metrics,
		workers:      workers,
		logTop:       logTop,
		embedTimeout: embedTimeout,
	}, nil
}

// Match ranks shopping candidates by visual similarity to the uploaded image.
//
// Fatal errors: invalid input (domain.ErrInvalidInput), description failure,
// workspace IO failure, all sources failing, and an upload the embedder
// cannot process. Everything else only leaves single candidates unscored.
func (s *MatchService) Match(ctx context.Context, req MatchRequest) (domain.MatchResult, error) {
	start := time.Now()
	result, err := s.match(ctx, req)

	status := "ok"
	if err != nil {
		status = "error"
		if errors.Is(err, domain.ErrInvalidInput) {
			status = "invalid"
		}
	}
	if s.metrics != nil {
		s.metrics.MatchRequests.WithLabelValues(status).Inc()
		s.metrics.MatchDuration.Observe(time.Since(start).Seconds())
	}
	return result, err
}

func (s *MatchService) match(ctx context.Context, req MatchRequest) (domain.MatchResult, error) {
	if len(req.Image) == 0 {
		return domain.MatchResult{}, fmt.Errorf("%w: empty image", domain.ErrInvalidInput)
	}
	garmentType := strings.TrimSpace(req.GarmentType)
	if garmentType == "" {
		return domain.MatchResult{}, fmt.Errorf("%w: garment_type is required", domain.ErrInvalidInput)
	}
	// Reject unreadable uploads before any model or source is called.
	if err := checkImage(req.Image); err != nil {
		return domain.MatchResult{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	if req.RequestID != "" {
		ctx = logger.SetRequestID(ctx, req.RequestID)
	}
	ws, err := s.workspaces.Acquire(ctx)
	if err != nil {
		return domain.MatchResult{}, err
	}
	defer ws.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ctx = logger.SetMatchID(ctx, ws.ID())
	ctx = artifacts.WithMatchID(ctx, ws.ID())

	path, err := ws.SaveUpload(req.Filename, req.Image)
	if err != nil {
		return domain.MatchResult{}, err
	}
	upload := domain.Image{
		Data:        req.Image,
		ContentType: http.DetectContentType(req.Image),
		Path:        path,
	}

	// The query vector does not depend on the description, so it is
	// computed while the model and the sources are busy.
	queryVec := make(chan embedOutcome, 1)
	go func() {
		v, err := s.embed(ctx, upload)
		queryVec <- embedOutcome{vec: v, err: err}
	}()

	query, err := s.describer.Describe(ctx, upload, garmentType, strings.TrimSpace(req.GarmentLayer))
	if err != nil {
		return domain.MatchResult{}, err
	}

	candidates, err := s.search(ctx, query)
	if err != nil {
		return domain.MatchResult{}, err
	}

	qv := <-queryVec
	if qv.err != nil {
		if errors.Is(qv.err, domain.ErrDecode) {
			return domain.MatchResult{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, qv.err)
		}
		return domain.MatchResult{}, qv.err
	}

	enriched := s.enrich(ctx, ws.FetchedDir(), candidates)
	ranked := Rank(qv.vec, enriched)
	s.record(ctx, ranked)

	return domain.MatchResult{
		MatchID:     ws.ID(),
		Description: string(query),
		Results:     ranked,
	}, nil
}

type embedOutcome struct {
	vec domain.EmbeddingVector
	err error
}

// search queries every source concurrently. A failing source contributes no
// candidates; if every source fails the joined errors are returned.
func (s *MatchService) search(ctx context.Context, query domain.Query) ([]domain.Candidate, error) {
	lists := make([][]domain.Candidate, len(s.sources))
	errs := make([]error, len(s.sources))

	var g errgroup.Group
	for i, target := range s.sources {
		g.Go(func() error {
			results, err := target.Source.Search(ctx, query, target.MaxResults)
			if err != nil {
				logger.CtxWarn(ctx, "Source %s failed: %v", target.Source.GetSourceID(), err)
				errs[i] = err
				return nil
			}
			lists[i] = results
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(s.sources) {
		return nil, errors.Join(append([]error{domain.ErrAllSourcesFailed}, errs...)...)
	}

	merged := s.aggregator.Merge(lists)
	logger.With(logger.Fields{logger.FieldCount: len(merged)}).
		Info(ctx, "Merged %d candidates from %d sources (%d failed)", len(merged), len(s.sources), failed)
	return merged, nil
}

// enrich fetches and embeds every candidate that has an image URL, at most
// s.workers at a time. Failures mark the candidate unscored.
func (s *MatchService) enrich(ctx context.Context, fetchedDir string, candidates []domain.Candidate) []domain.Candidate {
	out := make([]domain.Candidate, len(candidates))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, c := range candidates {
		if !c.HasImage() {
			out[i] = c.WithUnscored(domain.UnscoredNoImageURL)
			continue
		}
		g.Go(func() error {
			out[i] = s.enrichOne(ctx, fetchedDir, c)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *MatchService) enrichOne(ctx context.Context, fetchedDir string, c domain.Candidate) domain.Candidate {
	img, err := s.fetcher.Fetch(ctx, *c.ImageURL, fetchedDir)
	if err != nil {
		logger.CtxDebug(ctx, "Candidate %q unscored: %v", c.Name, err)
		return c.WithUnscored(domain.UnscoredFetchFailed)
	}
	c = c.WithLocalImage(img.Path)

	v, err := s.embed(ctx, img)
	if err != nil {
		logger.CtxDebug(ctx, "Candidate %q unscored: %v", c.Name, err)
		return c.WithUnscored(domain.UnscoredEmbeddingFailed)
	}
	return c.WithEmbedding(v)
}

func (s *MatchService) embed(ctx context.Context, img domain.Image) (domain.EmbeddingVector, error) {
	if s.embedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.embedTimeout)
		defer cancel()
	}
	return s.embedder.Embed(ctx, img)
}

// record updates metrics and logs the top of the ranking.
func (s *MatchService) record(ctx context.Context, ranked []domain.RankedResult) {
	scored := 0
	for _, r := range ranked {
		if r.Similarity != nil {
			scored++
			continue
		}
		if s.metrics != nil {
			s.metrics.CandidatesUnscored.WithLabelValues(string(r.UnscoredReason)).Inc()
		}
	}
	if s.metrics != nil {
		s.metrics.CandidatesScored.Add(float64(scored))
	}

	logger.With(logger.Fields{
		logger.FieldCount:  len(ranked),
		logger.FieldScored: scored,
	}).Info(ctx, "Ranked %d candidates (%d scored)", len(ranked), scored)

	for i, r := range ranked {
		if i >= s.logTop || r.Similarity == nil {
			break
		}
		logger.With(logger.Fields{
			logger.FieldSource:     r.Source,
			logger.FieldSimilarity: *r.Similarity,
		}).Info(ctx, "#%d %s (%s)", i+1, r.Name, domain.Deref(r.SourceURL))
	}
}
