// Package search answers free-text questions about AR/MR ROI with a list of
// relevant documents and the reasoning used to pick them.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const MinQueryChars = 3

const (
	MsgInvalidInput  = "Invalid input."
	MsgQueryTooShort = "Search query must be at least 3 characters long."
	MsgNoResults     = "AI Search failed to return results."
	MsgUnexpected    = "An unexpected error occurred during the AI search."
	MsgSuccess       = "Search successful!"
)

var (
	ErrInvalidQuery = errors.New("invalid search query")
	// ErrSearchFailed covers every downstream failure; callers show a generic message.
	ErrSearchFailed   = errors.New("search failed")
	ErrMissingResults = errors.New("response has no results")
)

var tracer = otel.Tracer("github.com/joelkehle/roi-copilot/internal/search")

type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Summary string `json:"summary"`
}

type Response struct {
	Results   []Result `json:"results"`
	Reasoning string   `json:"reasoning"`
}

// Searcher is one provider behind the search boundary.
type Searcher interface {
	Search(ctx context.Context, query string) (Response, error)
}

// ValidateQuery trims the query and enforces the minimum length.
func ValidateQuery(query string) (string, error) {
	q := strings.TrimSpace(query)
	if len([]rune(q)) < MinQueryChars {
		return "", fmt.Errorf("%w: %s", ErrInvalidQuery, MsgQueryTooShort)
	}
	return q, nil
}

// decodeResponse parses a model answer, rejecting one without a results array.
func decodeResponse(raw string) (Response, error) {
	var wire struct {
		Results   *[]Result `json:"results"`
		Reasoning string    `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return Response{}, err
	}
	if wire.Results == nil {
		return Response{}, ErrMissingResults
	}
	return Response{Results: *wire.Results, Reasoning: wire.Reasoning}, nil
}

type ServiceOptions struct {
	Provider string
	Cache    Cache
	CacheTTL time.Duration
	Log      *zap.Logger
}

// Service validates queries, consults the cache and hides provider errors
// behind ErrSearchFailed.
type Service struct {
	searcher Searcher
	provider string
	cache    Cache
	ttl      time.Duration
	log      *zap.Logger
}

func NewService(searcher Searcher, opts ServiceOptions) *Service {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		searcher: searcher,
		provider: opts.Provider,
		cache:    opts.Cache,
		ttl:      opts.CacheTTL,
		log:      log.With(zap.String("provider", opts.Provider)),
	}
}

func (s *Service) Provider() string { return s.provider }

func (s *Service) Search(ctx context.Context, query string) (Response, error) {
	q, err := ValidateQuery(query)
	if err != nil {
		return Response{}, err
	}
	ctx, span := tracer.Start(ctx, "search")
	defer span.End()
	span.SetAttributes(attribute.String("search.provider", s.provider))

	key := CacheKey(q)
	if resp, ok := s.cached(ctx, key); ok {
		span.SetAttributes(attribute.Bool("search.cache_hit", true))
		return resp, nil
	}

	start := time.Now()
	resp, err := s.searcher.Search(ctx, q)
	if err != nil {
		s.log.Warn("search_failed", zap.Int64("elapsed_ms", time.Since(start).Milliseconds()), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if ctx.Err() != nil {
			return Response{}, fmt.Errorf("%w: %w", ErrSearchFailed, ctx.Err())
		}
		return Response{}, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}
	if resp.Results == nil {
		resp.Results = []Result{}
	}
	s.log.Info("search_done",
		zap.Int("results", len(resp.Results)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()))
	span.SetAttributes(attribute.Int("search.results", len(resp.Results)))
	s.store(ctx, key, resp)
	return resp, nil
}

func (s *Service) cached(ctx context.Context, key string) (Response, bool) {
	if s.cache == nil {
		return Response{}, false
	}
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn("search_cache_get_failed", zap.Error(err))
		return Response{}, false
	}
	if !ok {
		return Response{}, false
	}
	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		s.log.Warn("search_cache_corrupt", zap.Error(err))
		return Response{}, false
	}
	s.log.Debug("search_cache_hit")
	return resp, true
}

func (s *Service) store(ctx context.Context, key string, resp Response) {
	if s.cache == nil || s.ttl <= 0 {
		return
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(b), s.ttl); err != nil {
		s.log.Warn("search_cache_set_failed", zap.Error(err))
	}
}
