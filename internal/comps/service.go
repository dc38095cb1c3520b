package comps

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/propsight/scout-cli/internal/model"
	"github.com/propsight/scout-cli/internal/retrieval"
	"github.com/propsight/scout-cli/pkg/listings"
)

// Cache is the slice of the store the comps service needs. Cache failures
// are advisory; the service falls through to the upstream on any miss.
type Cache interface {
	GetCachedComps(ctx context.Context, key string) ([]model.ComparableRecord, error)
	SetCachedComps(ctx context.Context, key string, records []model.ComparableRecord, ttl time.Duration) error
}

// Result is the outcome of one comparable fetch. Records are ranked; the
// retrieval fields mirror the underlying outcome so callers can distinguish
// failure modes without an error type switch.
type Result struct {
	Kind       model.CompsKind          `json:"kind"`
	Records    []model.ComparableRecord `json:"records"`
	OK         bool                     `json:"ok"`
	StatusCode int                      `json:"status_code,omitempty"`
	ErrorKind  retrieval.ErrorKind      `json:"error_kind,omitempty"`
	Attempts   int                      `json:"attempts"`
	Duration   time.Duration            `json:"duration"`
	FromCache  bool                     `json:"from_cache,omitempty"`
	Err        error                    `json:"-"`
}

// Service fetches, normalizes, and ranks comparables.
type Service struct {
	client     listings.Client
	cache      Cache
	cacheTTL   time.Duration
	normalizer *Normalizer
	ranker     *Ranker
}

// NewService creates a comps Service. cache may be nil to disable caching.
func NewService(client listings.Client, cache Cache, cacheTTL time.Duration, weights Weights) *Service {
	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}
	return &Service{
		client:     client,
		cache:      cache,
		cacheTTL:   cacheTTL,
		normalizer: NewNormalizer(),
		ranker:     NewRanker(weights),
	}
}

// Fetch retrieves one kind of comparables for the subject, normalized and
// ranked. All failure modes are encoded in the Result.
func (s *Service) Fetch(ctx context.Context, subject model.SubjectProperty, kind model.CompsKind, limit, offset int) Result {
	res := Result{Kind: kind}

	key := cacheKey(subject, kind, limit, offset)
	if s.cache != nil {
		if cached, err := s.cache.GetCachedComps(ctx, key); err == nil && cached != nil {
			res.OK = true
			res.FromCache = true
			res.Records = cached
			return res
		}
	}

	q := listings.Query{
		ID:      subject.ID,
		Address: subject.Address,
		URL:     subject.URL,
		Limit:   limit,
		Offset:  offset,
	}

	var out retrieval.Outcome[listings.RawResponse]
	if kind == model.CompsKindRental {
		out = s.client.RentalComps(ctx, q)
	} else {
		out = s.client.SaleComps(ctx, q)
	}

	res.StatusCode = out.StatusCode
	res.ErrorKind = out.Kind
	res.Attempts = out.Attempts
	res.Duration = out.Duration
	res.Err = out.Err

	if !out.OK {
		zap.L().Warn("comps: retrieval failed",
			zap.String("kind", string(kind)),
			zap.String("error_kind", out.Kind.String()),
			zap.Int("status", out.StatusCode),
			zap.Int("attempts", out.Attempts),
		)
		return res
	}

	res.OK = true
	res.Records = s.normalizer.NormalizeBatch(*out.Data, kind, subject)
	s.ranker.Rank(subject, res.Records)

	if len(res.Records) == 0 {
		// Malformed or empty payload normalizes to an empty ranked list.
		zap.L().Debug("comps: no usable comparables in payload",
			zap.String("kind", string(kind)),
		)
	}

	if s.cache != nil && len(res.Records) > 0 {
		if err := s.cache.SetCachedComps(ctx, key, res.Records, s.cacheTTL); err != nil {
			zap.L().Debug("comps: cache write failed", zap.Error(err))
		}
	}

	return res
}

// FetchBoth retrieves sale and rental comparables concurrently. The two
// calls are independent: a failure in one never cancels the other, and
// each reports its own Result.
func (s *Service) FetchBoth(ctx context.Context, subject model.SubjectProperty, limit int) (sale, rental Result) {
	var eg errgroup.Group
	eg.Go(func() error {
		sale = s.Fetch(ctx, subject, model.CompsKindSale, limit, 0)
		return nil
	})
	eg.Go(func() error {
		rental = s.Fetch(ctx, subject, model.CompsKindRental, limit, 0)
		return nil
	})
	_ = eg.Wait()
	return sale, rental
}

func cacheKey(subject model.SubjectProperty, kind model.CompsKind, limit, offset int) string {
	id := subject.ID
	if id == "" {
		id = subject.Address
	}
	if id == "" {
		id = subject.URL
	}
	return fmt.Sprintf("%s|%s|%d|%d", kind, id, limit, offset)
}
