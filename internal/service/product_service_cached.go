package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sakashimaa/electro-shop/internal/authz"
	"github.com/sakashimaa/electro-shop/internal/domain"
	"github.com/sakashimaa/electro-shop/pkg/mylogger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CachedProductService serves product reads cache-aside from Redis. It is
// also the ProductCache other services invalidate after stock changes.
type CachedProductService struct {
	next        ProductService
	redisClient *redis.Client
	cacheTTL    time.Duration
	group       singleflight.Group
	logger      *zap.Logger
}

var (
	_ ProductService = (*CachedProductService)(nil)
	_ ProductCache   = (*CachedProductService)(nil)
)

func NewCachedProductService(next ProductService, redisClient *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *CachedProductService {
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}

	return &CachedProductService{
		next:        next,
		redisClient: redisClient,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

// generationKey counts invalidations of one product. A fill that started
// before an invalidation sees a newer generation and is skipped.
func generationKey(id int64) string {
	return fmt.Sprintf("product:%d:gen", id)
}

var errStaleFill = errors.New("product changed while it was being loaded")

func (s *CachedProductService) Get(ctx context.Context, id int64) (*domain.Product, error) {
	key := productKey(id)

	val, err := s.redisClient.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var product domain.Product
		if err := json.Unmarshal(val, &product); err == nil {
			return &product, nil
		}
		mylogger.Warn(ctx, s.logger, "Dropping unreadable cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		mylogger.Warn(ctx, s.logger, "Product cache read failed", zap.String("key", key), zap.Error(err))
	}

	res, err, _ := s.group.Do(strconv.FormatInt(id, 10), func() (any, error) {
		// the flight outlives whichever caller started it
		flightCtx := context.WithoutCancel(ctx)

		gen, genErr := s.generation(flightCtx, id)

		product, err := s.next.Get(flightCtx, id)
		if err != nil {
			return nil, err
		}

		if genErr != nil {
			mylogger.Warn(ctx, s.logger, "Product cache generation read failed", zap.String("key", key), zap.Error(genErr))
			return product, nil
		}

		if err := s.fill(flightCtx, id, gen, product); err != nil {
			if errors.Is(err, errStaleFill) || errors.Is(err, redis.TxFailedErr) {
				mylogger.Debug(ctx, s.logger, "Skipped stale product cache fill", zap.String("key", key))
			} else {
				mylogger.Warn(ctx, s.logger, "Product cache write failed", zap.String("key", key), zap.Error(err))
			}
		}

		return product, nil
	})
	if err != nil {
		return nil, err
	}

	// callers sharing the flight must not share the pointer
	product := *res.(*domain.Product)
	return &product, nil
}

func (s *CachedProductService) generation(ctx context.Context, id int64) (int64, error) {
	gen, err := s.redisClient.Get(ctx, generationKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// fill caches product only if no invalidation happened since gen was read.
func (s *CachedProductService) fill(ctx context.Context, id, gen int64, product *domain.Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return err
	}

	genKey := generationKey(id)
	return s.redisClient.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleFill
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, productKey(id), data, s.cacheTTL)
			return nil
		})
		return err
	}, genKey)
}

func (s *CachedProductService) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, int64, error) {
	return s.next.List(ctx, filter)
}

func (s *CachedProductService) Featured(ctx context.Context, limit int64) ([]domain.Product, error) {
	return s.next.Featured(ctx, limit)
}

func (s *CachedProductService) Create(ctx context.Context, actor authz.Principal, in *domain.CreateProductInput) (*domain.Product, error) {
	return s.next.Create(ctx, actor, in)
}

func (s *CachedProductService) Update(
	ctx context.Context,
	actor authz.Principal,
	id int64,
	in *domain.UpdateProductInput,
) (*domain.Product, error) {
	product, err := s.next.Update(ctx, actor, id, in)
	if err != nil {
		return nil, err
	}

	s.Invalidate(ctx, id)
	return product, nil
}

func (s *CachedProductService) Delete(ctx context.Context, actor authz.Principal, id int64) error {
	if err := s.next.Delete(ctx, actor, id); err != nil {
		return err
	}

	s.Invalidate(ctx, id)
	return nil
}

func (s *CachedProductService) Export(ctx context.Context, actor authz.Principal) ([]domain.Product, error) {
	return s.next.Export(ctx, actor)
}

// Invalidate drops the cached entries for ids. A failure only logs; the entry
// then expires with its TTL.
func (s *CachedProductService) Invalidate(ctx context.Context, ids ...int64) {
	if len(ids) == 0 {
		return
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}

	cleanupCtx := context.WithoutCancel(ctx)
	_, err := s.redisClient.TxPipelined(cleanupCtx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Incr(cleanupCtx, generationKey(id))
		}
		pipe.Del(cleanupCtx, keys...)
		return nil
	})
	if err != nil {
		mylogger.Warn(ctx, s.logger, "Product cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
