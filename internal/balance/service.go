package balance

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/creatorsats/creatorsats-backend/pkg/logger"
	pkgredis "github.com/creatorsats/creatorsats-backend/pkg/redis"
)

// Cache is the subset of the redis client the service needs. Lookups that
// miss return pkgredis.Nil.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	BalanceKey(creatorID string) string
}

// ServiceParams wires the balance service.
type ServiceParams struct {
	Repo   Repository
	Cache  Cache
	Logger *logger.Logger
	TTL    time.Duration
}

// Service serves creator balances with a cache-aside read path. The cache is
// best effort: any cache failure degrades to a direct ledger read.
type Service struct {
	repo  Repository
	cache Cache
	logg  *logger.Logger
	ttl   time.Duration
}

// NewService validates params and builds a Service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("balance: repo is required")
	}
	if params.Cache == nil {
		return nil, errors.New("balance: cache is required")
	}
	if params.Logger == nil {
		return nil, errors.New("balance: logger is required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{
		repo:  params.Repo,
		cache: params.Cache,
		logg:  params.Logger,
		ttl:   ttl,
	}, nil
}

// GetBalance returns the creator's balance, from cache when fresh.
func (s *Service) GetBalance(ctx context.Context, creatorID uuid.UUID) (*Balance, error) {
	key := s.cache.BalanceKey(creatorID.String())

	raw, err := s.cache.Get(ctx, key)
	if err == nil {
		var cached Balance
		if unmarshalErr := json.Unmarshal([]byte(raw), &cached); unmarshalErr == nil {
			return &cached, nil
		}
		// Corrupt entry; fall through and recompute.
	} else if !errors.Is(err, pkgredis.Nil) {
		s.logg.Warn(s.logg.WithCreatorID(ctx, creatorID.String()), "balance cache read failed")
	}

	return s.compute(ctx, creatorID, key)
}

// InvalidateBalance drops the cached balance so the next read recomputes.
func (s *Service) InvalidateBalance(ctx context.Context, creatorID uuid.UUID) {
	key := s.cache.BalanceKey(creatorID.String())
	if err := s.cache.Del(ctx, key); err != nil {
		s.logg.Warn(s.logg.WithCreatorID(ctx, creatorID.String()), "balance cache invalidation failed")
	}
}

// RefreshBalance recomputes the balance and repopulates the cache.
func (s *Service) RefreshBalance(ctx context.Context, creatorID uuid.UUID) (*Balance, error) {
	return s.compute(ctx, creatorID, s.cache.BalanceKey(creatorID.String()))
}

func (s *Service) compute(ctx context.Context, creatorID uuid.UUID, key string) (*Balance, error) {
	bal, err := s.repo.ComputeBalance(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if payload, marshalErr := json.Marshal(bal); marshalErr == nil {
		if setErr := s.cache.Set(ctx, key, payload, s.ttl); setErr != nil {
			s.logg.Warn(s.logg.WithCreatorID(ctx, creatorID.String()), "balance cache write failed")
		}
	}
	return bal, nil
}
