package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cashbook/internal/cache"
	"cashbook/internal/core"
	"cashbook/internal/fx"
	"cashbook/internal/storage"

	"golang.org/x/sync/singleflight"
)

// RateService builds per-owner converters. With the stored source each
// owner's rate table is loaded once per TTL; concurrent misses for the same
// owner share one load.
type RateService struct {
	store  storage.RateStore
	source fx.Source
	base   core.CurrencyCode
	static *fx.Converter
	cache  *cache.LRU[string, *fx.Converter]
	group  singleflight.Group

	// generations counts invalidations per owner. A load only caches its
	// result when no invalidation happened while it ran.
	genMu       sync.Mutex
	generations map[string]uint64
}

const rateCacheSize = 1024

func NewRateService(store storage.RateStore, source fx.Source, base core.CurrencyCode, ttl time.Duration) *RateService {
	if source == "" {
		source = fx.SourceStatic
	}
	if base == "" {
		base = fx.SSP
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RateService{
		store:  store,
		source: source,
		base:   base,
		static: fx.NewConverter(fx.NewStaticRateResolver(), fx.WithBase(base)),
		cache:  cache.NewLRU[string, *fx.Converter](rateCacheSize, ttl),

		generations: make(map[string]uint64),
	}
}

func (s *RateService) generation(owner string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[owner]
}

// Converter returns the converter for owner.
func (s *RateService) Converter(ctx context.Context, owner string) (*fx.Converter, error) {
	if s.source == fx.SourceStatic {
		return s.static, nil
	}
	if c, ok := s.cache.Get(owner); ok {
		return c, nil
	}

	v, err, _ := s.group.Do(owner, func() (any, error) {
		gen := s.generation(owner)
		rates, err := s.store.ListRates(ctx, owner)
		if err != nil {
			return nil, fmt.Errorf("load fx rates: %w", err)
		}
		resolver, err := fx.NewResolver(s.source, rates)
		if err != nil {
			return nil, err
		}
		c := fx.NewConverter(resolver, fx.WithBase(s.base))

		s.genMu.Lock()
		if s.generations[owner] == gen {
			s.cache.Set(owner, c)
		}
		s.genMu.Unlock()
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*fx.Converter), nil
}

// Invalidate drops the cached converter after the owner's rates change.
func (s *RateService) Invalidate(owner string) {
	s.genMu.Lock()
	s.generations[owner]++
	s.cache.Delete(owner)
	s.genMu.Unlock()
	s.group.Forget(owner)
}

// Cache exposes the converter cache for background cleanup.
func (s *RateService) Cache() cache.Cleaner {
	return s.cache
}

func (s *RateService) Source() fx.Source {
	return s.source
}
