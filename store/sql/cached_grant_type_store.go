package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-loans/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const grantTypeCacheKeyPrefix = "go-loans::grant_type::v1"

// CachedGrantTypeStore is a read-through cache over a GrantTypeStore for
// lookups by id and by code. Reads made inside a transaction go straight to
// the base store.
type CachedGrantTypeStore struct {
	base  core.GrantTypeStore
	cache repositorycache.CacheService
}

func NewCachedGrantTypeStore(
	base core.GrantTypeStore,
	cacheService repositorycache.CacheService,
) (*CachedGrantTypeStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base grant type store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: grant type cache service is required")
	}
	return &CachedGrantTypeStore{base: base, cache: cacheService}, nil
}

// GrantTypeCacheKey returns go-loans::grant_type::v1::<field>::<value> with
// the value URL-path escaped.
func GrantTypeCacheKey(field string, value string) (string, error) {
	field = strings.TrimSpace(strings.ToLower(field))
	value = strings.TrimSpace(value)
	if field == "" || value == "" {
		return "", fmt.Errorf("sqlstore: grant type cache key requires field and value")
	}
	return strings.Join([]string{grantTypeCacheKeyPrefix, field, url.PathEscape(value)}, "::"), nil
}

func (s *CachedGrantTypeStore) MaxCode(ctx context.Context) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	return s.base.MaxCode(ctx)
}

func (s *CachedGrantTypeStore) Create(ctx context.Context, in core.NewGrantTypeRecord) (core.GrantType, error) {
	if err := s.ready(); err != nil {
		return core.GrantType{}, err
	}
	return s.base.Create(ctx, in)
}

func (s *CachedGrantTypeStore) Get(ctx context.Context, id string) (core.GrantType, error) {
	if err := s.ready(); err != nil {
		return core.GrantType{}, err
	}
	return s.cached(ctx, "id", id, s.base.Get)
}

func (s *CachedGrantTypeStore) GetByCode(ctx context.Context, code string) (core.GrantType, error) {
	if err := s.ready(); err != nil {
		return core.GrantType{}, err
	}
	return s.cached(ctx, "code", code, s.base.GetByCode)
}

func (s *CachedGrantTypeStore) List(ctx context.Context, status core.GrantTypeStatus) ([]core.GrantType, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.base.List(ctx, status)
}

func (s *CachedGrantTypeStore) UpdateStatus(ctx context.Context, id string, status core.GrantTypeStatus) error {
	if err := s.ready(); err != nil {
		return err
	}
	current, err := s.base.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.base.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	if err := s.invalidate(ctx, current); err != nil {
		return err
	}
	// Readers outside the transaction can refill the entry with the old row
	// until commit, so clear it again once the update is visible.
	onCommit(ctx, func(ctx context.Context) error {
		return s.invalidate(ctx, current)
	})
	return nil
}

func (s *CachedGrantTypeStore) cached(
	ctx context.Context,
	field string,
	value string,
	fetch func(context.Context, string) (core.GrantType, error),
) (core.GrantType, error) {
	if _, inTx := txFromContext(ctx); inTx {
		return fetch(ctx, value)
	}
	key, err := GrantTypeCacheKey(field, value)
	if err != nil {
		return fetch(ctx, value)
	}
	return repositorycache.GetOrFetch(ctx, s.cache, key, func(ctx context.Context) (core.GrantType, error) {
		return fetch(ctx, strings.TrimSpace(value))
	})
}

func (s *CachedGrantTypeStore) invalidate(ctx context.Context, grantType core.GrantType) error {
	for _, pair := range [][2]string{{"id", grantType.ID}, {"code", grantType.Code}} {
		key, err := GrantTypeCacheKey(pair[0], pair[1])
		if err != nil {
			continue
		}
		if err := s.cache.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (s *CachedGrantTypeStore) ready() error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached grant type store is not configured")
	}
	return nil
}

var _ core.GrantTypeStore = (*CachedGrantTypeStore)(nil)
