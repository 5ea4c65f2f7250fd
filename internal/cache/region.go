package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// regionLookup is the backing source for country → region resolution.
type regionLookup interface {
	FindRegionForCountry(ctx context.Context, countryCode string) (*uuid.UUID, error)
}

// RegionResolver is a read-through cache in front of the region repository.
// Region assignments change rarely, so a short TTL keeps the hot calculation
// path off the database. Unknown countries are cached too.
type RegionResolver struct {
	cache  *Client
	source regionLookup
	ttl    time.Duration
}

// NewRegionResolver creates a read-through region resolver.
func NewRegionResolver(cache *Client, source regionLookup, ttl time.Duration) *RegionResolver {
	return &RegionResolver{
		cache:  cache,
		source: source,
		ttl:    ttl,
	}
}

// FindRegionForCountry resolves the owning region for a country code,
// consulting the cache first. Cache errors fall through to the source; the
// lookup must keep working when Redis is down.
func (r *RegionResolver) FindRegionForCountry(ctx context.Context, countryCode string) (*uuid.UUID, error) {
	if regionID, found, err := r.cache.GetCountryRegion(ctx, countryCode); err == nil && found {
		return regionID, nil
	}

	regionID, err := r.source.FindRegionForCountry(ctx, countryCode)
	if err != nil {
		return nil, err
	}

	// Best-effort write-back.
	_ = r.cache.SetCountryRegion(ctx, countryCode, regionID, r.ttl)

	return regionID, nil
}
