package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/rueidis"
)

// Client wraps Redis operations using rueidis.
type Client struct {
	redis rueidis.Client
}

// NewClient creates a new Redis client.
func NewClient(ctx context.Context, url string) (*Client, error) {
	opts, err := rueidis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client, err := rueidis.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("create redis client: %w", err)
	}

	// Verify connection
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{redis: client}, nil
}

// Close closes the Redis client.
func (c *Client) Close() {
	c.redis.Close()
}

// Ping checks if Redis is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.redis.Do(ctx, c.redis.B().Ping().Build()).Error()
}

// --- Country → region cache ---

// unknownRegionSentinel marks countries known to have no region mapping, so
// repeated lookups for them skip the database too.
const unknownRegionSentinel = "none"

// GetCountryRegion retrieves a cached region for a country code. The second
// return value reports whether the cache held an answer at all; a nil region
// with found=true means the country is cached as unmapped.
func (c *Client) GetCountryRegion(ctx context.Context, countryCode string) (*uuid.UUID, bool, error) {
	key := fmt.Sprintf("country_region:%s", countryCode)

	value, err := c.redis.Do(ctx, c.redis.B().Get().Key(key).Build()).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get country region: %w", err)
	}

	if value == unknownRegionSentinel {
		return nil, true, nil
	}

	regionID, err := uuid.Parse(value)
	if err != nil {
		return nil, false, fmt.Errorf("parse cached region id: %w", err)
	}

	return &regionID, true, nil
}

// SetCountryRegion caches the region for a country code with TTL. A nil
// region caches the country as unmapped.
func (c *Client) SetCountryRegion(ctx context.Context, countryCode string, regionID *uuid.UUID, ttl time.Duration) error {
	key := fmt.Sprintf("country_region:%s", countryCode)

	value := unknownRegionSentinel
	if regionID != nil {
		value = regionID.String()
	}

	return c.redis.Do(ctx,
		c.redis.B().Set().Key(key).Value(value).Ex(ttl).Build(),
	).Error()
}

// --- Rate Limiting ---

// CheckRateLimit checks if a user has exceeded their calculation rate limit.
// Returns true if the request is allowed, false if rate limited.
func (c *Client) CheckRateLimit(ctx context.Context, userID string, limitPerMinute int) (bool, error) {
	key := fmt.Sprintf("calc_rate:%s", userID)
	now := time.Now().Unix()
	windowStart := now - 60 // 1 minute window

	// Use a Lua script for atomic rate limiting
	script := `
		local key = KEYS[1]
		local now = tonumber(ARGV[1])
		local window_start = tonumber(ARGV[2])
		local limit = tonumber(ARGV[3])

		-- Remove old entries
		redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

		-- Count current requests
		local count = redis.call('ZCARD', key)

		if count < limit then
			-- Add current request
			redis.call('ZADD', key, now, now .. ':' .. math.random())
			redis.call('EXPIRE', key, 60)
			return 1
		else
			return 0
		end
	`

	result, err := c.redis.Do(ctx,
		c.redis.B().Eval().Script(script).Numkeys(1).Key(key).Arg(
			fmt.Sprintf("%d", now),
			fmt.Sprintf("%d", windowStart),
			fmt.Sprintf("%d", limitPerMinute),
		).Build(),
	).ToInt64()

	if err != nil {
		return false, fmt.Errorf("check rate limit: %w", err)
	}

	return result == 1, nil
}

// --- Idempotent calculation replay ---

// SetCalculationResult stores a serialized calculation result for a
// transaction. SETNX keeps the first result authoritative.
func (c *Client) SetCalculationResult(ctx context.Context, transactionID string, result []byte, ttl time.Duration) error {
	key := fmt.Sprintf("calculation:%s", transactionID)

	cmd := c.redis.B().Setnx().Key(key).Value(string(result)).Build()
	set, err := c.redis.Do(ctx, cmd).AsBool()
	if err != nil {
		return err
	}
	if !set {
		return fmt.Errorf("calculation result already stored for transaction %s", transactionID)
	}

	expireCmd := c.redis.B().Expire().Key(key).Seconds(int64(ttl.Seconds())).Build()
	return c.redis.Do(ctx, expireCmd).Error()
}

// GetCalculationResult retrieves a stored calculation result for a
// transaction, or nil if none exists.
func (c *Client) GetCalculationResult(ctx context.Context, transactionID string) ([]byte, error) {
	key := fmt.Sprintf("calculation:%s", transactionID)
	result, err := c.redis.Do(ctx, c.redis.B().Get().Key(key).Build()).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, err
	}
	return []byte(result), nil
}
