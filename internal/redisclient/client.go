package redisclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pos-analytics/internal/menus"

	"github.com/go-redis/redis/v8"
)

// Client caches resolved menu lookups so repeated queries skip the menus
// fetch. The cache is an ephemeral optimization: every operation degrades
// to a miss on error and the caller falls back to the POS API.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a Redis client and verifies connectivity.
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func menuKey(restaurantID string) string {
	return fmt.Sprintf("menu:lookup:%s", restaurantID)
}

// GetMenuLookup returns the cached lookup for a restaurant. The second
// return is false on a miss or an unreadable entry.
func (c *Client) GetMenuLookup(ctx context.Context, restaurantID string) (menus.Lookup, bool, error) {
	raw, err := c.rdb.Get(ctx, menuKey(restaurantID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var entries []menus.CategoryEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		// A corrupt entry is treated as a miss; the next Set overwrites it.
		return nil, false, nil
	}

	lookup := menus.Lookup{}
	for _, entry := range entries {
		lookup[menus.Key{RestaurantID: entry.RestaurantID, ItemID: entry.ItemID}] = entry
	}
	return lookup, true, nil
}

// SetMenuLookup stores the lookup for a restaurant with the given TTL.
func (c *Client) SetMenuLookup(ctx context.Context, restaurantID string, lookup menus.Lookup, ttl time.Duration) error {
	entries := make([]menus.CategoryEntry, 0, len(lookup))
	for _, entry := range lookup {
		entries = append(entries, entry)
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal menu lookup: %w", err)
	}

	return c.rdb.Set(ctx, menuKey(restaurantID), raw, ttl).Err()
}
