package notification

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stanstork/noticeboard/internal/models"
	"golang.org/x/sync/singleflight"
)

// Invalidator drops cached responses for a user.
type Invalidator interface {
	Invalidate(user string)
}

type CacheConfig struct {
	TTL        time.Duration
	MaxEntries int
}

type cacheKey struct {
	scope string
	user  string
}

func (k cacheKey) String() string {
	return k.scope + "\x00" + k.user
}

// Cache wraps a provider with a bounded, TTL-expiring LRU keyed by
// (provider name, user). Concurrent misses for one key share a single fetch.
//
// Entries are only added once a fetch has completed, so an in-flight key is
// never evicted. A per-user generation counter keeps a fetch that started
// before Invalidate from storing its result afterwards.
type Cache struct {
	provider Provider
	entries  *expirable.LRU[cacheKey, *models.Response]
	group    singleflight.Group
	logger   zerolog.Logger

	mu          sync.Mutex
	generations map[string]uint64
}

// NewCache returns a caching decorator. A non-positive TTL or size disables
// storage and every call goes straight to the provider.
func NewCache(provider Provider, cfg CacheConfig, logger zerolog.Logger) *Cache {
	c := &Cache{
		provider:    provider,
		logger:      logger.With().Str("component", "cache").Str("provider", provider.Name()).Logger(),
		generations: make(map[string]uint64),
	}
	if cfg.TTL > 0 && cfg.MaxEntries > 0 {
		c.entries = expirable.NewLRU[cacheKey, *models.Response](cfg.MaxEntries, nil, cfg.TTL)
	} else {
		c.logger.Info().Msg("response cache disabled")
	}
	return c
}

func (c *Cache) Name() string {
	return c.provider.Name()
}

func (c *Cache) Notifications(ctx context.Context, req Request) (*models.Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if c.entries == nil {
		return c.provider.Notifications(ctx, req)
	}

	key := cacheKey{scope: c.provider.Name(), user: req.User}
	if resp, ok := c.entries.Get(key); ok {
		return resp.Clone(), nil
	}

	gen := c.generation(req.User)
	ch := c.group.DoChan(key.String(), func() (val interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = errors.Errorf("fetch for %s panicked: %v", c.provider.Name(), r)
			}
		}()
		resp, err := c.provider.Notifications(context.WithoutCancel(ctx), req)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			resp = models.EmptyResponse()
		}
		c.store(key, gen, resp)
		return resp, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Response).Clone(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate removes every cached response for user. Fetches already in
// flight for the user finish but are not stored.
func (c *Cache) Invalidate(user string) {
	c.mu.Lock()
	c.generations[user]++
	c.mu.Unlock()

	if c.entries == nil {
		return
	}
	removed := 0
	for _, k := range c.entries.Keys() {
		if k.user == user {
			if c.entries.Remove(k) {
				removed++
			}
		}
	}
	c.group.Forget(cacheKey{scope: c.provider.Name(), user: user}.String())
	c.logger.Debug().Str("user", user).Int("removed", removed).Msg("cache invalidated")
}

// Len reports how many responses are currently cached.
func (c *Cache) Len() int {
	if c.entries == nil {
		return 0
	}
	return c.entries.Len()
}

func (c *Cache) generation(user string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[user]
}

func (c *Cache) store(key cacheKey, gen uint64, resp *models.Response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[key.user] != gen {
		c.logger.Debug().Str("user", key.user).Msg("discarding response fetched before invalidation")
		return
	}
	c.entries.Add(key, resp.Clone())
}
