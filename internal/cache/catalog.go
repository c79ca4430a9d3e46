package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"proforma/internal/core"
)

// CachedCatalog is a read-through cache in front of a core.Catalog. Misses and cache
// failures fall through to the underlying catalog; not-found results are never cached.
// Entries expire after ttl, which bounds how long a catalog price change goes unseen.
type CachedCatalog struct {
	next   core.Catalog
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedCatalog(next core.Catalog, cache Cache, ttl time.Duration, logger *zap.Logger) *CachedCatalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedCatalog{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (c *CachedCatalog) LookupArticle(ctx context.Context, scope core.Scope, articleID string) (*core.Article, error) {
	key := c.cache.GenerateKey("article", scope.Company+":"+articleID)

	raw, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
	} else if raw != "" {
		var a core.Article
		if err := json.Unmarshal([]byte(raw), &a); err == nil {
			return &a, nil
		}
		c.logger.Warn("discarding undecodable catalog cache entry", zap.String("key", key))
	}

	a, err := c.next.LookupArticle(ctx, scope, articleID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(a)
	if err == nil {
		err = c.cache.Set(ctx, key, payload, c.ttl)
	}
	if err != nil {
		c.logger.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
	return a, nil
}
