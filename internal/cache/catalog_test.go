package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proforma/internal/core"
	"proforma/internal/store/memory"
)

type fakeCache struct {
	data   map[string]string
	getErr error
	sets   int
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string]string{}} }

func (f *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.sets++
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	return nil
}

func (f *fakeCache) Get(_ context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	return f.data[key], nil
}

func (f *fakeCache) GenerateKey(operation, key string) string { return "test:" + operation + ":" + key }

func TestCachedCatalogReadThrough(t *testing.T) {
	ctx := context.Background()
	scope := core.Scope{Company: "1000"}
	backing := memory.NewCatalog()
	backing.Add("1000", core.Article{ID: "A1", Label: "Chair", UnitPrice: decimal.NewFromInt(3), Kind: core.ArticleUnit})

	fc := newFakeCache()
	cat := NewCachedCatalog(backing, fc, time.Minute, nil)

	a, err := cat.LookupArticle(ctx, scope, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Chair", a.Label)
	assert.Equal(t, 1, fc.sets)

	// Served from cache even after the backing catalog changes.
	backing.Add("1000", core.Article{ID: "A1", Label: "Chair v2", UnitPrice: decimal.NewFromInt(4), Kind: core.ArticleUnit})
	a, err = cat.LookupArticle(ctx, scope, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Chair", a.Label)
	assert.True(t, decimal.NewFromInt(3).Equal(a.UnitPrice))

	// Simulate the entry expiring.
	delete(fc.data, "test:article:1000:A1")
	a, err = cat.LookupArticle(ctx, scope, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Chair v2", a.Label)
	assert.Equal(t, 2, fc.sets)
}

func TestCachedCatalogNotFoundIsNotCached(t *testing.T) {
	fc := newFakeCache()
	cat := NewCachedCatalog(memory.NewCatalog(), fc, time.Minute, nil)

	_, err := cat.LookupArticle(context.Background(), core.Scope{Company: "1000"}, "NOPE")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Empty(t, fc.data)
}

func TestCachedCatalogFallsThroughOnCacheError(t *testing.T) {
	backing := memory.NewCatalog()
	backing.Add("1000", core.Article{ID: "A1", Label: "Chair", UnitPrice: decimal.NewFromInt(3), Kind: core.ArticleUnit})
	fc := newFakeCache()
	fc.getErr = errors.New("connection refused")

	a, err := NewCachedCatalog(backing, fc, time.Minute, nil).LookupArticle(context.Background(), core.Scope{Company: "1000"}, "A1")
	require.NoError(t, err)
	assert.Equal(t, "A1", a.ID)
}
