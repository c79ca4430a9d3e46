package memory

import (
	"context"
	"fmt"
	"sync"

	"proforma/internal/core"
)

// Catalog is a per-company article registry held in memory.
type Catalog struct {
	mu       sync.RWMutex
	articles map[string]map[string]core.Article
}

func NewCatalog() *Catalog {
	return &Catalog{articles: make(map[string]map[string]core.Article)}
}

// Add registers or replaces an article for company.
func (c *Catalog) Add(company string, a core.Article) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.articles[company] == nil {
		c.articles[company] = make(map[string]core.Article)
	}
	c.articles[company][a.ID] = a
}

func (c *Catalog) LookupArticle(ctx context.Context, scope core.Scope, articleID string) (*core.Article, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.articles[scope.Company][articleID]
	if !ok {
		return nil, fmt.Errorf("%w: article %s", core.ErrNotFound, articleID)
	}
	return &a, nil
}

// Clients is a per-company client registry held in memory.
type Clients struct {
	mu      sync.RWMutex
	clients map[string]map[string]core.Client
}

func NewClients() *Clients {
	return &Clients{clients: make(map[string]map[string]core.Client)}
}

// Add registers or replaces a client for company.
func (c *Clients) Add(company string, cl core.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.clients[company] == nil {
		c.clients[company] = make(map[string]core.Client)
	}
	c.clients[company][cl.Ref] = cl
}

func (c *Clients) LookupClient(ctx context.Context, scope core.Scope, clientRef string) (*core.Client, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, ok := c.clients[scope.Company][clientRef]
	if !ok {
		return nil, fmt.Errorf("%w: client %s", core.ErrNotFound, clientRef)
	}
	return &cl, nil
}
