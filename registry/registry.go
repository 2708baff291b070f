// Package registry compiles and holds one rule catalog per visa category.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/liamcoop/visarules/rules"
)

// Registry manages compiled catalogs for all visa categories.
// Catalogs are read through the cache from the store and swapped atomically
// on reload, so evaluations in flight keep the catalog they started with.
type Registry struct {
	env      *cel.Env
	store    rules.RuleStore
	cache    rules.RulesCache
	logger   *slog.Logger
	catalogs map[string]*rules.Catalog
	mu       sync.RWMutex
}

// NewRegistry creates a registry. cache may be nil.
func NewRegistry(store rules.RuleStore, cache rules.RulesCache, logger *slog.Logger) (*Registry, error) {
	if store == nil {
		return nil, fmt.Errorf("rule store cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	env, err := rules.NewEnv()
	if err != nil {
		return nil, err
	}

	return &Registry{
		env:      env,
		store:    store,
		cache:    cache,
		logger:   logger,
		catalogs: make(map[string]*rules.Catalog),
	}, nil
}

// LoadAll loads and compiles every catalog in the store.
// The first catalog that fails to load aborts the whole operation.
func (r *Registry) LoadAll(ctx context.Context) error {
	summaries, err := r.store.ListCatalogs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list catalogs: %w", err)
	}

	for _, s := range summaries {
		if _, err := r.Load(ctx, s.Key); err != nil {
			return fmt.Errorf("failed to initialize catalog %s: %w", s.Key, err)
		}
	}

	r.logger.InfoContext(ctx, "catalogs loaded", "count", len(summaries))
	return nil
}

// Load compiles the catalog stored under key and makes it available to Get.
// A compile failure leaves any previously loaded version in place.
func (r *Registry) Load(ctx context.Context, key string) (*rules.Catalog, error) {
	def, err := r.definition(ctx, key)
	if err != nil {
		return nil, err
	}

	catalog, err := rules.NewCatalog(r.env, def)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.catalogs[key] = catalog
	r.mu.Unlock()

	r.logger.DebugContext(ctx, "catalog compiled", "catalog", key, "rules", catalog.Len())
	return catalog, nil
}

func (r *Registry) definition(ctx context.Context, key string) (*rules.CatalogDefinition, error) {
	if r.cache != nil {
		if def := r.cache.Get(ctx, key); def != nil {
			return def, nil
		}
	}

	def, err := r.store.GetCatalog(ctx, key)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		r.cache.Set(ctx, def)
	}
	return def, nil
}

// Reload drops the cached definition of key and loads it again from the store
func (r *Registry) Reload(ctx context.Context, key string) (*rules.Catalog, error) {
	if r.cache != nil {
		r.cache.Invalidate(ctx, key)
	}
	catalog, err := r.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	r.logger.InfoContext(ctx, "catalog reloaded", "catalog", key, "rules", catalog.Len())
	return catalog, nil
}

// Get returns the compiled catalog for key
func (r *Registry) Get(key string) (*rules.Catalog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, exists := r.catalogs[key]
	if !exists {
		return nil, fmt.Errorf("catalog %s: %w", key, rules.ErrCatalogNotFound)
	}
	return c, nil
}

// List returns all loaded catalogs ordered by key
func (r *Registry) List() []*rules.Catalog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*rules.Catalog, 0, len(r.catalogs))
	for _, c := range r.catalogs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Remove unloads a catalog and drops its cached definition. The store is not
// modified.
func (r *Registry) Remove(ctx context.Context, key string) error {
	r.mu.Lock()
	_, exists := r.catalogs[key]
	delete(r.catalogs, key)
	r.mu.Unlock()

	if r.cache != nil {
		r.cache.Invalidate(ctx, key)
	}
	if !exists {
		return fmt.Errorf("catalog %s: %w", key, rules.ErrCatalogNotFound)
	}
	r.logger.InfoContext(ctx, "catalog removed", "catalog", key)
	return nil
}
