package rules

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrCatalogNotFound is returned when a catalog key is unknown to a store
	ErrCatalogNotFound = errors.New("catalog not found")
	// ErrRuleNotFound is returned when a rule ID is unknown within a catalog
	ErrRuleNotFound = errors.New("rule not found")
)

// CatalogSummary describes a stored catalog without its rules
type CatalogSummary struct {
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	RuleCount int       `json:"rule_count"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RuleStore manages catalog persistence and retrieval.
// Catalogs are written ahead of time (seeding) and read by the service.
type RuleStore interface {
	// PutCatalog creates or replaces a catalog and all of its rules
	PutCatalog(ctx context.Context, def *CatalogDefinition) error

	// GetCatalog returns a catalog with its active rules in catalog order
	GetCatalog(ctx context.Context, key string) (*CatalogDefinition, error)

	// GetRule returns a single rule of a catalog
	GetRule(ctx context.Context, key, ruleID string) (*Rule, error)

	// ListCatalogs returns every stored catalog, ordered by key
	ListCatalogs(ctx context.Context) ([]CatalogSummary, error)

	// DeleteCatalog removes a catalog and its rules
	DeleteCatalog(ctx context.Context, key string) error
}

// InMemoryRuleStore implements RuleStore using an in-memory map.
// Thread-safe with RWMutex.
type InMemoryRuleStore struct {
	catalogs map[string]*storedCatalog
	mu       sync.RWMutex
}

type storedCatalog struct {
	def       *CatalogDefinition
	updatedAt time.Time
}

// NewInMemoryRuleStore creates a new in-memory rule store
func NewInMemoryRuleStore() *InMemoryRuleStore {
	return &InMemoryRuleStore{
		catalogs: make(map[string]*storedCatalog),
	}
}

// PutCatalog stores a copy of def. CreatedAt is preserved for rules that
// already existed; UpdatedAt is refreshed for every rule.
func (s *InMemoryRuleStore) PutCatalog(_ context.Context, def *CatalogDefinition) error {
	if err := ValidateDefinition(def); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	previous := map[string]*Rule{}
	if existing, ok := s.catalogs[def.Key]; ok {
		for _, r := range existing.def.Rules {
			previous[r.ID] = r
		}
	}

	stored := copyDefinition(def)
	for _, r := range stored.Rules {
		r.CreatedAt = now
		if old, ok := previous[r.ID]; ok {
			r.CreatedAt = old.CreatedAt
		}
		r.UpdatedAt = now
	}

	s.catalogs[def.Key] = &storedCatalog{def: stored, updatedAt: now}
	return nil
}

// GetCatalog returns a copy of the catalog restricted to its active rules
func (s *InMemoryRuleStore) GetCatalog(_ context.Context, key string) (*CatalogDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.catalogs[key]
	if !ok {
		return nil, fmt.Errorf("catalog %s: %w", key, ErrCatalogNotFound)
	}

	out := copyDefinition(stored.def)
	active := out.Rules[:0]
	for _, r := range out.Rules {
		if r.Active {
			active = append(active, r)
		}
	}
	out.Rules = active
	return out, nil
}

// GetRule retrieves a rule by catalog key and ID, active or not
func (s *InMemoryRuleStore) GetRule(_ context.Context, key, ruleID string) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.catalogs[key]
	if !ok {
		return nil, fmt.Errorf("catalog %s: %w", key, ErrCatalogNotFound)
	}
	for _, r := range stored.def.Rules {
		if r.ID == ruleID {
			rule := *r
			return &rule, nil
		}
	}
	return nil, fmt.Errorf("rule %s in catalog %s: %w", ruleID, key, ErrRuleNotFound)
}

// ListCatalogs returns summaries of all catalogs ordered by key
func (s *InMemoryRuleStore) ListCatalogs(_ context.Context) ([]CatalogSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]CatalogSummary, 0, len(s.catalogs))
	for _, stored := range s.catalogs {
		active := 0
		for _, r := range stored.def.Rules {
			if r.Active {
				active++
			}
		}
		summaries = append(summaries, CatalogSummary{
			Key:       stored.def.Key,
			Name:      stored.def.Name,
			RuleCount: active,
			UpdatedAt: stored.updatedAt,
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Key < summaries[j].Key })
	return summaries, nil
}

// DeleteCatalog removes a catalog from the store
func (s *InMemoryRuleStore) DeleteCatalog(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.catalogs[key]; !ok {
		return fmt.Errorf("catalog %s: %w", key, ErrCatalogNotFound)
	}
	delete(s.catalogs, key)
	return nil
}

func copyDefinition(def *CatalogDefinition) *CatalogDefinition {
	out := &CatalogDefinition{
		Key:   def.Key,
		Name:  def.Name,
		Rules: make([]*Rule, len(def.Rules)),
	}
	if len(def.Derived) > 0 {
		out.Derived = append([]DerivedField(nil), def.Derived...)
	}
	for i, r := range def.Rules {
		rule := *r
		out.Rules[i] = &rule
	}
	return out
}
