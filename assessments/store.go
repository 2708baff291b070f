// Package assessments keeps a log of evaluation results so callers can fetch
// them back by ID.
package assessments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/liamcoop/visarules/eligibility"
	"github.com/liamcoop/visarules/rules"
)

// ErrNotFound is returned when no assessment has the requested ID
var ErrNotFound = errors.New("assessment not found")

// Entry is one logged evaluation
type Entry struct {
	ID         uuid.UUID            `json:"id"`
	CatalogKey string               `json:"catalog"`
	Result     *rules.Assessment    `json:"result"`
	Decision   eligibility.Decision `json:"decision"`
	CreatedAt  time.Time            `json:"created_at"`
}

// NewEntry creates an entry with a fresh ID
func NewEntry(catalogKey string, result *rules.Assessment, decision eligibility.Decision) *Entry {
	return &Entry{
		ID:         uuid.New(),
		CatalogKey: catalogKey,
		Result:     result,
		Decision:   decision,
		CreatedAt:  time.Now().UTC(),
	}
}

// Store persists assessment entries
type Store interface {
	// Save stores a new entry
	Save(ctx context.Context, e *Entry) error

	// Get retrieves an entry by ID
	Get(ctx context.Context, id uuid.UUID) (*Entry, error)

	// List returns the newest entries for a catalog, at most limit
	List(ctx context.Context, catalogKey string, limit int) ([]*Entry, error)
}

// InMemoryStore is a Store for tests and single-process deployments
type InMemoryStore struct {
	entries map[uuid.UUID]*Entry
	mu      sync.RWMutex
}

// NewInMemoryStore creates an empty in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[uuid.UUID]*Entry)}
}

// Save stores a copy of e
func (s *InMemoryStore) Save(_ context.Context, e *Entry) error {
	if e == nil {
		return fmt.Errorf("entry cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[e.ID]; exists {
		return fmt.Errorf("assessment %s already exists", e.ID)
	}
	stored := *e
	s.entries[e.ID] = &stored
	return nil
}

// Get returns a copy of the entry with the given ID
func (s *InMemoryStore) Get(_ context.Context, id uuid.UUID) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("assessment %s: %w", id, ErrNotFound)
	}
	out := *e
	return &out, nil
}

// List returns entries for catalogKey, newest first
func (s *InMemoryStore) List(_ context.Context, catalogKey string, limit int) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*Entry{}
	for _, e := range s.entries {
		if e.CatalogKey == catalogKey {
			entry := *e
			out = append(out, &entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
