package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"fleet-analytics/internal/audit"
)

// Store is an in-memory audit store, used by tests and local runs.
type Store struct {
	mu      sync.Mutex
	entries []audit.Entry
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{}
}

// Append adds an entry, filling id and timestamp when absent.
func (s *Store) Append(_ context.Context, entry audit.Entry) error {
	if entry.ID == "" {
		entry.ID = audit.NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.Digest == "" {
		entry.Digest = audit.DigestChanges(entry.Changes)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// List returns one page of matching entries plus the total match count.
func (s *Store) List(_ context.Context, filter audit.Filter, order audit.SortOrder, limit, offset int) ([]audit.Entry, int, error) {
	matched := s.matching(filter, order)
	total := len(matched)
	if offset >= total {
		return []audit.Entry{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

// ListAll returns every matching entry.
func (s *Store) ListAll(_ context.Context, filter audit.Filter, order audit.SortOrder) ([]audit.Entry, error) {
	return s.matching(filter, order), nil
}

// ByResource returns the newest entries for one resource instance.
func (s *Store) ByResource(_ context.Context, resource, resourceID string, limit int) ([]audit.Entry, error) {
	matched := s.matching(audit.Filter{Resource: resource}, audit.SortDesc)
	result := make([]audit.Entry, 0, limit)
	for _, entry := range matched {
		if entry.ResourceID != resourceID {
			continue
		}
		result = append(result, entry)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

// DeleteBefore removes entries older than cutoff.
func (s *Store) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	var deleted int64
	for _, entry := range s.entries {
		if entry.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, entry)
	}
	s.entries = kept
	return deleted, nil
}

func (s *Store) matching(filter audit.Filter, order audit.SortOrder) []audit.Entry {
	s.mu.Lock()
	var matched []audit.Entry
	for _, entry := range s.entries {
		if filter.Matches(entry) {
			matched = append(matched, entry)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		if order == audit.SortAsc {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched
}
