package draft

import (
	"sort"

	"github.com/agentstation/metastage/pkg/preview"
)

// Store maps entity URN to its pending draft. Stores are immutable: every
// update returns a new store, and a no-op update returns the receiver
// unchanged so callers can skip work on identical references.
type Store struct {
	entries map[string]Draft
}

// NewStore returns an empty draft store.
func NewStore() *Store {
	return &Store{entries: map[string]Draft{}}
}

// Get returns the draft for an entity, if one is pending.
func (s *Store) Get(urn string) (Draft, bool) {
	d, ok := s.entries[urn]
	return d, ok
}

// Len returns the number of entities with pending drafts.
func (s *Store) Len() int {
	return len(s.entries)
}

// URNs returns the drafted entity URNs in sorted order.
func (s *Store) URNs() []string {
	urns := make([]string, 0, len(s.entries))
	for urn := range s.entries {
		urns = append(urns, urn)
	}
	sort.Strings(urns)
	return urns
}

// Update merges a partial update into the entity's draft and renormalizes
// the result against the baseline. Overrides equal to the entity's current
// preview values are dropped; a draft left with no overrides is removed. An
// unknown URN is rejected as a no-op. The receiver is returned unchanged
// when nothing effectively changed.
func (s *Store) Update(urn string, partial Draft, baseline preview.Baseline) *Store {
	row, ok := baseline[urn]
	if !ok {
		return s
	}

	existing := s.entries[urn]
	next := existing.merge(partial).normalized(row)

	_, had := s.entries[urn]
	if next.IsZero() {
		if !had {
			return s
		}
		return s.without(urn)
	}
	if had && existing.equal(next) {
		return s
	}
	return s.with(urn, next)
}

// Remove drops the entity's draft, if any.
func (s *Store) Remove(urn string) *Store {
	if _, ok := s.entries[urn]; !ok {
		return s
	}
	return s.without(urn)
}

// Prune drops drafts whose entity no longer exists in the baseline. Runs on
// every baseline swap so the store never references vanished entities.
func (s *Store) Prune(baseline preview.Baseline) *Store {
	var stale []string
	for urn := range s.entries {
		if _, ok := baseline[urn]; !ok {
			stale = append(stale, urn)
		}
	}
	if len(stale) == 0 {
		return s
	}

	entries := make(map[string]Draft, len(s.entries)-len(stale))
	for urn, d := range s.entries {
		entries[urn] = d
	}
	for _, urn := range stale {
		delete(entries, urn)
	}
	return &Store{entries: entries}
}

func (s *Store) with(urn string, d Draft) *Store {
	entries := make(map[string]Draft, len(s.entries)+1)
	for k, v := range s.entries {
		entries[k] = v
	}
	entries[urn] = d
	return &Store{entries: entries}
}

func (s *Store) without(urn string) *Store {
	entries := make(map[string]Draft, len(s.entries))
	for k, v := range s.entries {
		if k != urn {
			entries[k] = v
		}
	}
	return &Store{entries: entries}
}
