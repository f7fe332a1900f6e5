// Package session owns the state of one import review session: the latest
// preview snapshot fetched from the metadata service, the pending user
// drafts, and the compile-and-submit flow. State is replaced wholesale on
// every transition, never mutated in place, so readers always observe a
// consistent snapshot.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/agentstation/utc"
	"github.com/rs/zerolog"

	"github.com/agentstation/metastage/pkg/draft"
	"github.com/agentstation/metastage/pkg/errors"
	"github.com/agentstation/metastage/pkg/logging"
	"github.com/agentstation/metastage/pkg/patch"
	"github.com/agentstation/metastage/pkg/preview"
)

// Client is the upstream metadata service surface the session depends on.
type Client interface {
	// FetchPreview retrieves one page of the entity import preview.
	FetchPreview(ctx context.Context, q preview.Query) (*preview.Response, error)

	// SubmitPatches commits a batch of patches in a single mutation.
	// Any rejection fails the whole batch.
	SubmitPatches(ctx context.Context, patches []patch.EntityPatch) error
}

// Snapshot is the immutable view of the last applied preview fetch.
type Snapshot struct {
	Groups    []preview.EntityGroup
	Baseline  preview.Baseline
	Query     string
	Start     int
	Count     int
	Total     int
	FetchedAt utc.Time
}

// SubmitResult reports what a successful submission committed.
type SubmitResult struct {
	URNs       []string `json:"urns"`
	Operations int      `json:"operations"`
}

// Session coordinates preview fetches, draft edits, and submission for one
// review page. Safe for concurrent use.
type Session struct {
	client       Client
	logger       *zerolog.Logger
	debounceWait time.Duration
	pageSize     int

	mu       sync.Mutex
	snapshot Snapshot
	drafts   *draft.Store
	query    string
	start    int
	pending  *time.Timer

	// generation is a monotonic fetch counter; responses carrying an older
	// generation than the latest issued one are dropped instead of
	// overwriting newer state.
	generation uint64
	applied    uint64
}

// New creates a session backed by the given upstream client.
func New(client Client, opts ...Option) *Session {
	s := &Session{
		client:       client,
		logger:       logging.Default(),
		debounceWait: DefaultDebounceWait,
		pageSize:     DefaultPageSize,
		drafts:       draft.NewStore(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the last applied preview snapshot.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Drafts returns the current draft store.
func (s *Session) Drafts() *draft.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drafts
}

// Refresh fetches the preview for the current query and page, replacing the
// baseline on success. A response superseded by a newer fetch is dropped and
// reported as ErrStale.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	gen := s.issueGeneration()
	q := preview.Query{Start: s.start, Count: s.pageSize, Query: s.query}
	s.mu.Unlock()

	return s.fetch(ctx, gen, q)
}

// Search updates the query text and schedules a debounced fetch: rapid
// keystrokes coalesce into a single request once input has been quiet for
// the debounce window. The page resets to the start.
func (s *Session) Search(ctx context.Context, query string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.query = query
	s.start = 0

	if s.pending != nil {
		s.pending.Stop()
	}
	s.pending = time.AfterFunc(s.debounceWait, func() {
		s.mu.Lock()
		gen := s.issueGeneration()
		q := preview.Query{Start: s.start, Count: s.pageSize, Query: s.query}
		s.mu.Unlock()

		if err := s.fetch(ctx, gen, q); err != nil && !errors.IsStale(err) {
			s.logger.Error().Err(err).Str("query", q.Query).Msg("Debounced search fetch failed")
		}
	})
}

// SearchNow updates the query text and fetches immediately, bypassing the
// debounce window. Callers that receive whole committed queries rather than
// keystroke streams use this.
func (s *Session) SearchNow(ctx context.Context, query string) error {
	s.mu.Lock()
	s.query = query
	s.start = 0
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	gen := s.issueGeneration()
	q := preview.Query{Start: s.start, Count: s.pageSize, Query: s.query}
	s.mu.Unlock()

	return s.fetch(ctx, gen, q)
}

// SetPage moves to the given page offset and fetches immediately.
func (s *Session) SetPage(ctx context.Context, start int) error {
	if start < 0 {
		return errors.NewValidationError("start", start, "must not be negative")
	}

	s.mu.Lock()
	s.start = start
	gen := s.issueGeneration()
	q := preview.Query{Start: s.start, Count: s.pageSize, Query: s.query}
	s.mu.Unlock()

	return s.fetch(ctx, gen, q)
}

// UpdateDraft merges a partial draft update for an entity. It reports
// whether the store changed; updates for unknown entities or updates that
// normalize to no-ops leave the store untouched.
func (s *Session) UpdateDraft(urn string, partial draft.Draft) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.drafts.Update(urn, partial, s.snapshot.Baseline)
	if next == s.drafts {
		return false
	}
	s.drafts = next
	s.logger.Debug().Str("urn", urn).Int("drafted", next.Len()).Msg("Draft updated")
	return true
}

// ClearDraft drops the entity's pending draft, if any.
func (s *Session) ClearDraft(urn string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts = s.drafts.Remove(urn)
}

// Changes compiles the current diff set: one patch per entity whose
// effective target state differs from its original. Placeholder rows are
// never included since their URNs do not exist upstream.
func (s *Session) Changes() []patch.EntityPatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compile()
}

func (s *Session) compile() []patch.EntityPatch {
	var patches []patch.EntityPatch
	for gi := range s.snapshot.Groups {
		for _, row := range s.snapshot.Groups[gi].Rows {
			s.compileRow(row, &patches)
		}
	}
	return patches
}

func (s *Session) compileRow(row *preview.EntityRow, out *[]patch.EntityPatch) {
	if !row.Placeholder {
		d, _ := s.drafts.Get(row.URN)
		if p := patch.ForEntity(d, row); p != nil {
			*out = append(*out, *p)
		}
	}
	for _, child := range row.Children {
		s.compileRow(child, out)
	}
}

// Submit compiles and commits the current diff set in one mutation. On
// success the drafts for submitted entities are dropped and the baseline is
// re-fetched; on failure drafts are kept so the user can retry.
func (s *Session) Submit(ctx context.Context) (*SubmitResult, error) {
	s.mu.Lock()
	patches := s.compile()
	s.mu.Unlock()

	if len(patches) == 0 {
		return &SubmitResult{}, nil
	}

	urns := make([]string, 0, len(patches))
	operations := 0
	for _, p := range patches {
		urns = append(urns, p.URN)
		operations += len(p.Operations)
	}

	if err := s.client.SubmitPatches(ctx, patches); err != nil {
		s.logger.Error().Err(err).Int("patches", len(patches)).Msg("Patch submission failed")
		return nil, errors.NewSubmitError(urns, err.Error(), err)
	}

	s.mu.Lock()
	for _, urn := range urns {
		s.drafts = s.drafts.Remove(urn)
	}
	s.mu.Unlock()

	s.logger.Info().
		Int("patches", len(patches)).
		Int("operations", operations).
		Msg("Patches submitted")

	if err := s.Refresh(ctx); err != nil && !errors.IsStale(err) {
		// The commit itself succeeded; a failed refresh only leaves the
		// display behind.
		s.logger.Warn().Err(err).Msg("Refresh after submit failed")
	}

	return &SubmitResult{URNs: urns, Operations: operations}, nil
}

func (s *Session) issueGeneration() uint64 {
	s.generation++
	return s.generation
}

func (s *Session) fetch(ctx context.Context, gen uint64, q preview.Query) error {
	resp, err := s.client.FetchPreview(ctx, q)
	if err != nil {
		return fmt.Errorf("fetch preview: %w", err)
	}
	return s.apply(gen, q, resp)
}

// apply installs a fetched response as the new baseline unless a newer
// fetch has been issued or applied since.
func (s *Session) apply(gen uint64, q preview.Query, resp *preview.Response) error {
	groups := preview.Transform(resp.Groups)
	baseline := preview.BaselineOf(groups)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen < s.generation || gen <= s.applied {
		s.logger.Debug().
			Uint64("generation", gen).
			Uint64("latest", s.generation).
			Msg("Dropping superseded preview response")
		return errors.ErrStale
	}
	s.applied = gen

	s.snapshot = Snapshot{
		Groups:    groups,
		Baseline:  baseline,
		Query:     q.Query,
		Start:     resp.Start,
		Count:     resp.Count,
		Total:     resp.Total,
		FetchedAt: utc.Now(),
	}
	s.drafts = s.drafts.Prune(baseline)

	s.logger.Debug().
		Int("groups", len(groups)).
		Int("entities", len(baseline)).
		Int("drafted", s.drafts.Len()).
		Msg("Preview baseline replaced")

	return nil
}
