package dictionary

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ChangeEvent kinds published by a session.
const (
	EventCollectionReloaded = "collection.reloaded"
	EventSelectionChanged   = "selection.changed"
	EventTermsChanged       = "terms.changed"
)

// ChangeEvent describes a state change a rendering or export collaborator
// may react to. The core never renders; collaborators subscribe.
type ChangeEvent struct {
	SessionID string `json:"session_id"`
	Dict      Type   `json:"dictionary_type"`
	Kind      string `json:"kind"`
	Rows      int    `json:"rows"`
	Matched   int    `json:"matched"`
}

// Notifier receives session change events.
type Notifier interface {
	Publish(ev ChangeEvent)
}

// typeState is the per-dictionary-type working state owned by a session.
type typeState struct {
	start, end time.Time
	visit      VisitContext
	active     []System
	rows       []*Row
	index      map[Key]*Row
	matched    []*Row
	terms      []Term
	epoch      uint64
	loaded     bool
}

// Session owns one researcher's curation state across all dictionary types:
// the chosen date range and visit context, the resolved source systems, the
// unified collection, the active keyword terms and the selection state
// store. All state is explicitly owned here rather than module-level.
//
// A session serializes its own mutations with a mutex; loads run outside the
// lock and are guarded by a monotonic epoch so a stale load that resolves
// after a newer one has started is discarded instead of applied.
type Session struct {
	ID uuid.UUID

	mu       sync.Mutex
	resolver *Resolver
	source   RowSource
	store    *StateStore
	engine   *Engine
	notifier Notifier
	logger   zerolog.Logger
	types    map[Type]*typeState
}

// NewSession creates a session with its own empty state store.
func NewSession(resolver *Resolver, source RowSource, notifier Notifier, logger zerolog.Logger) *Session {
	store := NewStateStore()
	return &Session{
		ID:       uuid.New(),
		resolver: resolver,
		source:   source,
		store:    store,
		engine:   NewEngine(store),
		notifier: notifier,
		logger:   logger,
		types:    make(map[Type]*typeState),
	}
}

func (s *Session) state(t Type) *typeState {
	st, ok := s.types[t]
	if !ok {
		st = &typeState{}
		s.types[t] = st
	}
	return st
}

// SetRange records the date range and visit context for t, resolves the
// active source systems, and reloads and re-unifies the raw rows. Any active
// keyword filter is re-applied once the rebuild completes. A load superseded
// by a newer SetRange before its data arrives is discarded; a failed load
// leaves the previous collection and filter state intact.
func (s *Session) SetRange(ctx context.Context, t Type, start, end time.Time, vc VisitContext) error {
	if !t.Valid() {
		return fmt.Errorf("unknown dictionary type: %q", t)
	}

	s.mu.Lock()
	st := s.state(t)
	st.start, st.end, st.visit = start, end, vc
	st.active = s.resolver.Resolve(t, start, end, vc)
	st.epoch++
	epoch := st.epoch
	active := st.active
	s.mu.Unlock()

	files, err := s.source.Load(ctx, t, active)

	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != st.epoch {
		s.logger.Debug().
			Str("session_id", s.ID.String()).
			Str("type", string(t)).
			Uint64("epoch", epoch).
			Msg("discarding stale load result")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s rows: %w", t, err)
	}

	st.rows = Unify(t, active, files, s.store)
	st.index = make(map[Key]*Row, len(st.rows))
	for _, row := range st.rows {
		st.index[row.Key] = row
	}
	st.matched = s.engine.ApplyFilter(st.rows, st.terms)
	s.engine.AutoDesire(t, st.matched, st.terms)
	st.loaded = true

	s.publish(t, EventCollectionReloaded, st)
	return nil
}

// AddTerms appends keyword terms to t's active sequence, preserving
// insertion order, then re-applies the filter and auto-desires the matching
// subset. Suggestion batches are appended in the order the provider returned
// them, which keeps the first-match tie-break reproducible.
func (s *Session) AddTerms(t Type, terms ...Term) error {
	if !t.Valid() {
		return fmt.Errorf("unknown dictionary type: %q", t)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(t)
	st.terms = append(st.terms, terms...)
	st.matched = s.engine.ApplyFilter(st.rows, st.terms)
	s.engine.AutoDesire(t, st.matched, st.terms)
	s.publish(t, EventTermsChanged, st)
	return nil
}

// ClearTerms removes every active term for t. The matching subset reverts to
// the full collection; previously auto-set desired and category values are
// deliberately left as they are.
func (s *Session) ClearTerms(t Type) error {
	if !t.Valid() {
		return fmt.Errorf("unknown dictionary type: %q", t)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(t)
	st.terms = nil
	st.matched = st.rows
	s.publish(t, EventTermsChanged, st)
	return nil
}

// SetDesired manually toggles the desired flag on one row. A manual toggle
// is permitted while a filter is active and persists until the term set
// changes again, at which point auto-desire re-asserts true for rows that
// still match.
func (s *Session) SetDesired(t Type, key Key, desired bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(t)
	row, ok := st.index[key]
	if !ok {
		return fmt.Errorf("row %s not found in %s collection", key, t)
	}
	row.Desired = desired
	if !desired {
		row.KeywordMatched = ""
	}
	s.store.SetDesired(t, key, desired)
	s.publish(t, EventSelectionChanged, st)
	return nil
}

// SetCategory records the free-text category on one row.
func (s *Session) SetCategory(t Type, key Key, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(t)
	row, ok := st.index[key]
	if !ok {
		return fmt.Errorf("row %s not found in %s collection", key, t)
	}
	row.Category = category
	s.store.SetCategory(t, key, category)
	s.publish(t, EventSelectionChanged, st)
	return nil
}

// DeselectAll clears the desired flag for the currently visible rows — the
// matching subset — not for arbitrary history. Categories are kept.
func (s *Session) DeselectAll(t Type) error {
	if !t.Valid() {
		return fmt.Errorf("unknown dictionary type: %q", t)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(t)
	keys := make([]Key, 0, len(st.matched))
	for _, row := range st.matched {
		row.Desired = false
		row.KeywordMatched = ""
		keys = append(keys, row.Key)
	}
	s.store.ClearDesired(t, keys)
	s.publish(t, EventSelectionChanged, st)
	return nil
}

// Systems returns the source systems resolved for t by the last SetRange.
func (s *Session) Systems(t Type) []System {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(t)
	out := make([]System, len(st.active))
	copy(out, st.active)
	return out
}

// Terms returns t's active terms in insertion order.
func (s *Session) Terms(t Type) []Term {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(t)
	out := make([]Term, len(st.terms))
	copy(out, st.terms)
	return out
}

// Rows returns the current matching subset for t (the full collection when
// no terms are active).
func (s *Session) Rows(t Type) []*Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(t)
	out := make([]*Row, len(st.matched))
	copy(out, st.matched)
	return out
}

// AllRows returns t's full unified collection regardless of any filter.
func (s *Session) AllRows(t Type) []*Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(t)
	out := make([]*Row, len(st.rows))
	copy(out, st.rows)
	return out
}

// DesiredRows returns the rows currently flagged desired, in collection
// order. This is the set handed to the export collaborator.
func (s *Session) DesiredRows(t Type) []*Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(t)
	var out []*Row
	for _, row := range st.rows {
		if row.Desired {
			out = append(out, row)
		}
	}
	return out
}

func (s *Session) publish(t Type, kind string, st *typeState) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(ChangeEvent{
		SessionID: s.ID.String(),
		Dict:      t,
		Kind:      kind,
		Rows:      len(st.rows),
		Matched:   len(st.matched),
	})
}
