package dictionary

// Entry holds the researcher's last explicit selection values for one row
// key: the desired flag, the free-text category, and which active keyword
// caused the current desired=true, if any.
type Entry struct {
	Desired        bool   `json:"desired"`
	Category       string `json:"category"`
	KeywordMatched string `json:"keyword_matched"`
}

// StateStore is the only memory that survives unifier rebuilds. Entries are
// created lazily on first user action (or auto-desire), never dropped on
// reload, and only ever overwritten by explicit Set calls. Desired flags are
// cleared in bulk only through ClearDesired, which touches exactly the keys
// it is handed — not arbitrary history.
//
// The store is not synchronized: the owning Session serializes access.
type StateStore struct {
	entries map[Type]map[Key]Entry
}

// NewStateStore creates an empty state store.
func NewStateStore() *StateStore {
	return &StateStore{entries: make(map[Type]map[Key]Entry)}
}

// Get returns the stored entry for (t, key) and whether one exists.
func (s *StateStore) Get(t Type, key Key) (Entry, bool) {
	e, ok := s.entries[t][key]
	return e, ok
}

// Set records the entry for (t, key), overwriting any prior value.
func (s *StateStore) Set(t Type, key Key, e Entry) {
	byKey, ok := s.entries[t]
	if !ok {
		byKey = make(map[Key]Entry)
		s.entries[t] = byKey
	}
	byKey[key] = e
}

// SetDesired updates only the desired flag of the entry for (t, key),
// creating the entry if absent. When desired is cleared the keyword
// attribution is cleared with it: KeywordMatched records what caused the
// current desired=true.
func (s *StateStore) SetDesired(t Type, key Key, desired bool) {
	e, _ := s.Get(t, key)
	e.Desired = desired
	if !desired {
		e.KeywordMatched = ""
	}
	s.Set(t, key, e)
}

// SetCategory updates only the category of the entry for (t, key), creating
// the entry if absent.
func (s *StateStore) SetCategory(t Type, key Key, category string) {
	e, _ := s.Get(t, key)
	e.Category = category
	s.Set(t, key, e)
}

// ClearDesired clears the desired flag (and keyword attribution) for the
// given keys only. Categories are kept, and keys without an entry are left
// without one.
func (s *StateStore) ClearDesired(t Type, keys []Key) {
	byKey := s.entries[t]
	if byKey == nil {
		return
	}
	for _, k := range keys {
		e, ok := byKey[k]
		if !ok {
			continue
		}
		e.Desired = false
		e.KeywordMatched = ""
		byKey[k] = e
	}
}

// Len returns the number of entries recorded for t.
func (s *StateStore) Len(t Type) int {
	return len(s.entries[t])
}
