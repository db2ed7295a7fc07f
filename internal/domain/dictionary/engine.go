package dictionary

// Engine applies the active keyword terms to a unified collection and writes
// the resulting selection state back into the session's state store.
type Engine struct {
	store *StateStore
}

// NewEngine creates a selection engine backed by store.
func NewEngine(store *StateStore) *Engine {
	return &Engine{store: store}
}

// ApplyFilter returns the subset of rows matching any active term: OR across
// terms, OR across each row's own column values, case-insensitive. With no
// active terms the whole collection is the matching subset and no selection
// state is touched.
func (e *Engine) ApplyFilter(rows []*Row, terms []Term) []*Row {
	if len(terms) == 0 {
		return rows
	}
	preds := compileTerms(terms)
	var matched []*Row
	for _, row := range rows {
		if firstMatch(row, terms, preds) >= 0 {
			matched = append(matched, row)
		}
	}
	return matched
}

// AutoDesire forces desired=true on every row of the matching subset and
// attributes each row to the first active term (in insertion order) whose
// predicate matched any of its columns. A filter pass always wins over a
// prior manual deselection; the category is left alone. With no active terms
// it is a no-op.
func (e *Engine) AutoDesire(t Type, matched []*Row, terms []Term) {
	if len(terms) == 0 {
		return
	}
	preds := compileTerms(terms)
	for _, row := range matched {
		i := firstMatch(row, terms, preds)
		if i < 0 {
			continue
		}
		row.Desired = true
		row.KeywordMatched = terms[i].Text
		entry, _ := e.store.Get(t, row.Key)
		entry.Desired = true
		entry.KeywordMatched = terms[i].Text
		if entry.Category == "" && terms[i].Category != "" {
			entry.Category = terms[i].Category
			row.Category = terms[i].Category
		}
		e.store.Set(t, row.Key, entry)
	}
}

func compileTerms(terms []Term) []Predicate {
	preds := make([]Predicate, len(terms))
	for i, term := range terms {
		preds[i] = Compile(term.Text)
	}
	return preds
}

// firstMatch returns the index of the first term whose predicate matches any
// column value of row, or -1. Term order is the user's insertion order:
// first match wins, not last or best.
func firstMatch(row *Row, terms []Term, preds []Predicate) int {
	for i := range terms {
		for _, col := range row.Columns {
			if preds[i](row.Values[col]) {
				return i
			}
		}
	}
	return -1
}
