package dictionary

import "strings"

// Unify merges the raw source files relevant to activeSystems into one
// canonical, addressable row collection for t, in (file order, row order
// within file) — deterministic and never resorted.
//
// File-level selection is the loader's job; Unify additionally applies the
// row-level filters: dx rows carry their own vocabulary tag (a single file
// can contain both ICD-9 and ICD-10 rows), and medication/lab/procedure rows
// may carry an explicit per-row source-system tag because the extract
// already unions several systems. When a row carries a tag, the tag — not
// the file's nominal source — decides inclusion.
//
// Selection state is rehydrated from store by key, so researcher work
// survives reloads that regenerate rows from the same file content.
func Unify(t Type, activeSystems []System, files []SourceFile, store *StateStore) []*Row {
	active := make(map[System]bool, len(activeSystems))
	for _, s := range activeSystems {
		active[s] = true
	}

	var out []*Row
	for _, f := range files {
		for ordinal, raw := range f.Rows {
			sys := rowSystem(t, f, raw)
			if !active[sys] {
				continue
			}

			cols := SchemaColumns(t, sys)
			if cols == nil {
				cols = f.Columns
			}
			values := make(RawRow, len(cols))
			for _, c := range cols {
				values[c] = raw[c]
			}

			row := &Row{
				Key:     Key{FileID: f.ID, Ordinal: ordinal},
				Source:  sys,
				Columns: cols,
				Values:  values,
			}
			if e, ok := store.Get(t, row.Key); ok {
				row.Desired = e.Desired
				row.Category = e.Category
				row.KeywordMatched = e.KeywordMatched
			}
			out = append(out, row)
		}
	}
	return out
}

// rowSystem attributes a raw row to a source system: the vocabulary tag for
// dx, the per-row source tag when present for medication/lab/procedure, and
// the file's nominal system otherwise.
func rowSystem(t Type, f SourceFile, raw RawRow) System {
	switch t {
	case TypeDx:
		return vocabularySystem(raw[ColVocabulary])
	case TypeMedication, TypeLab, TypeProcedure:
		if tag := strings.TrimSpace(raw[ColSourceSystem]); tag != "" {
			return System(strings.ToLower(tag))
		}
	}
	return f.System
}

// vocabularySystem maps a dx row's vocabulary tag ("ICD-10-CM", "ICD9",
// "icd-9-cm", ...) to its coding system. Unknown tags attribute to no
// system, so the row is dropped rather than mis-filed.
func vocabularySystem(vocab string) System {
	v := strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(vocab, "-", ""), " ", ""))
	switch {
	case strings.HasPrefix(v, "icd10"):
		return SystemICD10
	case strings.HasPrefix(v, "icd9"):
		return SystemICD9
	}
	return ""
}
