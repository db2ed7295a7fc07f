package dictionary

import (
	"fmt"
	"strconv"
	"strings"
)

// Type identifies one of the curated dictionary categories.
type Type string

const (
	TypeDx         Type = "dx"
	TypeMedication Type = "medication"
	TypeLab        Type = "lab"
	TypeLocation   Type = "location"
	TypeProcedure  Type = "procedure"
)

// Types lists every dictionary type in a fixed order.
var Types = []Type{TypeDx, TypeMedication, TypeLab, TypeLocation, TypeProcedure}

// Valid reports whether t is a known dictionary type.
func (t Type) Valid() bool {
	switch t {
	case TypeDx, TypeMedication, TypeLab, TypeLocation, TypeProcedure:
		return true
	}
	return false
}

// System identifies an upstream clinical source system contributing raw
// dictionary rows for a period of time. Not every dictionary type supports
// every system.
type System string

const (
	SystemEpic       System = "epic"
	SystemMeditech   System = "meditech"
	SystemCentricity System = "centricity"
	SystemGECB       System = "gecb"
	SystemICD9       System = "icd9"
	SystemICD10      System = "icd10"
)

// Reserved column names carried by some raw extracts. For dx files the
// vocabulary column tags each row as ICD-9 or ICD-10; for medication, lab and
// procedure files that union several systems the source column tags each row
// with the system it came from.
const (
	ColVocabulary   = "vocabulary"
	ColSourceSystem = "source_system"
)

// RawRow is one row of a raw source file: column name -> verbatim string
// value. Column order lives on the owning SourceFile.
type RawRow map[string]string

// SourceFile is one raw dictionary extract as returned by a row loader.
// Row order is the file's order and is never resorted.
type SourceFile struct {
	ID      string   `json:"id"`
	System  System   `json:"system"`
	Columns []string `json:"columns"`
	Rows    []RawRow `json:"rows"`
}

// Key is the deterministic per-row identifier: origin file plus the row's
// ordinal within that file. It is stable across reloads of the same file
// content, and unique within a dictionary type because the file identifier
// participates.
type Key struct {
	FileID  string `json:"file_id"`
	Ordinal int    `json:"ordinal"`
}

// String renders the key in its wire form "<file>#<ordinal>".
func (k Key) String() string {
	return k.FileID + "#" + strconv.Itoa(k.Ordinal)
}

// ParseKey parses the wire form produced by Key.String.
func ParseKey(s string) (Key, error) {
	i := strings.LastIndex(s, "#")
	if i <= 0 || i == len(s)-1 {
		return Key{}, fmt.Errorf("malformed row key: %q", s)
	}
	ord, err := strconv.Atoi(s[i+1:])
	if err != nil || ord < 0 {
		return Key{}, fmt.Errorf("malformed row key ordinal: %q", s)
	}
	return Key{FileID: s[:i], Ordinal: ord}, nil
}

// Row is the canonical unified entity: the raw columns plus source
// attribution and the researcher's selection state. Rows are rebuilt from
// scratch on every reload; selection fields are rehydrated from the session's
// state store by Key.
type Row struct {
	Key            Key      `json:"key"`
	Source         System   `json:"source"`
	Columns        []string `json:"columns"`
	Values         RawRow   `json:"values"`
	Desired        bool     `json:"desired"`
	Category       string   `json:"category"`
	KeywordMatched string   `json:"keyword_matched"`
}

// Term is an active keyword term applied as a search filter. Insertion order
// across a session's term list is significant: the first term that matches a
// row wins the KeywordMatched attribution.
type Term struct {
	Text       string `json:"text"`
	IsWildcard bool   `json:"is_wildcard"`
	Category   string `json:"category,omitempty"`
}

// NewTerm builds a Term from user input, recording whether the raw text
// carried wildcard markers.
func NewTerm(text, category string) Term {
	trimmed := strings.TrimSpace(text)
	return Term{
		Text:       trimmed,
		IsWildcard: strings.HasPrefix(trimmed, "*") || strings.HasSuffix(trimmed, "*"),
		Category:   category,
	}
}

// VisitContext carries the user's outpatient/inpatient toggles, which gate
// which legacy systems are relevant for some dictionary types.
type VisitContext struct {
	Outpatient bool `json:"outpatient"`
	Inpatient  bool `json:"inpatient"`
}
