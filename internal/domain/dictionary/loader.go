package dictionary

import "context"

// RowSource loads the raw source files backing a dictionary type for a set
// of active source systems. Implementations return files in a stable order
// with stable file identifiers; a file that fails to load is returned as an
// empty row set (or omitted) rather than failing the whole load — partial
// results are preferred over blocking the type.
type RowSource interface {
	Load(ctx context.Context, t Type, active []System) ([]SourceFile, error)
}
