package dictionary

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// PGRowSource loads raw dictionary files from the Postgres tables the
// upstream extract jobs write into (dictionary_files / dictionary_rows).
type PGRowSource struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPGRowSource creates a Postgres-backed row source.
func NewPGRowSource(pool *pgxpool.Pool, logger zerolog.Logger) *PGRowSource {
	return &PGRowSource{pool: pool, logger: logger}
}

// Load returns the source files for t whose nominal system is in active,
// ordered by file identifier. Row payloads are fetched concurrently, one
// goroutine per file; a file whose rows fail to load yields an empty row set
// rather than failing the whole load.
func (r *PGRowSource) Load(ctx context.Context, t Type, active []System) ([]SourceFile, error) {
	systems := make([]string, len(active))
	for i, s := range active {
		systems[i] = string(s)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT file_id, source_system, columns
		 FROM dictionary_files
		 WHERE dictionary_type = $1 AND source_system = ANY($2)
		 ORDER BY file_id`, string(t), systems)
	if err != nil {
		return nil, fmt.Errorf("list %s source files: %w", t, err)
	}
	defer rows.Close()

	var files []SourceFile
	for rows.Next() {
		var f SourceFile
		var system string
		var colsJSON []byte
		if err := rows.Scan(&f.ID, &system, &colsJSON); err != nil {
			return nil, fmt.Errorf("scan source file: %w", err)
		}
		f.System = System(system)
		if err := json.Unmarshal(colsJSON, &f.Columns); err != nil {
			return nil, fmt.Errorf("decode columns for file %s: %w", f.ID, err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s source files: %w", t, err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for i := range files {
		i := i
		g.Go(func() error {
			fileRows, err := r.loadRows(gctx, files[i].ID)
			if err != nil {
				// Treated as "no data from that source", not a hard failure.
				r.logger.Warn().Err(err).
					Str("file_id", files[i].ID).
					Str("type", string(t)).
					Msg("source file failed to load, continuing with empty rows")
				return nil
			}
			mu.Lock()
			files[i].Rows = fileRows
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(files, func(a, b int) bool { return files[a].ID < files[b].ID })
	return files, nil
}

func (r *PGRowSource) loadRows(ctx context.Context, fileID string) ([]RawRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT data FROM dictionary_rows WHERE file_id = $1 ORDER BY ordinal`, fileID)
	if err != nil {
		return nil, fmt.Errorf("load rows for file %s: %w", fileID, err)
	}
	defer rows.Close()

	var out []RawRow
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var raw RawRow
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode row in file %s: %w", fileID, err)
		}
		out = append(out, raw)
	}
	return out, rows.Err()
}
