package ingest

import "time"

// modifiedLayout stores mtimes with sub-second precision so a same-size
// rewrite within one second is still detected
const modifiedLayout = "2006-01-02 15:04:05.000000000"

// Cursor is the persisted ingestion bookmark for one source file
type Cursor struct {
	SourceFile string
	Channel    string
	LastLine   int // lines [1..LastLine] are already stored
	FileSize   int64
	ModifiedAt string
}

// Plan is the tracker's decision for one pass over a file
type Plan struct {
	// StartLine is the first 1-based line to process
	StartLine int

	// Skip means the file is unchanged; no read happens at all
	Skip bool

	// Reset means the file shrank or changed identity and is reprocessed
	// from the top
	Reset bool
}

// PlanFor compares the stored cursor against the file's current metadata
//
// Unchanged size and mtime is a no-op decided from metadata alone. A smaller
// size means truncation or rotation and forces a full reprocess; the stored
// (file, line) uniqueness key downstream keeps that safe. Anything else is
// an append and resumes after the last stored line
func PlanFor(c Cursor, size int64, modifiedAt time.Time) Plan {
	mod := modifiedAt.Format(modifiedLayout)
	if c.LastLine > 0 && c.FileSize == size && c.ModifiedAt == mod {
		return Plan{Skip: true}
	}
	if size < c.FileSize {
		return Plan{StartLine: 1, Reset: true}
	}
	return Plan{StartLine: c.LastLine + 1}
}
