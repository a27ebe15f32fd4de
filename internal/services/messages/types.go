// Package messages is the durable event store: append-only chat events keyed
// by (source_file, source_line), queryable by channel and date range
package messages

import "time"

// tsLayout is the storage form of event timestamps; lexicographic order
// matches chronological order so the column sorts and ranges correctly
const tsLayout = "2006-01-02 15:04:05"

// Event is one stored chat message. Immutable once stored; the
// (SourceFile, SourceLine) pair is the uniqueness key that makes ingestion
// idempotent
type Event struct {
	Channel    string
	Username   string
	TS         time.Time
	LogDate    string // 2006-01-02, denormalized for date filtering
	Message    string
	SourceFile string
	SourceLine int
}

// DayActivity is a per-day message count for one user
type DayActivity struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Corpus is the per-user material one analysis run consumes, built from a
// single ordered scan so both views come from the same snapshot
type Corpus struct {
	// Messages maps username to its ordered message texts
	Messages map[string][]string

	// Timestamps maps username to its ordered event instants
	Timestamps map[string][]time.Time

	// Counts maps username to its message count
	Counts map[string]int
}

// TotalEvents returns the number of events in the corpus
func (c Corpus) TotalEvents() int {
	n := 0
	for _, cnt := range c.Counts {
		n += cnt
	}
	return n
}
