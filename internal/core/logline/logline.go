// Package logline parses one raw chat transcript line into a structured entry
//
// Expected format: [HH:MM:SS] username: message
// The calendar date is not on the line; it comes from the log file name
package logline

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// ErrMalformed marks a line that does not match the transcript format
// Callers count and skip these without aborting the batch
var ErrMalformed = errors.New("malformed chat line")

// ErrSkipped marks a blank or comment line that carries no event
// These are not counted as parse failures
var ErrSkipped = errors.New("skipped line")

// Entry is one parsed transcript line
type Entry struct {
	TS       time.Time
	Username string
	Message  string
}

var (
	lineRe = regexp.MustCompile(`^\[(\d{2}:\d{2}:\d{2})\] ([^:]+): (.*)$`)
	dateRe = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`)
)

// Parse extracts the entry from one raw line given the file's calendar date
// (format 2006-01-02). Timestamps are channel-local wall clock; no timezone
// conversion happens anywhere downstream
func Parse(raw, logDate string) (Entry, error) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return Entry{}, ErrSkipped
	}

	m := lineRe.FindStringSubmatch(line)
	if m == nil {
		return Entry{}, ErrMalformed
	}

	username := strings.TrimSpace(m[2])
	message := strings.TrimSpace(m[3])
	if username == "" || message == "" {
		return Entry{}, ErrMalformed
	}

	ts, err := time.Parse("2006-01-02 15:04:05", logDate+" "+m[1])
	if err != nil {
		return Entry{}, ErrMalformed
	}

	return Entry{TS: ts, Username: username, Message: message}, nil
}

// FileDate extracts the ISO calendar date encoded in a log file name,
// e.g. chan1-2025-09-16.log -> 2025-09-16
func FileDate(filename string) (string, bool) {
	m := dateRe.FindStringSubmatch(filename)
	if m == nil {
		return "", false
	}
	if _, err := time.Parse("2006-01-02", m[1]); err != nil {
		return "", false
	}
	return m[1], true
}
