// Package datefilter parses the date filter grammar shared by every read path
//
// Accepted forms
//
//	2025-09-16                    single date
//	2025-09-16:2025-09-18         inclusive range
//	include:2025-09-16,2025-09-18 only the listed dates
//	exclude:2025-09-16            all but the listed dates
//
// The empty string means "all dates"
package datefilter

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Kind discriminates the filter forms
type Kind int

const (
	// KindAll matches every date
	KindAll Kind = iota
	// KindSingle matches exactly one date
	KindSingle
	// KindRange matches an inclusive date range
	KindRange
	// KindInclude matches only the listed dates
	KindInclude
	// KindExclude matches everything but the listed dates
	KindExclude
)

// AllKey is the canonical cache key for the unfiltered view
const AllKey = "all"

// Filter is a parsed, canonicalized date filter
type Filter struct {
	kind  Kind
	start string
	end   string
	dates []string // sorted, deduplicated
}

// All returns the filter matching every date
func All() Filter { return Filter{kind: KindAll} }

// Parse turns the string form into a Filter
// An empty string yields the all-dates filter
func Parse(s string) (Filter, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == AllKey:
		return All(), nil

	case strings.HasPrefix(s, "include:"):
		dates, err := parseList(strings.TrimPrefix(s, "include:"))
		if err != nil {
			return Filter{}, err
		}
		return Filter{kind: KindInclude, dates: dates}, nil

	case strings.HasPrefix(s, "exclude:"):
		dates, err := parseList(strings.TrimPrefix(s, "exclude:"))
		if err != nil {
			return Filter{}, err
		}
		return Filter{kind: KindExclude, dates: dates}, nil

	case strings.Contains(s, ":"):
		parts := strings.SplitN(s, ":", 2)
		start, err := parseDate(parts[0])
		if err != nil {
			return Filter{}, err
		}
		end, err := parseDate(parts[1])
		if err != nil {
			return Filter{}, err
		}
		if start > end {
			return Filter{}, fmt.Errorf("date filter: range start %s after end %s", start, end)
		}
		return Filter{kind: KindRange, start: start, end: end}, nil

	default:
		d, err := parseDate(s)
		if err != nil {
			return Filter{}, err
		}
		return Filter{kind: KindSingle, start: d, end: d}, nil
	}
}

func parseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return "", fmt.Errorf("date filter: invalid date %q", s)
	}
	return s, nil
}

func parseList(s string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	for _, part := range strings.Split(s, ",") {
		d, err := parseDate(part)
		if err != nil {
			return nil, err
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("date filter: empty date list")
	}
	sort.Strings(out)
	return out, nil
}

// Kind returns the filter form
func (f Filter) Kind() Kind { return f.kind }

// IsAll reports whether the filter matches every date
func (f Filter) IsAll() bool { return f.kind == KindAll }

// Key returns the canonical cache key for this filter
// Equivalent filters written differently produce the same key
func (f Filter) Key() string {
	switch f.kind {
	case KindSingle:
		return f.start
	case KindRange:
		return f.start + ":" + f.end
	case KindInclude:
		return "include:" + strings.Join(f.dates, ",")
	case KindExclude:
		return "exclude:" + strings.Join(f.dates, ",")
	default:
		return AllKey
	}
}

// Matches reports whether a date (2006-01-02) passes the filter
func (f Filter) Matches(date string) bool {
	switch f.kind {
	case KindSingle, KindRange:
		return date >= f.start && date <= f.end
	case KindInclude:
		return contains(f.dates, date)
	case KindExclude:
		return !contains(f.dates, date)
	default:
		return true
	}
}

func contains(sorted []string, d string) bool {
	i := sort.SearchStrings(sorted, d)
	return i < len(sorted) && sorted[i] == d
}

// SQL renders the filter as a predicate over column, returning the clause
// (starting with " AND ...") and its args; the all-dates filter renders empty
func (f Filter) SQL(column string) (string, []any) {
	switch f.kind {
	case KindSingle:
		return " AND " + column + " = ?", []any{f.start}
	case KindRange:
		return " AND " + column + " BETWEEN ? AND ?", []any{f.start, f.end}
	case KindInclude:
		return " AND " + column + " IN (" + placeholders(len(f.dates)) + ")", argsOf(f.dates)
	case KindExclude:
		return " AND " + column + " NOT IN (" + placeholders(len(f.dates)) + ")", argsOf(f.dates)
	default:
		return "", nil
	}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func argsOf(dates []string) []any {
	out := make([]any, len(dates))
	for i, d := range dates {
		out[i] = d
	}
	return out
}
