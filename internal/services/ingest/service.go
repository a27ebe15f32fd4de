// Package ingest reads channel transcript directories incrementally and
// appends new events to the store
//
// Each file carries a persisted cursor (last line, size, mtime). Unchanged
// files are skipped on metadata alone; shrunk files are treated as rotation
// and reprocessed from the top. The event batch and the cursor advance
// commit in one transaction per file
package ingest

import (
	"bufio"
	"context"
	"database/sql"
	stderrs "errors"
	"os"

	"altscope/internal/core/logline"
	"altscope/internal/modkit"
	"altscope/internal/modkit/repokit"
	perr "altscope/internal/platform/errors"
	"altscope/internal/platform/logger"
	"altscope/internal/services/messages"
)

// maxLineBytes bounds a single transcript line; pasted walls of text show up
// in real logs well past bufio's 64k default
const maxLineBytes = 1 << 20

// FileResult is the outcome of one pass over one source file
type FileResult struct {
	Key           string
	NewLines      int64
	ParseFailures int
	Users         map[string]struct{}
	Skipped       bool
	Reset         bool
}

// Service ingests transcript files for one logs root
type Service struct {
	db       repokit.TxRunner
	cursors  repokit.Binder[Repo]
	messages *messages.Service
	logsRoot string
	log      *logger.Logger
}

// NewService builds the ingest service from shared deps
func NewService(d modkit.Deps, msgs *messages.Service, logsRoot string) *Service {
	return &Service{
		db:       d.MustDB(),
		cursors:  NewSQLite(),
		messages: msgs,
		logsRoot: logsRoot,
		log:      d.Log,
	}
}

// Scan lists the transcript files currently on disk without reading them
func (s *Service) Scan(channel string) ([]SourceFile, error) {
	files, err := ScanLogs(s.logsRoot, channel)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "scan logs root %q", s.logsRoot)
	}
	return files, nil
}

// Run ingests every transcript file for a channel (all channels when empty)
// and returns the per-file results in processing order
func (s *Service) Run(ctx context.Context, channel string) ([]FileResult, error) {
	files, err := ScanLogs(s.logsRoot, channel)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "scan logs root %q", s.logsRoot)
	}

	results := make([]FileResult, 0, len(files))
	for _, f := range files {
		res, err := s.ingestFile(ctx, f)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// ingestFile processes one file: plan from the cursor, read only the new
// lines, and commit events plus the advanced cursor atomically
func (s *Service) ingestFile(ctx context.Context, f SourceFile) (FileResult, error) {
	res := FileResult{Key: f.Key, Users: make(map[string]struct{})}

	info, err := os.Stat(f.Path)
	if err != nil {
		return res, perr.Wrapf(err, perr.ErrorCodeUnavailable, "stat %q", f.Path)
	}

	err = s.db.Tx(ctx, func(q repokit.Queryer) error {
		cursors := s.cursors.Bind(q)
		cur, err := cursors.Cursor(ctx, f.Key)
		if err != nil {
			return perr.FromSQLitef(err, "load cursor %q", f.Key)
		}

		plan := PlanFor(cur, info.Size(), info.ModTime())
		if plan.Skip {
			res.Skipped = true
			return nil
		}
		if plan.Reset {
			res.Reset = true
			s.log.Info().
				Str("file", f.Key).
				Int64("prev_size", cur.FileSize).
				Int64("size", info.Size()).
				Msg("file rotation detected, reprocessing from start")
		}

		events, lastLine, failures, err := s.readNewLines(f, plan.StartLine)
		if err != nil {
			return err
		}
		res.ParseFailures = failures

		if len(events) > 0 {
			n, err := s.messages.Append(ctx, q, events)
			if err != nil {
				return err
			}
			res.NewLines = n
			for _, e := range events {
				res.Users[e.Username] = struct{}{}
			}
		}

		err = cursors.UpsertCursor(ctx, Cursor{
			SourceFile: f.Key,
			Channel:    f.Channel,
			LastLine:   lastLine,
			FileSize:   info.Size(),
			ModifiedAt: info.ModTime().Format(modifiedLayout),
		})
		if err != nil {
			return perr.FromSQLitef(err, "advance cursor %q", f.Key)
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	return res, nil
}

// readNewLines reads the file from line startLine (1-based) to EOF, parsing
// each line. Malformed lines are counted and skipped; blank and comment
// lines are skipped without counting
func (s *Service) readNewLines(f SourceFile, startLine int) ([]messages.Event, int, int, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, 0, 0, perr.Wrapf(err, perr.ErrorCodeUnavailable, "open %q", f.Path)
	}
	defer fh.Close()

	sc := bufio.NewScanner(fh)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	var (
		events   []messages.Event
		failures int
		lineNo   int
	)
	for sc.Scan() {
		lineNo++
		if lineNo < startLine {
			continue
		}
		entry, err := logline.Parse(sc.Text(), f.Date)
		if err != nil {
			if stderrs.Is(err, logline.ErrMalformed) {
				failures++
				s.log.Debug().Str("file", f.Key).Int("line", lineNo).Msg("malformed line skipped")
			}
			continue
		}
		events = append(events, messages.Event{
			Channel:    f.Channel,
			Username:   entry.Username,
			TS:         entry.TS,
			LogDate:    f.Date,
			Message:    entry.Message,
			SourceFile: f.Key,
			SourceLine: lineNo,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, 0, 0, perr.Wrapf(err, perr.ErrorCodeUnavailable, "read %q", f.Path)
	}
	return events, lineNo, failures, nil
}

func isNoRows(err error) bool { return stderrs.Is(err, sql.ErrNoRows) }
