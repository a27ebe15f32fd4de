package ingest

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"altscope/internal/core/logline"
)

// SourceFile is one discovered transcript file
type SourceFile struct {
	Channel string
	Path    string // absolute path on disk
	Key     string // "channel/filename", the cursor and uniqueness key
	Date    string // 2006-01-02 from the file name
}

// ScanLogs walks the logs root and returns every transcript file, sorted by
// key for stable processing order
//
// Layout: one directory per channel, each holding *.log files whose names
// carry an ISO date (chan1/chan1-2025-09-16.log). Files without a parseable
// date are ignored
func ScanLogs(root string, channel string) ([]SourceFile, error) {
	dirs, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []SourceFile
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		ch := d.Name()
		if channel != "" && ch != channel {
			continue
		}
		files, err := os.ReadDir(filepath.Join(root, ch))
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".log") {
				continue
			}
			date, ok := logline.FileDate(f.Name())
			if !ok {
				continue
			}
			out = append(out, SourceFile{
				Channel: ch,
				Path:    filepath.Join(root, ch, f.Name()),
				Key:     ch + "/" + f.Name(),
				Date:    date,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
