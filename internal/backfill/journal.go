package backfill

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/suppscan/score-cli/internal/model"
)

// Journal is an append-only JSONL failure log. Entries are written one per
// line and never mutated; a replay run reads them back and reprocesses the
// products they name.
type Journal struct {
	mu   sync.Mutex
	file *os.File
}

// OpenJournal opens the journal at path for appending, creating it if needed.
func OpenJournal(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, eris.Wrapf(err, "journal: open %s", path)
	}
	return &Journal{file: f}, nil
}

// Append writes one entry as a single JSON line. Safe for concurrent use.
func (j *Journal) Append(entry model.FailureEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return eris.Wrap(err, "journal: marshal entry")
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.file.Write(data); err != nil {
		return eris.Wrap(err, "journal: append")
	}
	return nil
}

// Close flushes and closes the underlying file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.file.Close(); err != nil {
		return eris.Wrap(err, "journal: close")
	}
	return nil
}

// ReadJournal loads all entries from a journal file. Blank lines are
// skipped; a malformed line is an error since it means the journal was
// edited or truncated mid-write.
func ReadJournal(path string) ([]model.FailureEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "journal: open %s", path)
	}
	defer f.Close()

	var entries []model.FailureEntry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var e model.FailureEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, eris.Wrapf(err, "journal: parse line %d", line)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "journal: scan")
	}
	return entries, nil
}

// DedupeLatest collapses entries to the most recent one per (source, source
// id). A product that failed at several stages or on several runs is
// replayed once, from scratch.
func DedupeLatest(entries []model.FailureEntry) []model.FailureEntry {
	type key struct{ source, sourceID string }
	latest := make(map[key]model.FailureEntry, len(entries))
	var order []key
	for _, e := range entries {
		k := key{e.Source, e.SourceID}
		if _, seen := latest[k]; !seen {
			order = append(order, k)
		} else if e.At.Before(latest[k].At) {
			continue
		}
		latest[k] = e
	}
	out := make([]model.FailureEntry, 0, len(order))
	for _, k := range order {
		out = append(out, latest[k])
	}
	return out
}
