// Package auditlog keeps an append-only CSV trail of match ledger mutations.
package auditlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Entry is one row in the audit log.
type Entry struct {
	Timestamp time.Time
	Actor     string
	Action    string // create_match, remove_match, ignore, unignore
	LineID    string
	MatchID   string
	Details   string
}

// Header is the CSV header for audit-log.csv.
const Header = "timestamp,actor,action,line_id,match_id,details"

const (
	numFields    = 6
	logFile      = "audit-log.csv"
	colTimestamp = 0
	colActor     = 1
	colAction    = 2
	colLineID    = 3
	colMatchID   = 4
	colDetails   = 5
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colActor] = e.Actor
	row[colAction] = e.Action
	row[colLineID] = e.LineID
	row[colMatchID] = e.MatchID
	row[colDetails] = e.Details
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	return Entry{
		Timestamp: ts,
		Actor:     record[colActor],
		Action:    record[colAction],
		LineID:    record[colLineID],
		MatchID:   record[colMatchID],
		Details:   record[colDetails],
	}, nil
}

// Append writes entries to <dir>/audit-log.csv, creating the file and header
// if needed.
func Append(dir string, entries []Entry) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating audit dir: %w", err)
	}

	path := filepath.Join(dir, logFile)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	return cw.Error()
}

// Read returns all entries from <dir>/audit-log.csv. Returns an empty slice
// if the file does not exist.
func Read(dir string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(dir, logFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Logger is a ledger audit sink that appends each mutation to the log.
// Append failures are counted, not propagated: audit must never block a
// committed mutation.
type Logger struct {
	dir string

	mu     sync.Mutex
	errors int
}

// NewLogger creates a Logger writing under dir.
func NewLogger(dir string) *Logger {
	return &Logger{dir: dir}
}

// Mutation implements the ledger's Auditor interface.
func (l *Logger) Mutation(action, actor, lineID, matchID, details string) {
	err := Append(l.dir, []Entry{{
		Timestamp: time.Now().UTC(),
		Actor:     actor,
		Action:    action,
		LineID:    lineID,
		MatchID:   matchID,
		Details:   details,
	}})
	if err != nil {
		l.mu.Lock()
		l.errors++
		l.mu.Unlock()
	}
}

// DroppedEntries reports how many entries failed to append.
func (l *Logger) DroppedEntries() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errors
}
