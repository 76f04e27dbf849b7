package eventlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/chainkernel/internal/ident"
)

// TimestampFormat is the layout used in entry timestamps.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Filter holds selection criteria for Read. Zero fields match anything.
type Filter struct {
	TxID          string
	From          ident.Address
	Method        string
	CommittedOnly bool
	Since         time.Time
	Until         time.Time
}

func (f Filter) match(e Entry) bool {
	if f.TxID != "" && e.TxID != f.TxID {
		return false
	}
	if !f.From.IsZero() && e.From != f.From {
		return false
	}
	if f.Method != "" && e.Method != f.Method {
		return false
	}
	if f.CommittedOnly && !e.Committed() {
		return false
	}
	if !f.Since.IsZero() || !f.Until.IsZero() {
		ts, err := time.Parse(TimestampFormat, e.Timestamp)
		if err != nil {
			return false
		}
		if !f.Since.IsZero() && ts.Before(f.Since) {
			return false
		}
		if !f.Until.IsZero() && ts.After(f.Until) {
			return false
		}
	}
	return true
}

// Summary holds counts for a set of entries.
type Summary struct {
	Total          int            `json:"total"`
	Committed      int            `json:"committed"`
	Reverted       int            `json:"reverted"`
	Events         int            `json:"events"`
	Reasons        map[string]int `json:"reasons,omitempty"`
	FirstTimestamp string         `json:"first_timestamp"`
	LastTimestamp  string         `json:"last_timestamp"`
}

// Result holds filtered entries and their summary.
type Result struct {
	Entries []Entry `json:"entries"`
	Summary Summary `json:"summary"`
}

// Read returns the entries of the log at path that match filter, in
// order. Numbers in arguments decode as json.Number so uint64 values keep
// their precision. A missing file reads as empty.
func Read(path string, filter Filter) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Result{}, nil
		}
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	result := &Result{}
	scanner := newScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		dec := json.NewDecoder(bytes.NewReader(scanner.Bytes()))
		dec.UseNumber()
		var entry Entry
		if err := dec.Decode(&entry); err != nil {
			return nil, fmt.Errorf("event log line %d: %w", lineNum, err)
		}
		if !filter.match(entry) {
			continue
		}
		result.Entries = append(result.Entries, entry)
		updateSummary(&result.Summary, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}
	return result, nil
}

func updateSummary(s *Summary, e Entry) {
	s.Total++
	if e.Committed() {
		s.Committed++
	} else {
		s.Reverted++
		if s.Reasons == nil {
			s.Reasons = make(map[string]int)
		}
		s.Reasons[e.Reason]++
	}
	s.Events += len(e.Events)
	if s.FirstTimestamp == "" {
		s.FirstTimestamp = e.Timestamp
	}
	s.LastTimestamp = e.Timestamp
}
