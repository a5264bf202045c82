// Package session holds per-conversation state: the ordered record of past
// searches and the session lifecycle.
package session

import (
	"sync"
	"time"

	"github.com/HerbHall/skillpath/internal/match"
)

// Record is one past search and the results that were shown for it.
type Record struct {
	Seq        int             `json:"seq"`
	Query      string          `json:"query"`
	Results    match.Selection `json:"results"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// History is an append-only, insertion-ordered log of searches. Past records
// are never modified, so results already shown stay stable.
type History struct {
	mu      sync.RWMutex
	records []Record
	now     func() time.Time
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{now: time.Now}
}

// Record appends a search and returns the stored record.
func (h *History) Record(query string, results match.Selection) Record {
	cp := make(match.Selection, len(results))
	copy(cp, results)

	h.mu.Lock()
	defer h.mu.Unlock()
	rec := Record{
		Seq:        len(h.records) + 1,
		Query:      query,
		Results:    cp,
		RecordedAt: h.now().UTC(),
	}
	h.records = append(h.records, rec)
	return rec
}

// Entries returns a copy of every record in insertion order.
func (h *History) Entries() []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Record, len(h.records))
	for i, r := range h.records {
		results := make(match.Selection, len(r.Results))
		copy(results, r.Results)
		r.Results = results
		out[i] = r
	}
	return out
}

// Len returns the number of records.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}
