/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package blackjack

import "time"

// SkipMarker stands in for the word name on a skipped turn.
const SkipMarker = "(skipped)"

type HistoryEntry struct {
	Team       string    `json:"team"`
	Word       string    `json:"word"`
	Value      int       `json:"value"`
	Score      int       `json:"score"`
	Eliminated bool      `json:"eliminated"`
	Round      int       `json:"round"`
	Skipped    bool      `json:"skipped"`
	At         time.Time `json:"at"`
}

// History is an append-only log of resolved turns.
type History struct {
	entries []HistoryEntry
	now     func() time.Time
}

func NewHistory() *History {
	return &History{now: time.Now}
}

func (h *History) append(e HistoryEntry) HistoryEntry {
	if e.At.IsZero() {
		e.At = h.now()
	}
	h.entries = append(h.entries, e)
	return e
}

func (h *History) Len() int {
	return len(h.entries)
}

// Entries returns a copy of the log, oldest first.
func (h *History) Entries() []HistoryEntry {
	return append(make([]HistoryEntry, 0, len(h.entries)), h.entries...)
}

// Total sums the values a team has scored across the log.
func (h *History) Total(team string) int {
	total := 0
	for _, e := range h.entries {
		if e.Team == team {
			total += e.Value
		}
	}
	return total
}
