// Package types defines the value types shared by the storage layer, the
// RPC protocol, and the client facade.
//
// In storage a distinction is made between the classifier of activities and
// the event in the tracking log. When talking about the event we use the term
// "fact"; for the classifier we use "activity". One activity can be used in
// several facts.
package types

import (
	"time"
)

// Activity is a named thing that can be tracked. Identity is immutable;
// name and category are mutable. Deleted activities are kept for history
// and hidden from pickers unless explicitly requested.
type Activity struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	CategoryID *int64 `json:"category_id,omitempty"`
	Category   string `json:"category,omitempty"`
	Deleted    bool   `json:"deleted,omitempty"`
}

// Category groups activities.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Tag is a label attachable to facts. Autocomplete controls whether the tag
// is offered in completion lists; a tag dropped from autocomplete is
// resurrected when used again.
type Tag struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Autocomplete bool   `json:"autocomplete"`
}

// Fact is a single tracked time entry. EndTime == nil means the fact is
// still being tracked ("open"). At most one fact is open at any time.
type Fact struct {
	ID          int64      `json:"id"`
	ActivityID  int64      `json:"activity_id"`
	Activity    string     `json:"activity"`
	Category    string     `json:"category,omitempty"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Description string     `json:"description,omitempty"`
	Tags        []Tag      `json:"tags,omitempty"`
}

// Open reports whether the fact is still being tracked.
func (f *Fact) Open() bool { return f.EndTime == nil }

// Duration returns the tracked span, using now as the end for open facts.
func (f *Fact) Duration(now time.Time) time.Duration {
	end := now
	if f.EndTime != nil {
		end = *f.EndTime
	}
	if end.Before(f.StartTime) {
		return 0
	}
	return end.Sub(f.StartTime)
}

// TagNames returns the fact's tag labels in storage order.
func (f *Fact) TagNames() []string {
	if len(f.Tags) == 0 {
		return nil
	}
	names := make([]string, len(f.Tags))
	for i, t := range f.Tags {
		names[i] = t.Name
	}
	return names
}

// NewFact carries the caller-supplied fields for adding or replacing a fact.
// Activity is resolved (and created if missing) by name; Category likewise
// when non-empty. A nil EndTime opens the fact, closing any currently open
// one at StartTime.
type NewFact struct {
	Activity    string     `json:"activity"`
	Category    string     `json:"category,omitempty"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
	Description string     `json:"description,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
}

// Range is a time span used for fact queries. A fact matches when it
// overlaps [Start, End]; an open fact matches when it starts before End.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// DayRange returns the tracking day containing now, where days roll over at
// dayStartMinutes past midnight rather than at midnight itself (a day that
// starts at 05:30 counts 01:00 as belonging to the previous day).
func DayRange(now time.Time, dayStartMinutes int) Range {
	dayStart := time.Duration(dayStartMinutes) * time.Minute
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	start := midnight.Add(dayStart)
	if now.Before(start) {
		start = start.AddDate(0, 0, -1)
	}
	return Range{Start: start, End: start.AddDate(0, 0, 1)}
}
