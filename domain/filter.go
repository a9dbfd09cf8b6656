package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// SortField selects the list ordering key.
type SortField string

const (
	SortDueAt     SortField = "dueAt"
	SortPriority  SortField = "priority"
	SortCreatedAt SortField = "createdAt"
	SortUpdatedAt SortField = "updatedAt"
)

// SortDirection is asc or desc.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Bucket is a date-relative display filter computed against "now".
type Bucket string

const (
	BucketToday   Bucket = "today"
	BucketWeek    Bucket = "week"
	BucketOverdue Bucket = "overdue"
)

// TaskFilterInput is the raw, untyped filter input as it arrives from query
// parameters. Empty strings mean "not supplied".
type TaskFilterInput struct {
	Status    string
	Query     string
	From      string
	To        string
	Bucket    string
	Sort      string
	Direction string
}

// TaskFilter is a validated, normalized list filter.
type TaskFilter struct {
	Status    *Status       `json:"status,omitempty"`
	Query     string        `json:"query,omitempty"`
	From      *time.Time    `json:"from,omitempty"`
	To        *time.Time    `json:"to,omitempty"`
	Bucket    Bucket        `json:"bucket,omitempty"`
	Sort      SortField     `json:"sort"`
	Direction SortDirection `json:"direction"`
}

// Validate normalizes the filter input. The sort specification defaults to
// (dueAt, asc); a date range where from is after to is rejected.
func (in TaskFilterInput) Validate() (TaskFilter, error) {
	var v issueCollector
	f := TaskFilter{Sort: SortDueAt, Direction: SortAsc}

	if in.Status != "" {
		s := Status(strings.ToUpper(strings.TrimSpace(in.Status)))
		if !s.Valid() {
			v.add("status", "Status must be OPEN or DONE.")
		} else {
			f.Status = &s
		}
	}

	if in.Query != "" {
		q := strings.TrimSpace(in.Query)
		if q == "" {
			v.add("query", "Query cannot be empty.")
		} else if utf8.RuneCountInString(q) > maxQueryLen {
			v.add("query", "Query must be 200 characters or less.")
		} else {
			f.Query = q
		}
	}

	f.From = parseRangeBound(in.From, "from", &v)
	f.To = parseRangeBound(in.To, "to", &v)
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		v.add("from", "Range start cannot be after range end.")
	}

	if in.Bucket != "" {
		b := Bucket(strings.ToLower(strings.TrimSpace(in.Bucket)))
		switch b {
		case BucketToday, BucketWeek, BucketOverdue:
			f.Bucket = b
		default:
			v.add("bucket", "Bucket must be today, week or overdue.")
		}
	}

	if in.Sort != "" {
		switch SortField(strings.TrimSpace(in.Sort)) {
		case SortDueAt, SortPriority, SortCreatedAt, SortUpdatedAt:
			f.Sort = SortField(strings.TrimSpace(in.Sort))
		default:
			v.add("sort", "Sort must be dueAt, priority, createdAt or updatedAt.")
		}
	}
	if in.Direction != "" {
		switch SortDirection(strings.ToLower(strings.TrimSpace(in.Direction))) {
		case SortAsc:
			f.Direction = SortAsc
		case SortDesc:
			f.Direction = SortDesc
		default:
			v.add("direction", "Direction must be asc or desc.")
		}
	}

	if err := v.err(); err != nil {
		return TaskFilter{}, err
	}
	return f, nil
}

// Matches applies the in-memory part of the filter: the case-insensitive
// substring match on title or notes, and the date bucket. Status and due
// range are pushed down to storage.
func (f TaskFilter) Matches(t Task, now time.Time) bool {
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(t.Title), q) &&
			(t.Notes == nil || !strings.Contains(strings.ToLower(*t.Notes), q)) {
			return false
		}
	}
	switch f.Bucket {
	case BucketToday:
		return IsDueToday(t, now)
	case BucketWeek:
		return IsDueThisWeek(t, now)
	case BucketOverdue:
		return IsOverdue(t, now)
	}
	return true
}

func parseRangeBound(raw, field string, v *issueCollector) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		u := t.UTC()
		return &u
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		u := t.UTC()
		return &u
	}
	v.add(field, "Invalid date.")
	return nil
}
