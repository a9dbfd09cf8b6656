package domain

import "time"

// Date-bucket predicates. All are pure functions of (task, now) and are used
// both for server-side filtering and for response annotations; they never
// mutate state. Calendar boundaries are computed in now's location.

const dueSoonWindow = 24 * time.Hour

// IsOverdue reports whether the task is open with a due timestamp before now.
func IsOverdue(t Task, now time.Time) bool {
	if t.DueAt == nil || t.Status == StatusDone {
		return false
	}
	return t.DueAt.Before(now)
}

// IsDueSoon reports whether the task is open and due within the next 24 hours.
func IsDueSoon(t Task, now time.Time) bool {
	if t.DueAt == nil || t.Status == StatusDone {
		return false
	}
	diff := t.DueAt.Sub(now)
	return diff >= 0 && diff <= dueSoonWindow
}

// IsDueToday reports whether the task's due date falls on now's calendar
// date, regardless of status.
func IsDueToday(t Task, now time.Time) bool {
	if t.DueAt == nil {
		return false
	}
	due := t.DueAt.In(now.Location())
	return due.Year() == now.Year() && due.YearDay() == now.YearDay()
}

// IsDueThisWeek reports whether the task's due timestamp falls within
// [start of current week, start of next week). Weeks start on Sunday.
func IsDueThisWeek(t Task, now time.Time) bool {
	if t.DueAt == nil {
		return false
	}
	start := StartOfWeek(now)
	end := start.AddDate(0, 0, 7)
	due := t.DueAt.In(now.Location())
	return !due.Before(start) && due.Before(end)
}

// StartOfDay returns midnight of now's calendar date.
func StartOfDay(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// EndOfDay returns the last nanosecond of now's calendar date.
func EndOfDay(now time.Time) time.Time {
	return StartOfDay(now).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// StartOfWeek returns midnight of the most recent Sunday.
func StartOfWeek(now time.Time) time.Time {
	return StartOfDay(now).AddDate(0, 0, -int(now.Weekday()))
}
