package domain

import "time"

// ReminderSummary aggregates an owner's open tasks relative to "now".
type ReminderSummary struct {
	OverdueOpenCount  int        `json:"overdueOpenCount"`
	DueTodayOpenCount int        `json:"dueTodayOpenCount"`
	NextUpcomingDueAt *time.Time `json:"nextUpcomingDueAt"`
}

// BuildReminderSummary computes the three reminder figures from the owner's
// tasks. Each figure is independent: overdue counts open tasks due before
// now, due-today counts open tasks due within today's calendar bounds, and
// next-upcoming is the earliest open due timestamp at or after now (nil when
// there is none).
func BuildReminderSummary(tasks []Task, now time.Time) ReminderSummary {
	var s ReminderSummary
	dayStart := StartOfDay(now)
	dayEnd := EndOfDay(now)

	for _, t := range tasks {
		if t.Status != StatusOpen || t.DueAt == nil {
			continue
		}
		due := *t.DueAt
		if due.Before(now) {
			s.OverdueOpenCount++
		}
		local := due.In(now.Location())
		if !local.Before(dayStart) && !local.After(dayEnd) {
			s.DueTodayOpenCount++
		}
		if !due.Before(now) && (s.NextUpcomingDueAt == nil || due.Before(*s.NextUpcomingDueAt)) {
			next := due
			s.NextUpcomingDueAt = &next
		}
	}
	return s
}
