package domain

import "sort"

// SortTasks orders tasks in place according to the filter's sort
// specification. The slice is first given a stable creation-time base
// ordering; the requested key is then applied as a stable sort on top, so
// ties keep their creation order.
//
// Priority cannot be sorted at the storage layer because it is an enumerated
// severity, not a lexical value: HIGH > MEDIUM > LOW. Re-sorting fetched
// results in memory defeats pagination and indexing; that is a known
// limitation carried over deliberately.
func SortTasks(tasks []Task, field SortField, dir SortDirection) {
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})

	desc := dir == SortDesc
	switch field {
	case SortPriority:
		sort.SliceStable(tasks, func(i, j int) bool {
			if desc {
				return tasks[i].Priority.Rank() > tasks[j].Priority.Rank()
			}
			return tasks[i].Priority.Rank() < tasks[j].Priority.Rank()
		})
	case SortDueAt:
		sort.SliceStable(tasks, func(i, j int) bool {
			// Tasks without a due date sort last in either direction.
			if tasks[i].DueAt == nil {
				return false
			}
			if tasks[j].DueAt == nil {
				return true
			}
			if desc {
				return tasks[i].DueAt.After(*tasks[j].DueAt)
			}
			return tasks[i].DueAt.Before(*tasks[j].DueAt)
		})
	case SortCreatedAt:
		if desc {
			sort.SliceStable(tasks, func(i, j int) bool {
				return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
			})
		}
	case SortUpdatedAt:
		sort.SliceStable(tasks, func(i, j int) bool {
			if desc {
				return tasks[i].UpdatedAt.After(tasks[j].UpdatedAt)
			}
			return tasks[i].UpdatedAt.Before(tasks[j].UpdatedAt)
		})
	}
}
