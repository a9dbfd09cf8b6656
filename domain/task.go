package domain

import "time"

// Priority is the severity of a task. Sorting by priority uses severity
// order (HIGH > MEDIUM > LOW), not lexical order.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Rank returns the numeric severity of the priority, higher is more severe.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Status is the completion state of a task.
type Status string

const (
	StatusOpen Status = "OPEN"
	StatusDone Status = "DONE"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusOpen || s == StatusDone
}

// Task is a single tracked item. A task always belongs to exactly one owner
// and is never visible outside queries scoped to that owner.
type Task struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"-"`
	Title     string     `json:"title"`
	Notes     *string    `json:"notes"`
	DueAt     *time.Time `json:"dueAt"`
	Priority  Priority   `json:"priority"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// Owner is the authenticated user tasks belong to. Owners are created lazily
// on first authenticated access and never deleted by this system.
type Owner struct {
	ID      string  `json:"id"`
	Email   string  `json:"email"`
	Name    *string `json:"name,omitempty"`
	Picture *string `json:"picture,omitempty"`
}

// DigestRequest is a queued request to send one owner's daily digest.
type DigestRequest struct {
	OwnerID string `json:"ownerId"`
	Email   string `json:"email"`
}
