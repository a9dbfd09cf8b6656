package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Limits count characters, not bytes, so multi-byte titles are not
// penalized.
const (
	maxTitleLen = 140
	maxNotesLen = 2000
	maxQueryLen = 200
)

// Issue describes one invalid field in a validation failure.
type Issue struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// ValidationError carries one issue per invalid field.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid input"
	}
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		if is.Field != "" {
			parts = append(parts, is.Field+": "+is.Message)
		} else {
			parts = append(parts, is.Message)
		}
	}
	return strings.Join(parts, "; ")
}

// issueCollector accumulates field issues during validation.
type issueCollector struct {
	issues []Issue
}

func (v *issueCollector) add(field, msg string) {
	for _, is := range v.issues {
		if is.Field == field && field != "" {
			return
		}
	}
	v.issues = append(v.issues, Issue{Field: field, Message: msg})
}

func (v *issueCollector) err() error {
	if len(v.issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: v.issues}
}

// TaskCreateInput is the raw payload for task creation. Pointer fields are
// optional; missing priority and status take defaults.
type TaskCreateInput struct {
	Title    string  `json:"title"`
	Notes    *string `json:"notes"`
	DueAt    *string `json:"dueAt"`
	Priority *string `json:"priority"`
	Status   *string `json:"status"`
}

// TaskDraft is a normalized, validated create payload.
type TaskDraft struct {
	Title    string
	Notes    *string
	DueAt    *time.Time
	Priority Priority
	Status   Status
}

// Validate normalizes the input and returns a draft, or a *ValidationError
// with one issue per invalid field.
func (in TaskCreateInput) Validate() (TaskDraft, error) {
	var v issueCollector
	d := TaskDraft{Priority: PriorityMedium, Status: StatusOpen}

	d.Title = strings.TrimSpace(in.Title)
	if d.Title == "" {
		v.add("title", "Title cannot be empty.")
	} else if utf8.RuneCountInString(d.Title) > maxTitleLen {
		v.add("title", "Title must be 140 characters or less.")
	}

	d.Notes = normalizeNotes(in.Notes, &v)
	d.DueAt = parseDue(in.DueAt, &v)

	if in.Priority != nil {
		p := Priority(strings.ToUpper(strings.TrimSpace(*in.Priority)))
		if !p.Valid() {
			v.add("priority", "Priority must be LOW, MEDIUM or HIGH.")
		} else {
			d.Priority = p
		}
	}
	if in.Status != nil {
		s := Status(strings.ToUpper(strings.TrimSpace(*in.Status)))
		if !s.Valid() {
			v.add("status", "Status must be OPEN or DONE.")
		} else {
			d.Status = s
		}
	}

	if err := v.err(); err != nil {
		return TaskDraft{}, err
	}
	return d, nil
}

// TaskUpdateInput is the raw payload for a partial task update. A nil field
// means "leave unchanged"; empty notes or due date mean "clear".
type TaskUpdateInput struct {
	Title    *string `json:"title"`
	Notes    *string `json:"notes"`
	DueAt    *string `json:"dueAt"`
	Priority *string `json:"priority"`
	Status   *string `json:"status"`
}

// TaskPatch is a validated set of changes to apply to an existing task.
type TaskPatch struct {
	Title      *string
	Notes      *string
	ClearNotes bool
	DueAt      *time.Time
	ClearDueAt bool
	Priority   *Priority
	Status     *Status
}

// HasChanges reports whether the patch modifies at least one field.
func (p TaskPatch) HasChanges() bool {
	return p.Title != nil || p.Notes != nil || p.ClearNotes ||
		p.DueAt != nil || p.ClearDueAt || p.Priority != nil || p.Status != nil
}

// Apply writes the patch onto t and refreshes the updated timestamp.
func (p TaskPatch) Apply(t *Task, now time.Time) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.ClearNotes {
		t.Notes = nil
	} else if p.Notes != nil {
		t.Notes = p.Notes
	}
	if p.ClearDueAt {
		t.DueAt = nil
	} else if p.DueAt != nil {
		t.DueAt = p.DueAt
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	t.UpdatedAt = now.UTC()
}

// Validate normalizes the update input into a patch. Updates with no fields
// supplied fail with a "no changes" issue.
func (in TaskUpdateInput) Validate() (TaskPatch, error) {
	var v issueCollector
	var p TaskPatch

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			v.add("title", "Title cannot be empty.")
		} else if utf8.RuneCountInString(title) > maxTitleLen {
			v.add("title", "Title must be 140 characters or less.")
		} else {
			p.Title = &title
		}
	}
	if in.Notes != nil {
		notes := normalizeNotes(in.Notes, &v)
		if notes == nil {
			p.ClearNotes = true
		} else {
			p.Notes = notes
		}
	}
	if in.DueAt != nil {
		if strings.TrimSpace(*in.DueAt) == "" {
			p.ClearDueAt = true
		} else {
			p.DueAt = parseDue(in.DueAt, &v)
		}
	}
	if in.Priority != nil {
		pr := Priority(strings.ToUpper(strings.TrimSpace(*in.Priority)))
		if !pr.Valid() {
			v.add("priority", "Priority must be LOW, MEDIUM or HIGH.")
		} else {
			p.Priority = &pr
		}
	}
	if in.Status != nil {
		st := Status(strings.ToUpper(strings.TrimSpace(*in.Status)))
		if !st.Valid() {
			v.add("status", "Status must be OPEN or DONE.")
		} else {
			p.Status = &st
		}
	}

	if err := v.err(); err != nil {
		return TaskPatch{}, err
	}
	if !p.HasChanges() {
		return TaskPatch{}, &ValidationError{Issues: []Issue{{Message: "Provide at least one field to update."}}}
	}
	return p, nil
}

// normalizeNotes trims notes; whitespace-only notes become nil rather than an
// error. Over-long notes add an issue.
func normalizeNotes(raw *string, v *issueCollector) *string {
	if raw == nil {
		return nil
	}
	notes := strings.TrimSpace(*raw)
	if notes == "" {
		return nil
	}
	if utf8.RuneCountInString(notes) > maxNotesLen {
		v.add("notes", "Notes must be 2000 characters or less.")
		return nil
	}
	return &notes
}

// parseDue parses an optional due timestamp. Absent or empty means no due
// date; anything else must parse as RFC 3339 or a plain calendar date.
func parseDue(raw *string, v *issueCollector) *time.Time {
	if raw == nil {
		return nil
	}
	s := strings.TrimSpace(*raw)
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
	v.add("dueAt", "Invalid due date.")
	return nil
}
