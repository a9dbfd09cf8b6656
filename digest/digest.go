// Package digest renders the daily reminder email from an owner's overdue
// and due-today tasks.
package digest

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"taskflow-api/domain"
)

// Email is a rendered digest ready for delivery.
type Email struct {
	Subject string
	HTML    string
}

const (
	subjectDateFormat = "Jan 2, 2006"
	dueTimeFormat     = "Jan 2, 2006, 3:04 PM"
)

var bodyTemplate = template.Must(template.New("digest").Parse(`<div style="font-family:Arial,sans-serif;line-height:1.5;color:#111827;">
<h2 style="margin:0 0 12px;">Taskflow daily reminder</h2>
{{- if .AllClear}}
<p style="margin:0 0 12px;">All clear for today. No overdue or due-today open tasks.</p>
{{- else}}
<p style="margin:0 0 12px;"><strong>{{len .Overdue}}</strong> overdue and <strong>{{len .DueToday}}</strong> due today.</p>
<h3 style="margin:16px 0 8px;">Overdue open tasks</h3>
{{- if .Overdue}}
<ul style="margin:0 0 12px 20px;padding:0;">
{{- range .Overdue}}
<li><strong>{{.Title}}</strong> - {{.Due}} ({{.Priority}})</li>
{{- end}}
</ul>
{{- else}}
<p style="margin:0 0 12px;color:#6B7280;">No overdue tasks.</p>
{{- end}}
<h3 style="margin:16px 0 8px;">Due today open tasks</h3>
{{- if .DueToday}}
<ul style="margin:0 0 12px 20px;padding:0;">
{{- range .DueToday}}
<li><strong>{{.Title}}</strong> - {{.Due}} ({{.Priority}})</li>
{{- end}}
</ul>
{{- else}}
<p style="margin:0 0 12px;color:#6B7280;">No tasks due today.</p>
{{- end}}
{{- end}}
<p style="margin:0;color:#6B7280;font-size:12px;">Generated on {{.Date}}</p>
</div>`))

type itemView struct {
	Title    string
	Due      string
	Priority domain.Priority
}

type bodyView struct {
	AllClear bool
	Date     string
	Overdue  []itemView
	DueToday []itemView
}

// Build renders the digest subject and HTML body. Both task lists are
// expected pre-sorted by due time ascending. User-supplied titles pass
// through html/template and are escaped on render.
func Build(now time.Time, overdue, dueToday []domain.Task) (Email, error) {
	dateLabel := now.Format(subjectDateFormat)
	total := len(overdue) + len(dueToday)

	view := bodyView{
		AllClear: total == 0,
		Date:     dateLabel,
		Overdue:  toItemViews(overdue),
		DueToday: toItemViews(dueToday),
	}

	var buf bytes.Buffer
	if err := bodyTemplate.Execute(&buf, view); err != nil {
		return Email{}, err
	}

	subject := fmt.Sprintf("Taskflow daily digest (%s): all clear", dateLabel)
	if total > 0 {
		subject = fmt.Sprintf("Taskflow daily digest (%s): %d task(s) need attention", dateLabel, total)
	}
	return Email{Subject: subject, HTML: buf.String()}, nil
}

// Partition splits open tasks into the digest's two sections. Anything due
// before now is overdue, even when it was due earlier today; due-today covers
// the remainder of the calendar day. Input order is preserved.
func Partition(tasks []domain.Task, now time.Time) (overdue, dueToday []domain.Task) {
	for _, t := range tasks {
		if t.Status != domain.StatusOpen || t.DueAt == nil {
			continue
		}
		switch {
		case domain.IsOverdue(t, now):
			overdue = append(overdue, t)
		case domain.IsDueToday(t, now):
			dueToday = append(dueToday, t)
		}
	}
	return overdue, dueToday
}

func toItemViews(tasks []domain.Task) []itemView {
	items := make([]itemView, 0, len(tasks))
	for _, t := range tasks {
		due := "No due date"
		if t.DueAt != nil {
			due = t.DueAt.Format(dueTimeFormat)
		}
		items = append(items, itemView{Title: t.Title, Due: due, Priority: t.Priority})
	}
	return items
}
