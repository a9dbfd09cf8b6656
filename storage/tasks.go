package storage

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"

	"taskflow-api/domain"
)

// Timestamps are stored as fixed-width RFC 3339 UTC strings so OData ge/le
// string comparison matches chronological order. An empty DueAt means the
// task has no due date.
const tableTimeFormat = "2006-01-02T15:04:05Z"

type taskEntity struct {
	aztables.Entity
	Title     string `json:"Title"`
	Notes     string `json:"Notes"`
	DueAt     string `json:"DueAt"`
	Priority  string `json:"Priority"`
	Status    string `json:"Status"`
	CreatedAt string `json:"CreatedAt"`
	UpdatedAt string `json:"UpdatedAt"`
}

func encodeTask(t domain.Task) taskEntity {
	ent := taskEntity{
		Entity: aztables.Entity{
			PartitionKey: t.OwnerID,
			RowKey:       t.ID,
		},
		Title:     t.Title,
		Priority:  string(t.Priority),
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt.UTC().Format(tableTimeFormat),
		UpdatedAt: t.UpdatedAt.UTC().Format(tableTimeFormat),
	}
	if t.Notes != nil {
		ent.Notes = *t.Notes
	}
	if t.DueAt != nil {
		ent.DueAt = t.DueAt.UTC().Format(tableTimeFormat)
	}
	return ent
}

func decodeTask(ent taskEntity) (domain.Task, error) {
	t := domain.Task{
		ID:       ent.RowKey,
		OwnerID:  ent.PartitionKey,
		Title:    ent.Title,
		Priority: domain.Priority(ent.Priority),
		Status:   domain.Status(ent.Status),
	}
	if ent.Notes != "" {
		notes := ent.Notes
		t.Notes = &notes
	}
	if ent.DueAt != "" {
		due, err := time.Parse(tableTimeFormat, ent.DueAt)
		if err != nil {
			return domain.Task{}, err
		}
		t.DueAt = &due
	}
	var err error
	if t.CreatedAt, err = time.Parse(tableTimeFormat, ent.CreatedAt); err != nil {
		return domain.Task{}, err
	}
	if t.UpdatedAt, err = time.Parse(tableTimeFormat, ent.UpdatedAt); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// InsertTask stores a new task under its owner's partition.
func (s *Storage) InsertTask(ctx context.Context, t domain.Task) error {
	if t.OwnerID == "" {
		return ErrMissingOwner
	}
	payload, err := json.Marshal(encodeTask(t))
	if err != nil {
		return err
	}
	_, err = s.taskTable.AddEntity(ctx, payload, nil)
	return err
}

// GetTask fetches one task scoped to the owner. A missing row and a row
// belonging to another owner are indistinguishable: both return (nil, nil).
func (s *Storage) GetTask(ctx context.Context, ownerID, id string) (*domain.Task, error) {
	if ownerID == "" {
		return nil, ErrMissingOwner
	}
	resp, err := s.taskTable.GetEntity(ctx, ownerID, id, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var ent taskEntity
	if err := json.Unmarshal(resp.Value, &ent); err != nil {
		return nil, err
	}
	t, err := decodeTask(ent)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTask replaces the stored task. Concurrent updates are last-write-wins.
func (s *Storage) UpdateTask(ctx context.Context, t domain.Task) error {
	if t.OwnerID == "" {
		return ErrMissingOwner
	}
	payload, err := json.Marshal(encodeTask(t))
	if err != nil {
		return err
	}
	opts := &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace}
	_, err = s.taskTable.UpsertEntity(ctx, payload, opts)
	return err
}

// DeleteTask removes the task from the owner's partition. Deleting a row
// that vanished concurrently is not an error.
func (s *Storage) DeleteTask(ctx context.Context, ownerID, id string) error {
	if ownerID == "" {
		return ErrMissingOwner
	}
	_, err := s.taskTable.DeleteEntity(ctx, ownerID, id, nil)
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

// ListTasks retrieves the owner's tasks matching the filter, sorted per the
// filter's sort specification. Status equality and the due range are pushed
// into the table query; the free-text and bucket predicates run in memory.
func (s *Storage) ListTasks(ctx context.Context, ownerID string, f domain.TaskFilter, now time.Time) ([]domain.Task, error) {
	if ownerID == "" {
		return nil, ErrMissingOwner
	}
	filter := taskFilterExpr(ownerID, f)
	pager := s.taskTable.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	tasks := []domain.Task{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, e := range resp.Entities {
			var ent taskEntity
			if err := json.Unmarshal(e, &ent); err != nil {
				return nil, err
			}
			t, err := decodeTask(ent)
			if err != nil {
				return nil, err
			}
			if f.Matches(t, now) {
				tasks = append(tasks, t)
			}
		}
	}
	domain.SortTasks(tasks, f.Sort, f.Direction)
	return tasks, nil
}

// taskFilterExpr builds the OData predicate for a scoped list query. Every
// expression starts with the owner-id equality; when a due-range bound is
// present the predicate also excludes rows without a due date, because an
// empty string would otherwise satisfy any upper bound.
func taskFilterExpr(ownerID string, f domain.TaskFilter) string {
	var b strings.Builder
	b.WriteString("PartitionKey eq '")
	b.WriteString(escapeOData(ownerID))
	b.WriteString("'")
	if f.Status != nil {
		b.WriteString(" and Status eq '")
		b.WriteString(string(*f.Status))
		b.WriteString("'")
	}
	if f.From != nil || f.To != nil {
		b.WriteString(" and DueAt ne ''")
		if f.From != nil {
			b.WriteString(" and DueAt ge '")
			b.WriteString(f.From.UTC().Format(tableTimeFormat))
			b.WriteString("'")
		}
		if f.To != nil {
			b.WriteString(" and DueAt le '")
			b.WriteString(f.To.UTC().Format(tableTimeFormat))
			b.WriteString("'")
		}
	}
	return b.String()
}

func escapeOData(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
