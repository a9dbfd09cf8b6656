package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskflow-api/domain"
)

type mockStore struct {
	tasks   map[string]domain.Task
	owners  map[string]domain.Owner
	digests []domain.DigestRequest

	listErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		tasks:  make(map[string]domain.Task),
		owners: make(map[string]domain.Owner),
	}
}

func (m *mockStore) InsertTask(ctx context.Context, t domain.Task) error {
	m.tasks[t.OwnerID+"/"+t.ID] = t
	return nil
}

func (m *mockStore) GetTask(ctx context.Context, ownerID, id string) (*domain.Task, error) {
	t, ok := m.tasks[ownerID+"/"+id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *mockStore) UpdateTask(ctx context.Context, t domain.Task) error {
	m.tasks[t.OwnerID+"/"+t.ID] = t
	return nil
}

func (m *mockStore) DeleteTask(ctx context.Context, ownerID, id string) error {
	delete(m.tasks, ownerID+"/"+id)
	return nil
}

func (m *mockStore) ListTasks(ctx context.Context, ownerID string, f domain.TaskFilter, now time.Time) ([]domain.Task, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.Task
	for _, t := range m.tasks {
		if t.OwnerID != ownerID {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		if f.From != nil && (t.DueAt == nil || t.DueAt.Before(*f.From)) {
			continue
		}
		if f.To != nil && (t.DueAt == nil || t.DueAt.After(*f.To)) {
			continue
		}
		if !f.Matches(t, now) {
			continue
		}
		out = append(out, t)
	}
	domain.SortTasks(out, f.Sort, f.Direction)
	return out, nil
}

func (m *mockStore) GetOwner(ctx context.Context, id string) (*domain.Owner, error) {
	o, ok := m.owners[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *mockStore) FindOwnerByEmail(ctx context.Context, email string) (*domain.Owner, error) {
	for _, o := range m.owners {
		if o.Email == email {
			o := o
			return &o, nil
		}
	}
	return nil, nil
}

func (m *mockStore) UpsertOwner(ctx context.Context, o domain.Owner) error {
	m.owners[o.ID] = o
	return nil
}

func (m *mockStore) ListOwners(ctx context.Context) ([]domain.Owner, error) {
	var out []domain.Owner
	for _, o := range m.owners {
		out = append(out, o)
	}
	return out, nil
}

func (m *mockStore) EnqueueDigest(ctx context.Context, req domain.DigestRequest) error {
	m.digests = append(m.digests, req)
	return nil
}

type mockAuth struct {
	identity *Identity
	err      error
}

func (m mockAuth) IdentityFromAuthHeader(string) (*Identity, error) {
	return m.identity, m.err
}

func authFor(subject, email string) mockAuth {
	return mockAuth{identity: &Identity{Subject: subject, Email: email}}
}

func testLogger() *log.Logger {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return logger
}

func doRequest(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func newTestServer(store *mockStore, auth Authenticator) *echo.Echo {
	e := echo.New()
	Register(e, store, auth, NewSummaryCache(nil, 0), nil, DigestConfig{}, testLogger())
	return e
}

func decodeTaskView(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var out map[string]any
	if err := sonic.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestCreateTaskRoundTrip(t *testing.T) {
	store := newMockStore()
	e := newTestServer(store, authFor("user-1", "u1@example.com"))

	rec := doRequest(e, http.MethodPost, "/api/tasks",
		`{"title":"Buy milk","dueAt":"2026-03-01T10:00:00Z","priority":"HIGH"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeTaskView(t, rec.Body.Bytes())
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatal("expected generated id")
	}
	if created["priority"] != "HIGH" || created["status"] != "OPEN" {
		t.Fatalf("unexpected task fields: %v", created)
	}

	rec = doRequest(e, http.MethodGet, "/api/tasks/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	fetched := decodeTaskView(t, rec.Body.Bytes())
	if fetched["title"] != "Buy milk" {
		t.Fatalf("unexpected title: %v", fetched["title"])
	}
}

func TestCreateTaskValidationError(t *testing.T) {
	store := newMockStore()
	e := newTestServer(store, authFor("user-1", "u1@example.com"))

	rec := doRequest(e, http.MethodPost, "/api/tasks", `{"title":"   ","priority":"URGENT"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := decodeTaskView(t, rec.Body.Bytes())
	if body["code"] != "VALIDATION_ERROR" {
		t.Fatalf("unexpected error code: %v", body["code"])
	}
	issues, _ := body["issues"].([]any)
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %v", body["issues"])
	}
	if len(store.tasks) != 0 {
		t.Fatal("nothing may be persisted on validation failure")
	}
}

func TestCreateTaskMalformedBody(t *testing.T) {
	e := newTestServer(newMockStore(), authFor("user-1", "u1@example.com"))
	rec := doRequest(e, http.MethodPost, "/api/tasks", `{"title":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestTasksRequireAuth(t *testing.T) {
	e := newTestServer(newMockStore(), mockAuth{err: errMissingAuthorization})
	for _, route := range []struct{ method, target string }{
		{http.MethodPost, "/api/tasks"},
		{http.MethodGet, "/api/tasks"},
		{http.MethodGet, "/api/tasks/some-id"},
		{http.MethodPatch, "/api/tasks/some-id"},
		{http.MethodDelete, "/api/tasks/some-id"},
		{http.MethodGet, "/api/reminders"},
	} {
		rec := doRequest(e, route.method, route.target, "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", route.method, route.target, rec.Code)
		}
		body := decodeTaskView(t, rec.Body.Bytes())
		if body["code"] != "AUTH_REQUIRED" {
			t.Fatalf("%s %s: unexpected error code: %v", route.method, route.target, body["code"])
		}
	}
}

func TestTasksRequireAuthWithResolvableHeader(t *testing.T) {
	// An Authorization header that parses but resolves to no identity must
	// also produce the auth response on the id routes.
	e := newTestServer(newMockStore(), mockAuth{})
	for _, route := range []struct{ method, target, body string }{
		{http.MethodGet, "/api/tasks/some-id", ""},
		{http.MethodPatch, "/api/tasks/some-id", `{"status":"DONE"}`},
		{http.MethodDelete, "/api/tasks/some-id", ""},
	} {
		rec := doRequest(e, route.method, route.target, route.body)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", route.method, route.target, rec.Code)
		}
		body := decodeTaskView(t, rec.Body.Bytes())
		if body["code"] != "AUTH_REQUIRED" {
			t.Fatalf("%s %s: unexpected error code: %v", route.method, route.target, body["code"])
		}
	}
}

func TestTasksAreOwnerScoped(t *testing.T) {
	store := newMockStore()
	alice := newTestServer(store, authFor("alice", "alice@example.com"))
	bob := newTestServer(store, authFor("bob", "bob@example.com"))

	rec := doRequest(alice, http.MethodPost, "/api/tasks", `{"title":"Alice task"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	id := decodeTaskView(t, rec.Body.Bytes())["id"].(string)

	// Bob cannot see, update or delete Alice's task; absence and foreign
	// ownership are indistinguishable.
	for _, route := range []struct{ method, target, body string }{
		{http.MethodGet, "/api/tasks/" + id, ""},
		{http.MethodPatch, "/api/tasks/" + id, `{"status":"DONE"}`},
		{http.MethodDelete, "/api/tasks/" + id, ""},
	} {
		rec := doRequest(bob, route.method, route.target, route.body)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("%s %s: expected 404, got %d", route.method, route.target, rec.Code)
		}
		body := decodeTaskView(t, rec.Body.Bytes())
		if body["code"] != "TASK_NOT_FOUND" {
			t.Fatalf("unexpected error code: %v", body["code"])
		}
	}

	rec = doRequest(bob, http.MethodGet, "/api/tasks", "")
	list := decodeTaskView(t, rec.Body.Bytes())
	if total, _ := list["total"].(float64); total != 0 {
		t.Fatalf("bob must see no tasks, got %v", list)
	}
}

func TestPatchTaskNoChanges(t *testing.T) {
	store := newMockStore()
	e := newTestServer(store, authFor("user-1", "u1@example.com"))

	rec := doRequest(e, http.MethodPost, "/api/tasks", `{"title":"t"}`)
	id := decodeTaskView(t, rec.Body.Bytes())["id"].(string)

	rec = doRequest(e, http.MethodPatch, "/api/tasks/"+id, `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty patch, got %d", rec.Code)
	}
}

func TestPatchTaskAppliesChanges(t *testing.T) {
	store := newMockStore()
	e := newTestServer(store, authFor("user-1", "u1@example.com"))

	rec := doRequest(e, http.MethodPost, "/api/tasks", `{"title":"t","notes":"keep me","dueAt":"2026-03-01"}`)
	created := decodeTaskView(t, rec.Body.Bytes())
	id := created["id"].(string)

	rec = doRequest(e, http.MethodPatch, "/api/tasks/"+id, `{"status":"DONE","dueAt":""}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	updated := decodeTaskView(t, rec.Body.Bytes())
	if updated["status"] != "DONE" {
		t.Fatalf("expected DONE, got %v", updated["status"])
	}
	if updated["dueAt"] != nil {
		t.Fatalf("expected due date cleared, got %v", updated["dueAt"])
	}
	if updated["notes"] != "keep me" {
		t.Fatalf("untouched notes must survive, got %v", updated["notes"])
	}
}

func TestDeleteTaskReturnsPriorState(t *testing.T) {
	store := newMockStore()
	e := newTestServer(store, authFor("user-1", "u1@example.com"))

	rec := doRequest(e, http.MethodPost, "/api/tasks", `{"title":"doomed"}`)
	id := decodeTaskView(t, rec.Body.Bytes())["id"].(string)

	rec = doRequest(e, http.MethodDelete, "/api/tasks/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if decodeTaskView(t, rec.Body.Bytes())["title"] != "doomed" {
		t.Fatal("expected deleted task state in response")
	}
	if len(store.tasks) != 0 {
		t.Fatal("task must be removed from storage")
	}

	rec = doRequest(e, http.MethodDelete, "/api/tasks/"+id, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rec.Code)
	}
}

func TestListTasksStatusFilterExcludesDone(t *testing.T) {
	store := newMockStore()
	e := newTestServer(store, authFor("user-1", "u1@example.com"))

	doRequest(e, http.MethodPost, "/api/tasks", `{"title":"open one"}`)
	doRequest(e, http.MethodPost, "/api/tasks", `{"title":"done one","status":"DONE"}`)

	rec := doRequest(e, http.MethodGet, "/api/tasks?status=OPEN", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	list := decodeTaskView(t, rec.Body.Bytes())
	items, _ := list["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected 1 open task, got %d", len(items))
	}
	item := items[0].(map[string]any)
	if item["title"] != "open one" {
		t.Fatalf("unexpected item: %v", item)
	}
}

func TestListTasksInvalidFilter(t *testing.T) {
	e := newTestServer(newMockStore(), authFor("user-1", "u1@example.com"))
	rec := doRequest(e, http.MethodGet, "/api/tasks?bucket=fortnight", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListTasksStorageFailure(t *testing.T) {
	store := newMockStore()
	store.listErr = errors.New("table unavailable")
	e := newTestServer(store, authFor("user-1", "u1@example.com"))

	rec := doRequest(e, http.MethodGet, "/api/tasks", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	body := decodeTaskView(t, rec.Body.Bytes())
	if body["code"] != "UNEXPECTED_ERROR" {
		t.Fatalf("unexpected error code: %v", body["code"])
	}
	if strings.Contains(rec.Body.String(), "table unavailable") {
		t.Fatal("storage detail must not leak to clients")
	}
}

func TestListTasksAnnotatesOverdueAndDueSoon(t *testing.T) {
	store := newMockStore()
	e := newTestServer(store, authFor("user-1", "u1@example.com"))

	past := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	soon := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	doRequest(e, http.MethodPost, "/api/tasks", `{"title":"late","dueAt":"`+past+`"}`)
	doRequest(e, http.MethodPost, "/api/tasks", `{"title":"soon","dueAt":"`+soon+`"}`)

	rec := doRequest(e, http.MethodGet, "/api/tasks", "")
	list := decodeTaskView(t, rec.Body.Bytes())
	items, _ := list["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	for _, raw := range items {
		item := raw.(map[string]any)
		switch item["title"] {
		case "late":
			if item["overdue"] != true || item["dueSoon"] != false {
				t.Fatalf("late task flags wrong: %v", item)
			}
		case "soon":
			if item["overdue"] != false || item["dueSoon"] != true {
				t.Fatalf("soon task flags wrong: %v", item)
			}
		}
	}
}

func TestHealthz(t *testing.T) {
	e := newTestServer(newMockStore(), mockAuth{err: errMissingAuthorization})
	rec := doRequest(e, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
