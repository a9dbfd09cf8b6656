package api

import (
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskflow-api/domain"
	"taskflow-api/mailer"
)

const taskBodyMaxSize = 1 << 20

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, auth Authenticator, cache *SummaryCache, mail mailer.Mailer, digestCfg DigestConfig, logger *log.Logger) {
	e.POST("/api/tasks", postTask(store, auth, cache, logger))
	e.GET("/api/tasks", getTasks(store, auth, logger))
	e.GET("/api/tasks/:id", getTask(store, auth, logger))
	e.PATCH("/api/tasks/:id", patchTask(store, auth, cache, logger))
	e.DELETE("/api/tasks/:id", deleteTask(store, auth, cache, logger))
	e.GET("/api/reminders", getReminders(store, auth, cache, logger))
	e.GET("/api/tasks/stream", streamTasks(store, auth, logger))
	e.GET("/api/cron/daily-reminder", runDailyDigest(store, mail, digestCfg, logger))
	e.POST("/api/cron/daily-reminder", runDailyDigest(store, mail, digestCfg, logger))
	e.GET("/healthz", healthz())
}

// taskView is a task plus display flags computed against request time.
type taskView struct {
	domain.Task
	Overdue bool `json:"overdue"`
	DueSoon bool `json:"dueSoon"`
}

type tasksResponse struct {
	Items   []taskView        `json:"items"`
	Total   int               `json:"total"`
	Filters domain.TaskFilter `json:"filters"`
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func newTaskView(t domain.Task, now time.Time) taskView {
	return taskView{
		Task:    t,
		Overdue: domain.IsOverdue(t, now),
		DueSoon: domain.IsDueSoon(t, now),
	}
}

// authorize resolves the request's owner. On failure the response has
// already been written and the owner is nil; callers must check the owner,
// not the error, because a committed write returns a nil error.
func authorize(c echo.Context, store Storage, auth Authenticator) (*domain.Owner, error) {
	identity, err := auth.IdentityFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return nil, respondAuthRequired(c, err.Error())
	}
	owner, err := resolveOwner(c.Request().Context(), store, identity)
	if err != nil {
		if err == errAuthRequired {
			return nil, respondAuthRequired(c, "")
		}
		return nil, respondUnexpected(c, nil, "owner.resolve", err)
	}
	return owner, nil
}

func decodeBody(c echo.Context, out any) error {
	lr := io.LimitReader(c.Request().Body, taskBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func postTask(store Storage, auth Authenticator, cache *SummaryCache, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner, err := authorize(c, store, auth)
		if owner == nil {
			return err
		}

		var in domain.TaskCreateInput
		if err := decodeBody(c, &in); err != nil {
			return respondValidation(c, &domain.ValidationError{
				Issues: []domain.Issue{{Message: "Request body is not valid JSON."}},
			})
		}
		draft, err := in.Validate()
		if err != nil {
			return respondValidation(c, err)
		}

		now := time.Now().UTC()
		task := domain.Task{
			ID:        uuid.NewString(),
			OwnerID:   owner.ID,
			Title:     draft.Title,
			Notes:     draft.Notes,
			DueAt:     draft.DueAt,
			Priority:  draft.Priority,
			Status:    draft.Status,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := store.InsertTask(c.Request().Context(), task); err != nil {
			return respondUnexpected(c, logger, "tasks.create", err)
		}
		cache.Invalidate(c.Request().Context(), owner.ID)
		return c.JSON(http.StatusCreated, newTaskView(task, now))
	}
}

func getTasks(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newListRequestMetrics(ctx, logger)
		c.SetRequest(c.Request().WithContext(spanCtx))
		ctx = spanCtx
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		identity, authErr := auth.IdentityFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if authErr != nil {
			metrics.ObserveAuth(time.Since(authStart))
			metrics.SetErrorStage("auth")
			err = respondAuthRequired(c, authErr.Error())
			return err
		}
		owner, ownerErr := resolveOwner(ctx, store, identity)
		metrics.ObserveAuth(time.Since(authStart))
		if ownerErr != nil {
			if ownerErr == errAuthRequired {
				metrics.SetErrorStage("auth")
				err = respondAuthRequired(c, "")
				return err
			}
			metrics.SetErrorStage("owner")
			err = respondUnexpected(c, logger, "tasks.owner", ownerErr)
			return err
		}

		filter, ferr := domain.TaskFilterInput{
			Status:    c.QueryParam("status"),
			Query:     c.QueryParam("query"),
			From:      c.QueryParam("from"),
			To:        c.QueryParam("to"),
			Bucket:    c.QueryParam("bucket"),
			Sort:      c.QueryParam("sort"),
			Direction: c.QueryParam("direction"),
		}.Validate()
		if ferr != nil {
			metrics.SetErrorStage("invalid_filter")
			err = respondValidation(c, ferr)
			return err
		}

		now := time.Now()
		fetchStart := time.Now()
		tasks, fetchErr := store.ListTasks(ctx, owner.ID, filter, now)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			err = respondUnexpected(c, logger, "tasks.list", fetchErr)
			return err
		}
		metrics.SetTasksReturned(len(tasks))

		items := make([]taskView, 0, len(tasks))
		for _, t := range tasks {
			items = append(items, newTaskView(t, now))
		}
		err = c.JSON(http.StatusOK, tasksResponse{Items: items, Total: len(items), Filters: filter})
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func getTask(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner, err := authorize(c, store, auth)
		if owner == nil {
			return err
		}
		task, err := store.GetTask(c.Request().Context(), owner.ID, c.Param("id"))
		if err != nil {
			return respondUnexpected(c, logger, "tasks.get", err)
		}
		if task == nil {
			return respondNotFound(c)
		}
		return c.JSON(http.StatusOK, newTaskView(*task, time.Now()))
	}
}

func patchTask(store Storage, auth Authenticator, cache *SummaryCache, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner, err := authorize(c, store, auth)
		if owner == nil {
			return err
		}

		var in domain.TaskUpdateInput
		if err := decodeBody(c, &in); err != nil {
			return respondValidation(c, &domain.ValidationError{
				Issues: []domain.Issue{{Message: "Request body is not valid JSON."}},
			})
		}
		patch, err := in.Validate()
		if err != nil {
			return respondValidation(c, err)
		}

		ctx := c.Request().Context()
		task, err := store.GetTask(ctx, owner.ID, c.Param("id"))
		if err != nil {
			return respondUnexpected(c, logger, "tasks.update", err)
		}
		if task == nil {
			return respondNotFound(c)
		}

		now := time.Now().UTC()
		patch.Apply(task, now)
		if err := store.UpdateTask(ctx, *task); err != nil {
			return respondUnexpected(c, logger, "tasks.update", err)
		}
		cache.Invalidate(ctx, owner.ID)
		return c.JSON(http.StatusOK, newTaskView(*task, now))
	}
}

func deleteTask(store Storage, auth Authenticator, cache *SummaryCache, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		owner, err := authorize(c, store, auth)
		if owner == nil {
			return err
		}

		ctx := c.Request().Context()
		task, err := store.GetTask(ctx, owner.ID, c.Param("id"))
		if err != nil {
			return respondUnexpected(c, logger, "tasks.delete", err)
		}
		if task == nil {
			return respondNotFound(c)
		}
		if err := store.DeleteTask(ctx, owner.ID, task.ID); err != nil {
			return respondUnexpected(c, logger, "tasks.delete", err)
		}
		cache.Invalidate(ctx, owner.ID)
		// The deleted task's last state is returned so clients can offer undo.
		return c.JSON(http.StatusOK, newTaskView(*task, time.Now()))
	}
}
