package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskflow-api/domain"
)

const streamInterval = 5 * time.Second

// streamTasks pushes the caller's task list over server-sent events.
// EventSource cannot set headers, so a token query parameter is accepted as
// a bearer fallback.
func streamTasks(store Storage, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if header == "" {
			if token := c.QueryParam("token"); token != "" {
				header = "Bearer " + token
			}
		}
		identity, err := auth.IdentityFromAuthHeader(header)
		if err != nil {
			return respondAuthRequired(c, err.Error())
		}
		owner, err := resolveOwner(c.Request().Context(), store, identity)
		if err != nil {
			if err == errAuthRequired {
				return respondAuthRequired(c, "")
			}
			return respondUnexpected(c, logger, "stream.owner", err)
		}

		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}

		ctx := c.Request().Context()
		ticker := time.NewTicker(streamInterval)
		defer ticker.Stop()
		for {
			now := time.Now()
			tasks, err := store.ListTasks(ctx, owner.ID, domain.TaskFilter{
				Sort:      domain.SortDueAt,
				Direction: domain.SortAsc,
			}, now)
			if err == nil {
				items := make([]taskView, 0, len(tasks))
				for _, t := range tasks {
					items = append(items, newTaskView(t, now))
				}
				data, _ := json.Marshal(items)
				if _, err := c.Response().Write([]byte("data: ")); err != nil {
					return nil
				}
				if _, err := c.Response().Write(data); err != nil {
					return nil
				}
				if _, err := c.Response().Write([]byte("\n\n")); err != nil {
					return nil
				}
				flusher.Flush()
			} else if logger != nil {
				logger.WithError(err).Warn("stream list failed")
			}
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	}
}
