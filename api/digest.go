package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskflow-api/digest"
	"taskflow-api/domain"
	"taskflow-api/mailer"
)

const cronSecretHeader = "X-Cron-Secret"

// DigestConfig is the cron endpoint configuration. Secret and Recipient are
// checked at request time rather than startup so the API can run for task
// traffic even when digests are not configured.
type DigestConfig struct {
	Secret    string
	Recipient string
	From      string
}

func (c DigestConfig) complete() bool {
	return c.Secret != "" && c.Recipient != "" && c.From != ""
}

type digestCounts struct {
	Overdue  int `json:"overdue"`
	DueToday int `json:"dueToday"`
}

type digestResponse struct {
	OK      bool         `json:"ok"`
	Counts  digestCounts `json:"counts"`
	EmailID string       `json:"emailId,omitempty"`
}

type fanOutResponse struct {
	OK       bool `json:"ok"`
	Enqueued int  `json:"enqueued"`
}

// runDailyDigest is the scheduler-invoked entry point. With no scope it
// builds and sends one digest for the configured recipient synchronously;
// with scope=all it enqueues one digest request per known owner for the
// worker to drain.
func runDailyDigest(store Storage, mail mailer.Mailer, cfg DigestConfig, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !cfg.complete() || mail == nil {
			logger.Error("digest requested but delivery is not configured")
			return c.JSON(http.StatusInternalServerError, errorBody{
				Code:    codeUnexpected,
				Message: "Reminder delivery is not configured.",
			})
		}
		provided := c.Request().Header.Get(cronSecretHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(cfg.Secret)) != 1 {
			return c.JSON(http.StatusUnauthorized, errorBody{
				Code:    codeAuth,
				Message: "Cron secret is missing or wrong.",
			})
		}

		ctx := c.Request().Context()

		if c.QueryParam("scope") == "all" {
			owners, err := store.ListOwners(ctx)
			if err != nil {
				return respondUnexpected(c, logger, "digest.owners", err)
			}
			enqueued := 0
			for _, o := range owners {
				if o.Email == "" {
					continue
				}
				req := domain.DigestRequest{OwnerID: o.ID, Email: o.Email}
				if err := store.EnqueueDigest(ctx, req); err != nil {
					return respondUnexpected(c, logger, "digest.enqueue", err)
				}
				enqueued++
			}
			logger.WithField("enqueued", enqueued).Info("digest fan-out complete")
			return c.JSON(http.StatusOK, fanOutResponse{OK: true, Enqueued: enqueued})
		}

		now := time.Now()
		var overdue, dueToday []domain.Task
		owner, err := store.FindOwnerByEmail(ctx, cfg.Recipient)
		if err != nil {
			return respondUnexpected(c, logger, "digest.owner", err)
		}
		if owner != nil {
			open := domain.StatusOpen
			tasks, err := store.ListTasks(ctx, owner.ID, domain.TaskFilter{
				Status:    &open,
				Sort:      domain.SortDueAt,
				Direction: domain.SortAsc,
			}, now)
			if err != nil {
				return respondUnexpected(c, logger, "digest.list", err)
			}
			overdue, dueToday = digest.Partition(tasks, now)
		}

		email, err := digest.Build(now, overdue, dueToday)
		if err != nil {
			return respondUnexpected(c, logger, "digest.build", err)
		}
		emailID, err := mail.Send(ctx, cfg.From, cfg.Recipient, email.Subject, email.HTML)
		if err != nil {
			logger.WithError(err).Error("digest delivery failed")
			return c.JSON(http.StatusBadGateway, errorBody{
				Code:    codeUpstream,
				Message: "Reminder email could not be delivered.",
			})
		}

		logger.WithFields(log.Fields{
			"overdue":   len(overdue),
			"due_today": len(dueToday),
			"email_id":  emailID,
		}).Info("digest sent")
		return c.JSON(http.StatusOK, digestResponse{
			OK:      true,
			Counts:  digestCounts{Overdue: len(overdue), DueToday: len(dueToday)},
			EmailID: emailID,
		})
	}
}
