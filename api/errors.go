package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskflow-api/domain"
)

// Error codes returned to clients. A task that is absent and a task owned by
// someone else produce the same TASK_NOT_FOUND response so existence never
// leaks across owners.
const (
	codeValidation = "VALIDATION_ERROR"
	codeAuth       = "AUTH_REQUIRED"
	codeNotFound   = "TASK_NOT_FOUND"
	codeUpstream   = "UPSTREAM_DELIVERY_FAILURE"
	codeUnexpected = "UNEXPECTED_ERROR"
)

type errorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Issues  []domain.Issue `json:"issues,omitempty"`
}

func respondValidation(c echo.Context, err error) error {
	body := errorBody{Code: codeValidation, Message: "Task data is invalid."}
	if verr, ok := err.(*domain.ValidationError); ok {
		body.Issues = verr.Issues
	}
	return c.JSON(http.StatusBadRequest, body)
}

func respondAuthRequired(c echo.Context, reason string) error {
	msg := "Please sign in to manage tasks."
	if reason != "" {
		msg = reason
	}
	return c.JSON(http.StatusUnauthorized, errorBody{Code: codeAuth, Message: msg})
}

func respondNotFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, errorBody{Code: codeNotFound, Message: "Task was not found."})
}

// respondUnexpected logs the underlying error and reports it generically so
// storage internals never reach the client.
func respondUnexpected(c echo.Context, logger *log.Logger, op string, err error) error {
	if logger != nil {
		logger.WithError(err).WithField("op", op).Error("request failed")
	}
	return c.JSON(http.StatusInternalServerError, errorBody{
		Code:    codeUnexpected,
		Message: "Something went wrong while processing task data.",
	})
}
