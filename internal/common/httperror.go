package common

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorResponse is the JSON body of every non-validation error.
type ErrorResponse struct {
	Message string `json:"message"`
}

// HTTPErrorHandler renders errors as {"message": ...}. Bodies rejected by the
// size limit are reported as bad requests, server faults get a generic
// message.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := http.StatusText(http.StatusInternalServerError)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		status = he.Code
		if he.Message != nil {
			message = fmt.Sprint(he.Message)
		}
		if status == http.StatusRequestEntityTooLarge {
			status = http.StatusBadRequest
		}
	}
	if status >= http.StatusInternalServerError {
		slog.Error("HTTPErrorHandler: request failed", "error", err, "method", c.Request().Method, "uri", c.Request().RequestURI)
		message = http.StatusText(http.StatusInternalServerError)
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(status)
	} else {
		writeErr = c.JSON(status, ErrorResponse{Message: message})
	}
	if writeErr != nil {
		slog.Error("HTTPErrorHandler: failed to write error response", "error", writeErr)
	}
}
