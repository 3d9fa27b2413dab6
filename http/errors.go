package http

import (
	"errors"
	"net/http"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/labstack/echo/v4"
	"github.com/lithammer/shortuuid/v3"

	"raillink/entity"
)

// retryAfterSeconds is sent with 503 responses.
const retryAfterSeconds = "1"

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

var businessErrors = []struct {
	err    error
	status int
	name   string
}{
	{entity.ErrValidation, http.StatusBadRequest, "validation"},
	{entity.ErrInvalidStatus, http.StatusBadRequest, "invalid_status"},
	{entity.ErrNotFound, http.StatusNotFound, "not_found"},
	{entity.ErrSeatUnavailable, http.StatusConflict, "seat_unavailable"},
	{entity.ErrInvalidStateTransition, http.StatusConflict, "invalid_state_transition"},
	{entity.ErrConflict, http.StatusConflict, "conflict"},
}

// handleError maps business errors to 4xx responses. Anything else is an
// infrastructure failure: the client gets an opaque code to quote, the cause
// is only logged.
func handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		c.Echo().DefaultHTTPErrorHandler(err, c)
		return
	}

	for _, be := range businessErrors {
		if errors.Is(err, be.err) {
			writeError(c, be.status, errorResponse{Error: be.name, Message: err.Error()})
			return
		}
	}

	code := shortuuid.New()
	log.FromContext(c.Request().Context()).
		WithError(err).
		WithField("error_code", code).
		Error("Request failed")

	c.Response().Header().Set("Retry-After", retryAfterSeconds)
	writeError(c, http.StatusServiceUnavailable, errorResponse{Error: "transaction_failure", Code: code})
}

func writeError(c echo.Context, status int, body errorResponse) {
	if err := c.JSON(status, body); err != nil {
		log.FromContext(c.Request().Context()).WithError(err).Error("Could not write error response")
	}
}
