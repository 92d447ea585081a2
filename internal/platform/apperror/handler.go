package apperror

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Body is the JSON error envelope returned for every failed request.
type Body struct {
	Error Detail `json:"error"`
}

// Detail carries the machine-readable error kind and a human message.
type Detail struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// HTTPErrorHandler returns an echo error handler that renders domain errors
// as structured 4xx bodies. Unclassified errors become a generic 500 so
// internals never leak to callers.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		body := Body{Detail{Kind: KindInternal, Message: "internal server error"}}

		var ae *Error
		var he *echo.HTTPError
		switch {
		case errors.As(err, &ae):
			status = ae.HTTPStatus()
			body.Error = Detail{Kind: ae.Kind, Message: ae.Message}
		case errors.As(err, &he):
			status = he.Code
			body.Error = Detail{Kind: kindForStatus(he.Code), Message: messageOf(he)}
		default:
			logger.Error().Err(err).Str("path", c.Request().URL.Path).Msg("unhandled error")
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}

func kindForStatus(code int) Kind {
	switch code {
	case http.StatusBadRequest:
		return KindValidation
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	default:
		return KindInternal
	}
}

func messageOf(he *echo.HTTPError) string {
	if msg, ok := he.Message.(string); ok {
		return msg
	}
	return http.StatusText(he.Code)
}
