package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/admin-console/internal/api/handler"
	"github.com/99minutos/admin-console/internal/api/i18n"
	"github.com/99minutos/admin-console/internal/core/domain"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps session failures to their HTTP status and a localized message.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>", "code": "<failure>"}.
func NewHTTPErrorHandler(tr *i18n.Translator, log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err, tr, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, tr *i18n.Translator, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	trans := tr.For(c.Request().Header.Get("Accept-Language"))

	var ve *handler.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, errorResponse{Error: ve.Localize(trans), Code: "invalid_request"}
	}

	// Echo's own errors (bind failures, 404 from router, rate limiter, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Internal != nil {
			log.Debug().Err(he.Internal).Int("status", he.Code).Str("path", c.Path()).Msg("request failed")
		}
		return he.Code, errorResponse{Error: fmt.Sprintf("%v", he.Message), Code: failureCode(he.Internal)}
	}

	failure := domain.FailureOf(err)
	switch failure {
	case domain.FailureNoSession, domain.FailureInvalidCredentials, domain.FailureRefresh:
		return http.StatusUnauthorized, errorResponse{Error: tr.Message(trans, failure.String()), Code: failure.String()}
	case domain.FailureForbidden:
		return http.StatusForbidden, errorResponse{Error: tr.Message(trans, failure.String()), Code: failure.String()}
	case domain.FailureProfileUnavailable:
		return http.StatusBadGateway, errorResponse{Error: tr.Message(trans, failure.String()), Code: failure.String()}
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Error: tr.Message(trans, i18n.KeyUnknown)}
}

func failureCode(err error) string {
	switch f := domain.FailureOf(err); f {
	case domain.FailureNone, domain.FailureUnknown:
		return ""
	default:
		return f.String()
	}
}
