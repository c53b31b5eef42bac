package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/vitals/vitals/internal/platform/fhir"
)

// ErrorHandler renders errors that escape the handlers as OperationOutcome
// JSON. Install it as echo's HTTPErrorHandler.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = fmt.Sprint(he.Message)
		}

		var outcome *fhir.OperationOutcome
		switch code {
		case http.StatusNotFound:
			outcome = fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeNotFound, msg)
		case http.StatusRequestEntityTooLarge:
			outcome = fhir.TooLargeOutcome(msg)
		case http.StatusGatewayTimeout:
			outcome = fhir.TimeoutOutcome()
		default:
			if code >= 500 {
				outcome = fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeException, msg)
			} else {
				outcome = fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeInvalid, msg)
			}
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(code)
		} else {
			werr = c.JSON(code, outcome)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("failed to write error response")
		}
	}
}
