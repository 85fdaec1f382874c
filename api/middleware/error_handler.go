package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"webstack/internal/database"
	"webstack/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	OK      int    `json:"ok"`
	ErrCode string `json:"errcode"`
	Message string `json:"message"`
	ReqID   string `json:"req_id,omitempty"`
}

// ErrorCode is the envelope code for an HTTP status, e.g. ESVR0404.
func ErrorCode(status int) string {
	return fmt.Sprintf("ESVR%04d", status)
}

// ErrorHandler renders every error escaping a handler as an ErrorResponse.
func ErrorHandler() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		_ = RenderError(c, err)
	}
}

func RenderError(c echo.Context, err error) error {
	status, code, message := classify(err)
	if status >= http.StatusInternalServerError {
		LoggerFromContext(c).WithError(err).WithField("errcode", code).Error("Server Error")
	}
	if c.Request().Method == http.MethodHead {
		return c.NoContent(status)
	}
	return WriteError(c, status, code, message)
}

func WriteError(c echo.Context, status int, code, message string) error {
	return c.JSON(status, ErrorResponse{
		OK:      0,
		ErrCode: code,
		Message: message,
		ReqID:   RequestIDFromContext(c),
	})
}

func classify(err error) (int, string, string) {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		message := http.StatusText(httpErr.Code)
		if httpErr.Code == http.StatusNotFound {
			message = "Service Not Found"
		} else if m, ok := httpErr.Message.(string); ok && m != "" {
			message = m
		}
		return httpErr.Code, ErrorCode(httpErr.Code), message
	}

	var validationErrs validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized, ErrorCode(http.StatusUnauthorized), "Unauthorized"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, ErrorCode(http.StatusUnauthorized), err.Error()
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrCookiesDisabled),
		errors.Is(err, service.ErrInvalidUser),
		errors.As(err, &validationErrs):
		return http.StatusBadRequest, ErrorCode(http.StatusBadRequest), err.Error()
	}

	var cmdErr *database.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code != "" {
		return http.StatusInternalServerError, cmdErr.Code, "Server Error"
	}
	return http.StatusInternalServerError, ErrorCode(http.StatusInternalServerError), "Server Error"
}
