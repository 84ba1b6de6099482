package handler

import (
	"errors"
	"net/http"

	"github.com/moltdeck/moltdeck/internal/apperror"
)

// errorView feeds the error page template.
type errorView struct {
	Title      string
	Status     int
	StatusText string
	Message    string
}

// httpStatus maps a domain error to its HTTP status code. The service layer
// knows nothing about HTTP; this is the one place that translation happens.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrNoActiveIdentity):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrDuplicateIdentity),
		errors.Is(err, apperror.ErrDuplicateLinkedAccount):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrRemoteRejected):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrRemoteUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// userMessage extracts the human-readable message from a domain error.
// Unknown errors get a generic message: raw internals (file paths, URLs)
// never reach the browser.
func userMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Something went wrong. Check the server log for details."
}

// renderError shows the standalone error page with the mapped status.
// POST handlers usually re-render their own form instead; this is for GET
// routes and for failures with no form to return to.
func renderError(w http.ResponseWriter, rend *Renderer, err error) {
	status := httpStatus(err)
	rend.Render(w, status, "error", errorView{
		Title:      "Error",
		Status:     status,
		StatusText: http.StatusText(status),
		Message:    userMessage(err),
	})
}
