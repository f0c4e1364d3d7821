package handlers

import (
	"errors"
	"net/http"

	"github.com/spec-kit/support-chat/internal/chat"
	"github.com/spec-kit/support-chat/internal/domain"
	"github.com/spec-kit/support-chat/internal/service"
	apperrors "github.com/spec-kit/support-chat/pkg/util/errorutil"
)

// mapError translates domain and session errors into API errors. Anything
// unrecognised is left for the error middleware.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrTicketNotFound):
		return apperrors.NewNotFound("ticket", nil)
	case errors.Is(err, service.ErrSessionNotFound):
		return apperrors.NewNotFound("session", nil)
	case errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidPriority):
		return apperrors.NewValidationError(err.Error(), nil)
	case errors.Is(err, domain.ErrReplyNotAllowed):
		return apperrors.Wrap(err, apperrors.CodeReplyNotAllowed, err.Error(), http.StatusConflict)
	case errors.Is(err, chat.ErrSessionClosed):
		return apperrors.Wrap(err, apperrors.CodeSessionClosed, "ticket view is closed", http.StatusGone)
	case errors.Is(err, chat.ErrSendFailed):
		return apperrors.Wrap(err, apperrors.CodeSendFailed, "message could not be sent", http.StatusBadGateway)
	case errors.Is(err, chat.ErrMutationFailed):
		return apperrors.Wrap(err, apperrors.CodeMutationFailed, "ticket could not be updated", http.StatusBadGateway)
	case errors.Is(err, chat.ErrFetchFailed):
		return apperrors.Wrap(err, apperrors.CodeFetchFailed, "ticket could not be loaded", http.StatusBadGateway)
	case errors.Is(err, service.ErrStoreUnavailable):
		return apperrors.Wrap(err, apperrors.CodeUnavailable, "ticket store unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, service.ErrInvalidCredentials):
		return apperrors.NewUnauthorized("invalid credentials")
	case errors.Is(err, service.ErrLoginDisabled):
		return apperrors.NewForbidden("admin login is not configured")
	}
	return err
}
