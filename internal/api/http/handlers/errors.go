package handlers

import (
	"errors"
	"net/http"

	"github.com/spec-kit/telegram-auth-service/internal/domain"
	apperrors "github.com/spec-kit/telegram-auth-service/pkg/util"
)

var rejectStatus = map[domain.RejectReason]int{
	domain.RejectInvalidData:      http.StatusBadRequest,
	domain.RejectDataExpired:      http.StatusBadRequest,
	domain.RejectAccountBanned:    http.StatusForbidden,
	domain.RejectSignupDisabled:   http.StatusForbidden,
	domain.RejectDomainRestricted: http.StatusForbidden,
	domain.RejectNotConfigured:    http.StatusForbidden,
	domain.RejectLoginDisabled:    http.StatusForbidden,
	domain.RejectIdentifierTaken:  http.StatusConflict,
	domain.RejectCreateFailed:     http.StatusInternalServerError,
	domain.RejectLoginFailed:      http.StatusInternalServerError,
}

// rejectionError converts a rejected outcome into a DomainError.
func rejectionError(reason domain.RejectReason) error {
	status, ok := rejectStatus[reason]
	if !ok {
		status = http.StatusBadRequest
	}
	return apperrors.NewDomainError(string(reason), reason.Message(), status, nil)
}

// telegramError maps link, unlink and settings sentinels.
func telegramError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotConfigured):
		return apperrors.NewDomainError("NOT_CONFIGURED", "Telegram integration is not configured", http.StatusForbidden, nil)
	case errors.Is(err, domain.ErrAlreadyLinked):
		return apperrors.NewDomainError("ALREADY_LINKED", domain.ErrAlreadyLinked.Error(), http.StatusConflict, nil)
	case errors.Is(err, domain.ErrIdentifierTaken):
		return apperrors.NewDomainError("IDENTIFIER_TAKEN", domain.ErrIdentifierTaken.Error(), http.StatusConflict, nil)
	case errors.Is(err, domain.ErrInvalidClaim):
		return apperrors.NewBadRequest(string(domain.RejectInvalidData), domain.ErrInvalidClaim.Error())
	case errors.Is(err, domain.ErrNotLinked):
		return apperrors.NewBadRequest("NOT_LINKED", domain.ErrNotLinked.Error())
	case errors.Is(err, domain.ErrNotFound):
		return apperrors.NewNotFound("telegram settings", nil)
	default:
		return apperrors.MapError(err)
	}
}
