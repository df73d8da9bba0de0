package api

import (
	"errors"
	"net/http"
	"strings"

	"staybook/internal/auth"
	"staybook/internal/domain"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var sentinels = []error{
	domain.ErrValidation,
	domain.ErrNotFound,
	domain.ErrForbidden,
	domain.ErrConflict,
	domain.ErrAlreadyCanceled,
}

// httpStatus maps a service error onto the response code. Scheduling
// conflicts and repeated cancels are client errors, so both map to 400.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case domain.IsUnprocessable(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrAlreadyCanceled):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func grpcCode(err error) codes.Code {
	switch {
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		return codes.Unauthenticated
	case errors.Is(err, domain.ErrValidation):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrForbidden):
		return codes.PermissionDenied
	case errors.Is(err, domain.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, domain.ErrAlreadyCanceled):
		return codes.FailedPrecondition
	case errors.Is(err, domain.ErrConflict):
		return codes.Aborted
	default:
		return codes.Internal
	}
}

func grpcError(err error) error {
	code := grpcCode(err)
	if code == codes.Internal {
		return status.Error(code, "internal error")
	}
	return status.Error(code, clientMessage(err))
}

// clientMessage drops the sentinel prefix ("validation failed: ...") so
// clients see only the detail.
func clientMessage(err error) string {
	msg := err.Error()
	for _, s := range sentinels {
		prefix := s.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}
