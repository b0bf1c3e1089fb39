package api

import (
	"net/http"

	"github.com/ldmsys/ldm/pkg/errs"
)

var statusByKind = map[errs.Kind]int{
	errs.InvalidArgument:   http.StatusBadRequest,
	errs.Unauthenticated:   http.StatusUnauthorized,
	errs.Forbidden:         http.StatusForbidden,
	errs.NotFound:          http.StatusNotFound,
	errs.Conflict:          http.StatusConflict,
	errs.Precondition:      http.StatusPreconditionFailed,
	errs.ResourceExhausted: http.StatusTooManyRequests,
	errs.Transient:         http.StatusServiceUnavailable,
	errs.Cancelled:         http.StatusGone,
	errs.Timeout:           http.StatusGatewayTimeout,
	errs.Internal:          http.StatusInternalServerError,
}

// errorResponse maps err to an HTTP status and JSON body, pulling the
// leader address out of a Precondition error so clients following the
// "not the leader" redirect can find it without parsing the message.
func errorResponse(err error) (int, map[string]interface{}) {
	kind := errs.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	body := map[string]interface{}{
		"error": err.Error(),
		"kind":  string(kind),
	}
	return status, body
}
