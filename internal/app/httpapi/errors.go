package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/marketbridge/platform/internal/app/services"
	"github.com/marketbridge/platform/internal/app/services/insights"
	"github.com/marketbridge/platform/internal/app/services/marketplace"
	"github.com/marketbridge/platform/internal/app/services/subscriptions"
	"github.com/marketbridge/platform/internal/app/storage"
	"github.com/marketbridge/platform/internal/app/views"
	"github.com/marketbridge/platform/internal/auth"
	"github.com/marketbridge/platform/internal/blob"
	svcerrors "github.com/marketbridge/platform/internal/errors"
	"github.com/marketbridge/platform/internal/httputil"
	"github.com/marketbridge/platform/supabase/client"
)

var (
	errNotFound         = svcerrors.NotFound("Route not found")
	errMethodNotAllowed = svcerrors.New("METHOD_NOT_ALLOWED", http.StatusMethodNotAllowed, "Method not allowed", nil)
)

// toServiceError maps an error to its HTTP envelope. The message is always
// the error's own text so backend messages reach the client unchanged.
func toServiceError(err error) *svcerrors.ServiceError {
	if se := svcerrors.GetServiceError(err); se != nil {
		return se
	}
	msg := err.Error()

	var apiErr *client.APIError
	switch {
	case services.IsInvalid(err),
		errors.Is(err, auth.ErrEmailNotConfirmed),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, insights.ErrNestedReply),
		errors.Is(err, subscriptions.ErrSelfSubscription),
		errors.Is(err, views.ErrNotActionable):
		return svcerrors.BadRequest(msg)
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrTokenRevoked):
		return svcerrors.Unauthorized(msg)
	case errors.Is(err, services.ErrForbidden),
		errors.Is(err, services.ErrNotExpert),
		errors.Is(err, services.ErrNotInvestor),
		errors.Is(err, insights.ErrSubscribersOnly):
		return svcerrors.Forbidden(msg)
	case storage.IsNotFound(err), errors.Is(err, blob.ErrNotFound):
		return svcerrors.NotFound(msg)
	case storage.IsConflict(err),
		errors.Is(err, auth.ErrUserExists),
		errors.Is(err, subscriptions.ErrAlreadySubscribed),
		errors.Is(err, subscriptions.ErrRequestPending),
		errors.Is(err, subscriptions.ErrInvalidTransition),
		errors.Is(err, views.ErrToggleInFlight):
		return svcerrors.Conflict(msg)
	case errors.Is(err, marketplace.ErrContactUnavailable):
		return svcerrors.NotImplemented(msg)
	case errors.As(err, &apiErr):
		return svcerrors.Backend(apiErr.StatusCode, err)
	case errors.Is(err, context.DeadlineExceeded):
		return svcerrors.New(svcerrors.CodeBackend, http.StatusGatewayTimeout, msg, err)
	case errors.Is(err, client.ErrCircuitOpen):
		return svcerrors.New(svcerrors.CodeBackend, http.StatusServiceUnavailable, msg, err)
	default:
		return svcerrors.Internal(msg, err)
	}
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	se := toServiceError(err)
	if se.HTTPStatus >= http.StatusInternalServerError {
		h.log.WithContext(r.Context()).
			WithError(err).
			WithField("path", r.URL.Path).
			Error("request failed")
	}
	httputil.WriteError(w, r, se)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	httputil.WriteJSON(w, status, v)
}
