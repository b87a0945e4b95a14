// Package httputil holds the JSON request and response helpers shared by the
// HTTP middleware and handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	svcerrors "github.com/marketbridge/platform/internal/errors"
	"github.com/marketbridge/platform/pkg/logger"
)

// MaxBodyBytes bounds JSON request bodies.
const MaxBodyBytes = 1 << 20

// ErrorBody is the JSON shape of every error response. Error carries the
// message unchanged so clients can display backend messages verbatim.
type ErrorBody struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
	TraceID string                 `json:"trace_id,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a ServiceError as an ErrorBody.
func WriteError(w http.ResponseWriter, r *http.Request, se *svcerrors.ServiceError) {
	body := ErrorBody{
		Error:   se.Message,
		Code:    string(se.Code),
		Details: se.Details,
	}
	if r != nil {
		body.TraceID = logger.GetTraceID(r.Context())
	}
	WriteJSON(w, se.HTTPStatus, body)
}

// Unauthorized writes a 401 with message, or a generic one when empty.
func Unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, svcerrors.Unauthorized(message))
}

// DecodeJSON reads a JSON body of at most MaxBodyBytes into dst. Unknown
// fields are rejected so typos in field names surface as 400s.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return svcerrors.BadRequest("request body is required")
		case errors.As(err, &maxErr):
			return svcerrors.BadRequest(fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
		default:
			return svcerrors.BadRequest("invalid JSON: " + err.Error())
		}
	}
	return nil
}
