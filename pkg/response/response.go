// Package response writes the gateway's JSON envelopes: the OData-style
// {count,value,nextLink} shape for list reads, and a uniform {error,...}
// envelope for every apierrors.Error the dispatcher sees.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/melosso/portway/pkg/apierrors"
)

// Envelope is the list-read response shape: {count,value,nextLink}.
type Envelope struct {
	Count    *int64  `json:"count"`
	Value    any     `json:"value"`
	NextLink *string `json:"nextLink"`
}

// ErrorBody is the JSON shape of an error response: {error,details?,traceId?}.
type ErrorBody struct {
	Error   string             `json:"error"`
	Details []apierrors.Detail `json:"details,omitempty"`
	TraceID string             `json:"traceId,omitempty"`
}

// JSON writes v as a JSON body with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Collection writes a $select/$filter/$orderby result set as the
// {count,value,nextLink} envelope. count and nextLink are nil when the
// caller has nothing to report for them (nextLink marshals to JSON null).
func Collection(w http.ResponseWriter, correlationID string, value any, count *int64, nextLink *string) {
	if value == nil {
		value = []any{}
	}
	w.Header().Set("X-Correlation-Id", correlationID)
	JSON(w, http.StatusOK, Envelope{
		Count:    count,
		Value:    value,
		NextLink: nextLink,
	})
}

// Item writes a single-resource success response.
func Item(w http.ResponseWriter, status int, correlationID string, value any) {
	w.Header().Set("X-Correlation-Id", correlationID)
	JSON(w, status, value)
}

// Error writes err as the standard error envelope, mapping its Kind to an
// HTTP status code.
func Error(w http.ResponseWriter, correlationID string, err error) {
	apiErr, ok := apierrors.As(err)
	if !ok {
		apiErr = apierrors.Wrap(apierrors.Internal, "internal error", err)
	}
	if apiErr.TraceID == "" {
		apiErr.TraceID = correlationID
	}
	w.Header().Set("X-Correlation-Id", correlationID)
	JSON(w, apiErr.Kind.HTTPStatus(), ErrorBody{
		Error:   apiErr.Message,
		Details: apiErr.Details,
		TraceID: apiErr.TraceID,
	})
}
