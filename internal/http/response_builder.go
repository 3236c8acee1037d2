// Package http serves the JSON API over events, summaries, insights and
// coaching.
//
// This file implements the builder used by every handler to write JSON bodies
// and the single mapping from domain errors to status codes.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"mindspend/internal/coaching"
	"mindspend/internal/core"
	"mindspend/internal/log"
)

var (
	errBadRequest   = errors.New("bad request")
	errMissingOwner = errors.New("missing " + OwnerHeader + " header")
	errNoCoach      = errors.New("coaching is not configured")
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the response. A nil body writes only the status line.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(b.body)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ErrorResponse maps err onto a status code and a stable error code.
func ErrorResponse(err error) *JSONResponseBuilder {
	status, detail := classify(err)
	return NewJSONResponse().Status(status).Body(errorBody{Error: detail})
}

func classify(err error) (int, errorDetail) {
	var (
		verr *core.ValidationError
		cerr *core.CompletionError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, errorDetail{Code: "validation_failed", Message: verr.Reason, Field: verr.Field}
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, errorDetail{Code: "bad_request", Message: err.Error()}
	case errors.Is(err, errMissingOwner):
		return http.StatusUnauthorized, errorDetail{Code: "missing_owner", Message: err.Error()}
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, errorDetail{Code: "not_found", Message: "resource not found"}
	case errors.Is(err, coaching.ErrRateLimited):
		return http.StatusTooManyRequests, errorDetail{Code: "rate_limited", Message: "too many coaching requests, try again later"}
	case errors.Is(err, errNoCoach):
		return http.StatusServiceUnavailable, errorDetail{Code: "coaching_unavailable", Message: err.Error()}
	case errors.Is(err, core.ErrSummarySync):
		return http.StatusBadGateway, errorDetail{Code: "summary_sync_failed", Message: "summary store unavailable"}
	case errors.As(err, &cerr), errors.Is(err, core.ErrPayloadRejected):
		return http.StatusBadGateway, errorDetail{Code: "coaching_failed", Message: "coaching could not be generated"}
	default:
		return http.StatusInternalServerError, errorDetail{Code: "internal", Message: "internal error"}
	}
}

// writeError logs server-side failures and writes the mapped response.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, _ := classify(err)
	if status >= 500 {
		log.LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op, nil)
	}
	ErrorResponse(err).Write(w)
}
