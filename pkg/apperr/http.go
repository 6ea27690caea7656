package apperr

import (
	"encoding/json"
	"net/http"
)

// Codes used only at the HTTP edge.
const (
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeTooManyRequests = "TOO_MANY_REQUESTS"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// Write sends the JSON error envelope.
func Write(w http.ResponseWriter, status int, code, message, field string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Code: code, Message: message, Field: field}})
}

// WriteError maps err onto the envelope and its status code. Wrapped causes
// are never written.
func WriteError(w http.ResponseWriter, err error) {
	e := As(err)
	Write(w, HTTPStatus(e.Kind), string(e.Kind), e.Message, e.Field)
}
