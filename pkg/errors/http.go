package errors

import (
	"encoding/json"
	"net/http"
)

// envelope is the error response body shared by every HTTP surface.
type envelope struct {
	Success bool          `json:"success"`
	Error   envelopeError `json:"error"`
}

type envelopeError struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Details  any    `json:"details,omitempty"`
}

// WriteHTTP writes err as the standard JSON error envelope with its mapped
// status code.
func WriteHTTP(w http.ResponseWriter, err *Error) {
	WriteHTTPDetails(w, err, nil)
}

// WriteHTTPDetails writes the envelope with an optional details payload,
// typically the validator's field error list.
func WriteHTTPDetails(w http.ResponseWriter, err *Error, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus())
	_ = json.NewEncoder(w).Encode(envelope{
		Success: false,
		Error: envelopeError{
			Category: err.Category(),
			Message:  err.Message,
			Details:  details,
		},
	})
}
