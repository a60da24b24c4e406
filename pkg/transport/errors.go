package transport

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the JSON error envelope of the admin API.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes one API error. Details lists individual defects,
// for example every account validation error of a failed reload.
type ErrorDetail struct {
	Type    string   `json:"type"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError writes an ErrorBody response.
func WriteError(w http.ResponseWriter, status int, errType, message string, details ...string) {
	WriteJSON(w, status, ErrorBody{Error: ErrorDetail{Type: errType, Message: message, Details: details}})
}
