package proxy

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the body of every error answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSON encodes data as the JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteRawJSON writes an already serialized JSON body unchanged.
func WriteRawJSON(w http.ResponseWriter, statusCode int, body []byte) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, err := w.Write(body)
	return err
}

// WriteError writes {"error": message} with the given status.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	if err := WriteJSON(w, statusCode, ErrorResponse{Error: message}); err != nil {
		slog.Debug("failed to write error response", "error", err)
	}
}
