// Package httputil provides utility functions for HTTP servers.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// MaxBodyBytes caps request bodies read by DecodeJSON.
const MaxBodyBytes = 1 << 20

// ErrEmptyBody is returned by DecodeJSON when the request has no body.
var ErrEmptyBody = errors.New("request body is empty")

// ErrorResponse is the body written for every error status.
type ErrorResponse struct {
	Message string `json:"message"`
}

// EncodeJSON encodes v to JSON, sets status, and writes it to w.
func EncodeJSON[T any](w http.ResponseWriter, statusCode int, v T) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}

	return nil
}

// EncodeError writes an ErrorResponse with the given status.
func EncodeError(w http.ResponseWriter, statusCode int, msg string) error {
	return EncodeJSON(w, statusCode, ErrorResponse{Message: msg})
}

// DecodeJSON decodes JSON from r. The body is limited to MaxBodyBytes.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request) (T, error) {
	var v T
	if r.Body == nil || r.Body == http.NoBody {
		return v, ErrEmptyBody
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("failed to decode json: %w", err)
	}
	if dec.More() {
		return v, errors.New("failed to decode json: unexpected data after top-level value")
	}

	return v, nil
}
