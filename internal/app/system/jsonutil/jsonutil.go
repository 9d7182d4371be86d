// Package jsonutil provides helper functions for JSON API responses.
//
// Handlers write success bodies with OK/Created and failures with
// WriteError, which maps classified errors onto {"error": reason}.
package jsonutil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dalemusser/filesmanager/internal/app/system/apierr"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// OK writes a 200 OK JSON response.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// Created writes a 201 Created JSON response.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// NoContent writes a 204 No Content response (no body).
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error writes an error response with the given status code.
// The response body is {"error": message}.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// WriteError classifies err and writes the matching status and reason.
// Internal errors are reported with the generic reason only; callers
// should log the cause before calling. It returns the classification so
// callers can decide whether to log.
func WriteError(w http.ResponseWriter, err error) *apierr.Error {
	e := apierr.From(err)
	reason := e.Reason
	if e.Kind == apierr.Internal || e.Kind == apierr.PipelineFailure {
		reason = apierr.ReasonInternal
	}
	Error(w, e.Kind.Status(), reason)
	return e
}

// Decode reads and decodes JSON from the request body into v.
func Decode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// TooLarge reports whether err came from a body cut off by
// http.MaxBytesReader.
func TooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
